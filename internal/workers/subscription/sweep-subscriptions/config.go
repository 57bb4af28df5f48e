// internal/workers/subscription/sweep-subscriptions/config.go
package sweepsubscriptions

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
