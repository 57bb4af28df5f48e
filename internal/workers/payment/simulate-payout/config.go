// internal/workers/payment/simulate-payout/config.go
package simulatepayout

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
