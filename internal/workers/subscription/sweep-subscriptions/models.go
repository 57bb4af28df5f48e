// internal/workers/subscription/sweep-subscriptions/models.go
package sweepsubscriptions

// Input is empty; the sweep always runs against the current time.
type Input struct{}

type Output struct {
	ExpiredCount int    `json:"expiredCount"`
	SweptAt      string `json:"sweptAt"`
}
