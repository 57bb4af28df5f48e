// internal/workers/subscription/decide-subscription/models.go
package decidesubscription

import "marketplace-verification/internal/workers/jobs"

type Input struct {
	RequestID string        `json:"requestId"`
	Decision  jobs.Decision `json:"decision"`
	Reason    string        `json:"reason,omitempty"`
}

type Output struct {
	RequestID  string `json:"requestId"`
	Status     string `json:"status"`
	ValidUntil string `json:"validUntil,omitempty"`
}
