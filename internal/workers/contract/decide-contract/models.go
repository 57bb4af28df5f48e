// internal/workers/contract/decide-contract/models.go
package decidecontract

import "marketplace-verification/internal/workers/jobs"

type Input struct {
	ContractID string        `json:"contractId"`
	BuyerID    string        `json:"buyerId"`
	Decision   jobs.Decision `json:"decision"`
	Reason     string        `json:"reason,omitempty"`
}

type Output struct {
	ContractID    string `json:"contractId"`
	ListingID     string `json:"listingId"`
	BuyerDecision bool   `json:"buyerDecision"`
	ListingStatus string `json:"listingStatus"`
	Note          string `json:"note,omitempty"`
}
