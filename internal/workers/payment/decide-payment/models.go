// internal/workers/payment/decide-payment/models.go
package decidepayment

import "marketplace-verification/internal/workers/jobs"

type Input struct {
	PaymentID string        `json:"paymentId"`
	Decision  jobs.Decision `json:"decision"`
	Reason    string        `json:"reason,omitempty"`
}

type Output struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	ListingID string `json:"listingId"`
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
}
