// internal/workers/payment/simulate-payout/models.go
package simulatepayout

type Input struct {
	PaymentID string `json:"paymentId"`
}

type Output struct {
	PaymentID string `json:"paymentId"`
	SellerID  string `json:"sellerId"`
	Amount    int64  `json:"amount"`
	Channel   string `json:"channel"`
	PaidOutAt string `json:"paidOutAt"`
}
