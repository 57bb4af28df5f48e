package models

import "time"

type PaymentChannel string

const (
	ChannelCard        PaymentChannel = "CARD"
	ChannelOrangeMoney PaymentChannel = "ORANGE_MONEY"
	ChannelMobileMoney PaymentChannel = "MOBILE_MONEY"
)

func (c PaymentChannel) Valid() bool {
	switch c {
	case ChannelCard, ChannelOrangeMoney, ChannelMobileMoney:
		return true
	}
	return false
}

// ContractType is both the intent declared on a payment and the type of the
// contract created from it.
type ContractType string

const (
	ContractSale          ContractType = "SALE"
	ContractPromiseOfSale ContractType = "PROMISE_OF_SALE"
)

func (t ContractType) Valid() bool {
	switch t {
	case ContractSale, ContractPromiseOfSale:
		return true
	}
	return false
}

// ListingStatus is the status a listing moves to once a payment or contract
// of this type is accepted.
func (t ContractType) ListingStatus() ListingStatus {
	if t == ContractPromiseOfSale {
		return ListingReserved
	}
	return ListingSold
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentRejected  PaymentStatus = "REJECTED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentRejected:
		return true
	}
	return false
}

type PaymentRequest struct {
	ID              string         `json:"id"`
	BuyerID         string         `json:"buyerId"`
	ListingID       string         `json:"listingId"`
	SellerID        string         `json:"sellerId"`
	Amount          int64          `json:"amount"`
	Channel         PaymentChannel `json:"channel"`
	Intent          ContractType   `json:"intent"`
	Evidence        []byte         `json:"evidence,omitempty"`
	Status          PaymentStatus  `json:"status"`
	Read            bool           `json:"read"`
	RejectionReason *string        `json:"rejectionReason,omitempty"`
	SubmittedAt     time.Time      `json:"submittedAt"`
	DecidedAt       *time.Time     `json:"decidedAt,omitempty"`
	PaidOutAt       *time.Time     `json:"paidOutAt,omitempty"`
}

func (p *PaymentRequest) RequestID() string { return p.ID }

func (p *PaymentRequest) Pending() bool { return p.Status == PaymentPending }

func (p *PaymentRequest) StatusName() string { return string(p.Status) }

func (p *PaymentRequest) MarkApproved(now time.Time) {
	p.Status = PaymentConfirmed
	p.DecidedAt = &now
}

func (p *PaymentRequest) MarkRejected(reason string, now time.Time) {
	p.Status = PaymentRejected
	p.DecidedAt = &now
	p.RejectionReason = &reason
}
