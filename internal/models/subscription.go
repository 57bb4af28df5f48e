package models

import "time"

type SubscriptionPlan string

const (
	PlanMonthly SubscriptionPlan = "MONTHLY"
	PlanAnnual  SubscriptionPlan = "ANNUAL"
)

func (p SubscriptionPlan) Valid() bool {
	switch p {
	case PlanMonthly, PlanAnnual:
		return true
	}
	return false
}

// ValidUntil returns the end of a validity window starting at start.
func (p SubscriptionPlan) ValidUntil(start time.Time) time.Time {
	if p == PlanAnnual {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

type SubscriptionStatus string

const (
	SubscriptionPending  SubscriptionStatus = "PENDING"
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
	SubscriptionRejected SubscriptionStatus = "REJECTED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionPending, SubscriptionActive, SubscriptionExpired, SubscriptionRejected:
		return true
	}
	return false
}

type SubscriptionRequest struct {
	ID              string             `json:"id"`
	RequesterID     string             `json:"requesterId"`
	Plan            SubscriptionPlan   `json:"plan"`
	Fee             int64              `json:"fee"`
	Evidence        []byte             `json:"evidence,omitempty"`
	Status          SubscriptionStatus `json:"status"`
	SubmittedAt     time.Time          `json:"submittedAt"`
	DecidedAt       *time.Time         `json:"decidedAt,omitempty"`
	RejectionReason *string            `json:"rejectionReason,omitempty"`
	ValidFrom       *time.Time         `json:"validFrom,omitempty"`
	ValidUntil      *time.Time         `json:"validUntil,omitempty"`
}

// ActiveAt reports whether the request is ACTIVE and its window covers now.
func (r *SubscriptionRequest) ActiveAt(now time.Time) bool {
	if r.Status != SubscriptionActive || r.ValidUntil == nil {
		return false
	}
	return !now.After(*r.ValidUntil)
}

func (r *SubscriptionRequest) RequestID() string { return r.ID }

func (r *SubscriptionRequest) Pending() bool { return r.Status == SubscriptionPending }

func (r *SubscriptionRequest) StatusName() string { return string(r.Status) }

func (r *SubscriptionRequest) MarkApproved(now time.Time) {
	r.Status = SubscriptionActive
	r.DecidedAt = &now
}

func (r *SubscriptionRequest) MarkRejected(reason string, now time.Time) {
	r.Status = SubscriptionRejected
	r.DecidedAt = &now
	r.RejectionReason = &reason
}
