package models

import "time"

type ListingStatus string

const (
	ListingAvailable ListingStatus = "AVAILABLE"
	ListingReserved  ListingStatus = "RESERVED"
	ListingSold      ListingStatus = "SOLD"
	ListingRejected  ListingStatus = "REJECTED"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingAvailable, ListingReserved, ListingSold, ListingRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingRejected
}

type Listing struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"ownerId"`
	Title         string        `json:"title"`
	Price         int64         `json:"price"`
	Status        ListingStatus `json:"status"`
	Views         int           `json:"views"`
	Favorites     int           `json:"favorites"`
	VisitRequests int           `json:"visitRequests"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
