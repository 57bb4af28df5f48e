package models

import "time"

type Contract struct {
	ID            string       `json:"id"`
	ListingID     string       `json:"listingId"`
	Type          ContractType `json:"type"`
	Signatories   []string     `json:"signatories"`
	BuyerDecision bool         `json:"buyerDecision"`
	Note          string       `json:"note,omitempty"`
	ValidFrom     time.Time    `json:"validFrom"`
	ValidUntil    time.Time    `json:"validUntil"`
	SignedAt      *time.Time   `json:"signedAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (c *Contract) HasSignatory(userID string) bool {
	for _, id := range c.Signatories {
		if id == userID {
			return true
		}
	}
	return false
}

// AddSignatory appends userID unless already present and reports whether the
// set changed.
func (c *Contract) AddSignatory(userID string) bool {
	if c.HasSignatory(userID) {
		return false
	}
	c.Signatories = append(c.Signatories, userID)
	return true
}

// IsSigned holds once at least two distinct parties signed.
func (c *Contract) IsSigned() bool {
	return len(c.Signatories) >= 2
}

// IsValid holds once the buyer accepted and at least one party signed.
func (c *Contract) IsValid() bool {
	return c.BuyerDecision && len(c.Signatories) > 0
}
