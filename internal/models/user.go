// internal/models/user.go
package models

import "time"

// Role tags a user record. Publisher capability is not a role; it is derived
// from the publishers table.
type Role string

const (
	RoleBuyer Role = "BUYER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublisherCapability points a user at the subscription request that grants
// them the right to publish listings.
type PublisherCapability struct {
	UserID                string    `json:"userId"`
	SubscriptionRequestID string    `json:"subscriptionRequestId"`
	UpdatedAt             time.Time `json:"updatedAt"`
}
