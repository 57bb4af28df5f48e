// internal/models/notification.go
package models

import "time"

type NotificationType string

const (
	NotificationSubscription NotificationType = "SUBSCRIPTION"
	NotificationPayment      NotificationType = "PAYMENT"
	NotificationContract     NotificationType = "CONTRACT"
	NotificationListing      NotificationType = "LISTING"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationSubscription, NotificationPayment, NotificationContract, NotificationListing:
		return true
	}
	return false
}

// Notification is one persisted message for one recipient.
type Notification struct {
	ID          string           `json:"id"`
	Type        NotificationType `json:"type"`
	Content     string           `json:"content"`
	FromUserID  *string          `json:"fromUserId,omitempty"`
	RecipientID string           `json:"recipientId"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"createdAt"`
}
