// Package store defines the persistence boundary for the verification
// services. Every state transition runs inside InTx so that a request's
// status change and its side effects commit or roll back together.
package store

import (
	"context"
	"errors"
	"time"

	"marketplace-verification/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
)

// Store opens transactions.
type Store interface {
	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx gives access to the repositories bound to one transaction.
type Tx interface {
	Users() UserRepository
	Publishers() PublisherRepository
	Subscriptions() SubscriptionRepository
	Listings() ListingRepository
	Payments() PaymentRepository
	Contracts() ContractRepository
	Notifications() NotificationRepository
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	// GetForUpdate locks the user row. Decisions that check a per-user
	// invariant take this lock first.
	GetForUpdate(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type PublisherRepository interface {
	Get(ctx context.Context, userID string) (*models.PublisherCapability, error)
	Upsert(ctx context.Context, p *models.PublisherCapability) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, r *models.SubscriptionRequest) error
	Get(ctx context.Context, id string) (*models.SubscriptionRequest, error)
	// GetForUpdate locks the row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.SubscriptionRequest, error)
	Update(ctx context.Context, r *models.SubscriptionRequest) error
	ListByStatus(ctx context.Context, status models.SubscriptionStatus) ([]models.SubscriptionRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]models.SubscriptionRequest, error)
	// ExpireActiveBefore moves every ACTIVE request whose window ended
	// before now to EXPIRED and returns the affected ids.
	ExpireActiveBefore(ctx context.Context, now time.Time) ([]string, error)
}

type ListingRepository interface {
	Create(ctx context.Context, l *models.Listing) error
	Get(ctx context.Context, id string) (*models.Listing, error)
	GetForUpdate(ctx context.Context, id string) (*models.Listing, error)
	UpdateStatus(ctx context.Context, id string, status models.ListingStatus, at time.Time) error
}

type PaymentRepository interface {
	// Create returns ErrConflict if a payment already exists for the
	// (listing, buyer) pair.
	Create(ctx context.Context, p *models.PaymentRequest) error
	Get(ctx context.Context, id string) (*models.PaymentRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.PaymentRequest, error)
	ExistsFor(ctx context.Context, listingID, buyerID string) (bool, error)
	Update(ctx context.Context, p *models.PaymentRequest) error
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status models.PaymentStatus) ([]models.PaymentRequest, error)
}

type ContractRepository interface {
	// Create returns ErrConflict if the listing already has a contract.
	Create(ctx context.Context, c *models.Contract) error
	Get(ctx context.Context, id string) (*models.Contract, error)
	GetForUpdate(ctx context.Context, id string) (*models.Contract, error)
	GetByListing(ctx context.Context, listingID string) (*models.Contract, error)
	Update(ctx context.Context, c *models.Contract) error
	Delete(ctx context.Context, id string) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error)
}
