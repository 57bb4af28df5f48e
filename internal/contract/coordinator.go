// Package contract coordinates the multi-party agreement attached to a
// listing and keeps the listing status in line with the buyer's decision.
package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-verification/internal/approval"
	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/listing"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"

	"github.com/google/uuid"
)

const DefaultValidityMonths = 6

type Config struct {
	ValidityMonths int
}

type Coordinator struct {
	config   Config
	store    store.Store
	notifier notification.Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewCoordinator(cfg Config, st store.Store, notifier notification.Notifier, log logger.Logger) *Coordinator {
	if cfg.ValidityMonths <= 0 {
		cfg.ValidityMonths = DefaultValidityMonths
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Coordinator{
		config:   cfg,
		store:    st,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "contract"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInTx creates the contract for listingID inside tx. It is shared with
// the payment pipeline so that confirming a payment and creating its
// contract commit together.
func CreateInTx(ctx context.Context, tx store.Tx, listingID string, typ models.ContractType, signatories []string, validityMonths int, now time.Time) (*models.Contract, *models.Listing, error) {
	if !typ.Valid() {
		return nil, nil, apperrors.NewValidationError(fmt.Sprintf("unknown contract type %q", typ))
	}
	if validityMonths <= 0 {
		validityMonths = DefaultValidityMonths
	}

	l, err := tx.Listings().Get(ctx, listingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperrors.NewNotFoundError("listing", listingID)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap("get listing", err)
	}

	_, err = tx.Contracts().GetByListing(ctx, listingID)
	if err == nil {
		return nil, nil, apperrors.NewConflictError("contract already exists", fmt.Sprintf("listingId: %s", listingID))
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperrors.Wrap("get contract by listing", err)
	}

	c := &models.Contract{
		ID:         uuid.New().String(),
		ListingID:  listingID,
		Type:       typ,
		ValidFrom:  now,
		ValidUntil: now.AddDate(0, validityMonths, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, id := range signatories {
		c.AddSignatory(id)
	}
	if c.IsSigned() {
		c.SignedAt = &now
	}

	if err := tx.Contracts().Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil, apperrors.NewConflictError("contract already exists", fmt.Sprintf("listingId: %s", listingID))
		}
		return nil, nil, apperrors.NewDatabaseWriteFailedError("insert contract", err)
	}
	return c, l, nil
}

func (c *Coordinator) CreateContract(ctx context.Context, listingID string, typ models.ContractType) (*models.Contract, error) {
	now := c.now()
	var created *models.Contract
	var l *models.Listing
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		created, l, err = CreateInTx(ctx, tx, listingID, typ, nil, c.config.ValidityMonths, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("contract created", map[string]interface{}{"contractId": created.ID, "listingId": listingID})
	c.notify(ctx, l.OwnerID, "", fmt.Sprintf("A %s contract was opened for your listing %q", typ, l.Title))
	return created, nil
}

// AddSignatory attaches userID to the contract. Adding an existing
// signatory is a no-op.
func (c *Coordinator) AddSignatory(ctx context.Context, contractID, userID string) (*models.Contract, error) {
	now := c.now()
	var out *models.Contract
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Users().Get(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NewNotFoundError("user", userID)
			}
			return apperrors.Wrap("get user", err)
		}

		ct, err := loadForUpdate(ctx, tx, contractID)
		if err != nil {
			return err
		}
		out = ct
		if !ct.AddSignatory(userID) {
			return nil
		}
		if ct.IsSigned() && ct.SignedAt == nil {
			ct.SignedAt = &now
		}
		ct.UpdatedAt = now
		if err := tx.Contracts().Update(ctx, ct); err != nil {
			return apperrors.NewDatabaseWriteFailedError("update contract", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Validate records the buyer's acceptance and moves the listing to the
// status the contract type implies.
func (c *Coordinator) Validate(ctx context.Context, contractID, buyerID string) (*models.Contract, error) {
	now := c.now()
	var out *models.Contract
	var l *models.Listing
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ct, err := loadForUpdate(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if !ct.HasSignatory(buyerID) {
			return apperrors.NewForbiddenError("only a signatory may validate the contract")
		}

		ct.BuyerDecision = true
		if ct.SignedAt == nil {
			ct.SignedAt = &now
		}
		ct.UpdatedAt = now

		l, err = listing.Transition(ctx, tx, ct.ListingID, ct.Type.ListingStatus(), listing.System(), now)
		if err != nil {
			return err
		}
		if err := tx.Contracts().Update(ctx, ct); err != nil {
			return apperrors.NewDatabaseWriteFailedError("update contract", err)
		}
		out = ct
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("contract validated", map[string]interface{}{"contractId": contractID, "buyerId": buyerID})
	c.notify(ctx, l.OwnerID, buyerID, fmt.Sprintf("The buyer accepted the contract for your listing %q", l.Title))
	return out, nil
}

// Reject records the buyer's refusal and puts a reserved listing back on
// the market.
func (c *Coordinator) Reject(ctx context.Context, contractID, buyerID, reason string) (*models.Contract, error) {
	now := c.now()
	var out *models.Contract
	var l *models.Listing
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ct, err := loadForUpdate(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if !ct.HasSignatory(buyerID) {
			return apperrors.NewForbiddenError("only a signatory may reject the contract")
		}

		current, err := tx.Listings().GetForUpdate(ctx, ct.ListingID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NewNotFoundError("listing", ct.ListingID)
			}
			return apperrors.Wrap("get listing", err)
		}
		if current.Status.Terminal() {
			return apperrors.NewConflictError("listing can no longer return to the market",
				fmt.Sprintf("listingId: %s, status: %s", current.ID, current.Status))
		}

		ct.BuyerDecision = false
		ct.Note = "refusal reason: " + approval.RenderReason(reason)
		ct.UpdatedAt = now

		l, err = listing.Transition(ctx, tx, ct.ListingID, models.ListingAvailable, listing.System(), now)
		if err != nil {
			return err
		}
		if err := tx.Contracts().Update(ctx, ct); err != nil {
			return apperrors.NewDatabaseWriteFailedError("update contract", err)
		}
		out = ct
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("contract rejected", map[string]interface{}{"contractId": contractID, "buyerId": buyerID})
	c.notify(ctx, l.OwnerID, buyerID, fmt.Sprintf("The buyer refused the contract for your listing %q: %s", l.Title, approval.RenderReason(reason)))
	return out, nil
}

// Delete removes a contract the buyer has not accepted.
func (c *Coordinator) Delete(ctx context.Context, contractID string) error {
	return c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ct, err := loadForUpdate(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if ct.BuyerDecision {
			return apperrors.NewConflictError("validated contract cannot be deleted", fmt.Sprintf("contractId: %s", contractID))
		}
		if err := tx.Contracts().Delete(ctx, contractID); err != nil {
			return apperrors.NewDatabaseWriteFailedError("delete contract", err)
		}
		return nil
	})
}

func (c *Coordinator) Get(ctx context.Context, id string) (*models.Contract, error) {
	var out *models.Contract
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Contracts().Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError("contract", id)
		}
		return apperrors.Wrap("get contract", err)
	})
	return out, err
}

func (c *Coordinator) GetByListing(ctx context.Context, listingID string) (*models.Contract, error) {
	var out *models.Contract
	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Contracts().GetByListing(ctx, listingID)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError("contract", listingID).WithMetadata("listingId", listingID)
		}
		return apperrors.Wrap("get contract by listing", err)
	})
	return out, err
}

func loadForUpdate(ctx context.Context, tx store.Tx, id string) (*models.Contract, error) {
	ct, err := tx.Contracts().GetForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("contract", id)
	}
	if err != nil {
		return nil, apperrors.Wrap("get contract", err)
	}
	return ct, nil
}

func (c *Coordinator) notify(ctx context.Context, to, from, content string) {
	c.notifier.Notify(ctx, notification.Event{
		Type:    models.NotificationContract,
		Content: content,
		From:    from,
		To:      []notification.Recipient{notification.ToUser(to)},
	})
}
