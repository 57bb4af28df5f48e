package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-verification/internal/approval"
	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"

	"github.com/google/uuid"
)

// Eligibility answers whether a user may publish listings.
type Eligibility interface {
	IsPublisherEligible(ctx context.Context, userID string, now time.Time) (bool, error)
}

type Service struct {
	store       store.Store
	eligibility Eligibility
	notifier    notification.Notifier
	logger      logger.Logger
	now         func() time.Time
}

func NewService(st store.Store, eligibility Eligibility, notifier notification.Notifier, log logger.Logger) *Service {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	return &Service{
		store:       st,
		eligibility: eligibility,
		notifier:    notifier,
		logger:      log.WithFields(map[string]interface{}{"component": "listing"}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateListing publishes a new AVAILABLE listing for an owner holding an
// active subscription.
func (s *Service) CreateListing(ctx context.Context, ownerID, title string, price int64) (*models.Listing, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("title is required")
	}
	if price <= 0 {
		return nil, apperrors.NewValidationError("price must be positive")
	}

	now := s.now()
	eligible, err := s.eligibility.IsPublisherEligible(ctx, ownerID, now)
	if err != nil {
		return nil, apperrors.Wrap("check publisher eligibility", err)
	}
	if !eligible {
		return nil, apperrors.NewForbiddenError("an active publisher subscription is required")
	}

	l := &models.Listing{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		Price:     price,
		Status:    models.ListingAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Users().Get(ctx, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.NewNotFoundError("user", ownerID)
			}
			return apperrors.Wrap("get owner", err)
		}
		if err := tx.Listings().Create(ctx, l); err != nil {
			return apperrors.NewDatabaseWriteFailedError("insert listing", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing created", map[string]interface{}{"listingId": l.ID, "ownerId": ownerID})
	return l, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Listing, error) {
	var l *models.Listing
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		l, err = tx.Listings().Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError("listing", id)
		}
		return apperrors.Wrap("get listing", err)
	})
	return l, err
}

// UpdateStatus applies an owner or admin edit.
func (s *Service) UpdateStatus(ctx context.Context, id string, to models.ListingStatus, actor Actor) (*models.Listing, error) {
	var l *models.Listing
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		l, err = Transition(ctx, tx, id, to, actor, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateStatusBy applies an edit on behalf of userID, whose role in the user
// directory decides whether it acts as owner or administrator.
func (s *Service) UpdateStatusBy(ctx context.Context, id string, to models.ListingStatus, userID string) (*models.Listing, error) {
	var l *models.Listing
	err := s.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		actor, err := ActorFor(ctx, tx, userID)
		if err != nil {
			return err
		}
		l, err = Transition(ctx, tx, id, to, actor, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// RejectListing is the administrative AVAILABLE -> REJECTED transition.
func (s *Service) RejectListing(ctx context.Context, id, adminID, reason string) (*models.Listing, error) {
	l, err := s.UpdateStatus(ctx, id, models.ListingRejected, Admin(adminID))
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notification.Event{
		Type:    models.NotificationListing,
		Content: fmt.Sprintf("Your listing %q was rejected: %s", l.Title, approval.RenderReason(reason)),
		From:    adminID,
		To:      []notification.Recipient{notification.ToUser(l.OwnerID)},
	})
	s.logger.Info("listing rejected", map[string]interface{}{"listingId": id, "adminId": adminID})
	return l, nil
}
