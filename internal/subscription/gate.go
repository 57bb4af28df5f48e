// Package subscription gates publisher capability behind a manually
// verified subscription payment.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-verification/internal/approval"
	"marketplace-verification/internal/audit"
	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/metrics"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"

	"github.com/google/uuid"
)

const Kind = "subscription"

type Config struct {
	MonthlyFee int64
	AnnualFee  int64
	CacheTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{MonthlyFee: 5000, AnnualFee: 50000, CacheTTL: 5 * time.Minute}
}

// Fee returns the configured price of plan.
func (c Config) Fee(plan models.SubscriptionPlan) int64 {
	if plan == models.PlanAnnual {
		return c.AnnualFee
	}
	return c.MonthlyFee
}

type Gate struct {
	config   Config
	store    store.Store
	cache    Cache
	workflow *approval.Workflow[*models.SubscriptionRequest]
	logger   logger.Logger
	now      func() time.Time
}

// NewGate wires the gate. cache may be nil, in which case every eligibility
// check reads the database.
func NewGate(cfg Config, st store.Store, cache Cache, notifier notification.Notifier, rec audit.Recorder, log logger.Logger) *Gate {
	g := &Gate{
		config: cfg,
		store:  st,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": Kind}),
		now:    func() time.Time { return time.Now().UTC() },
	}
	g.workflow = approval.New(approval.Hooks[*models.SubscriptionRequest]{
		Kind: Kind,
		Load: func(ctx context.Context, tx store.Tx, id string) (*models.SubscriptionRequest, error) {
			return tx.Subscriptions().GetForUpdate(ctx, id)
		},
		Save: func(ctx context.Context, tx store.Tx, r *models.SubscriptionRequest) error {
			return tx.Subscriptions().Update(ctx, r)
		},
		OnApprove: g.onApprove,
		Submitted: submittedEvents,
		Decided:   decidedEvents,
	}, st, notifier, rec, log)
	return g
}

// RequestSubscription records a PENDING request for buyerID.
func (g *Gate) RequestSubscription(ctx context.Context, buyerID string, plan models.SubscriptionPlan, evidence []byte) (*models.SubscriptionRequest, error) {
	if !plan.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown plan %q", plan))
	}
	now := g.now()

	return g.workflow.Submit(ctx, evidence, func(ctx context.Context, tx store.Tx) (*models.SubscriptionRequest, error) {
		if _, err := tx.Users().Get(ctx, buyerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("user", buyerID)
			}
			return nil, apperrors.Wrap("get buyer", err)
		}

		eligible, err := eligibleInTx(ctx, tx, buyerID, now)
		if err != nil {
			return nil, err
		}
		if eligible {
			return nil, apperrors.NewConflictError("active subscription exists", fmt.Sprintf("userId: %s", buyerID))
		}

		req := &models.SubscriptionRequest{
			ID:          uuid.New().String(),
			RequesterID: buyerID,
			Plan:        plan,
			Fee:         g.config.Fee(plan),
			Evidence:    evidence,
			Status:      models.SubscriptionPending,
			SubmittedAt: now,
		}
		if err := tx.Subscriptions().Create(ctx, req); err != nil {
			return nil, apperrors.NewDatabaseWriteFailedError("insert subscription request", err)
		}
		return req, nil
	})
}

func (g *Gate) Approve(ctx context.Context, id string, now time.Time) (*models.SubscriptionRequest, error) {
	req, err := g.workflow.Approve(ctx, id, now)
	if err != nil {
		return nil, err
	}
	g.invalidate(ctx, req.RequesterID)
	return req, nil
}

func (g *Gate) Reject(ctx context.Context, id, reason string, now time.Time) (*models.SubscriptionRequest, error) {
	return g.workflow.Reject(ctx, id, reason, now)
}

// onApprove opens the validity window and points the requester's publisher
// capability at this request.
func (g *Gate) onApprove(ctx context.Context, tx store.Tx, r *models.SubscriptionRequest, now time.Time) error {
	// Approvals for the same requester queue on the user row, so the
	// check below sees any ACTIVE request committed by a racing approval.
	_, err := tx.Users().GetForUpdate(ctx, r.RequesterID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError("user", r.RequesterID)
	}
	if err != nil {
		return apperrors.Wrap("lock requester", err)
	}

	existing, err := tx.Subscriptions().ListByRequester(ctx, r.RequesterID)
	if err != nil {
		return apperrors.Wrap("list requester subscriptions", err)
	}
	for i := range existing {
		if existing[i].ID != r.ID && existing[i].ActiveAt(now) {
			return apperrors.NewConflictError("active subscription exists", fmt.Sprintf("requestId: %s", existing[i].ID))
		}
	}

	from := now
	until := r.Plan.ValidUntil(now)
	r.ValidFrom = &from
	r.ValidUntil = &until

	err = tx.Publishers().Upsert(ctx, &models.PublisherCapability{
		UserID:                r.RequesterID,
		SubscriptionRequestID: r.ID,
		UpdatedAt:             now,
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError("user", r.RequesterID)
	}
	if err != nil {
		return apperrors.NewDatabaseWriteFailedError("upsert publisher", err)
	}
	return nil
}

// IsPublisherEligible reports whether userID holds an ACTIVE subscription
// whose window covers now. Positive answers are cached; a cache failure
// falls back to the database.
func (g *Gate) IsPublisherEligible(ctx context.Context, userID string, now time.Time) (bool, error) {
	if g.cache != nil {
		entry, err := g.cache.Get(ctx, userID)
		switch {
		case err != nil:
			metrics.EligibilityCacheLookups.WithLabelValues("error").Inc()
			g.logger.Warn("eligibility cache read failed", map[string]interface{}{"userId": userID, "error": err})
		case entry != nil:
			metrics.EligibilityCacheLookups.WithLabelValues("hit").Inc()
			return entry.Covers(now), nil
		default:
			metrics.EligibilityCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	var active *models.SubscriptionRequest
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		req, err := activeRequest(ctx, tx, userID, now)
		active = req
		return err
	})
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}

	if g.cache != nil {
		ttl := g.config.CacheTTL
		if remaining := active.ValidUntil.Sub(now); remaining < ttl {
			ttl = remaining
		}
		if ttl > 0 {
			entry := CacheEntry{RequestID: active.ID, Status: active.Status, ValidUntil: *active.ValidUntil}
			if err := g.cache.Set(ctx, userID, entry, ttl); err != nil {
				g.logger.Warn("eligibility cache write failed", map[string]interface{}{"userId": userID, "error": err})
			}
		}
	}
	return true, nil
}

func (g *Gate) invalidate(ctx context.Context, userID string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Invalidate(ctx, userID); err != nil {
		g.logger.Warn("eligibility cache invalidation failed", map[string]interface{}{"userId": userID, "error": err})
	}
}

func eligibleInTx(ctx context.Context, tx store.Tx, userID string, now time.Time) (bool, error) {
	req, err := activeRequest(ctx, tx, userID, now)
	return req != nil, err
}

// activeRequest returns the request behind userID's capability when it is
// ACTIVE at now, or nil.
func activeRequest(ctx context.Context, tx store.Tx, userID string, now time.Time) (*models.SubscriptionRequest, error) {
	capability, err := tx.Publishers().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap("get publisher", err)
	}

	req, err := tx.Subscriptions().Get(ctx, capability.SubscriptionRequestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap("get subscription request", err)
	}
	if !req.ActiveAt(now) {
		return nil, nil
	}
	return req, nil
}

// SweepExpirations moves every ACTIVE request whose window ended before now
// to EXPIRED. Publisher capabilities are left in place; they stop granting
// anything once their request is no longer ACTIVE.
func (g *Gate) SweepExpirations(ctx context.Context, now time.Time) (int, error) {
	var ids []string
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ids, err = tx.Subscriptions().ExpireActiveBefore(ctx, now)
		if err != nil {
			return apperrors.NewDatabaseWriteFailedError("expire subscriptions", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.SubscriptionsExpired.Add(float64(len(ids)))
	if len(ids) > 0 {
		g.logger.Info("subscriptions expired", map[string]interface{}{"count": len(ids), "ids": ids})
	}
	return len(ids), nil
}

// RunSweeper calls SweepExpirations every interval until ctx is done.
func (g *Gate) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.SweepExpirations(ctx, g.now()); err != nil {
				g.logger.Error("subscription sweep failed", map[string]interface{}{"error": err})
			}
		}
	}
}

func (g *Gate) Get(ctx context.Context, id string) (*models.SubscriptionRequest, error) {
	var req *models.SubscriptionRequest
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		req, err = tx.Subscriptions().Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError(Kind, id)
		}
		return apperrors.Wrap("get subscription request", err)
	})
	return req, err
}

func (g *Gate) ListPending(ctx context.Context) ([]models.SubscriptionRequest, error) {
	var out []models.SubscriptionRequest
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Subscriptions().ListByStatus(ctx, models.SubscriptionPending)
		return apperrors.Wrap("list pending subscriptions", err)
	})
	return out, err
}

func (g *Gate) ListByRequester(ctx context.Context, userID string) ([]models.SubscriptionRequest, error) {
	var out []models.SubscriptionRequest
	err := g.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Subscriptions().ListByRequester(ctx, userID)
		return apperrors.Wrap("list subscriptions", err)
	})
	return out, err
}

func submittedEvents(r *models.SubscriptionRequest) []notification.Event {
	return []notification.Event{{
		Type:    models.NotificationSubscription,
		Content: fmt.Sprintf("New %s subscription request %s awaiting verification (fee %d XOF)", r.Plan, r.ID, r.Fee),
		From:    r.RequesterID,
		To:      []notification.Recipient{notification.ToAdmins()},
	}}
}

func decidedEvents(r *models.SubscriptionRequest, outcome approval.Outcome, reason string) []notification.Event {
	var content string
	switch {
	case outcome == approval.Rejected:
		content = fmt.Sprintf("Your subscription request was rejected: %s", approval.RenderReason(reason))
	case r.ValidUntil != nil:
		content = fmt.Sprintf("Your %s subscription is active until %s", r.Plan, r.ValidUntil.Format("2006-01-02"))
	default:
		content = fmt.Sprintf("Your %s subscription is active", r.Plan)
	}
	return []notification.Event{{
		Type:    models.NotificationSubscription,
		Content: content,
		To:      []notification.Recipient{notification.ToUser(r.RequesterID)},
	}}
}
