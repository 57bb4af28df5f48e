// Package payment verifies buyer payments for listings. Confirming a
// payment moves the listing and opens its contract in the same transaction.
package payment

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
	"marketplace-verification/internal/contract"
	"marketplace-verification/internal/listing"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"

	"github.com/google/uuid"
)

const Kind = "payment"

type Config struct {
	ContractValidityMonths int
}

type SubmitInput struct {
	BuyerID   string
	ListingID string
	Amount    int64
	Channel   models.PaymentChannel
	Intent    models.ContractType
	Evidence  []byte
}

func (in SubmitInput) validate() error {
	switch {
	case in.Amount <= 0:
		return apperrors.NewValidationError("amount must be positive")
	case !in.Channel.Valid():
		return apperrors.NewValidationError(fmt.Sprintf("unknown payment channel %q", in.Channel))
	case !in.Intent.Valid():
		return apperrors.NewValidationError(fmt.Sprintf("unknown intent %q", in.Intent))
	}
	return nil
}

type Pipeline struct {
	config   Config
	store    store.Store
	workflow *approval.Workflow[*models.PaymentRequest]
	notifier notification.Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewPipeline(cfg Config, st store.Store, notifier notification.Notifier, rec audit.Recorder, log logger.Logger) *Pipeline {
	if cfg.ContractValidityMonths <= 0 {
		cfg.ContractValidityMonths = contract.DefaultValidityMonths
	}
	if notifier == nil {
		notifier = notification.Nop{}
	}
	p := &Pipeline{
		config:   cfg,
		store:    st,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": Kind}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	p.workflow = approval.New(approval.Hooks[*models.PaymentRequest]{
		Kind: Kind,
		Load: func(ctx context.Context, tx store.Tx, id string) (*models.PaymentRequest, error) {
			return tx.Payments().GetForUpdate(ctx, id)
		},
		Save: func(ctx context.Context, tx store.Tx, r *models.PaymentRequest) error {
			return tx.Payments().Update(ctx, r)
		},
		OnApprove: p.onApprove,
		Submitted: submittedEvents,
		Decided:   decidedEvents,
	}, st, notifier, rec, log)
	return p
}

// SubmitPayment records a PENDING payment from a buyer for an AVAILABLE
// listing. A buyer gets one payment per listing.
func (p *Pipeline) SubmitPayment(ctx context.Context, in SubmitInput) (*models.PaymentRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := p.now()

	return p.workflow.Submit(ctx, in.Evidence, func(ctx context.Context, tx store.Tx) (*models.PaymentRequest, error) {
		if _, err := tx.Users().Get(ctx, in.BuyerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperrors.NewNotFoundError("user", in.BuyerID)
			}
			return nil, apperrors.Wrap("get buyer", err)
		}

		l, err := tx.Listings().GetForUpdate(ctx, in.ListingID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("listing", in.ListingID)
		}
		if err != nil {
			return nil, apperrors.Wrap("get listing", err)
		}
		if l.Status != models.ListingAvailable {
			return nil, apperrors.NewConflictError("listing not available",
				fmt.Sprintf("listingId: %s, status: %s", l.ID, l.Status))
		}

		exists, err := tx.Payments().ExistsFor(ctx, in.ListingID, in.BuyerID)
		if err != nil {
			return nil, apperrors.Wrap("check existing payment", err)
		}
		if exists {
			return nil, duplicate(in)
		}

		pr := &models.PaymentRequest{
			ID:          uuid.New().String(),
			BuyerID:     in.BuyerID,
			ListingID:   in.ListingID,
			SellerID:    l.OwnerID,
			Amount:      in.Amount,
			Channel:     in.Channel,
			Intent:      in.Intent,
			Evidence:    in.Evidence,
			Status:      models.PaymentPending,
			SubmittedAt: now,
		}
		if err := tx.Payments().Create(ctx, pr); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, duplicate(in)
			}
			return nil, apperrors.NewDatabaseWriteFailedError("insert payment request", err)
		}
		return pr, nil
	})
}

func duplicate(in SubmitInput) error {
	return apperrors.NewConflictError("duplicate payment",
		fmt.Sprintf("listingId: %s, buyerId: %s", in.ListingID, in.BuyerID))
}

func (p *Pipeline) Approve(ctx context.Context, id string, now time.Time) (*models.PaymentRequest, error) {
	return p.workflow.Approve(ctx, id, now)
}

func (p *Pipeline) Reject(ctx context.Context, id, reason string, now time.Time) (*models.PaymentRequest, error) {
	return p.workflow.Reject(ctx, id, reason, now)
}

// onApprove moves the listing to the status the intent implies and opens
// the contract between buyer and seller unless the listing already has one.
func (p *Pipeline) onApprove(ctx context.Context, tx store.Tx, pr *models.PaymentRequest, now time.Time) error {
	l, err := tx.Listings().GetForUpdate(ctx, pr.ListingID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError("listing", pr.ListingID)
	}
	if err != nil {
		return apperrors.Wrap("get listing", err)
	}
	if l.Status != models.ListingAvailable {
		return apperrors.NewConflictError("listing not available",
			fmt.Sprintf("listingId: %s, status: %s", l.ID, l.Status))
	}

	if _, err := listing.Transition(ctx, tx, pr.ListingID, pr.Intent.ListingStatus(), listing.System(), now); err != nil {
		return err
	}

	_, err = tx.Contracts().GetByListing(ctx, pr.ListingID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		signatories := []string{pr.BuyerID, pr.SellerID}
		if _, _, err := contract.CreateInTx(ctx, tx, pr.ListingID, pr.Intent, signatories, p.config.ContractValidityMonths, now); err != nil {
			return err
		}
	case err != nil:
		return apperrors.Wrap("get contract by listing", err)
	}

	pr.Read = true
	return nil
}

// DeletePayment removes a payment that has not been confirmed.
func (p *Pipeline) DeletePayment(ctx context.Context, id string) error {
	return p.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pr, err := loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if pr.Status == models.PaymentConfirmed {
			return apperrors.NewConflictError("confirmed payment cannot be deleted", fmt.Sprintf("paymentId: %s", id))
		}
		if err := tx.Payments().Delete(ctx, id); err != nil {
			return apperrors.NewDatabaseWriteFailedError("delete payment request", err)
		}
		return nil
	})
}

func (p *Pipeline) MarkRead(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var out *models.PaymentRequest
	err := p.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pr, err := loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		out = pr
		if pr.Read {
			return nil
		}
		pr.Read = true
		if err := tx.Payments().Update(ctx, pr); err != nil {
			return apperrors.NewDatabaseWriteFailedError("update payment request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SimulatePayout records that the seller's share of a confirmed payment was
// paid out. No money moves; the payout is logged and the seller notified.
func (p *Pipeline) SimulatePayout(ctx context.Context, id string) (*models.PaymentRequest, error) {
	now := p.now()
	var out *models.PaymentRequest
	err := p.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pr, err := loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if pr.Status != models.PaymentConfirmed {
			return apperrors.NewConflictError("payment not confirmed",
				fmt.Sprintf("paymentId: %s, status: %s", id, pr.Status))
		}
		if pr.PaidOutAt != nil {
			return apperrors.NewConflictError("payout already simulated", fmt.Sprintf("paymentId: %s", id))
		}
		pr.PaidOutAt = &now
		if err := tx.Payments().Update(ctx, pr); err != nil {
			return apperrors.NewDatabaseWriteFailedError("update payment request", err)
		}
		out = pr
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsSimulated.WithLabelValues(string(out.Channel)).Inc()
	p.logger.Info("payout simulated", map[string]interface{}{
		"paymentId": out.ID,
		"sellerId":  out.SellerID,
		"amount":    out.Amount,
		"channel":   out.Channel,
	})
	p.notifier.Notify(ctx, notification.Event{
		Type:     models.NotificationPayment,
		Content:  fmt.Sprintf("A payout of %d XOF via %s was sent for payment %s", out.Amount, out.Channel, out.ID),
		To:       []notification.Recipient{notification.ToUser(out.SellerID)},
		Priority: notification.PriorityHigh,
	})
	return out, nil
}

func (p *Pipeline) Get(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var out *models.PaymentRequest
	err := p.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Payments().Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError(Kind, id)
		}
		return apperrors.Wrap("get payment request", err)
	})
	return out, err
}

func (p *Pipeline) ListPending(ctx context.Context) ([]models.PaymentRequest, error) {
	var out []models.PaymentRequest
	err := p.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Payments().ListByStatus(ctx, models.PaymentPending)
		return apperrors.Wrap("list pending payments", err)
	})
	return out, err
}

func loadForUpdate(ctx context.Context, tx store.Tx, id string) (*models.PaymentRequest, error) {
	pr, err := tx.Payments().GetForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError(Kind, id)
	}
	if err != nil {
		return nil, apperrors.Wrap("get payment request", err)
	}
	return pr, nil
}

func submittedEvents(pr *models.PaymentRequest) []notification.Event {
	return []notification.Event{
		{
			Type:    models.NotificationPayment,
			Content: fmt.Sprintf("New %s payment %s of %d XOF via %s awaiting verification", pr.Intent, pr.ID, pr.Amount, pr.Channel),
			From:    pr.BuyerID,
			To:      []notification.Recipient{notification.ToAdmins()},
		},
		{
			Type:    models.NotificationPayment,
			Content: fmt.Sprintf("A buyer submitted a payment of %d XOF for your listing", pr.Amount),
			From:    pr.BuyerID,
			To:      []notification.Recipient{notification.ToUser(pr.SellerID)},
		},
	}
}

func decidedEvents(pr *models.PaymentRequest, outcome approval.Outcome, reason string) []notification.Event {
	if outcome == approval.Rejected {
		return []notification.Event{{
			Type:     models.NotificationPayment,
			Content:  fmt.Sprintf("Your payment %s was rejected: %s", pr.ID, approval.RenderReason(reason)),
			To:       []notification.Recipient{notification.ToUser(pr.BuyerID)},
			Priority: notification.PriorityHigh,
		}}
	}
	return []notification.Event{
		{
			Type:     models.NotificationPayment,
			Content:  fmt.Sprintf("Your payment %s was confirmed; the %s contract is ready for your decision", pr.ID, pr.Intent),
			To:       []notification.Recipient{notification.ToUser(pr.BuyerID)},
			Priority: notification.PriorityHigh,
		},
		{
			Type:     models.NotificationPayment,
			Content:  fmt.Sprintf("Payment %s of %d XOF for your listing was confirmed", pr.ID, pr.Amount),
			To:       []notification.Recipient{notification.ToUser(pr.SellerID)},
			Priority: notification.PriorityHigh,
		},
	}
}
