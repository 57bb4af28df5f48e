// Package approval implements the evidence-backed request lifecycle shared by
// subscription and payment verification: a request is submitted with proof,
// stays PENDING, and is decided exactly once by an administrator.
package approval

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-verification/internal/audit"
	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/common/metrics"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "marketplace-verification/approval"

// DefaultRejectionReason is shown when an administrator rejects without
// giving a reason. The stored reason stays empty.
const DefaultRejectionReason = "no reason given"

type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
)

// RenderReason returns reason, or DefaultRejectionReason when it is blank.
func RenderReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return DefaultRejectionReason
	}
	return reason
}

// Request is implemented by the persisted request types.
type Request interface {
	RequestID() string
	Pending() bool
	StatusName() string
	MarkApproved(now time.Time)
	MarkRejected(reason string, now time.Time)
}

// Hooks binds a Workflow to one request type. Load, Save and Kind are
// required; the rest are optional.
type Hooks[R Request] struct {
	Kind string

	// Load reads the request and locks it for the rest of the transaction.
	// It returns store.ErrNotFound for unknown ids.
	Load func(ctx context.Context, tx store.Tx, id string) (R, error)
	Save func(ctx context.Context, tx store.Tx, r R) error

	// OnApprove and OnReject run after the status change and before Save,
	// inside the decision transaction. An error rolls everything back.
	OnApprove func(ctx context.Context, tx store.Tx, r R, now time.Time) error
	OnReject  func(ctx context.Context, tx store.Tx, r R, reason string, now time.Time) error

	Submitted func(r R) []notification.Event
	Decided   func(r R, outcome Outcome, reason string) []notification.Event
}

type Workflow[R Request] struct {
	hooks    Hooks[R]
	store    store.Store
	notifier notification.Notifier
	audit    audit.Recorder
	logger   logger.Logger
	tracer   trace.Tracer
}

func New[R Request](hooks Hooks[R], st store.Store, notifier notification.Notifier, rec audit.Recorder, log logger.Logger) *Workflow[R] {
	if notifier == nil {
		notifier = notification.Nop{}
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Workflow[R]{
		hooks:    hooks,
		store:    st,
		notifier: notifier,
		audit:    rec,
		logger:   log.WithFields(map[string]interface{}{"kind": hooks.Kind}),
		tracer:   otel.Tracer(tracerName),
	}
}

// Submit rejects empty evidence and otherwise runs create in a transaction.
// create enforces the preconditions specific to the request type.
func (w *Workflow[R]) Submit(ctx context.Context, evidence []byte, create func(ctx context.Context, tx store.Tx) (R, error)) (R, error) {
	var zero R
	kind := w.hooks.Kind

	if len(evidence) == 0 {
		metrics.VerificationSubmissions.WithLabelValues(kind, "invalid").Inc()
		return zero, apperrors.NewValidationError("evidence is required")
	}

	var created R
	err := w.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := create(ctx, tx)
		if err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		err = apperrors.Wrap("submit "+kind, err)
		metrics.VerificationSubmissions.WithLabelValues(kind, strings.ToLower(string(apperrors.CodeOf(err)))).Inc()
		return zero, err
	}

	metrics.VerificationSubmissions.WithLabelValues(kind, "accepted").Inc()
	w.logger.Info("request submitted", map[string]interface{}{"id": created.RequestID()})

	if w.hooks.Submitted != nil {
		w.emit(ctx, w.hooks.Submitted(created))
	}
	return created, nil
}

func (w *Workflow[R]) Approve(ctx context.Context, id string, now time.Time) (R, error) {
	return w.decide(ctx, id, Approved, "", now)
}

func (w *Workflow[R]) Reject(ctx context.Context, id, reason string, now time.Time) (R, error) {
	return w.decide(ctx, id, Rejected, reason, now)
}

func (w *Workflow[R]) decide(ctx context.Context, id string, outcome Outcome, reason string, now time.Time) (R, error) {
	kind := w.hooks.Kind
	ctx, span := w.tracer.Start(ctx, kind+"."+strings.ToLower(string(outcome)), trace.WithAttributes(
		attribute.String("verification.kind", kind),
		attribute.String("verification.id", id),
	))
	defer span.End()

	start := time.Now()
	var decided R
	err := w.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := w.hooks.Load(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewNotFoundError(kind, id)
		}
		if err != nil {
			return apperrors.Wrap("load "+kind, err)
		}
		if !r.Pending() {
			return apperrors.NewAlreadyDecidedError(kind, id, r.StatusName())
		}

		switch outcome {
		case Approved:
			r.MarkApproved(now)
			if w.hooks.OnApprove != nil {
				if err := w.hooks.OnApprove(ctx, tx, r, now); err != nil {
					return err
				}
			}
		case Rejected:
			r.MarkRejected(reason, now)
			if w.hooks.OnReject != nil {
				if err := w.hooks.OnReject(ctx, tx, r, reason, now); err != nil {
					return err
				}
			}
		}

		if err := w.hooks.Save(ctx, tx, r); err != nil {
			return apperrors.NewDatabaseWriteFailedError("save "+kind, err)
		}
		decided = r
		return nil
	})
	metrics.VerificationDecisionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		err = apperrors.Wrap(kind+" decision", err)
		metrics.VerificationDecisions.WithLabelValues(kind, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		w.logger.Warn("decision failed", map[string]interface{}{
			"id":      id,
			"outcome": string(outcome),
			"error":   err,
		})
		var zero R
		return zero, err
	}

	metrics.VerificationDecisions.WithLabelValues(kind, strings.ToLower(string(outcome))).Inc()
	w.logger.Info("decision committed", map[string]interface{}{
		"id":      id,
		"outcome": string(outcome),
	})

	w.record(ctx, audit.Decision{
		Kind:      kind,
		EntityID:  id,
		Outcome:   string(outcome),
		Reason:    reason,
		DecidedAt: now,
	})
	if w.hooks.Decided != nil {
		w.emit(ctx, w.hooks.Decided(decided, outcome, reason))
	}
	return decided, nil
}

func (w *Workflow[R]) record(ctx context.Context, d audit.Decision) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.audit.Record(ctx, d); err != nil {
		w.logger.Warn("audit record failed", map[string]interface{}{
			"id":    d.EntityID,
			"error": err,
		})
	}
}

func (w *Workflow[R]) emit(ctx context.Context, events []notification.Event) {
	for _, ev := range events {
		w.notifier.Notify(ctx, ev)
	}
}
