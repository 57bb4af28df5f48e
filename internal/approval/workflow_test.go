package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-verification/internal/audit"
	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/notification"
	"marketplace-verification/internal/store"
	"marketplace-verification/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeRecorder struct {
	mu        sync.Mutex
	decisions []audit.Decision
	err       error
}

func (f *fakeRecorder) Record(_ context.Context, d audit.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return f.err
}

func (f *fakeRecorder) History(context.Context, string) ([]audit.Decision, error) {
	return nil, nil
}

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func testHooks() Hooks[*models.SubscriptionRequest] {
	return Hooks[*models.SubscriptionRequest]{
		Kind: "subscription",
		Load: func(ctx context.Context, tx store.Tx, id string) (*models.SubscriptionRequest, error) {
			return tx.Subscriptions().GetForUpdate(ctx, id)
		},
		Save: func(ctx context.Context, tx store.Tx, r *models.SubscriptionRequest) error {
			return tx.Subscriptions().Update(ctx, r)
		},
		Decided: func(r *models.SubscriptionRequest, outcome Outcome, reason string) []notification.Event {
			content := "approved"
			if outcome == Rejected {
				content = "rejected: " + RenderReason(reason)
			}
			return []notification.Event{{
				Type:    models.NotificationSubscription,
				Content: content,
				To:      []notification.Recipient{notification.ToUser(r.RequesterID)},
			}}
		},
	}
}

func createTestWorkflow(t *testing.T, hooks Hooks[*models.SubscriptionRequest]) (*Workflow[*models.SubscriptionRequest], *memory.Store, *notification.Collector, *fakeRecorder) {
	st := memory.New()
	collector := &notification.Collector{}
	rec := &fakeRecorder{}
	return New(hooks, st, collector, rec, logger.NewTestLogger(t)), st, collector, rec
}

func submit(t *testing.T, w *Workflow[*models.SubscriptionRequest], id string) *models.SubscriptionRequest {
	t.Helper()
	req, err := w.Submit(context.Background(), []byte("receipt"), func(ctx context.Context, tx store.Tx) (*models.SubscriptionRequest, error) {
		r := &models.SubscriptionRequest{
			ID: id, RequesterID: "buyer-1", Plan: models.PlanMonthly, Fee: 5000,
			Evidence: []byte("receipt"), Status: models.SubscriptionPending, SubmittedAt: t0,
		}
		return r, tx.Subscriptions().Create(ctx, r)
	})
	require.NoError(t, err)
	return req
}

func load(t *testing.T, st store.Store, id string) *models.SubscriptionRequest {
	t.Helper()
	var out *models.SubscriptionRequest
	require.NoError(t, st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Subscriptions().Get(ctx, id)
		return err
	}))
	return out
}

// ==========================
// Submission Tests
// ==========================

func TestSubmit_RequiresEvidence(t *testing.T) {
	w, _, _, _ := createTestWorkflow(t, testHooks())
	called := false

	_, err := w.Submit(context.Background(), nil, func(ctx context.Context, tx store.Tx) (*models.SubscriptionRequest, error) {
		called = true
		return nil, nil
	})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, called)
}

func TestSubmit_CreateErrorPropagates(t *testing.T) {
	w, _, _, _ := createTestWorkflow(t, testHooks())

	_, err := w.Submit(context.Background(), []byte("x"), func(ctx context.Context, tx store.Tx) (*models.SubscriptionRequest, error) {
		return nil, apperrors.NewConflictError("active subscription exists", "")
	})

	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ==========================
// Decision Tests
// ==========================

func TestApprove_DecidesOnce(t *testing.T) {
	w, st, collector, rec := createTestWorkflow(t, testHooks())
	submit(t, w, "s-1")

	got, err := w.Approve(context.Background(), "s-1", t0)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, got.Status)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, t0.Equal(*got.DecidedAt))

	_, err = w.Approve(context.Background(), "s-1", t0.Add(time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)
	_, err = w.Reject(context.Background(), "s-1", "late", t0.Add(time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)

	stored := load(t, st, "s-1")
	assert.Equal(t, models.SubscriptionActive, stored.Status)
	assert.True(t, t0.Equal(*stored.DecidedAt))

	require.Len(t, collector.Events(), 1)
	assert.Equal(t, "approved", collector.Events()[0].Content)
	require.Len(t, rec.decisions, 1)
	assert.Equal(t, "APPROVED", rec.decisions[0].Outcome)
}

func TestReject_EmptyReasonStoredAsIs(t *testing.T) {
	w, st, collector, _ := createTestWorkflow(t, testHooks())
	submit(t, w, "s-1")

	_, err := w.Reject(context.Background(), "s-1", "", t0)
	require.NoError(t, err)

	stored := load(t, st, "s-1")
	assert.Equal(t, models.SubscriptionRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "", *stored.RejectionReason)
	assert.Equal(t, "rejected: "+DefaultRejectionReason, collector.Events()[0].Content)
}

func TestApprove_UnknownID(t *testing.T) {
	w, _, _, _ := createTestWorkflow(t, testHooks())

	_, err := w.Approve(context.Background(), "missing", t0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApprove_HookFailureRollsBack(t *testing.T) {
	hooks := testHooks()
	hooks.OnApprove = func(ctx context.Context, tx store.Tx, r *models.SubscriptionRequest, now time.Time) error {
		if err := tx.Users().Create(ctx, &models.User{ID: "side-effect", Role: models.RoleBuyer}); err != nil {
			return err
		}
		return errors.New("downstream failure")
	}
	w, st, collector, rec := createTestWorkflow(t, hooks)
	submit(t, w, "s-1")

	_, err := w.Approve(context.Background(), "s-1", t0)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeDatabaseQueryFailed, apperrors.CodeOf(err))

	assert.Equal(t, models.SubscriptionPending, load(t, st, "s-1").Status)
	require.NoError(t, st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Users().Get(ctx, "side-effect")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
	assert.Empty(t, collector.Events())
	assert.Empty(t, rec.decisions)
}

func TestApprove_AuditFailureDoesNotFailDecision(t *testing.T) {
	w, st, _, rec := createTestWorkflow(t, testHooks())
	rec.err = errors.New("index unavailable")
	submit(t, w, "s-1")

	_, err := w.Approve(context.Background(), "s-1", t0)
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, load(t, st, "s-1").Status)
}

func TestConcurrentDecisions_ExactlyOneWins(t *testing.T) {
	w, _, _, _ := createTestWorkflow(t, testHooks())
	submit(t, w, "s-1")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := w.Approve(context.Background(), "s-1", t0)
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := w.Reject(context.Background(), "s-1", "duplicate", t0)
		results <- err
	}()
	wg.Wait()
	close(results)

	var ok, already int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrAlreadyDecided):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, already)
}

func TestRenderReason(t *testing.T) {
	assert.Equal(t, DefaultRejectionReason, RenderReason("  "))
	assert.Equal(t, "blurry receipt", RenderReason("blurry receipt"))
}
