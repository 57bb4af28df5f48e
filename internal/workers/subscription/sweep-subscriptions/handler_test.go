package sweepsubscriptions

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	apperrors "marketplace-verification/internal/common/errors"
	"marketplace-verification/internal/common/logger"
	"marketplace-verification/internal/models"
	"marketplace-verification/internal/store"
	"marketplace-verification/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepExpirations(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

var t0 = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func createTestHandler(t *testing.T, sweeper Sweeper) *Handler {
	h := NewHandler(LoadConfig(), sweeper, nil, logger.NewTestLogger(t))
	h.now = func() time.Time { return t0 }
	return h
}

func TestHandler_Execute(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("SweepExpirations", mock.Anything, t0).Return(4, nil)

	output, err := createTestHandler(t, sweeper).Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.Equal(t, 4, output.ExpiredCount)
	assert.Equal(t, "2026-09-01T00:00:00Z", output.SweptAt)
	sweeper.AssertExpectations(t)
}

func TestHandler_Execute_Error(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("SweepExpirations", mock.Anything, t0).
		Return(0, apperrors.NewDatabaseWriteFailedError("expire subscriptions", stderrors.New("connection reset")))

	output, err := createTestHandler(t, sweeper).Execute(context.Background(), &Input{})

	assert.Nil(t, output)
	assert.Equal(t, apperrors.ErrCodeDatabaseWriteFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryableErrorCode(apperrors.CodeOf(err)))
}

// storeSweeper expires rows straight through the store, the way the gate does.
type storeSweeper struct{ st store.Store }

func (s storeSweeper) SweepExpirations(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ids, err := tx.Subscriptions().ExpireActiveBefore(ctx, now)
		n = len(ids)
		return err
	})
	return n, err
}

func TestHandler_Execute_AgainstStore(t *testing.T) {
	st := memory.New()
	ended := t0.Add(-time.Hour)
	start := ended.AddDate(0, -1, 0)
	require.NoError(t, st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.Users().Create(ctx, &models.User{ID: "u-1", Email: "u@example.com", Role: models.RoleBuyer}); err != nil {
			return err
		}
		return tx.Subscriptions().Create(ctx, &models.SubscriptionRequest{
			ID: "s-1", RequesterID: "u-1", Plan: models.PlanMonthly, Fee: 5000,
			Status: models.SubscriptionActive, ValidFrom: &start, ValidUntil: &ended,
		})
	}))

	h := createTestHandler(t, storeSweeper{st: st})

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, output.ExpiredCount)

	output, err = h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 0, output.ExpiredCount)
}
