package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-verification/internal/models"
	"marketplace-verification/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Create(ctx, &models.User{ID: "u-1", Email: "a@example.com", Role: models.RoleBuyer})
	}))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Users().Create(ctx, &models.User{ID: "u-2", Role: models.RoleBuyer}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Users().Get(ctx, "u-2")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = tx.Users().Get(ctx, "u-1")
		assert.NoError(t, err)
		return nil
	}))
}

func TestStore_PaymentUniquePerListingAndBuyer(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Payments().Create(ctx, &models.PaymentRequest{ID: "p-1", ListingID: "l-1", BuyerID: "b-1"}); err != nil {
			return err
		}
		return tx.Payments().Create(ctx, &models.PaymentRequest{ID: "p-2", ListingID: "l-1", BuyerID: "b-1"})
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_ContractSignatoriesAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()

	c := &models.Contract{ID: "c-1", ListingID: "l-1", Signatories: []string{"b-1"}}
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Contracts().Create(ctx, c)
	}))
	c.Signatories[0] = "mutated"

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Contracts().GetByListing(ctx, "l-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"b-1"}, got.Signatories)

		err = tx.Contracts().Create(ctx, &models.Contract{ID: "c-2", ListingID: "l-1"})
		assert.ErrorIs(t, err, store.ErrConflict)
		return nil
	}))
}

func TestStore_ExpireActiveBefore(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, req := range []models.SubscriptionRequest{
			{ID: "s-expired", Status: models.SubscriptionActive, ValidUntil: &past},
			{ID: "s-current", Status: models.SubscriptionActive, ValidUntil: &future},
			{ID: "s-pending", Status: models.SubscriptionPending},
		} {
			req := req
			if err := tx.Subscriptions().Create(ctx, &req); err != nil {
				return err
			}
		}
		return nil
	}))

	var ids []string
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ids, err = tx.Subscriptions().ExpireActiveBefore(ctx, now)
		return err
	}))
	assert.Equal(t, []string{"s-expired"}, ids)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		again, err := tx.Subscriptions().ExpireActiveBefore(ctx, now)
		assert.Empty(t, again)
		return err
	}))
}
