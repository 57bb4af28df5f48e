package contract

import (
	"context"
	"testing"
	"time"

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

var t0 = time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

func createTestCoordinator(t *testing.T, status models.ListingStatus) (*Coordinator, *memory.Store, *notification.Collector) {
	st := memory.New()
	require.NoError(t, st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, u := range []models.User{
			{ID: "buyer-1", Email: "b1@example.com", Role: models.RoleBuyer},
			{ID: "seller-1", Email: "s1@example.com", Role: models.RoleBuyer},
			{ID: "stranger", Email: "x@example.com", Role: models.RoleBuyer},
		} {
			u := u
			if err := tx.Users().Create(ctx, &u); err != nil {
				return err
			}
		}
		return tx.Listings().Create(ctx, &models.Listing{
			ID: "l-1", OwnerID: "seller-1", Title: "Villa", Price: 100000, Status: status,
		})
	}))

	collector := &notification.Collector{}
	c := NewCoordinator(Config{ValidityMonths: 3}, st, collector, logger.NewTestLogger(t))
	c.now = func() time.Time { return t0 }
	return c, st, collector
}

func signedContract(t *testing.T, c *Coordinator, typ models.ContractType) *models.Contract {
	t.Helper()
	ct, err := c.CreateContract(context.Background(), "l-1", typ)
	require.NoError(t, err)
	_, err = c.AddSignatory(context.Background(), ct.ID, "buyer-1")
	require.NoError(t, err)
	ct, err = c.AddSignatory(context.Background(), ct.ID, "seller-1")
	require.NoError(t, err)
	return ct
}

func listingStatus(t *testing.T, st store.Store) models.ListingStatus {
	t.Helper()
	var status models.ListingStatus
	require.NoError(t, st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		l, err := tx.Listings().Get(ctx, "l-1")
		if err != nil {
			return err
		}
		status = l.Status
		return nil
	}))
	return status
}

// ==========================
// Create Tests
// ==========================

func TestCreateContract(t *testing.T) {
	c, _, collector := createTestCoordinator(t, models.ListingAvailable)

	ct, err := c.CreateContract(context.Background(), "l-1", models.ContractPromiseOfSale)
	require.NoError(t, err)
	assert.Empty(t, ct.Signatories)
	assert.Nil(t, ct.SignedAt)
	assert.True(t, t0.AddDate(0, 3, 0).Equal(ct.ValidUntil))

	assert.Len(t, collector.For(notification.ToUser("seller-1")), 1)

	_, err = c.CreateContract(context.Background(), "l-1", models.ContractSale)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "one contract per listing")
}

func TestCreateContract_Errors(t *testing.T) {
	tests := []struct {
		name      string
		listingID string
		typ       models.ContractType
		wantErr   error
	}{
		{"unknown listing", "missing", models.ContractSale, apperrors.ErrNotFound},
		{"unknown type", "l-1", models.ContractType("LEASE"), apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := createTestCoordinator(t, models.ListingAvailable)
			_, err := c.CreateContract(context.Background(), tt.listingID, tt.typ)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddSignatory(t *testing.T) {
	c, _, _ := createTestCoordinator(t, models.ListingAvailable)
	ct, err := c.CreateContract(context.Background(), "l-1", models.ContractSale)
	require.NoError(t, err)

	got, err := c.AddSignatory(context.Background(), ct.ID, "buyer-1")
	require.NoError(t, err)
	assert.Nil(t, got.SignedAt)

	got, err = c.AddSignatory(context.Background(), ct.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer-1"}, got.Signatories, "adding twice is a no-op")

	got, err = c.AddSignatory(context.Background(), ct.ID, "seller-1")
	require.NoError(t, err)
	assert.True(t, got.IsSigned())
	require.NotNil(t, got.SignedAt)

	_, err = c.AddSignatory(context.Background(), ct.ID, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = c.AddSignatory(context.Background(), "missing", "buyer-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// ==========================
// Decision Tests
// ==========================

func TestValidate_MovesListingPerType(t *testing.T) {
	tests := []struct {
		name string
		typ  models.ContractType
		want models.ListingStatus
	}{
		{"sale", models.ContractSale, models.ListingSold},
		{"promise of sale", models.ContractPromiseOfSale, models.ListingReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, st, collector := createTestCoordinator(t, models.ListingAvailable)
			ct := signedContract(t, c, tt.typ)
			before := append([]string(nil), ct.Signatories...)

			validated, err := c.Validate(context.Background(), ct.ID, "buyer-1")
			require.NoError(t, err)
			assert.True(t, validated.BuyerDecision)
			assert.Subset(t, validated.Signatories, before)
			assert.GreaterOrEqual(t, len(validated.Signatories), len(before))

			stored, err := c.Get(context.Background(), ct.ID)
			require.NoError(t, err)
			assert.Equal(t, validated.Signatories, stored.Signatories)
			assert.True(t, validated.IsValid())
			assert.Equal(t, tt.want, listingStatus(t, st))

			events := collector.For(notification.ToUser("seller-1"))
			require.NotEmpty(t, events)
			assert.Contains(t, events[len(events)-1].Content, "accepted")
		})
	}
}

func TestValidate_NonSignatoryForbidden(t *testing.T) {
	c, st, _ := createTestCoordinator(t, models.ListingAvailable)
	ct := signedContract(t, c, models.ContractSale)

	_, err := c.Validate(context.Background(), ct.ID, "stranger")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, models.ListingAvailable, listingStatus(t, st))
}

func TestReject_ReturnsReservedListingToMarket(t *testing.T) {
	c, st, collector := createTestCoordinator(t, models.ListingReserved)
	ct := signedContract(t, c, models.ContractPromiseOfSale)

	rejected, err := c.Reject(context.Background(), ct.ID, "buyer-1", "financing fell through")
	require.NoError(t, err)
	assert.False(t, rejected.BuyerDecision)
	assert.Equal(t, "refusal reason: financing fell through", rejected.Note)
	assert.Equal(t, models.ListingAvailable, listingStatus(t, st))

	events := collector.For(notification.ToUser("seller-1"))
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Content, "financing fell through")
}

func TestReject_SoldListingConflicts(t *testing.T) {
	c, st, _ := createTestCoordinator(t, models.ListingSold)
	ct := signedContract(t, c, models.ContractSale)

	_, err := c.Reject(context.Background(), ct.ID, "buyer-1", "changed my mind")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, models.ListingSold, listingStatus(t, st))

	got, err := c.Get(context.Background(), ct.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Note, "nothing is recorded when the refusal fails")
}

func TestReject_EmptyReason(t *testing.T) {
	c, _, _ := createTestCoordinator(t, models.ListingAvailable)
	ct := signedContract(t, c, models.ContractSale)

	rejected, err := c.Reject(context.Background(), ct.ID, "buyer-1", "")
	require.NoError(t, err)
	assert.Equal(t, "refusal reason: no reason given", rejected.Note)
}

// ==========================
// Delete and Lookup Tests
// ==========================

func TestDelete(t *testing.T) {
	c, _, _ := createTestCoordinator(t, models.ListingAvailable)
	ct := signedContract(t, c, models.ContractSale)

	_, err := c.Validate(context.Background(), ct.ID, "buyer-1")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Delete(context.Background(), ct.ID), apperrors.ErrConflict)
	assert.ErrorIs(t, c.Delete(context.Background(), "missing"), apperrors.ErrNotFound)
}

func TestDelete_Undecided(t *testing.T) {
	c, _, _ := createTestCoordinator(t, models.ListingAvailable)
	ct, err := c.CreateContract(context.Background(), "l-1", models.ContractSale)
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), ct.ID))
	_, err = c.Get(context.Background(), ct.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetByListing(t *testing.T) {
	c, _, _ := createTestCoordinator(t, models.ListingAvailable)
	ct, err := c.CreateContract(context.Background(), "l-1", models.ContractSale)
	require.NoError(t, err)

	got, err := c.GetByListing(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, ct.ID, got.ID)

	_, err = c.GetByListing(context.Background(), "other")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
