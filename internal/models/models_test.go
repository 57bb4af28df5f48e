package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionPlan_ValidUntil(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), PlanMonthly.ValidUntil(start))
	assert.Equal(t, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC), PlanAnnual.ValidUntil(start))
}

func TestSubscriptionRequest_ActiveAt(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := PlanMonthly.ValidUntil(t0)
	req := &SubscriptionRequest{Status: SubscriptionActive, ValidFrom: &t0, ValidUntil: &end}

	assert.True(t, req.ActiveAt(t0.AddDate(0, 0, 1)))
	assert.True(t, req.ActiveAt(end), "window end is inclusive")
	assert.False(t, req.ActiveAt(t0.AddDate(0, 0, 40)))

	req.Status = SubscriptionExpired
	assert.False(t, req.ActiveAt(t0))

	pending := &SubscriptionRequest{Status: SubscriptionPending}
	assert.False(t, pending.ActiveAt(t0))
}

func TestContractType_ListingStatus(t *testing.T) {
	assert.Equal(t, ListingSold, ContractSale.ListingStatus())
	assert.Equal(t, ListingReserved, ContractPromiseOfSale.ListingStatus())
}

func TestContract_Signatories(t *testing.T) {
	c := &Contract{}
	assert.False(t, c.IsSigned())

	assert.True(t, c.AddSignatory("buyer"))
	assert.False(t, c.AddSignatory("buyer"))
	assert.False(t, c.IsSigned())

	assert.True(t, c.AddSignatory("seller"))
	assert.True(t, c.IsSigned())
	assert.Equal(t, []string{"buyer", "seller"}, c.Signatories)

	assert.False(t, c.IsValid())
	c.BuyerDecision = true
	assert.True(t, c.IsValid())
}

func TestEnumsRejectUnknownValues(t *testing.T) {
	assert.False(t, SubscriptionPlan("WEEKLY").Valid())
	assert.False(t, PaymentChannel("CASH").Valid())
	assert.False(t, ContractType("LEASE").Valid())
	assert.False(t, ListingStatus("DRAFT").Valid())
	assert.False(t, Role("PUBLISHER").Valid())
	assert.True(t, ListingSold.Terminal())
	assert.False(t, ListingReserved.Terminal())
}
