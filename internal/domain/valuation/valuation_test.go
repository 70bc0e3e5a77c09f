package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merx/internal/core/types"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestEffectiveSalePrice_ExplicitPriceWins(t *testing.T) {
	receipts := []Receipt{
		{Quantity: 10, UnitPrice: types.MustMoney("5.00"), Date: day(1)},
	}
	got := EffectiveSalePrice(types.MustMoney("12.50"), receipts)
	assert.True(t, got.Equal(types.MustMoney("12.50")), "got %s", got)
}

func TestEffectiveSalePrice_WeightedAverage(t *testing.T) {
	// 10@5.00 and 20@8.00 -> (50+160)/30 = 7.00
	receipts := []Receipt{
		{Quantity: 10, UnitPrice: types.MustMoney("5.00"), Date: day(1)},
		{Quantity: 20, UnitPrice: types.MustMoney("8.00"), Date: day(2)},
	}
	got := EffectiveSalePrice(types.Zero(), receipts)
	assert.True(t, got.Equal(types.MustMoney("7.00")), "got %s", got)
}

func TestEffectiveSalePrice_NoReceipts(t *testing.T) {
	got := EffectiveSalePrice(types.Zero(), nil)
	assert.True(t, got.IsZero(), "got %s", got)
}

func TestWeightedAverageCost_SkipsZeroQuantity(t *testing.T) {
	receipts := []Receipt{
		{Quantity: 0, UnitPrice: types.MustMoney("99.00"), Date: day(1)},
		{Quantity: 5, UnitPrice: types.MustMoney("4.00"), Date: day(2)},
	}
	got := WeightedAverageCost(receipts)
	assert.True(t, got.Equal(types.MustMoney("4.00")), "got %s", got)
}

func TestAcquisitionCost_MostRecentReceipt(t *testing.T) {
	// Latest by date wins regardless of slice order.
	receipts := []Receipt{
		{Quantity: 20, UnitPrice: types.MustMoney("8.00"), Date: day(5)},
		{Quantity: 10, UnitPrice: types.MustMoney("5.00"), Date: day(1)},
	}
	got := AcquisitionCost(receipts)
	assert.True(t, got.Equal(types.MustMoney("8.00")), "got %s", got)

	assert.True(t, AcquisitionCost(nil).IsZero())
}

func TestDiscountedPrice(t *testing.T) {
	got, err := DiscountedPrice(types.MustMoney("200.00"), types.MustMoney("25"))
	require.NoError(t, err)
	assert.True(t, got.Equal(types.MustMoney("150.00")), "got %s", got)

	_, err = DiscountedPrice(types.MustMoney("200.00"), types.MustMoney("101"))
	assert.Error(t, err)

	_, err = DiscountedPrice(types.MustMoney("200.00"), types.MustMoney("-1"))
	assert.Error(t, err)
}

func TestComputeMargin(t *testing.T) {
	m := ComputeMargin(types.MustMoney("10.00"), types.MustMoney("6.00"), 5)
	assert.True(t, m.Profit.Equal(types.MustMoney("20.00")), "profit %s", m.Profit)
	assert.True(t, m.Percent.Equal(types.MustMoney("40")), "percent %s", m.Percent)
}

func TestComputeMargin_ZeroDenominator(t *testing.T) {
	m := ComputeMargin(types.Zero(), types.MustMoney("6.00"), 5)
	assert.True(t, m.Percent.IsZero(), "percent %s", m.Percent)

	m = ComputeMargin(types.MustMoney("10.00"), types.MustMoney("6.00"), 0)
	assert.True(t, m.Percent.IsZero(), "percent %s", m.Percent)
}
