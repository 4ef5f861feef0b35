package pricing

import (
	"testing"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testSchedule() models.FeeSchedule {
	return models.FeeSchedule{
		GSTMode:         models.GSTModeWeightedAverage,
		ShippingFlat:    dec("20"),
		PlatformFeeFlat: dec("2"),
	}
}

func TestComputeBreakdown_WeightedAverage(t *testing.T) {
	engine := NewEngine(testSchedule())

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("100"), Quantity: 2, GSTPercent: decPtr("5")},
		{ID: "l2", UnitPrice: dec("50"), Quantity: 1, GSTPercent: decPtr("0")},
	}}

	b := engine.ComputeBreakdown(cart)

	assert.True(t, b.Subtotal.Equal(dec("250")), "subtotal = %s", b.Subtotal)
	assert.True(t, b.Discount.Equal(decimal.Zero), "discount = %s", b.Discount)
	// Only one line has gst > 0, so the average rate is 5.
	assert.True(t, b.Tax.Equal(dec("12.5")), "tax = %s", b.Tax)
	assert.True(t, b.Shipping.Equal(dec("20")))
	assert.True(t, b.PlatformFee.Equal(dec("2")))
	assert.True(t, b.GrandTotal.Equal(dec("284.5")), "grand total = %s", b.GrandTotal)
}

func TestComputeBreakdown_Discount(t *testing.T) {
	engine := NewEngine(testSchedule())

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("100"), OriginalUnitPrice: decPtr("120"), Quantity: 3},
	}}

	b := engine.ComputeBreakdown(cart)

	assert.True(t, b.Subtotal.Equal(dec("300")), "subtotal = %s", b.Subtotal)
	assert.True(t, b.Discount.Equal(dec("60")), "discount = %s", b.Discount)
}

func TestComputeBreakdown_DiscountNeverNegative(t *testing.T) {
	engine := NewEngine(testSchedule())

	// Original price below current price must clamp to zero, not go
	// negative.
	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("100"), OriginalUnitPrice: decPtr("80"), Quantity: 1},
	}}

	b := engine.ComputeBreakdown(cart)
	assert.True(t, b.Discount.Equal(decimal.Zero), "discount = %s", b.Discount)
}

func TestComputeBreakdown_NoPositiveRatesMeansZeroTax(t *testing.T) {
	engine := NewEngine(testSchedule())

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("999"), Quantity: 4},
		{ID: "l2", UnitPrice: dec("1"), Quantity: 1, GSTPercent: decPtr("0")},
	}}

	b := engine.ComputeBreakdown(cart)
	assert.True(t, b.Tax.Equal(decimal.Zero), "tax = %s", b.Tax)
}

func TestComputeBreakdown_LineTotalFallback(t *testing.T) {
	engine := NewEngine(testSchedule())

	// One line supplies its own total, the other relies on the
	// unit-price fallback.
	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("10"), Quantity: 2, LineTotal: dec("18")},
		{ID: "l2", UnitPrice: dec("5"), Quantity: 3},
	}}

	b := engine.ComputeBreakdown(cart)
	assert.True(t, b.Subtotal.Equal(dec("33")), "subtotal = %s", b.Subtotal)
}

func TestComputeBreakdown_EmptyCart(t *testing.T) {
	engine := NewEngine(testSchedule())

	b := engine.ComputeBreakdown(models.CartSnapshot{})

	assert.True(t, b.Subtotal.IsZero())
	assert.True(t, b.Discount.IsZero())
	assert.True(t, b.Tax.IsZero())
	assert.True(t, b.Shipping.IsZero())
	assert.True(t, b.PlatformFee.IsZero())
	assert.True(t, b.GrandTotal.IsZero())
}

func TestComputeBreakdown_Idempotent(t *testing.T) {
	engine := NewEngine(testSchedule())

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("33.33"), Quantity: 3, GSTPercent: decPtr("18")},
		{ID: "l2", UnitPrice: dec("7.77"), Quantity: 2, GSTPercent: decPtr("12")},
	}}

	first := engine.ComputeBreakdown(cart)
	second := engine.ComputeBreakdown(cart)

	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.Discount.Equal(second.Discount))
	require.True(t, first.Tax.Equal(second.Tax))
	require.True(t, first.GrandTotal.Equal(second.GrandTotal))
}

func TestComputeBreakdown_GrandTotalIsExactSum(t *testing.T) {
	engine := NewEngine(testSchedule())

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("19.99"), Quantity: 7, GSTPercent: decPtr("5")},
		{ID: "l2", UnitPrice: dec("0.01"), Quantity: 13, GSTPercent: decPtr("28")},
	}}

	b := engine.ComputeBreakdown(cart)

	want := b.Subtotal.Add(b.Tax).Add(b.Shipping).Add(b.PlatformFee)
	assert.True(t, b.GrandTotal.Equal(want), "grand total %s != %s", b.GrandTotal, want)
}

func TestComputeBreakdown_PerLineMode(t *testing.T) {
	schedule := testSchedule()
	schedule.GSTMode = models.GSTModePerLine
	engine := NewEngine(schedule)

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", UnitPrice: dec("100"), Quantity: 2, GSTPercent: decPtr("5")},
		{ID: "l2", UnitPrice: dec("50"), Quantity: 1, GSTPercent: decPtr("0")},
	}}

	b := engine.ComputeBreakdown(cart)
	// 200 * 5% = 10; the zero-rated line contributes nothing.
	assert.True(t, b.Tax.Equal(dec("10")), "tax = %s", b.Tax)
}
