package pricing

import (
	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine computes monetary breakdowns from cart snapshots. It is
// pure: no I/O, no clock, no mutation of the snapshot.
type Engine struct {
	schedule models.FeeSchedule
}

// NewEngine creates a pricing engine bound to a fee schedule.
func NewEngine(schedule models.FeeSchedule) *Engine {
	return &Engine{schedule: schedule}
}

// Schedule returns the fee schedule the engine was built with.
func (e *Engine) Schedule() models.FeeSchedule {
	return e.schedule
}

// ComputeBreakdown derives the full monetary breakdown for a cart.
// An empty cart yields an all-zero breakdown; callers must block
// checkout entry on empty carts before invoking payment.
func (e *Engine) ComputeBreakdown(cart models.CartSnapshot) models.PriceBreakdown {
	if cart.Empty() {
		return models.PriceBreakdown{
			Subtotal:    decimal.Zero,
			Discount:    decimal.Zero,
			Tax:         decimal.Zero,
			Shipping:    decimal.Zero,
			PlatformFee: decimal.Zero,
			GrandTotal:  decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	original := decimal.Zero
	for _, line := range cart.Lines {
		qty := decimal.NewFromInt(int64(line.Quantity))

		lineTotal := line.LineTotal
		if lineTotal.IsZero() {
			lineTotal = line.UnitPrice.Mul(qty)
		}
		subtotal = subtotal.Add(lineTotal)

		base := line.UnitPrice
		if line.OriginalUnitPrice != nil {
			base = *line.OriginalUnitPrice
		}
		original = original.Add(base.Mul(qty))
	}

	discount := original.Sub(subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	tax := e.computeTax(cart, subtotal)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	shipping := e.schedule.ShippingFlat
	platformFee := e.schedule.PlatformFeeFlat

	return models.PriceBreakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		Tax:         tax,
		Shipping:    shipping,
		PlatformFee: platformFee,
		GrandTotal:  subtotal.Add(tax).Add(shipping).Add(platformFee),
	}
}

func (e *Engine) computeTax(cart models.CartSnapshot, subtotal decimal.Decimal) decimal.Decimal {
	switch e.schedule.GSTMode {
	case models.GSTModePerLine:
		tax := decimal.Zero
		for _, line := range cart.Lines {
			if line.GSTPercent == nil || !line.GSTPercent.IsPositive() {
				continue
			}
			lineTotal := line.LineTotal
			if lineTotal.IsZero() {
				lineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			}
			tax = tax.Add(lineTotal.Mul(*line.GSTPercent).Div(hundred))
		}
		return tax

	default:
		// Weighted-average mode averages the per-line rates of lines
		// carrying a positive gst percent and applies the mean to the
		// whole subtotal. Lines with zero or absent gst do not pull
		// the average down.
		sum := decimal.Zero
		count := int64(0)
		for _, line := range cart.Lines {
			if line.GSTPercent != nil && line.GSTPercent.IsPositive() {
				sum = sum.Add(*line.GSTPercent)
				count++
			}
		}
		if count == 0 {
			return decimal.Zero
		}
		avgRate := sum.Div(decimal.NewFromInt(count))
		return subtotal.Mul(avgRate).Div(hundred)
	}
}
