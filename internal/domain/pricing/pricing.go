// Package pricing derives order totals from cart lines and a discount
// decision. The voucher-preview endpoint and the checkout path both go
// through Quote, so the two can never drift apart.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinChargeableCents is the payment provider's minimum chargeable amount in
// settlement-currency minor units.
const MinChargeableCents int64 = 50

// Line is a single cart line. UnitPriceCents must come from the product
// catalog, not from the client.
type Line struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	Quantity       int
	Notes          string
}

// LineTotalCents returns the line's extended price.
func (l Line) LineTotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Quote holds the derived amounts for an order, in display-currency minor
// units except where noted.
type Quote struct {
	SubtotalCents int64
	DiscountCents int64
	TotalCents    int64
	// SettlementCents is the amount actually charged by the payment provider,
	// in settlement-currency minor units.
	SettlementCents int64
	// ExchangeRate is the display-to-settlement conversion rate used for this
	// quote. Persisted with the order so reconciliation never re-derives it.
	ExchangeRate decimal.Decimal
}

// BelowMinimum reports whether the settlement amount is under the provider's
// minimum chargeable total. The quote itself is still valid; refusing to
// proceed to a payment session is the orchestrator's call.
func (q Quote) BelowMinimum() bool {
	return q.SettlementCents < MinChargeableCents
}

// Converter converts display-currency amounts into the settlement currency
// with a single declared, deterministic rate.
type Converter struct {
	rate decimal.Decimal
}

// NewConverter creates a Converter with the given display-to-settlement rate.
// A rate of 1 means the display currency is the settlement currency.
func NewConverter(rate decimal.Decimal) Converter {
	return Converter{rate: rate}
}

// ToSettlementCents converts display-currency minor units into
// settlement-currency minor units, rounding half-up to a whole unit.
func (c Converter) ToSettlementCents(displayCents int64) int64 {
	return decimal.NewFromInt(displayCents).Mul(c.rate).Round(0).IntPart()
}

// Rate returns the declared conversion rate.
func (c Converter) Rate() decimal.Decimal {
	return c.rate
}

// Calculator turns cart lines plus a discount amount into a Quote.
type Calculator struct {
	converter Converter
}

// NewCalculator creates a Calculator using the given settlement converter.
func NewCalculator(converter Converter) *Calculator {
	return &Calculator{converter: converter}
}

// Quote computes subtotal, discount, and total for the given lines. The
// discount is clamped to the subtotal, and the total is clamped at zero.
// All arithmetic is integer minor units; no floating point.
func (c *Calculator) Quote(lines []Line, discountCents int64) (Quote, error) {
	var subtotal int64
	for _, l := range lines {
		if l.Quantity < 1 {
			return Quote{}, fmt.Errorf("quantity must be at least 1 for product %s", l.ProductID)
		}
		if l.UnitPriceCents < 0 {
			return Quote{}, fmt.Errorf("negative unit price for product %s", l.ProductID)
		}
		subtotal += l.LineTotalCents()
	}

	if discountCents < 0 {
		discountCents = 0
	}
	if discountCents > subtotal {
		discountCents = subtotal
	}

	total := subtotal - discountCents
	if total < 0 {
		total = 0
	}

	return Quote{
		SubtotalCents:   subtotal,
		DiscountCents:   discountCents,
		TotalCents:      total,
		SettlementCents: c.converter.ToSettlementCents(total),
		ExchangeRate:    c.converter.Rate(),
	}, nil
}
