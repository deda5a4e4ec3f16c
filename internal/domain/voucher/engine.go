package voucher

import (
	"fmt"
	"time"
)

// Reason explains why a voucher did not apply to an order.
type Reason string

const (
	ReasonInactive     Reason = "INACTIVE"
	ReasonExpired      Reason = "EXPIRED"
	ReasonLimitReached Reason = "LIMIT_REACHED"
	ReasonBelowMinimum Reason = "BELOW_MINIMUM"
	// ReasonNoEffect marks a voucher whose computed discount is zero. Callers
	// surface it instead of silently applying a zero-value discount.
	ReasonNoEffect Reason = "NO_EFFECT"
)

// IneligibleError reports a specific ineligibility reason for a voucher.
// MinimumCents carries the voucher's minimum order amount so the
// ReasonBelowMinimum message can state it.
type IneligibleError struct {
	Code         string
	Reason       Reason
	MinimumCents int64
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("voucher %s not applicable: %s", e.Code, e.Reason)
}

// Message returns the customer-facing explanation for the reason.
func (e *IneligibleError) Message() string {
	switch e.Reason {
	case ReasonInactive, ReasonExpired:
		return "Invalid or expired voucher code"
	case ReasonLimitReached:
		return "Voucher usage limit exceeded"
	case ReasonBelowMinimum:
		return fmt.Sprintf("Minimum order amount is %d.%02d", e.MinimumCents/100, e.MinimumCents%100)
	default:
		return "Voucher cannot be applied to this order"
	}
}

// Decision is the outcome of evaluating a voucher against an order subtotal.
type Decision struct {
	Eligible      bool
	Reason        Reason
	DiscountCents int64
}

// Evaluate decides whether a voucher applies to an order with the given
// subtotal and, if so, computes the discount amount. It is a pure function:
// redeeming (incrementing the used count) is a separate repository operation
// performed once the order's payment is confirmed.
//
// Checks run in order and short-circuit on the first failure: active flag,
// validity window, usage limit, minimum order amount. Percentage discounts
// round down so the customer is never over-discounted.
func Evaluate(v *Voucher, subtotalCents int64, now time.Time) Decision {
	if !v.Active {
		return Decision{Reason: ReasonInactive}
	}
	if now.Before(v.ValidFrom) || now.After(v.ValidUntil) {
		return Decision{Reason: ReasonExpired}
	}
	if v.UsedCount >= v.UsageLimit {
		return Decision{Reason: ReasonLimitReached}
	}
	if subtotalCents < v.MinimumOrderAmountCents {
		return Decision{Reason: ReasonBelowMinimum}
	}

	var discount int64
	switch v.DiscountType {
	case DiscountPercentage:
		// Integer division floors for non-negative operands.
		discount = subtotalCents * v.DiscountValue / 100
	case DiscountFixedAmount:
		discount = min(v.DiscountValue, subtotalCents)
	}

	if v.MaximumDiscountCents > 0 {
		discount = min(discount, v.MaximumDiscountCents)
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount <= 0 {
		return Decision{Reason: ReasonNoEffect}
	}

	return Decision{Eligible: true, DiscountCents: discount}
}
