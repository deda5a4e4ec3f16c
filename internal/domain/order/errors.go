package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems = errors.New("items required")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d for product %s must be greater than 0", e.Quantity, e.ProductID)
}

// ProductNotFoundError indicates a cart line referencing a missing or
// inactive product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// BelowMinimumTotalError indicates the order total is under the payment
// provider's minimum chargeable amount. It is raised before any order is
// persisted and is distinct from voucher ineligibility.
type BelowMinimumTotalError struct {
	SettlementCents int64
	MinimumCents    int64
}

func (e *BelowMinimumTotalError) Error() string {
	return fmt.Sprintf("order total %d is below the minimum chargeable amount %d",
		e.SettlementCents, e.MinimumCents)
}

// PaymentServiceError wraps a payment-provider failure. When Step is
// "create_session" an order may already be persisted in PENDING state; the
// caller can retry the payment step without recreating the order.
type PaymentServiceError struct {
	Step string
	Err  error
}

func (e *PaymentServiceError) Error() string {
	return fmt.Sprintf("payment service error at %s: %v", e.Step, e.Err)
}

func (e *PaymentServiceError) Unwrap() error {
	return e.Err
}
