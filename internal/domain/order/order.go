package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is an order's kitchen-facing lifecycle state.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus tracks an order's payment state. Transitions are monotonic:
// PENDING may become PAID or FAILED, and neither ever reverts.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Item is a single line of an order with snapshotted name and price.
type Item struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"line_total_cents"`
	Notes          string `json:"notes,omitempty"`
}

// Order is a customer order with denormalized customer contact details and
// fully derived pricing. All amounts are integer minor currency units; the
// settlement amount and exchange rate are persisted so reconciliation never
// has to re-derive the conversion.
type Order struct {
	ID             string
	CustomerLeadID string
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	TableNumber    string

	Items         []Item
	SubtotalCents int64
	DiscountCents int64
	VoucherCode   string
	TotalCents    int64

	SettlementCents int64
	ExchangeRate    decimal.Decimal

	Status          Status
	PaymentStatus   PaymentStatus
	PaymentProvider string
	PaymentRef      string

	OrderNotes string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByPaymentRef looks up an order by its payment-session reference.
	// It backs webhook reconciliation when only the session ID is known.
	GetByPaymentRef(ctx context.Context, ref string) (*Order, error)
	// SetPaymentRef links the order to a payment session after the session
	// has been created.
	SetPaymentRef(ctx context.Context, id, ref string) error
	// MarkPaid transitions an order from PENDING to PAID/CONFIRMED. The
	// update is conditional on the current payment status being PENDING and
	// reports whether this call won the transition, so concurrent
	// confirmation signals resolve to exactly one winner.
	MarkPaid(ctx context.Context, id string) (bool, error)
	// ListPaid returns confirmed, paid orders for the kitchen display.
	ListPaid(ctx context.Context, limit int) ([]Order, error)
	// ListRecent returns the newest orders for the admin dashboard.
	ListRecent(ctx context.Context, limit int) ([]Order, error)
}
