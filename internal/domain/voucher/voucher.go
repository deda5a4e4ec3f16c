package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order subtotal.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixedAmount subtracts a fixed amount in minor currency units.
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

var (
	// ErrNotFound is returned when no active voucher exists for a code.
	ErrNotFound = errors.New("voucher not found")
	// ErrExhausted is returned by Redeem when the usage limit is already reached.
	ErrExhausted = errors.New("voucher usage limit reached")
)

// Voucher is a discount code with eligibility rules and a usage cap.
// All monetary fields are integers in minor currency units.
type Voucher struct {
	ID                      string
	Code                    string
	Description             string
	DiscountType            DiscountType
	DiscountValue           int64
	MinimumOrderAmountCents int64
	// MaximumDiscountCents caps the computed discount. Zero means no cap.
	MaximumDiscountCents int64
	UsageLimit           int
	UsedCount            int
	ValidFrom            time.Time
	ValidUntil           time.Time
	Active               bool
	ApplicableProducts   []string
	ApplicableCategories []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NormalizeCode maps a user-supplied code to its stored representation.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of vouchers.
type Repository interface {
	// FindByCode looks up a voucher by its normalized code, regardless of
	// active flag or validity window; eligibility is the engine's job.
	// Returns ErrNotFound when no such voucher exists.
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	// Redeem increments the voucher's used count, but only while the count is
	// below the usage limit. The increment must be a single conditional
	// update so that concurrent redemptions cannot overshoot the limit.
	// Returns ErrExhausted when the limit is already reached.
	Redeem(ctx context.Context, code string) error

	Create(ctx context.Context, v *Voucher) error
	Update(ctx context.Context, v *Voucher) error
	List(ctx context.Context, limit int) ([]Voucher, error)
	// SetActive soft-deactivates (or reactivates) a voucher. Vouchers are
	// never hard-deleted while historical orders reference their codes.
	SetActive(ctx context.Context, id string, active bool) error
}
