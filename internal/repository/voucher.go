package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinetab/dinetab/internal/domain/voucher"
)

const (
	getVoucherByCodeSQL = `SELECT id, code, description, discount_type, discount_value,
		minimum_order_amount_cents, maximum_discount_cents, usage_limit, used_count,
		valid_from, valid_until, active, applicable_products, applicable_categories,
		created_at, updated_at
		FROM vouchers WHERE code = UPPER(TRIM($1))`

	redeemVoucherSQL = `UPDATE vouchers SET used_count = used_count + 1, updated_at = now()
		WHERE code = $1 AND used_count < usage_limit`

	createVoucherSQL = `INSERT INTO vouchers (id, code, description, discount_type, discount_value,
		minimum_order_amount_cents, maximum_discount_cents, usage_limit, used_count,
		valid_from, valid_until, active, applicable_products, applicable_categories)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateVoucherSQL = `UPDATE vouchers SET description = $2, discount_type = $3, discount_value = $4,
		minimum_order_amount_cents = $5, maximum_discount_cents = $6, usage_limit = $7,
		valid_from = $8, valid_until = $9, applicable_products = $10, applicable_categories = $11,
		updated_at = now()
		WHERE id = $1`

	listVouchersSQL = `SELECT id, code, description, discount_type, discount_value,
		minimum_order_amount_cents, maximum_discount_cents, usage_limit, used_count,
		valid_from, valid_until, active, applicable_products, applicable_categories,
		created_at, updated_at
		FROM vouchers ORDER BY created_at DESC LIMIT $1`

	setVoucherActiveSQL = `UPDATE vouchers SET active = $2, updated_at = now() WHERE id = $1`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// FindByCode looks up a voucher by its code (case-insensitive). Eligibility
// checks are left to the engine; inactive and expired vouchers are returned.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, getVoucherByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	return &v, nil
}

// Redeem increments the voucher's usage counter in a single conditional
// update. The WHERE clause keeps concurrent redemptions from overshooting
// the usage limit; zero rows affected means the limit was already reached.
func (r *VoucherRepository) Redeem(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, redeemVoucherSQL, voucher.NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("redeeming voucher %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrExhausted
	}
	return nil
}

// Create persists a new voucher.
func (r *VoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	_, err := r.pool.Exec(ctx, createVoucherSQL,
		v.ID, voucher.NormalizeCode(v.Code), v.Description, v.DiscountType, v.DiscountValue,
		v.MinimumOrderAmountCents, v.MaximumDiscountCents, v.UsageLimit, v.UsedCount,
		v.ValidFrom, v.ValidUntil, v.Active, v.ApplicableProducts, v.ApplicableCategories,
	)
	if err != nil {
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	return nil
}

// Update rewrites a voucher's rule fields. The code and usage counter are
// immutable through this path.
func (r *VoucherRepository) Update(ctx context.Context, v *voucher.Voucher) error {
	tag, err := r.pool.Exec(ctx, updateVoucherSQL,
		v.ID, v.Description, v.DiscountType, v.DiscountValue,
		v.MinimumOrderAmountCents, v.MaximumDiscountCents, v.UsageLimit,
		v.ValidFrom, v.ValidUntil, v.ApplicableProducts, v.ApplicableCategories,
	)
	if err != nil {
		return fmt.Errorf("updating voucher %q: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

// List returns the newest vouchers, including inactive ones.
func (r *VoucherRepository) List(ctx context.Context, limit int) ([]voucher.Voucher, error) {
	rows, err := r.pool.Query(ctx, listVouchersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	return pgx.CollectRows(rows, scanVoucher)
}

// SetActive soft-deactivates or reactivates a voucher.
func (r *VoucherRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, setVoucherActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting voucher %q active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v            voucher.Voucher
		discountType string
	)
	err := row.Scan(
		&v.ID, &v.Code, &v.Description, &discountType, &v.DiscountValue,
		&v.MinimumOrderAmountCents, &v.MaximumDiscountCents, &v.UsageLimit, &v.UsedCount,
		&v.ValidFrom, &v.ValidUntil, &v.Active, &v.ApplicableProducts, &v.ApplicableCategories,
		&v.CreatedAt, &v.UpdatedAt,
	)
	v.DiscountType = voucher.DiscountType(discountType)
	return v, err
}
