package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dinetab/dinetab/internal/domain/order"
)

const (
	orderColumns = `id, customer_lead_id, customer_name, customer_phone, customer_email,
		table_number, items, subtotal_cents, discount_cents, voucher_code, total_cents,
		settlement_cents, exchange_rate, status, payment_status, payment_provider,
		payment_ref, order_notes, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (id, customer_lead_id, customer_name, customer_phone,
		customer_email, table_number, items, subtotal_cents, discount_cents, voucher_code,
		total_cents, settlement_cents, exchange_rate, status, payment_status,
		payment_provider, payment_ref, order_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByPaymentRefSQL = `SELECT ` + orderColumns + ` FROM orders WHERE payment_ref = $1`

	setPaymentRefSQL = `UPDATE orders SET payment_ref = $2, updated_at = now() WHERE id = $1`

	markOrderPaidSQL = `UPDATE orders SET payment_status = 'PAID', status = 'CONFIRMED',
		updated_at = now()
		WHERE id = $1 AND payment_status = 'PENDING'`

	listPaidOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = 'PAID' ORDER BY updated_at DESC LIMIT $1`

	listRecentOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC LIMIT $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items are serialized to JSON for storage in
// the JSONB column; the column list preserves the exchange rate NUMERIC so
// reconciliation never re-derives the conversion.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerLeadID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.TableNumber, itemsJSON, o.SubtotalCents, o.DiscountCents, o.VoucherCode,
		o.TotalCents, o.SettlementCents, o.ExchangeRate, o.Status, o.PaymentStatus,
		o.PaymentProvider, o.PaymentRef, o.OrderNotes,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByPaymentRef returns the order linked to a payment-session reference.
func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentRefSQL, ref)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// SetPaymentRef links the order to its payment session.
func (r *OrderRepository) SetPaymentRef(ctx context.Context, id, ref string) error {
	tag, err := r.pool.Exec(ctx, setPaymentRefSQL, id, ref)
	if err != nil {
		return fmt.Errorf("setting payment ref for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid transitions the order to PAID/CONFIRMED in a single conditional
// update. Rows affected tells the caller whether it won the transition;
// a loss means another confirmation signal got there first.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, markOrderPaidSQL, id)
	if err != nil {
		return false, fmt.Errorf("marking order %q paid: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPaid returns paid orders for the kitchen display, newest first.
func (r *OrderRepository) ListPaid(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listPaidOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing paid orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListRecent returns the newest orders regardless of payment state.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listRecentOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		status        string
		paymentStatus string
		rate          decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CustomerLeadID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.TableNumber, &itemsJSON, &o.SubtotalCents, &o.DiscountCents, &o.VoucherCode,
		&o.TotalCents, &o.SettlementCents, &rate, &status, &paymentStatus,
		&o.PaymentProvider, &o.PaymentRef, &o.OrderNotes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.ExchangeRate = rate
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return o, nil
}
