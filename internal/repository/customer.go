package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinetab/dinetab/internal/domain/customer"
)

const (
	createLeadSQL = `INSERT INTO customer_leads (id, name, phone, email, table_number)
		VALUES ($1, $2, $3, $4, $5)`

	getLeadByIDSQL = `SELECT id, name, phone, email, table_number, created_at
		FROM customer_leads WHERE id = $1`

	listRecentLeadsSQL = `SELECT id, name, phone, email, table_number, created_at
		FROM customer_leads ORDER BY created_at DESC LIMIT $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create persists a new customer lead.
func (r *CustomerRepository) Create(ctx context.Context, lead *customer.Lead) error {
	_, err := r.pool.Exec(ctx, createLeadSQL,
		lead.ID, lead.Name, lead.Phone, lead.Email, lead.TableNumber,
	)
	if err != nil {
		return fmt.Errorf("creating customer lead %q: %w", lead.ID, err)
	}
	return nil
}

// GetByID returns a single customer lead by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Lead, error) {
	var lead customer.Lead
	err := r.pool.QueryRow(ctx, getLeadByIDSQL, id).Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.TableNumber, &lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer lead %q: %w", id, err)
	}
	return &lead, nil
}

// ListRecent returns the newest customer leads for the admin dashboard.
func (r *CustomerRepository) ListRecent(ctx context.Context, limit int) ([]customer.Lead, error) {
	rows, err := r.pool.Query(ctx, listRecentLeadsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing customer leads: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (customer.Lead, error) {
		var lead customer.Lead
		err := row.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.TableNumber, &lead.CreatedAt)
		return lead, err
	})
}
