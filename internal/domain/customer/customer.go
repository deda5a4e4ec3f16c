package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer lead does not exist.
var ErrNotFound = errors.New("customer not found")

// Lead is a customer session captured once at the start of an order flow.
// Its contact details are snapshotted onto orders at checkout time.
type Lead struct {
	ID          string
	Name        string
	Phone       string
	Email       string
	TableNumber string
	CreatedAt   time.Time
}

// Repository defines persistence operations for customer leads.
type Repository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, id string) (*Lead, error)
	ListRecent(ctx context.Context, limit int) ([]Lead, error)
}
