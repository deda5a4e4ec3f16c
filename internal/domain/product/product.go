package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a menu item available for purchase. Prices are integers
// in minor currency units.
type Product struct {
	ID          string
	Name        string
	Description string
	PriceCents  int64
	Category    string
	ImageURL    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines operations on the product catalog.
type Repository interface {
	// ListActive returns the customer-facing menu.
	ListActive(ctx context.Context) ([]Product, error)
	// GetByIDs fetches products in a single batch. Missing IDs are simply
	// absent from the result; callers decide whether that is an error.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)

	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	SetActive(ctx context.Context, id string, active bool) error
}
