// Command seed-db loads the menu, starter vouchers, and a staff API key into
// the database. It is idempotent: re-running updates existing rows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/handler"
	"github.com/dinetab/dinetab/internal/repository"
)

type productJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		adminKey     string
		kitchenKey   string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to menu JSON file")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or DINETAB_SEED_ADMIN_KEY env)")
	flag.StringVar(&kitchenKey, "kitchen-key", "", "kitchen API key to seed (or DINETAB_SEED_KITCHEN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or DINETAB_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("DINETAB_SEED_ADMIN_KEY")
	}
	if kitchenKey == "" {
		kitchenKey = os.Getenv("DINETAB_SEED_KITCHEN_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("DINETAB_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminKey, kitchenKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminKey, kitchenKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedVouchers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if adminKey != "" {
		if err := seedAPIKey(ctx, pool, adminKey, pepper, "admin dashboard", []string{"admin"}); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}
	if kitchenKey != "" {
		if err := seedAPIKey(ctx, pool, kitchenKey, pepper, "kitchen display", []string{"kitchen"}); err != nil {
			return errors.Wrap(err, "seed kitchen key")
		}
	}

	return nil
}

const upsertProductSQL = `INSERT INTO products (id, name, description, price_cents, category, image_url, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, description = EXCLUDED.description,
		price_cents = EXCLUDED.price_cents, category = EXCLUDED.category,
		image_url = EXCLUDED.image_url, updated_at = now()`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading menu file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertVoucherSQL = `INSERT INTO vouchers (id, code, description, discount_type, discount_value,
	minimum_order_amount_cents, maximum_discount_cents, usage_limit,
	valid_from, valid_until, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
	ON CONFLICT (code) DO UPDATE SET
		description = EXCLUDED.description, discount_type = EXCLUDED.discount_type,
		discount_value = EXCLUDED.discount_value,
		minimum_order_amount_cents = EXCLUDED.minimum_order_amount_cents,
		maximum_discount_cents = EXCLUDED.maximum_discount_cents,
		usage_limit = EXCLUDED.usage_limit,
		valid_until = EXCLUDED.valid_until, updated_at = now()`

func seedVouchers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding starter vouchers")

	now := time.Now().UTC()
	vouchers := []voucher.Voucher{
		{
			Code:          "WELCOME20",
			Description:   "Welcome: 20% off your first order",
			DiscountType:  voucher.DiscountPercentage,
			DiscountValue: 20,
			UsageLimit:    1000,
			ValidFrom:     now,
			ValidUntil:    now.AddDate(1, 0, 0),
		},
		{
			Code:                    "TABLE500",
			Description:             "500 off orders of 5000 or more",
			DiscountType:            voucher.DiscountFixedAmount,
			DiscountValue:           50000,
			MinimumOrderAmountCents: 500000,
			UsageLimit:              500,
			ValidFrom:               now,
			ValidUntil:              now.AddDate(0, 6, 0),
		},
	}

	for _, v := range vouchers {
		if _, err := pool.Exec(ctx, upsertVoucherSQL,
			uuid.NewString(), v.Code, v.Description, v.DiscountType, v.DiscountValue,
			v.MinimumOrderAmountCents, v.MaximumDiscountCents, v.UsageLimit,
			v.ValidFrom, v.ValidUntil,
		); err != nil {
			return errors.Wrapf(err, "upsert voucher %s", v.Code)
		}
		slog.Info("upserted voucher", slog.String("code", v.Code))
	}

	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET
		name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, key, pepper, name string, scopes []string) error {
	hash := handler.HashKey([]byte(pepper), key)
	if _, err := pool.Exec(ctx, upsertAPIKeySQL, uuid.NewString(), hash, name, scopes); err != nil {
		return errors.Wrapf(err, "upsert api key %s", name)
	}

	slog.Info("upserted api key", slog.String("name", name))
	return nil
}
