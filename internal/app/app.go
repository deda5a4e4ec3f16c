// Package app wires the application together: configuration, storage,
// payment provider, notification relay, HTTP server, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/dinetab/dinetab/internal/domain/order"
	"github.com/dinetab/dinetab/internal/domain/pricing"
	"github.com/dinetab/dinetab/internal/handler"
	"github.com/dinetab/dinetab/internal/notify"
	"github.com/dinetab/dinetab/internal/payment"
	"github.com/dinetab/dinetab/internal/repository"
	"github.com/dinetab/dinetab/pkg/health"
	"github.com/dinetab/dinetab/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// NATS relay for the dashboard event streams.
	publisher, err := notify.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return errors.Wrap(err, "connect nats")
	}
	defer publisher.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("nats", time.Second, func(context.Context) error {
		if !publisher.Healthy() {
			return errors.New("nats disconnected")
		}
		return nil
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.SetReady(true)

	// Repositories.
	customerRepo := repository.NewCustomerRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	voucherRepo := repository.NewVoucherRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Payment provider.
	provider := payment.NewStripeClient(payment.ClientConfig{
		BaseURL:            cfg.Stripe.BaseURL,
		SecretKey:          cfg.Stripe.SecretKey,
		SettlementCurrency: cfg.Stripe.Currency,
	})
	verifier := payment.NewWebhookVerifier(cfg.Stripe.WebhookSecret)

	// Domain services.
	rate, err := cfg.Rate()
	if err != nil {
		return err
	}
	calc := pricing.NewCalculator(pricing.NewConverter(rate))
	checkout := order.NewCheckoutService(
		customerRepo, productRepo, voucherRepo, orderRepo,
		provider, publisher, calc, "stripe",
	)
	reconciler := order.NewReconciler(orderRepo, voucherRepo, provider, publisher)

	// HTTP handlers.
	h := handler.New(handler.Config{
		Customers:  customerRepo,
		Products:   productRepo,
		Vouchers:   voucherRepo,
		Orders:     orderRepo,
		Checkout:   checkout,
		Reconciler: reconciler,
		Calculator: calc,
		Verifier:   verifier,
		APIKeys:    apikeyRepo,
		Pepper:     []byte(cfg.APIKeyPepper),
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", otelhttp.NewHandler(h.Routes(), "dinetab-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Stripe-Signature", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
