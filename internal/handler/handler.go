// Package handler exposes the HTTP API: public ordering endpoints, the
// payment webhook, and the API-key-gated staff surface.
package handler

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dinetab/dinetab/internal/domain/auth"
	"github.com/dinetab/dinetab/internal/domain/customer"
	"github.com/dinetab/dinetab/internal/domain/order"
	"github.com/dinetab/dinetab/internal/domain/pricing"
	"github.com/dinetab/dinetab/internal/domain/product"
	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/payment"
)

const listLimit = 50

// Handler carries the dependencies of every HTTP endpoint.
type Handler struct {
	customers  customer.Repository
	products   product.Repository
	vouchers   voucher.Repository
	orders     order.Repository
	checkout   *order.CheckoutService
	reconciler *order.Reconciler
	calc       *pricing.Calculator
	verifier   *payment.WebhookVerifier
	security   *Security

	successURL string
	cancelURL  string
	now        func() time.Time
}

// Config bundles the handler's collaborators.
type Config struct {
	Customers  customer.Repository
	Products   product.Repository
	Vouchers   voucher.Repository
	Orders     order.Repository
	Checkout   *order.CheckoutService
	Reconciler *order.Reconciler
	Calculator *pricing.Calculator
	Verifier   *payment.WebhookVerifier
	APIKeys    auth.Repository
	// Pepper is the HMAC key applied to API keys before lookup.
	Pepper []byte
	// SuccessURL and CancelURL are where the payment provider redirects the
	// customer after the hosted checkout.
	SuccessURL string
	CancelURL  string
}

// New creates a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		customers:  cfg.Customers,
		products:   cfg.Products,
		vouchers:   cfg.Vouchers,
		orders:     cfg.Orders,
		checkout:   cfg.Checkout,
		reconciler: cfg.Reconciler,
		calc:       cfg.Calculator,
		verifier:   cfg.Verifier,
		security:   NewSecurity(cfg.APIKeys, cfg.Pepper),
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		now:        time.Now,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/start", h.startSession)
		r.Get("/menu", h.listMenu)
		r.Post("/vouchers/validate", h.validateVoucher)
		r.Post("/cart/apply-voucher", h.applyVoucher)
		r.Post("/checkout", h.placeOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/check-payment", h.checkPayment)
		r.Post("/webhooks/stripe", h.stripeWebhook)

		r.Route("/kitchen", func(r chi.Router) {
			r.Use(h.security.Require(auth.ScopeKitchen))
			r.Get("/orders", h.kitchenOrders)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.security.Require(auth.ScopeAdmin))
			r.Get("/orders", h.adminOrders)
			r.Get("/customers", h.adminCustomers)

			r.Route("/vouchers", func(r chi.Router) {
				r.Get("/", h.adminListVouchers)
				r.Post("/", h.adminCreateVoucher)
				r.Put("/{voucherID}", h.adminUpdateVoucher)
				r.Delete("/{voucherID}", h.adminDeactivateVoucher)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.adminListProducts)
				r.Post("/", h.adminCreateProduct)
				r.Put("/{productID}", h.adminUpdateProduct)
				r.Delete("/{productID}", h.adminDeactivateProduct)
			})
		})
	})

	return r
}
