package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinetab/dinetab/internal/domain/customer"
	"github.com/dinetab/dinetab/internal/domain/pricing"
	"github.com/dinetab/dinetab/internal/domain/product"
	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/notify"
)

// CheckoutRequest holds the input for a checkout attempt. Quantities and
// per-line notes come from the client; prices never do.
type CheckoutRequest struct {
	CustomerLeadID string
	Items          []CheckoutItem
	VoucherCode    string
	OrderNotes     string
	SuccessURL     string
	CancelURL      string
}

// CheckoutItem is a single requested cart line.
type CheckoutItem struct {
	ProductID string
	Quantity  int
	Notes     string
}

// CheckoutResult is the output of a successful checkout: the persisted order
// and the payment redirect URL to hand to the customer.
type CheckoutResult struct {
	Order       *Order
	CheckoutURL string
}

// CheckoutService sequences validation, pricing, order persistence, payment
// session creation, and the order-created broadcast.
type CheckoutService struct {
	customers customer.Repository
	products  product.Repository
	vouchers  voucher.Repository
	orders    Repository
	payments  PaymentProvider
	publisher notify.Publisher
	calc      *pricing.Calculator
	provider  string
	now       func() time.Time
}

// NewCheckoutService wires a CheckoutService with its collaborators. The
// provider name is recorded on orders for audit purposes.
func NewCheckoutService(
	customers customer.Repository,
	products product.Repository,
	vouchers voucher.Repository,
	orders Repository,
	payments PaymentProvider,
	publisher notify.Publisher,
	calc *pricing.Calculator,
	provider string,
) *CheckoutService {
	return &CheckoutService{
		customers: customers,
		products:  products,
		vouchers:  vouchers,
		orders:    orders,
		payments:  payments,
		publisher: publisher,
		calc:      calc,
		provider:  provider,
		now:       time.Now,
	}
}

// Checkout runs a single checkout attempt. Steps are strictly sequential.
// Nothing is persisted until validation and pricing have fully succeeded, so
// validation failures and below-minimum totals leave no trace. Once the order
// row lands, downstream failures never delete it: an order without a payment
// ref is abandoned or retryable, not lost.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	lg := zctx.From(ctx)

	lead, lines, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	// Re-evaluate the voucher against the server-side subtotal. The preview
	// endpoint runs the same engine on the same inputs, so the amounts agree.
	var subtotal int64
	for _, l := range lines {
		subtotal += l.LineTotalCents()
	}

	var discountCents int64
	voucherCode := ""
	if req.VoucherCode != "" {
		code := voucher.NormalizeCode(req.VoucherCode)
		v, err := s.vouchers.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, voucher.ErrNotFound) {
				return nil, &voucher.IneligibleError{Code: code, Reason: voucher.ReasonInactive}
			}
			return nil, errors.Wrap(err, "lookup voucher")
		}
		decision := voucher.Evaluate(v, subtotal, s.now())
		if !decision.Eligible {
			return nil, &voucher.IneligibleError{
				Code:         code,
				Reason:       decision.Reason,
				MinimumCents: v.MinimumOrderAmountCents,
			}
		}
		discountCents = decision.DiscountCents
		voucherCode = code
	}

	quote, err := s.calc.Quote(lines, discountCents)
	if err != nil {
		return nil, errors.Wrap(err, "quote order")
	}
	if quote.BelowMinimum() {
		return nil, &BelowMinimumTotalError{
			SettlementCents: quote.SettlementCents,
			MinimumCents:    pricing.MinChargeableCents,
		}
	}

	o := s.buildOrder(lead, req, lines, quote, voucherCode)
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	session, err := s.createSession(ctx, o, quote, req)
	if err != nil {
		// The PENDING order stays behind deliberately; a later attempt or the
		// abandoned-order review can pick it up.
		lg.Error("Payment session creation failed, order left pending",
			zap.String("order_id", o.ID), zap.Error(err))
		return nil, &PaymentServiceError{Step: "create_session", Err: err}
	}

	if err := s.orders.SetPaymentRef(ctx, o.ID, session.ID); err != nil {
		// The session metadata still carries the order ID, so the webhook can
		// resolve the order and repair the ref. Reportable, not fatal.
		lg.Error("Failed to record payment ref on order",
			zap.String("order_id", o.ID), zap.String("session_id", session.ID), zap.Error(err))
	}
	o.PaymentRef = session.ID

	s.broadcastCreated(ctx, o)

	return &CheckoutResult{Order: o, CheckoutURL: session.URL}, nil
}

// validate resolves the customer lead and re-prices the cart from the product
// catalog. It fails fast with no side effects.
func (s *CheckoutService) validate(ctx context.Context, req CheckoutRequest) (*customer.Lead, []pricing.Line, error) {
	if len(req.Items) == 0 {
		return nil, nil, ErrEmptyItems
	}

	lead, err := s.customers.GetByID(ctx, req.CustomerLeadID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, nil, customer.ErrNotFound
		}
		return nil, nil, errors.Wrap(err, "get customer lead")
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok || !p.Active {
			return nil, nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines[i] = pricing.Line{
			ProductID:      p.ID,
			Name:           p.Name,
			UnitPriceCents: p.PriceCents,
			Quantity:       item.Quantity,
			Notes:          item.Notes,
		}
	}
	return lead, lines, nil
}

func (s *CheckoutService) buildOrder(lead *customer.Lead, req CheckoutRequest, lines []pricing.Line, quote pricing.Quote, voucherCode string) *Order {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID:      l.ProductID,
			Name:           l.Name,
			UnitPriceCents: l.UnitPriceCents,
			Quantity:       l.Quantity,
			LineTotalCents: l.LineTotalCents(),
			Notes:          l.Notes,
		}
	}
	return &Order{
		ID:              uuid.New().String(),
		CustomerLeadID:  lead.ID,
		CustomerName:    lead.Name,
		CustomerPhone:   lead.Phone,
		CustomerEmail:   lead.Email,
		TableNumber:     lead.TableNumber,
		Items:           items,
		SubtotalCents:   quote.SubtotalCents,
		DiscountCents:   quote.DiscountCents,
		VoucherCode:     voucherCode,
		TotalCents:      quote.TotalCents,
		SettlementCents: quote.SettlementCents,
		ExchangeRate:    quote.ExchangeRate,
		Status:          StatusNew,
		PaymentStatus:   PaymentPending,
		PaymentProvider: s.provider,
		OrderNotes:      req.OrderNotes,
		CreatedAt:       s.now().UTC(),
	}
}

// createSession requests a hosted checkout session for the settlement amount.
// The whole discounted total is charged as a single session line: per-line
// discount splitting only reshuffles rounding noise the provider then
// re-aggregates anyway.
func (s *CheckoutService) createSession(ctx context.Context, o *Order, quote pricing.Quote, req CheckoutRequest) (*PaymentSession, error) {
	return s.payments.CreateSession(ctx, CreateSessionParams{
		Lines: []SessionLine{{
			Name:      sessionLineName(o),
			UnitCents: quote.SettlementCents,
			Quantity:  1,
		}},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Metadata: map[string]string{
			"orderId":        o.ID,
			"customerLeadId": o.CustomerLeadID,
			"voucherCode":    o.VoucherCode,
		},
	})
}

func sessionLineName(o *Order) string {
	if o.VoucherCode != "" {
		return "Table " + o.TableNumber + " order (voucher " + o.VoucherCode + " applied)"
	}
	return "Table " + o.TableNumber + " order"
}

// broadcastCreated emits the order-created event to the admin dashboard.
// Best effort: by this point the customer already has a payment URL, so a
// relay failure must not fail the checkout.
func (s *CheckoutService) broadcastCreated(ctx context.Context, o *Order) {
	ev := notify.NewOrderEvent{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		TableNumber:   o.TableNumber,
		Phone:         o.CustomerPhone,
		Email:         o.CustomerEmail,
		Items:         eventItems(o.Items),
		TotalCents:    o.TotalCents,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		VoucherCode:   o.VoucherCode,
		DiscountCents: o.DiscountCents,
		OrderNotes:    o.OrderNotes,
		CreatedAt:     o.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, notify.ChannelAdmin, notify.EventNewOrder, ev); err != nil {
		zctx.From(ctx).Warn("Failed to broadcast order created",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}

func eventItems(items []Item) []notify.EventItem {
	out := make([]notify.EventItem, len(items))
	for i, it := range items {
		out[i] = notify.EventItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			UnitPriceCents: it.UnitPriceCents,
			Quantity:       it.Quantity,
			LineTotalCents: it.LineTotalCents,
			Notes:          it.Notes,
		}
	}
	return out
}
