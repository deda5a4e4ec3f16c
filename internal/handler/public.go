package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinetab/dinetab/internal/domain/customer"
	"github.com/dinetab/dinetab/internal/domain/order"
	"github.com/dinetab/dinetab/internal/domain/pricing"
	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/payment"
)

type startSessionRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	TableNumber string `json:"table_number"`
}

type leadView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	TableNumber string    `json:"table_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if req.Name == "" {
		respondValidation(w, "name is required")
		return
	}

	lead := &customer.Lead{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		TableNumber: req.TableNumber,
		CreatedAt:   h.now().UTC(),
	}
	if err := h.customers.Create(r.Context(), lead); err != nil {
		writeDomainError(w, r, err)
		return
	}

	respond(w, http.StatusCreated, leadView{
		ID:          lead.ID,
		Name:        lead.Name,
		Phone:       lead.Phone,
		Email:       lead.Email,
		TableNumber: lead.TableNumber,
		CreatedAt:   lead.CreatedAt,
	})
}

type productView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListActive(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
		})
	}
	respond(w, http.StatusOK, views)
}

type validateVoucherRequest struct {
	Code          string `json:"code"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

type voucherDecisionView struct {
	Code          string `json:"code"`
	Description   string `json:"description,omitempty"`
	Eligible      bool   `json:"eligible"`
	DiscountCents int64  `json:"discount_cents"`
}

func (h *Handler) validateVoucher(w http.ResponseWriter, r *http.Request) {
	var req validateVoucherRequest
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if req.Code == "" {
		respondValidation(w, "code is required")
		return
	}

	v, err := h.vouchers.FindByCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	decision := voucher.Evaluate(v, req.SubtotalCents, h.now())
	if !decision.Eligible {
		writeDomainError(w, r, &voucher.IneligibleError{
			Code:         v.Code,
			Reason:       decision.Reason,
			MinimumCents: v.MinimumOrderAmountCents,
		})
		return
	}

	respond(w, http.StatusOK, voucherDecisionView{
		Code:          v.Code,
		Description:   v.Description,
		Eligible:      true,
		DiscountCents: decision.DiscountCents,
	})
}

type cartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

type applyVoucherRequest struct {
	Items []cartItem `json:"items"`
	Code  string     `json:"code"`
}

type quoteView struct {
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	VoucherCode   string `json:"voucher_code,omitempty"`
}

// applyVoucher previews cart totals with a voucher applied. It re-prices the
// cart from the catalog with the same engine checkout uses, so an accepted
// preview only fails checkout if state changed in between.
func (h *Handler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	var req applyVoucherRequest
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if len(req.Items) == 0 {
		respondValidation(w, "items are required")
		return
	}
	if req.Code == "" {
		respondValidation(w, "code is required")
		return
	}

	lines, err := h.priceCart(r, req.Items)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineTotalCents()
	}

	v, err := h.vouchers.FindByCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	decision := voucher.Evaluate(v, subtotal, h.now())
	if !decision.Eligible {
		writeDomainError(w, r, &voucher.IneligibleError{
			Code:         v.Code,
			Reason:       decision.Reason,
			MinimumCents: v.MinimumOrderAmountCents,
		})
		return
	}

	quote, err := h.calc.Quote(lines, decision.DiscountCents)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	respond(w, http.StatusOK, quoteView{
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		TotalCents:    quote.TotalCents,
		VoucherCode:   v.Code,
	})
}

func (h *Handler) priceCart(r *http.Request, items []cartItem) ([]pricing.Line, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, &order.InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		ids = append(ids, item.ProductID)
	}

	products, err := h.products.GetByIDs(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}

	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		i, ok := byID[item.ProductID]
		if !ok || !products[i].Active {
			return nil, &order.ProductNotFoundError{ProductID: item.ProductID}
		}
		lines = append(lines, pricing.Line{
			ProductID:      item.ProductID,
			Name:           products[i].Name,
			UnitPriceCents: products[i].PriceCents,
			Quantity:       item.Quantity,
			Notes:          item.Notes,
		})
	}
	return lines, nil
}

type checkoutRequest struct {
	CustomerLeadID string     `json:"customer_lead_id"`
	Items          []cartItem `json:"items"`
	VoucherCode    string     `json:"voucher_code"`
	OrderNotes     string     `json:"order_notes"`
}

type checkoutResponse struct {
	OrderID     string `json:"order_id"`
	CheckoutURL string `json:"checkout_url"`
	Totals      struct {
		SubtotalCents   int64 `json:"subtotal_cents"`
		DiscountCents   int64 `json:"discount_cents"`
		TotalCents      int64 `json:"total_cents"`
		SettlementCents int64 `json:"settlement_cents"`
	} `json:"totals"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if req.CustomerLeadID == "" {
		respondValidation(w, "customer_lead_id is required")
		return
	}

	items := make([]order.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		})
	}

	result, err := h.checkout.Checkout(r.Context(), order.CheckoutRequest{
		CustomerLeadID: req.CustomerLeadID,
		Items:          items,
		VoucherCode:    req.VoucherCode,
		OrderNotes:     req.OrderNotes,
		SuccessURL:     h.successURL,
		CancelURL:      h.cancelURL,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := checkoutResponse{
		OrderID:     result.Order.ID,
		CheckoutURL: result.CheckoutURL,
	}
	resp.Totals.SubtotalCents = result.Order.SubtotalCents
	resp.Totals.DiscountCents = result.Order.DiscountCents
	resp.Totals.TotalCents = result.Order.TotalCents
	resp.Totals.SettlementCents = result.Order.SettlementCents
	respond(w, http.StatusCreated, resp)
}

type orderItemView struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	LineTotalCents int64  `json:"line_total_cents"`
	Notes          string `json:"notes,omitempty"`
}

type orderView struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	TableNumber   string          `json:"table_number,omitempty"`
	Items         []orderItemView `json:"items"`
	SubtotalCents int64           `json:"subtotal_cents"`
	DiscountCents int64           `json:"discount_cents"`
	VoucherCode   string          `json:"voucher_code,omitempty"`
	TotalCents    int64           `json:"total_cents"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	OrderNotes    string          `json:"order_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func orderToView(o *order.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
			Notes:          item.Notes,
		})
	}
	return orderView{
		ID:            o.ID,
		CustomerName:  o.CustomerName,
		TableNumber:   o.TableNumber,
		Items:         items,
		SubtotalCents: o.SubtotalCents,
		DiscountCents: o.DiscountCents,
		VoucherCode:   o.VoucherCode,
		TotalCents:    o.TotalCents,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		OrderNotes:    o.OrderNotes,
		CreatedAt:     o.CreatedAt,
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, orderToView(o))
}

type checkPaymentResponse struct {
	OrderID       string `json:"order_id"`
	Outcome       string `json:"outcome"`
	PaymentStatus string `json:"payment_status"`
}

// checkPayment is the client-poll half of payment confirmation. It shares
// the reconciler with the webhook, so whichever signal lands first wins the
// transition and the other becomes a no-op.
func (h *Handler) checkPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	outcome, err := h.reconciler.ConfirmByID(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := order.PaymentPending
	if outcome == order.OutcomePaid || outcome == order.OutcomeAlreadyPaid {
		status = order.PaymentPaid
	}
	respond(w, http.StatusOK, checkPaymentResponse{
		OrderID:       orderID,
		Outcome:       string(outcome),
		PaymentStatus: string(status),
	})
}

// stripeWebhook handles provider confirmation events. The response is 200
// for anything handled or deliberately ignored; only transient failures
// return an error status so the provider retries delivery.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	lg := zctx.From(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondValidation(w, "unreadable request body")
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		lg.Warn("rejected webhook", zap.Error(err))
		respondError(w, http.StatusBadRequest, codeValidation, "invalid signature")
		return
	}

	if event.Type != payment.EventCheckoutCompleted {
		lg.Info("ignoring webhook event", zap.String("type", event.Type))
		respond(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	outcome, err := h.reconciler.ConfirmByPaymentRef(r.Context(), event.Data.Object.ID)
	if errorsIsNotFound(err) {
		// No order carries this session as its payment ref, which happens when
		// checkout failed to record it. The session metadata still names the
		// order, so resolve through it and repair the ref.
		if orderID := event.Data.Object.Metadata["orderId"]; orderID != "" {
			outcome, err = h.reconciler.ConfirmWithSession(r.Context(), orderID, event.Data.Object.ID)
		}
	}
	if err != nil {
		// Unknown session: acknowledge so the provider stops retrying a
		// reference we will never resolve.
		if errorsIsNotFound(err) {
			lg.Warn("webhook for unknown session", zap.String("session_id", event.Data.Object.ID))
			respond(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeDomainError(w, r, err)
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
