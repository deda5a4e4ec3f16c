package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dinetab/dinetab/internal/domain/product"
	"github.com/dinetab/dinetab/internal/domain/voucher"
)

func (h *Handler) kitchenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListPaid(r.Context(), listLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderToView(&orders[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) adminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListRecent(r.Context(), listLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderToView(&orders[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) adminCustomers(w http.ResponseWriter, r *http.Request) {
	leads, err := h.customers.ListRecent(r.Context(), listLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]leadView, 0, len(leads))
	for _, lead := range leads {
		views = append(views, leadView{
			ID:          lead.ID,
			Name:        lead.Name,
			Phone:       lead.Phone,
			Email:       lead.Email,
			TableNumber: lead.TableNumber,
			CreatedAt:   lead.CreatedAt,
		})
	}
	respond(w, http.StatusOK, views)
}

type voucherPayload struct {
	Code                    string    `json:"code"`
	Description             string    `json:"description"`
	DiscountType            string    `json:"discount_type"`
	DiscountValue           int64     `json:"discount_value"`
	MinimumOrderAmountCents int64     `json:"minimum_order_amount_cents"`
	MaximumDiscountCents    int64     `json:"maximum_discount_cents"`
	UsageLimit              int       `json:"usage_limit"`
	ValidFrom               time.Time `json:"valid_from"`
	ValidUntil              time.Time `json:"valid_until"`
	ApplicableProducts      []string  `json:"applicable_products"`
	ApplicableCategories    []string  `json:"applicable_categories"`
}

type voucherView struct {
	voucherPayload
	ID        string `json:"id"`
	UsedCount int    `json:"used_count"`
	Active    bool   `json:"active"`
}

func voucherToView(v *voucher.Voucher) voucherView {
	return voucherView{
		voucherPayload: voucherPayload{
			Code:                    v.Code,
			Description:             v.Description,
			DiscountType:            string(v.DiscountType),
			DiscountValue:           v.DiscountValue,
			MinimumOrderAmountCents: v.MinimumOrderAmountCents,
			MaximumDiscountCents:    v.MaximumDiscountCents,
			UsageLimit:              v.UsageLimit,
			ValidFrom:               v.ValidFrom,
			ValidUntil:              v.ValidUntil,
			ApplicableProducts:      v.ApplicableProducts,
			ApplicableCategories:    v.ApplicableCategories,
		},
		ID:        v.ID,
		UsedCount: v.UsedCount,
		Active:    v.Active,
	}
}

func (p *voucherPayload) validate() string {
	switch {
	case p.Code == "":
		return "code is required"
	case voucher.DiscountType(p.DiscountType) != voucher.DiscountPercentage &&
		voucher.DiscountType(p.DiscountType) != voucher.DiscountFixedAmount:
		return "discount_type must be PERCENTAGE or FIXED_AMOUNT"
	case p.DiscountValue <= 0:
		return "discount_value must be positive"
	case voucher.DiscountType(p.DiscountType) == voucher.DiscountPercentage && p.DiscountValue > 100:
		return "percentage discount cannot exceed 100"
	case p.UsageLimit <= 0:
		return "usage_limit must be positive"
	case !p.ValidUntil.After(p.ValidFrom):
		return "valid_until must be after valid_from"
	}
	return ""
}

func (h *Handler) adminListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.List(r.Context(), listLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]voucherView, 0, len(vouchers))
	for i := range vouchers {
		views = append(views, voucherToView(&vouchers[i]))
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) adminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherPayload
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondValidation(w, msg)
		return
	}

	v := &voucher.Voucher{
		ID:                      uuid.NewString(),
		Code:                    voucher.NormalizeCode(req.Code),
		Description:             req.Description,
		DiscountType:            voucher.DiscountType(req.DiscountType),
		DiscountValue:           req.DiscountValue,
		MinimumOrderAmountCents: req.MinimumOrderAmountCents,
		MaximumDiscountCents:    req.MaximumDiscountCents,
		UsageLimit:              req.UsageLimit,
		ValidFrom:               req.ValidFrom,
		ValidUntil:              req.ValidUntil,
		Active:                  true,
		ApplicableProducts:      req.ApplicableProducts,
		ApplicableCategories:    req.ApplicableCategories,
	}
	if err := h.vouchers.Create(r.Context(), v); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, voucherToView(v))
}

func (h *Handler) adminUpdateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherPayload
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondValidation(w, msg)
		return
	}

	v := &voucher.Voucher{
		ID:                      chi.URLParam(r, "voucherID"),
		Code:                    voucher.NormalizeCode(req.Code),
		Description:             req.Description,
		DiscountType:            voucher.DiscountType(req.DiscountType),
		DiscountValue:           req.DiscountValue,
		MinimumOrderAmountCents: req.MinimumOrderAmountCents,
		MaximumDiscountCents:    req.MaximumDiscountCents,
		UsageLimit:              req.UsageLimit,
		ValidFrom:               req.ValidFrom,
		ValidUntil:              req.ValidUntil,
		ApplicableProducts:      req.ApplicableProducts,
		ApplicableCategories:    req.ApplicableCategories,
	}
	if err := h.vouchers.Update(r.Context(), v); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, voucherToView(v))
}

// adminDeactivateVoucher soft-deletes: historical orders keep referencing
// the code, so vouchers are never removed from the table.
func (h *Handler) adminDeactivateVoucher(w http.ResponseWriter, r *http.Request) {
	if err := h.vouchers.SetActive(r.Context(), chi.URLParam(r, "voucherID"), false); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}

type productPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
}

func (p *productPayload) validate() string {
	switch {
	case p.Name == "":
		return "name is required"
	case p.PriceCents < 0:
		return "price_cents cannot be negative"
	}
	return ""
}

type adminProductView struct {
	productView
	Active bool `json:"active"`
}

func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]adminProductView, 0, len(products))
	for _, p := range products {
		views = append(views, adminProductView{
			productView: productView{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				PriceCents:  p.PriceCents,
				Category:    p.Category,
				ImageURL:    p.ImageURL,
			},
			Active: p.Active,
		})
	}
	respond(w, http.StatusOK, views)
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondValidation(w, msg)
		return
	}

	p := &product.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Active:      true,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, adminProductView{
		productView: productView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
		},
		Active: true,
	})
}

func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := decode(r, &req); err != nil {
		respondValidation(w, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		respondValidation(w, msg)
		return
	}

	p := &product.Product{
		ID:          chi.URLParam(r, "productID"),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
	if err := h.products.Update(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusOK, adminProductView{
		productView: productView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			Category:    p.Category,
			ImageURL:    p.ImageURL,
		},
	})
}

// adminDeactivateProduct hides a product from the menu without deleting it,
// since historical order items snapshot its ID.
func (h *Handler) adminDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.SetActive(r.Context(), chi.URLParam(r, "productID"), false); err != nil {
		writeDomainError(w, r, err)
		return
	}
	respond(w, http.StatusNoContent, nil)
}
