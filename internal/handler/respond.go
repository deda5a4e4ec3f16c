package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dinetab/dinetab/internal/domain/customer"
	"github.com/dinetab/dinetab/internal/domain/order"
	"github.com/dinetab/dinetab/internal/domain/product"
	"github.com/dinetab/dinetab/internal/domain/voucher"
)

// Error codes surfaced in the JSON error envelope.
const (
	codeValidation     = "VALIDATION_ERROR"
	codeNotFound       = "NOT_FOUND"
	codeIneligible     = "VOUCHER_INELIGIBLE"
	codeBelowMinimum   = "BELOW_MINIMUM_TOTAL"
	codePaymentService = "PAYMENT_SERVICE_ERROR"
	codeUnauthorized   = "UNAUTHORIZED"
	codeInternal       = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respond(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func respondValidation(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, codeValidation, message)
}

// writeDomainError maps domain errors onto the error envelope. Unrecognized
// errors are logged and surfaced as an opaque 500 so internals never leak.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ineligible   *voucher.IneligibleError
		belowMin     *order.BelowMinimumTotalError
		badQty       *order.InvalidQuantityError
		missingProd  *order.ProductNotFoundError
		paymentError *order.PaymentServiceError
	)

	switch {
	case errors.As(err, &ineligible):
		respond(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    codeIneligible,
			Message: ineligible.Message(),
			Reason:  string(ineligible.Reason),
		}})
	case errors.As(err, &belowMin):
		respondError(w, http.StatusBadRequest, codeBelowMinimum, belowMin.Error())
	case errors.As(err, &badQty):
		respondValidation(w, badQty.Error())
	case errors.Is(err, order.ErrEmptyItems):
		respondValidation(w, err.Error())
	case errors.As(err, &missingProd):
		respondError(w, http.StatusNotFound, codeNotFound, missingProd.Error())
	case errorsIsNotFound(err):
		respondError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.As(err, &paymentError):
		respondError(w, http.StatusBadGateway, codePaymentService, "payment service unavailable")
	default:
		zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, order.ErrNotFound) ||
		errors.Is(err, voucher.ErrNotFound) ||
		errors.Is(err, customer.ErrNotFound) ||
		errors.Is(err, product.ErrNotFound)
}

// decode parses a JSON request body into dst.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
