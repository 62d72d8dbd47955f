package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	codeNotFound             = "not_found"
	codeUnauthorized         = "unauthorized"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidID            = "invalid_id"
	codeInvalidQuantity      = "invalid_quantity"
	codeInvalidPrice         = "invalid_price"
	codeEmptyCart            = "empty_cart"
	codeShippingAddress      = "shipping_address_required"
	codePaymentMethod        = "payment_method_required"
	codeCardRequired         = "card_required"
	codeInvalidReturnType    = "invalid_return_type"
	codeInvalidWebhook       = "invalid_webhook"
	codeInvalidSignature     = "invalid_signature"
	codeInventoryNotFound    = "inventory_not_found"
	codeProductNotFound      = "product_not_found"
	codeOrderNotFound        = "order_not_found"
	codePaymentNotFound      = "payment_not_found"
	codeReturnNotFound       = "return_request_not_found"
	codeRefundNotFound       = "refund_not_found"
	codeCouponNotFound       = "coupon_not_found"
	codeInsufficientStock    = "insufficient_stock"
	codeConcurrencyConflict  = "concurrency_conflict"
	codeInventoryExists      = "inventory_exists"
	codeInvalidTransition    = "invalid_transition"
	codeOrderNotCancellable  = "order_not_cancellable"
	codeOrderNotPayable      = "order_not_payable"
	codeAlreadyPaid          = "already_paid"
	codePaymentInProgress    = "payment_in_progress"
	codeIdempotencyConflict  = "idempotency_conflict"
	codeActiveReturnExists   = "active_return_exists"
	codeReturnNotAllowed     = "return_not_allowed"
	codeReturnReviewed       = "return_already_reviewed"
	codeRefundInProgress     = "refund_in_progress"
	codeCouponInvalid        = "coupon_invalid"
	codeMissingProviderRef   = "missing_provider_payment"
	codePaymentDeclined      = "payment_declined"
	codeRefundDeclined       = "refund_declined"
	codeSystemBusy           = "system_busy"
	codeGatewayUnavailable   = "gateway_unavailable"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors is checked in order with errors.Is.
var serviceErrors = []errorMapping{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrEmptyCart, http.StatusBadRequest, codeEmptyCart},
	{domain.ErrShippingAddressMissing, http.StatusBadRequest, codeShippingAddress},
	{domain.ErrPaymentMethodMissing, http.StatusBadRequest, codePaymentMethod},
	{domain.ErrCardRequired, http.StatusBadRequest, codeCardRequired},
	{domain.ErrInvalidReturnType, http.StatusBadRequest, codeInvalidReturnType},
	{domain.ErrInvalidWebhook, http.StatusBadRequest, codeInvalidWebhook},
	{domain.ErrInvalidSignature, http.StatusUnauthorized, codeInvalidSignature},

	{domain.ErrInventoryNotFound, http.StatusNotFound, codeInventoryNotFound},
	{domain.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrPaymentNotFound, http.StatusNotFound, codePaymentNotFound},
	{domain.ErrReturnRequestNotFound, http.StatusNotFound, codeReturnNotFound},
	{domain.ErrRefundNotFound, http.StatusNotFound, codeRefundNotFound},
	{domain.ErrCouponNotFound, http.StatusUnprocessableEntity, codeCouponNotFound},

	{domain.ErrInsufficientStock, http.StatusConflict, codeInsufficientStock},
	{domain.ErrConcurrencyConflict, http.StatusConflict, codeConcurrencyConflict},
	{domain.ErrInventoryExists, http.StatusConflict, codeInventoryExists},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrOrderNotCancellable, http.StatusConflict, codeOrderNotCancellable},
	{domain.ErrOrderNotPayable, http.StatusConflict, codeOrderNotPayable},
	{domain.ErrAlreadyPaid, http.StatusConflict, codeAlreadyPaid},
	{domain.ErrPaymentInProgress, http.StatusConflict, codePaymentInProgress},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrActiveReturnExists, http.StatusConflict, codeActiveReturnExists},
	{domain.ErrReturnNotAllowed, http.StatusConflict, codeReturnNotAllowed},
	{domain.ErrReturnAlreadyReviewed, http.StatusConflict, codeReturnReviewed},
	{domain.ErrRefundInProgress, http.StatusConflict, codeRefundInProgress},
	{domain.ErrCouponInvalid, http.StatusUnprocessableEntity, codeCouponInvalid},
	{domain.ErrMissingProviderPayment, http.StatusUnprocessableEntity, codeMissingProviderRef},

	{domain.ErrSystemBusy, http.StatusServiceUnavailable, codeSystemBusy},
	{domain.ErrGatewayUnavailable, http.StatusBadGateway, codeGatewayUnavailable},
}

// writeServiceError maps a service error to its response. Unknown errors are
// logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			// Wrapped infrastructure detail stays in the log.
			msg := err.Error()
			if m.status == http.StatusBadGateway {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("gateway unavailable")
				msg = m.err.Error()
			}
			writeError(w, m.status, m.code, msg)
			return
		}
	}

	if errors.Is(err, context.Canceled) {
		log.Debug().Str("path", r.URL.Path).Msg("request cancelled by client")
	} else {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("unhandled service error")
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.errorCode = code
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
