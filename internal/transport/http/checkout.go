package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
)

// Checkouter is the minimal interface needed to place an order.
type Checkouter interface {
	Checkout(ctx context.Context, in app.CheckoutInput) (app.CheckoutResult, error)
}

// Prices come from the catalog; a unit_price field is rejected as unknown.
type checkoutItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items"`
	ShippingAddress string                `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	CouponCode      string                `json:"coupon_code"`
	Notes           string                `json:"notes"`
}

// HandleCheckout returns an HTTP handler that turns a cart into a pending order.
// A repeated Idempotency-Key returns the first order with 200.
func HandleCheckout(svc Checkouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req checkoutRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		items := make([]app.CartLine, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, app.CartLine{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}

		res, err := svc.Checkout(r.Context(), app.CheckoutInput{
			UserID:          uid,
			Items:           items,
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			CouponCode:      req.CouponCode,
			Notes:           req.Notes,
			CheckoutKey:     strings.TrimSpace(r.Header.Get(idempotencyHeader)),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, newOrderResponse(res.Order, &res.Payment))
	}
}
