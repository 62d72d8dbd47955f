package http

import (
	"context"
	"net/http"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// OrderReader is the minimal interface needed to show an order.
type OrderReader interface {
	GetOrder(ctx context.Context, userID int64, orderID string) (app.OrderView, error)
}

// OrderCanceller is the minimal interface needed to cancel an order.
type OrderCanceller interface {
	CancelOrder(ctx context.Context, userID int64, orderID string) (domain.Order, error)
}

func HandleGetOrder(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		view, err := svc.GetOrder(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderResponse(view.Order, &view.Payment))
	}
}

func HandleCancelOrder(svc OrderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		order, err := svc.CancelOrder(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderResponse(order, nil))
	}
}
