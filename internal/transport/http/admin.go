package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// InventoryAdmin is the minimal interface needed for admin inventory endpoints.
type InventoryAdmin interface {
	CreateInventory(ctx context.Context, in app.CreateInventoryInput) (domain.Inventory, error)
	Restock(ctx context.Context, in app.RestockInput) (domain.Inventory, error)
	GetInventory(ctx context.Context, productID int64) (domain.Inventory, error)
}

type createInventoryRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func HandleCreateInventory(svc InventoryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req createInventoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		inv, err := svc.CreateInventory(r.Context(), app.CreateInventoryInput{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UserID:    uid,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newInventoryResponse(inv))
	}
}

func HandleRestock(svc InventoryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		productID, ok := productIDParam(w, r)
		if !ok {
			return
		}

		var req restockRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		inv, err := svc.Restock(r.Context(), app.RestockInput{
			ProductID: productID,
			Quantity:  req.Quantity,
			UserID:    uid,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newInventoryResponse(inv))
	}
}

func HandleGetInventory(svc InventoryAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userID(w, r); !ok {
			return
		}
		productID, ok := productIDParam(w, r)
		if !ok {
			return
		}
		inv, err := svc.GetInventory(r.Context(), productID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newInventoryResponse(inv))
	}
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}
