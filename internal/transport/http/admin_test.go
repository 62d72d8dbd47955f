package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type stubInventory struct {
	inv       domain.Inventory
	err       error
	created   app.CreateInventoryInput
	restocked app.RestockInput
	fetched   int64
}

func (s *stubInventory) CreateInventory(_ context.Context, in app.CreateInventoryInput) (domain.Inventory, error) {
	s.created = in
	return s.inv, s.err
}

func (s *stubInventory) Restock(_ context.Context, in app.RestockInput) (domain.Inventory, error) {
	s.restocked = in
	return s.inv, s.err
}

func (s *stubInventory) GetInventory(_ context.Context, productID int64) (domain.Inventory, error) {
	s.fetched = productID
	return s.inv, s.err
}

func TestHandleCreateInventory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{name: "created", body: `{"product_id":7,"quantity":25}`, expectedStatus: http.StatusCreated},
		{name: "duplicate", body: `{"product_id":7,"quantity":25}`, serviceErr: domain.ErrInventoryExists, expectedStatus: http.StatusConflict},
		{name: "negative quantity", body: `{"product_id":7,"quantity":-1}`, serviceErr: domain.ErrInvalidQuantity, expectedStatus: http.StatusBadRequest},
		{name: "string quantity", body: `{"product_id":7,"quantity":"many"}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubInventory{inv: domain.Inventory{ProductID: 7, QuantityAvailable: 25, Version: 1}, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/admin/inventory", bytes.NewBufferString(tt.body))
			req.Header.Set(userIDHeader, "1")
			rec := httptest.NewRecorder()

			HandleCreateInventory(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated && svc.created.UserID != 1 {
				t.Fatalf("expected acting user 1, got %d", svc.created.UserID)
			}
		})
	}
}

func TestHandleRestock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		productID      string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{name: "restocked", productID: "7", body: `{"quantity":5}`, expectedStatus: http.StatusOK},
		{name: "bad product id", productID: "seven", body: `{"quantity":5}`, expectedStatus: http.StatusBadRequest},
		{name: "zero product id", productID: "0", body: `{"quantity":5}`, expectedStatus: http.StatusBadRequest},
		{name: "unknown product", productID: "9", body: `{"quantity":5}`, serviceErr: domain.ErrInventoryNotFound, expectedStatus: http.StatusNotFound},
		{name: "zero quantity", productID: "7", body: `{"quantity":0}`, serviceErr: domain.ErrInvalidQuantity, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubInventory{inv: domain.Inventory{ProductID: 7, QuantityAvailable: 30, Version: 2}, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/admin/inventory/"+tt.productID+"/restock", bytes.NewBufferString(tt.body))
			req.SetPathValue("productId", tt.productID)
			req.Header.Set(userIDHeader, "1")
			rec := httptest.NewRecorder()

			HandleRestock(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.name == "restocked" {
				if svc.restocked.ProductID != 7 || svc.restocked.Quantity != 5 {
					t.Fatalf("unexpected input %+v", svc.restocked)
				}
				if !strings.Contains(rec.Body.String(), `"quantity_available":30`) {
					t.Fatalf("expected updated stock in response, got %s", rec.Body.String())
				}
			}
		})
	}
}

func TestHandleGetInventory(t *testing.T) {
	t.Parallel()

	svc := &stubInventory{inv: domain.Inventory{ProductID: 7, QuantityAvailable: 3, QuantityReserved: 2, Version: 4}}
	req := httptest.NewRequest(http.MethodGet, "/admin/inventory/7", nil)
	req.SetPathValue("productId", "7")
	req.Header.Set(userIDHeader, "1")
	rec := httptest.NewRecorder()

	HandleGetInventory(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.fetched != 7 {
		t.Fatalf("expected product 7, got %d", svc.fetched)
	}
	if !strings.Contains(rec.Body.String(), `"quantity_reserved":2`) {
		t.Fatalf("expected reserved quantity in response, got %s", rec.Body.String())
	}
}
