package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type stubCheckout struct {
	res app.CheckoutResult
	err error
	got app.CheckoutInput
}

func (s *stubCheckout) Checkout(_ context.Context, in app.CheckoutInput) (app.CheckoutResult, error) {
	s.got = in
	return s.res, s.err
}

func sampleOrder() domain.Order {
	created := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:              "7f9c2f4e-1111-4222-8333-944455556666",
		OrderNumber:     "ORD-20250101-7F9C2F4E",
		UserID:          10,
		Status:          domain.OrderStatusPendingPayment,
		Subtotal:        decimal.RequireFromString("250.5"),
		Discount:        decimal.Zero,
		ShippingCost:    decimal.RequireFromString("29.9"),
		Total:           decimal.RequireFromString("280.4"),
		Currency:        "TRY",
		ShippingAddress: "Bornova, Izmir",
		Items: []domain.OrderItem{
			{ProductID: 7, Quantity: 2, PriceSnapshot: decimal.RequireFromString("100")},
			{ProductID: 8, Quantity: 1, PriceSnapshot: decimal.RequireFromString("50.5")},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func samplePayment(order domain.Order) domain.Payment {
	return domain.Payment{
		ID:       "pay-1",
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: "TRY",
		Status:   domain.PaymentStatusPending,
	}
}

func TestHandleCheckout(t *testing.T) {
	t.Parallel()

	order := sampleOrder()
	validBody := `{"items":[{"product_id":7,"quantity":2},{"product_id":8,"quantity":1}],"shipping_address":"Bornova, Izmir","payment_method":"credit_card"}`

	tests := []struct {
		name           string
		userID         string
		body           string
		res            app.CheckoutResult
		serviceErr     error
		expectedStatus int
		expectedCode   string
		expectedSubstr string
	}{
		{
			name:           "created",
			userID:         "10",
			body:           validBody,
			res:            app.CheckoutResult{Order: order, Payment: samplePayment(order), Created: true},
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"total":"280.40"`,
		},
		{
			name:           "replayed",
			userID:         "10",
			body:           validBody,
			res:            app.CheckoutResult{Order: order, Payment: samplePayment(order)},
			expectedStatus: http.StatusOK,
			expectedSubstr: `"order_number":"ORD-20250101-7F9C2F4E"`,
		},
		{
			name:           "missing user",
			body:           validBody,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   codeUnauthorized,
		},
		{
			name:           "invalid json",
			userID:         "10",
			body:           `{"items":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "unknown field",
			userID:         "10",
			body:           `{"items":[],"gift_wrap":true}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "client supplied price",
			userID:         "10",
			body:           `{"items":[{"product_id":7,"quantity":2,"unit_price":"0.01"}],"shipping_address":"Bornova, Izmir","payment_method":"credit_card"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidRequestBody,
		},
		{
			name:           "unknown product",
			userID:         "10",
			body:           validBody,
			serviceErr:     domain.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   codeProductNotFound,
		},
		{
			name:           "unpriced product",
			userID:         "10",
			body:           validBody,
			serviceErr:     domain.ErrInvalidPrice,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeInvalidPrice,
		},
		{
			name:           "empty cart",
			userID:         "10",
			body:           `{"items":[]}`,
			serviceErr:     domain.ErrEmptyCart,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   codeEmptyCart,
		},
		{
			name:           "insufficient stock names the product",
			userID:         "10",
			body:           validBody,
			serviceErr:     &domain.StockError{ProductID: 8, Requested: 1, Available: 0},
			expectedStatus: http.StatusConflict,
			expectedCode:   codeInsufficientStock,
			expectedSubstr: "product 8",
		},
		{
			name:           "system busy",
			userID:         "10",
			body:           validBody,
			serviceErr:     domain.ErrSystemBusy,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   codeSystemBusy,
		},
		{
			name:           "coupon rejected",
			userID:         "10",
			body:           validBody,
			serviceErr:     domain.ErrCouponInvalid,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   codeCouponInvalid,
		},
		{
			name:           "internal error hides detail",
			userID:         "10",
			body:           validBody,
			serviceErr:     errors.New("pq: connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   codeInternalError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubCheckout{res: tt.res, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(tt.body))
			if tt.userID != "" {
				req.Header.Set(userIDHeader, tt.userID)
			}
			rec := httptest.NewRecorder()

			HandleCheckout(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			body := rec.Body.String()
			if tt.expectedSubstr != "" && !strings.Contains(body, tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, body)
			}
			if tt.expectedCode != "" {
				var resp errorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if resp.Code != tt.expectedCode {
					t.Fatalf("expected code %s, got %s", tt.expectedCode, resp.Code)
				}
				if tt.expectedCode == codeInternalError && resp.Error != "internal error" {
					t.Fatalf("expected no detail in internal error, got %q", resp.Error)
				}
			}
		})
	}
}

func TestHandleCheckout_PassesInput(t *testing.T) {
	t.Parallel()

	order := sampleOrder()
	svc := &stubCheckout{res: app.CheckoutResult{Order: order, Payment: samplePayment(order), Created: true}}
	body := `{"items":[{"product_id":7,"quantity":2}],"shipping_address":"Bornova, Izmir","payment_method":"credit_card","coupon_code":"SAVE10","notes":"ring twice"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	req.Header.Set(userIDHeader, "10")
	req.Header.Set(idempotencyHeader, " cart-42 ")
	rec := httptest.NewRecorder()

	HandleCheckout(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if svc.got.UserID != 10 || svc.got.CheckoutKey != "cart-42" || svc.got.CouponCode != "SAVE10" {
		t.Fatalf("unexpected input %+v", svc.got)
	}
	if len(svc.got.Items) != 1 || svc.got.Items[0] != (app.CartLine{ProductID: 7, Quantity: 2}) {
		t.Fatalf("unexpected items %+v", svc.got.Items)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Payment == nil || resp.Payment.Status != "pending" {
		t.Fatalf("expected pending payment in response, got %+v", resp.Payment)
	}
	if resp.Items[0].LineTotal != "200.00" {
		t.Fatalf("expected line total 200.00, got %s", resp.Items[0].LineTotal)
	}
}
