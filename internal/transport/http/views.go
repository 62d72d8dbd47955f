package http

import (
	"time"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

type orderItemResponse struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type paymentResponse struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	ProviderReferenceID string `json:"provider_reference_id,omitempty"`
	ErrorMessage        string `json:"error_message,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	Subtotal        string              `json:"subtotal"`
	Discount        string              `json:"discount"`
	ShippingCost    string              `json:"shipping_cost"`
	Total           string              `json:"total"`
	Currency        string              `json:"currency"`
	ShippingAddress string              `json:"shipping_address"`
	CouponCode      string              `json:"coupon_code,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Items           []orderItemResponse `json:"items"`
	Payment         *paymentResponse    `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

func newOrderResponse(o domain.Order, p *domain.Payment) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.PriceSnapshot.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		Subtotal:        o.Subtotal.StringFixed(2),
		Discount:        o.Discount.StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		CouponCode:      o.CouponCode,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		CancelledAt:     o.CancelledAt,
	}
	if p != nil && p.ID != "" {
		pr := newPaymentResponse(*p)
		resp.Payment = &pr
	}
	return resp
}

func newPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:                  p.ID,
		Status:              string(p.Status),
		Amount:              p.Amount.StringFixed(2),
		Currency:            p.Currency,
		ProviderReferenceID: p.ProviderReferenceID,
		ErrorMessage:        p.ErrorMessage,
	}
}

type returnResponse struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	Note            string     `json:"note,omitempty"`
	RequestedAmount string     `json:"requested_amount"`
	ReviewNote      string     `json:"review_note,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newReturnResponse(rr domain.ReturnRequest) returnResponse {
	return returnResponse{
		ID:              rr.ID,
		OrderID:         rr.OrderID,
		Type:            string(rr.Type),
		Status:          string(rr.Status),
		Reason:          rr.Reason,
		Note:            rr.RequestNote,
		RequestedAmount: rr.RequestedAmount.StringFixed(2),
		ReviewNote:      rr.ReviewNote,
		ReviewedAt:      rr.ReviewedAt,
		CreatedAt:       rr.CreatedAt,
	}
}

type refundResponse struct {
	ID               string     `json:"id"`
	ReturnRequestID  string     `json:"return_request_id"`
	OrderID          string     `json:"order_id"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	ProviderRefundID string     `json:"provider_refund_id,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	ErrorCode        string     `json:"error_code,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

func newRefundResponse(rf domain.RefundRequest) refundResponse {
	return refundResponse{
		ID:               rf.ID,
		ReturnRequestID:  rf.ReturnRequestID,
		OrderID:          rf.OrderID,
		Amount:           rf.Amount.StringFixed(2),
		Currency:         rf.Currency,
		Status:           string(rf.Status),
		ProviderRefundID: rf.ProviderRefundID,
		FailureReason:    rf.FailureReason,
		ErrorCode:        rf.ErrorCode,
		ProcessedAt:      rf.ProcessedAt,
	}
}

type confirmationResponse struct {
	OrderID       string `json:"order_id"`
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status"`
	Applied       bool   `json:"applied"`
}

func newConfirmationResponse(res app.ConfirmationResult) confirmationResponse {
	return confirmationResponse{
		OrderID:       res.OrderID,
		OrderStatus:   string(res.OrderStatus),
		PaymentStatus: string(res.PaymentStatus),
		Applied:       res.Applied,
	}
}

type inventoryResponse struct {
	ProductID         int64     `json:"product_id"`
	QuantityAvailable int       `json:"quantity_available"`
	QuantityReserved  int       `json:"quantity_reserved"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func newInventoryResponse(inv domain.Inventory) inventoryResponse {
	return inventoryResponse{
		ProductID:         inv.ProductID,
		QuantityAvailable: inv.QuantityAvailable,
		QuantityReserved:  inv.QuantityReserved,
		Version:           inv.Version,
		UpdatedAt:         inv.UpdatedAt,
	}
}
