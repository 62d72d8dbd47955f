package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const signatureHeader = "X-IYZ-SIGNATURE-V3"

// PaymentSettler is the minimal interface needed to charge an order.
type PaymentSettler interface {
	Settle(ctx context.Context, in app.SettleInput) (app.PaymentResult, error)
}

// PaymentConfirmer applies asynchronous gateway confirmations.
type PaymentConfirmer interface {
	HandleWebhook(ctx context.Context, in app.WebhookInput) (app.ConfirmationResult, error)
	VerifyCheckoutToken(ctx context.Context, token, conversationID string) (app.ConfirmationResult, error)
}

type settleRequest struct {
	CardHolderName string `json:"card_holder_name"`
	CardNumber     string `json:"card_number"`
	ExpireMonth    string `json:"expire_month"`
	ExpireYear     string `json:"expire_year"`
	CVC            string `json:"cvc"`
	CardToken      string `json:"card_token"`
}

type settleResponse struct {
	OrderID             string `json:"order_id"`
	OrderNumber         string `json:"order_number"`
	PaymentID           string `json:"payment_id"`
	Status              string `json:"status"`
	ProviderReferenceID string `json:"provider_reference_id,omitempty"`
	IdempotencyKey      string `json:"idempotency_key"`
	Replayed            bool   `json:"replayed"`
	Error               string `json:"error,omitempty"`
	Code                string `json:"code,omitempty"`
}

// HandleSettlePayment charges the caller's pending order. A decline is
// answered with 402 and the gateway's message.
func HandleSettlePayment(svc PaymentSettler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req settleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.Settle(r.Context(), app.SettleInput{
			OrderID:        r.PathValue("id"),
			UserID:         uid,
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyHeader)),
			Card: domain.Card{
				HolderName:  req.CardHolderName,
				Number:      req.CardNumber,
				ExpireMonth: req.ExpireMonth,
				ExpireYear:  req.ExpireYear,
				CVC:         req.CVC,
				Token:       req.CardToken,
			},
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := settleResponse{
			OrderID:             res.OrderID,
			OrderNumber:         res.OrderNumber,
			PaymentID:           res.PaymentID,
			Status:              string(res.Status),
			ProviderReferenceID: res.ProviderReferenceID,
			IdempotencyKey:      res.IdempotencyKey,
			Replayed:            res.Replayed,
		}
		if res.Status == domain.PaymentStatusFailed {
			resp.Error = res.ErrorMessage
			resp.Code = codePaymentDeclined
			if rec, ok := w.(*statusRecorder); ok {
				rec.errorCode = codePaymentDeclined
			}
			writeJSON(w, http.StatusPaymentRequired, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// webhookRequest uses the gateway's field names.
type webhookRequest struct {
	EventType      string `json:"iyziEventType"`
	PaymentID      string `json:"paymentId"`
	ConversationID string `json:"paymentConversationId"`
	Status         string `json:"status"`
	Token          string `json:"token"`
}

func HandlePaymentWebhook(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		// Gateway payloads carry more fields than we read.
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.HandleWebhook(r.Context(), app.WebhookInput{
			EventType:      req.EventType,
			PaymentID:      req.PaymentID,
			ConversationID: req.ConversationID,
			Status:         req.Status,
			Token:          req.Token,
			Signature:      r.Header.Get(signatureHeader),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newConfirmationResponse(res))
	}
}

// HandlePaymentCallback receives the hosted checkout redirect, which posts
// the token as a form field.
func HandlePaymentCallback(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		token := strings.TrimSpace(r.PostForm.Get("token"))
		if token == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "token is required")
			return
		}

		res, err := svc.VerifyCheckoutToken(r.Context(), token, r.PostForm.Get("conversationId"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newConfirmationResponse(res))
	}
}
