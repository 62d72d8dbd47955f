package http

import (
	"context"
	"net/http"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/app"
	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

// ReturnRequester is the minimal interface needed to open a return request.
type ReturnRequester interface {
	CreateReturnRequest(ctx context.Context, in app.CreateReturnInput) (domain.ReturnRequest, error)
}

// ReturnReviewer is the minimal interface needed to review a return request.
type ReturnReviewer interface {
	ReviewReturnRequest(ctx context.Context, in app.ReviewReturnInput) (app.ReviewResult, error)
}

// RefundProcessor is the minimal interface needed to drive a refund.
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, refundID string) (app.RefundOutcome, error)
}

type createReturnRequest struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

func HandleCreateReturn(svc ReturnRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req createReturnRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		rr, err := svc.CreateReturnRequest(r.Context(), app.CreateReturnInput{
			UserID:  uid,
			OrderID: r.PathValue("id"),
			Type:    domain.ReturnRequestType(req.Type),
			Reason:  req.Reason,
			Note:    req.Note,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newReturnResponse(rr))
	}
}

type reviewReturnRequest struct {
	Approve *bool  `json:"approve"`
	Note    string `json:"note"`
}

type reviewReturnResponse struct {
	ReturnRequest returnResponse  `json:"return_request"`
	Refund        *refundResponse `json:"refund,omitempty"`
}

func HandleReviewReturn(svc ReturnReviewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewer, ok := userID(w, r)
		if !ok {
			return
		}

		var req reviewReturnRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Approve == nil {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "approve is required")
			return
		}

		res, err := svc.ReviewReturnRequest(r.Context(), app.ReviewReturnInput{
			ReturnRequestID: r.PathValue("id"),
			ReviewerID:      reviewer,
			Approve:         *req.Approve,
			Note:            req.Note,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := reviewReturnResponse{ReturnRequest: newReturnResponse(res.ReturnRequest)}
		if res.Refund != nil {
			rf := newRefundResponse(*res.Refund)
			resp.Refund = &rf
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type processRefundResponse struct {
	refundResponse
	Replayed bool   `json:"replayed"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
}

// HandleProcessRefund sends a refund to the gateway. A decline is answered
// with 402 and the recorded reason.
func HandleProcessRefund(svc RefundProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userID(w, r); !ok {
			return
		}

		out, err := svc.ProcessRefund(r.Context(), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := processRefundResponse{refundResponse: newRefundResponse(out.Refund), Replayed: out.Replayed}
		if out.Refund.Status == domain.RefundStatusFailed {
			resp.Error = out.Refund.FailureReason
			resp.Code = codeRefundDeclined
			if rec, ok := w.(*statusRecorder); ok {
				rec.errorCode = codeRefundDeclined
			}
			writeJSON(w, http.StatusPaymentRequired, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
