package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const (
	paymentPath      = "/payment/auth"
	checkoutFormPath = "/payment/iyzipos/checkoutform/auth/ecom/detail"
	refundPath       = "/v2/payment/refund"

	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20

	statusSuccess = "success"
)

// Client talks to an iyzico-compatible payment API. Transport faults and 5xx
// answers come back as errors wrapping domain.ErrGatewayUnavailable; business
// failures come back as results with Success=false.
type Client struct {
	baseURL   string
	apiKey    string
	secretKey string
	http      *http.Client
	randomKey func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func NewClient(baseURL, apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		secretKey: secretKey,
		http:      &http.Client{Timeout: defaultTimeout},
		randomKey: func() string {
			return strconv.FormatInt(time.Now().UnixMilli(), 10) + uuid.NewString()[:8]
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type paymentCard struct {
	CardHolderName string `json:"cardHolderName,omitempty"`
	CardNumber     string `json:"cardNumber,omitempty"`
	ExpireMonth    string `json:"expireMonth,omitempty"`
	ExpireYear     string `json:"expireYear,omitempty"`
	CVC            string `json:"cvc,omitempty"`
	CardToken      string `json:"cardToken,omitempty"`
	RegisterCard   int    `json:"registerCard"`
}

type buyer struct {
	ID                  string `json:"id"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
}

type address struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	Description string `json:"address"`
}

type basketItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category1 string `json:"category1"`
	ItemType  string `json:"itemType"`
	Price     string `json:"price"`
}

type paymentRequest struct {
	Locale          string       `json:"locale"`
	ConversationID  string       `json:"conversationId"`
	Price           string       `json:"price"`
	PaidPrice       string       `json:"paidPrice"`
	Currency        string       `json:"currency"`
	Installment     int          `json:"installment"`
	BasketID        string       `json:"basketId"`
	PaymentChannel  string       `json:"paymentChannel"`
	PaymentGroup    string       `json:"paymentGroup"`
	PaymentCard     paymentCard  `json:"paymentCard"`
	Buyer           buyer        `json:"buyer"`
	ShippingAddress address      `json:"shippingAddress"`
	BillingAddress  address      `json:"billingAddress"`
	BasketItems     []basketItem `json:"basketItems"`
}

type checkoutFormRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId,omitempty"`
	Token          string `json:"token"`
}

type refundRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId,omitempty"`
	PaymentID      string `json:"paymentId"`
	Price          string `json:"price"`
	Currency       string `json:"currency,omitempty"`
	IP             string `json:"ip,omitempty"`
}

type apiResponse struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode"`
	ErrorMessage   string `json:"errorMessage"`
	ConversationID string `json:"conversationId"`
	PaymentID      string `json:"paymentId"`
	PaymentStatus  string `json:"paymentStatus"`
	HostReference  string `json:"hostReference"`
}

func (c *Client) CreatePayment(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	amount := req.Amount.StringFixed(2)
	allocated := AllocateBasket(req.Lines, req.Amount)
	items := make([]basketItem, len(req.Lines))
	for i, l := range req.Lines {
		items[i] = basketItem{
			ID:        "BI" + strconv.FormatInt(l.ProductID, 10),
			Name:      "Product " + strconv.FormatInt(l.ProductID, 10),
			Category1: "General",
			ItemType:  "PHYSICAL",
			Price:     allocated[i].StringFixed(2),
		}
	}
	addr := address{City: "Istanbul", Country: "Turkey", Description: req.ShippingAddress}

	body := paymentRequest{
		Locale:         "tr",
		ConversationID: req.ConversationID,
		Price:          amount,
		PaidPrice:      amount,
		Currency:       req.Currency,
		Installment:    1,
		BasketID:       "B" + req.ConversationID,
		PaymentChannel: "WEB",
		PaymentGroup:   "PRODUCT",
		PaymentCard: paymentCard{
			CardHolderName: req.Card.HolderName,
			CardNumber:     strings.ReplaceAll(req.Card.Number, " ", ""),
			ExpireMonth:    req.Card.ExpireMonth,
			ExpireYear:     req.Card.ExpireYear,
			CVC:            req.Card.CVC,
			CardToken:      req.Card.Token,
		},
		Buyer: buyer{
			ID:                  strconv.FormatInt(req.BuyerID, 10),
			RegistrationAddress: req.ShippingAddress,
			IP:                  req.BuyerIP,
			City:                addr.City,
			Country:             addr.Country,
		},
		ShippingAddress: addr,
		BillingAddress:  addr,
		BasketItems:     items,
	}

	var resp apiResponse
	if err := c.post(ctx, paymentPath, body, &resp); err != nil {
		return domain.ChargeResult{}, err
	}
	return domain.ChargeResult{
		Success:           resp.Status == statusSuccess,
		ProviderPaymentID: resp.PaymentID,
		ConversationID:    resp.ConversationID,
		ErrorCode:         resp.ErrorCode,
		ErrorMessage:      resp.ErrorMessage,
	}, nil
}

// RetrieveCheckoutForm resolves a hosted checkout token into the payment
// outcome it produced.
func (c *Client) RetrieveCheckoutForm(ctx context.Context, token, conversationID string) (domain.ChargeResult, error) {
	var resp apiResponse
	err := c.post(ctx, checkoutFormPath, checkoutFormRequest{
		Locale:         "tr",
		ConversationID: conversationID,
		Token:          token,
	}, &resp)
	if err != nil {
		return domain.ChargeResult{}, err
	}
	return domain.ChargeResult{
		Success:           resp.Status == statusSuccess && strings.EqualFold(resp.PaymentStatus, statusSuccess),
		ProviderPaymentID: resp.PaymentID,
		ConversationID:    resp.ConversationID,
		ErrorCode:         resp.ErrorCode,
		ErrorMessage:      resp.ErrorMessage,
	}, nil
}

func (c *Client) Refund(ctx context.Context, req domain.RefundCharge) (domain.RefundResult, error) {
	var resp apiResponse
	err := c.post(ctx, refundPath, refundRequest{
		Locale:         "tr",
		ConversationID: req.ConversationID,
		PaymentID:      req.ProviderPaymentID,
		Price:          req.Amount.StringFixed(2),
		Currency:       req.Currency,
		IP:             req.IP,
	}, &resp)
	if err != nil {
		return domain.RefundResult{}, err
	}
	ref := resp.HostReference
	if ref == "" {
		ref = resp.PaymentID
	}
	return domain.RefundResult{
		Success:             resp.Status == statusSuccess,
		ProviderReferenceID: ref,
		ErrorCode:           resp.ErrorCode,
		ErrorMessage:        resp.ErrorMessage,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out *apiResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	rnd := c.randomKey()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-iyzi-rnd", rnd)
	req.Header.Set("Authorization", Authorization(c.apiKey, c.secretKey, rnd, path, body))

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", domain.ErrGatewayUnavailable, path, err)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		log.Warn().Int("status", res.StatusCode).Str("path", path).Msg("payment gateway error")
		return fmt.Errorf("%w: %s returned %d", domain.ErrGatewayUnavailable, path, res.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response (status %d): %v", domain.ErrGatewayUnavailable, path, res.StatusCode, err)
	}
	if out.Status == "" {
		out.Status = "failure"
	}
	return nil
}

// Authorization builds the IYZWSv2 header value: base64 of
// "apiKey:{key}&randomKey:{rnd}&signature:{hex hmac}" where the HMAC-SHA256
// covers rnd, the URI path and the request body.
func Authorization(apiKey, secretKey, rnd, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(rnd))
	mac.Write([]byte(path))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	auth := "apiKey:" + apiKey + "&randomKey:" + rnd + "&signature:" + sig
	return "IYZWSv2 " + base64.StdEncoding.EncodeToString([]byte(auth))
}
