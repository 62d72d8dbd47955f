package http

import (
	"net/http"
)

// OrderHandlerService covers both order endpoints.
type OrderHandlerService interface {
	OrderReader
	OrderCanceller
}

// MetricsProvider observes requests and serves the scrape endpoint.
type MetricsProvider interface {
	RequestObserver
	Handler() http.Handler
}

// Services bundles the handlers' dependencies.
type Services struct {
	Checkout  Checkouter
	Orders    OrderHandlerService
	Payments  PaymentSettler
	Confirm   PaymentConfirmer
	Returns   ReturnRequester
	Reviews   ReturnReviewer
	Refunds   RefundProcessor
	Inventory InventoryAdmin
}

type RouterOptions struct {
	CORSOrigins []string
	Metrics     MetricsProvider
	Health      map[string]Pinger
}

// NewRouter wires every route. Unknown paths get the JSON 404.
func NewRouter(svc Services, opts RouterOptions) http.Handler {
	var obs RequestObserver
	if opts.Metrics != nil {
		obs = opts.Metrics
	}
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, Instrument(name, obs, h))
	}

	route("GET /health", "health", HandleHealth(opts.Health))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	route("POST /checkout", "checkout", HandleCheckout(svc.Checkout))
	route("GET /orders/{id}", "get_order", HandleGetOrder(svc.Orders))
	route("POST /orders/{id}/cancel", "cancel_order", HandleCancelOrder(svc.Orders))
	route("POST /orders/{id}/payments", "settle_payment", HandleSettlePayment(svc.Payments))
	route("POST /orders/{id}/returns", "create_return", HandleCreateReturn(svc.Returns))
	route("POST /payments/webhook", "payment_webhook", HandlePaymentWebhook(svc.Confirm))
	route("POST /payments/callback", "payment_callback", HandlePaymentCallback(svc.Confirm))

	route("POST /admin/returns/{id}/review", "review_return", HandleReviewReturn(svc.Reviews))
	route("POST /admin/refunds/{id}/process", "process_refund", HandleProcessRefund(svc.Refunds))
	route("POST /admin/inventory", "create_inventory", HandleCreateInventory(svc.Inventory))
	route("GET /admin/inventory/{productId}", "get_inventory", HandleGetInventory(svc.Inventory))
	route("POST /admin/inventory/{productId}/restock", "restock", HandleRestock(svc.Inventory))

	mux.HandleFunc("/", notFound)

	return RequestLogger(CORS(opts.CORSOrigins, mux))
}

// notFound answers every unrouted path with the JSON error shape.
func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}
