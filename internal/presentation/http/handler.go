package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	appcart "github.com/toystore/fulfillment/internal/application/cart"
	appcheckout "github.com/toystore/fulfillment/internal/application/checkout"
	apporder "github.com/toystore/fulfillment/internal/application/order"
	domcart "github.com/toystore/fulfillment/internal/domain/cart"
	domcatalog "github.com/toystore/fulfillment/internal/domain/catalog"
	dominv "github.com/toystore/fulfillment/internal/domain/inventory"
	domorder "github.com/toystore/fulfillment/internal/domain/order"
	"github.com/toystore/fulfillment/internal/observability"
	"github.com/toystore/fulfillment/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerSessionID      = "X-Session-ID"
	headerCustomerID     = "X-Customer-ID"
)

type Handler struct {
	carts    *appcart.Service
	checkout *appcheckout.UseCase
	orders   *apporder.Service
	log      observability.Logger
	tel      observability.Observability

	httpRequests observability.Counter
	httpDuration observability.Histogram
}

func NewHandler(
	carts *appcart.Service,
	checkout *appcheckout.UseCase,
	orders *apporder.Service,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Handler{
		carts:        carts,
		checkout:     checkout,
		orders:       orders,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
		httpRequests: metrics.Counter(observability.MHTTPRequests),
		httpDuration: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace → request logger injection → HTTP metrics → access log → handler.
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(h.log, func(r *http.Request) string {
		return r.Header.Get(headerRequestID)
	}))
	r.Use(h.withHTTPMetrics)
	r.Use(h.withAccessLog)

	r.Get("/health", h.handleHealth)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.handleGetCart)
		r.Delete("/", h.handleClearCart)
		r.Post("/items", h.handleAddItem)
		r.Put("/items/{productID}", h.handleUpdateItem)
		r.Delete("/items/{productID}", h.handleRemoveItem)
	})

	r.Post("/checkout", h.handleCheckout)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleMyOrders)
		r.Get("/{orderID}", h.handleOrderDetails)
		r.Post("/{orderID}/cancel", h.handleCancelOrder)
		r.Post("/{orderID}/confirm", h.handleConfirmOrder)
	})

	return r
}

type cartLineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type cartResponse struct {
	Lines     []cartLineResponse `json:"lines"`
	Total     int64              `json:"total"`
	ItemCount int                `json:"item_count"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	resp := cartResponse{
		Lines:     make([]cartLineResponse, 0, len(c.Lines)),
		Total:     c.Total(),
		ItemCount: c.ItemCount(),
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal(),
		})
	}
	return resp
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	c, err := h.carts.Get(r.Context(), sessionKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	c, err := h.carts.AddItem(r.Context(), sessionKey, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), sessionKey, productID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), sessionKey, productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), sessionKey); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	PaymentMethod  string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key"`
}

type checkoutResponse struct {
	OrderID     string          `json:"order_id"`
	Status      domorder.Status `json:"status"`
	TotalAmount int64           `json:"total_amount"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	sessionKey, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.checkout.Checkout(r.Context(), appcheckout.Input{
		CustomerID:     customerID,
		SessionKey:     sessionKey,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     result.OrderID,
		Status:      result.Status,
		TotalAmount: result.TotalAmount,
	})
}

type orderLineResponse struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type orderResponse struct {
	OrderID       string              `json:"order_id"`
	Status        domorder.Status     `json:"status"`
	TotalAmount   int64               `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Lines         []orderLineResponse `json:"lines"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	resp := orderResponse{
		OrderID:       o.ID,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Lines:         make([]orderLineResponse, 0, len(o.Lines)),
		CreatedAt:     o.CreatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return resp
}

func (h *Handler) handleOrderDetails(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	if err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"), customerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domorder.StatusCancelled)})
}

func (h *Handler) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customerID(w, r)
	if !ok {
		return
	}
	if err := h.orders.RequestConfirmation(r.Context(), chi.URLParam(r, "orderID"), customerID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// customerID reads the authenticated customer identity supplied by the
// identity collaborator. Absent or zero means unauthenticated.
func (h *Handler) customerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(headerCustomerID)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return 0, false
	}
	return id, true
}

func (h *Handler) sessionKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get(headerSessionID)
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("session id is required"))
		return "", false
	}
	return key, true
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected upstream.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := routePattern(r)
		h.httpRequests.Add(1,
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(lrw.status)),
		)
		h.httpDuration.Observe(time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", route),
		)
	})
}

// routePattern returns the low-cardinality chi route template. It is only
// complete after the handler chain has run, so callers read it on the way
// out.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var shortage *dominv.ShortageError
	switch {
	case errors.As(err, &shortage):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       shortage.Error(),
			"product_ids": shortage.ProductIDs,
		})
	case errors.Is(err, appcheckout.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, dominv.ErrConflict):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, appcart.ErrNoSession),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInactive),
		errors.Is(err, dominv.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
