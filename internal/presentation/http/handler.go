package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/textile-storefront/internal/application"
	appinv "github.com/Zhima-Mochi/textile-storefront/internal/application/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/application/welcome"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/fulfillment"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/inventory"
	"github.com/Zhima-Mochi/textile-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability"
	"github.com/Zhima-Mochi/textile-storefront/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	tracerName           = "textile-storefront.http"
	maxBodyBytes         = 1 << 20
)

// CheckoutBuilder turns a checkout form into an order request.
type CheckoutBuilder interface {
	Build(form order.CheckoutForm) (order.Request, error)
}

type Deps struct {
	Checkout    CheckoutBuilder
	SubmitOrder application.UseCase[order.Request, *fulfillment.Result]
	Decrement   application.UseCase[appinv.DecrementCommand, *appinv.DecrementResult]
	Welcome     application.UseCase[welcome.Command, *welcome.Result]
	Stock       inventory.Store
	Journal     fulfillment.Journal
}

type Handler struct {
	deps Deps
	log  observability.Logger

	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		deps:         deps,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	h.route(r, http.MethodPost, "/api/checkout", h.handleCheckout)
	h.route(r, http.MethodGet, "/api/orders/{id}", h.handleGetOrder)
	h.route(r, http.MethodGet, "/api/materials/{id}", h.handleGetMaterial)
	h.route(r, http.MethodPut, "/api/materials/{id}", h.handlePutMaterial)
	h.route(r, http.MethodPost, "/api/materials/{id}/reduce-quantity", h.handleReduceQuantity)
	h.route(r, http.MethodPost, "/api/welcome", h.handleWelcome)
	h.route(r, http.MethodGet, "/health", h.handleHealth)

	return r
}

// route wires one endpoint as Trace → request logger → metrics → access log → handler.
func (h *Handler) route(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	chain := h.withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		chain.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

type checkoutRequest struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	GSTNumber     string `json:"gst_number"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
	ProductID     string `json:"product_id"`
	ProductTitle  string `json:"product_title"`
	Colors        string `json:"colors"`
	Length        string `json:"length"`
	PromoCode     string `json:"promo_code"`
	PaymentMethod string `json:"payment_method"`
	CardNumber    string `json:"card_number"`
	CardExpiry    string `json:"card_expiry"`
	CardCVV       string `json:"card_cvv"`
	UPIID         string `json:"upi_id"`
}

type summaryResponse struct {
	Subtotal        string `json:"subtotal"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	DeliveryFee     string `json:"delivery_fee"`
	Total           string `json:"total"`
	Currency        string `json:"currency"`
	TotalFormatted  string `json:"total_formatted"`
}

type notificationResponse struct {
	Attempted bool   `json:"attempted"`
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

type inventoryResponse struct {
	Attempted bool   `json:"attempted"`
	Granted   bool   `json:"granted"`
	ItemID    string `json:"item_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Remaining int    `json:"remaining"`
	Available int    `json:"available,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type checkoutResponse struct {
	OrderID      string               `json:"order_id"`
	Status       fulfillment.Status   `json:"status"`
	SaleValid    bool                 `json:"sale_valid"`
	Message      string               `json:"message"`
	Summary      summaryResponse      `json:"summary"`
	Notification notificationResponse `json:"notification"`
	Inventory    inventoryResponse    `json:"inventory"`
	MissingField string               `json:"missing_field,omitempty"`
}

type fieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationResponse struct {
	Error  string               `json:"error"`
	Fields []fieldErrorResponse `json:"fields"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	orderReq, err := h.deps.Checkout.Build(order.CheckoutForm(req))
	if err != nil {
		var verrs order.ValidationErrors
		if errors.As(err, &verrs) {
			body := validationResponse{Error: "please correct the highlighted fields"}
			for _, fe := range verrs {
				body.Fields = append(body.Fields, fieldErrorResponse(fe))
			}
			writeJSON(w, http.StatusBadRequest, body)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.deps.SubmitOrder.Execute(r.Context(), orderReq)
	if res == nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, checkoutStatusCode(res.Status), newCheckoutResponse(res))
}

func checkoutStatusCode(s fulfillment.Status) int {
	switch s {
	case fulfillment.StatusCompleted, fulfillment.StatusCompletedNotificationDegraded:
		return http.StatusCreated
	case fulfillment.StatusInsufficientInventory:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func checkoutMessage(res *fulfillment.Result) string {
	switch res.Status {
	case fulfillment.StatusCompleted:
		return "Order placed. Your bill has been sent to your email."
	case fulfillment.StatusCompletedNotificationDegraded:
		return fmt.Sprintf("Order placed. We could not email your bill right now; please keep your order id %s.", res.OrderID)
	case fulfillment.StatusInsufficientInventory:
		return "We could not reserve enough stock for this order. Our team will contact you."
	default:
		return "We could not prepare your bill. Please check your details and try again."
	}
}

func newCheckoutResponse(res *fulfillment.Result) checkoutResponse {
	s := res.Summary
	return checkoutResponse{
		OrderID:   res.OrderID,
		Status:    res.Status,
		SaleValid: res.SaleValid(),
		Message:   checkoutMessage(res),
		Summary: summaryResponse{
			Subtotal:        s.Subtotal.StringFixed(2),
			DiscountPercent: s.DiscountPercent.String(),
			DiscountAmount:  s.DiscountAmount.StringFixed(2),
			DeliveryFee:     s.DeliveryFee.StringFixed(2),
			Total:           s.Total.StringFixed(2),
			Currency:        s.Currency.String(),
			TotalFormatted:  s.Money(s.Total),
		},
		Notification: notificationResponse(res.Notification),
		Inventory: inventoryResponse{
			Attempted: res.Inventory.Attempted,
			Granted:   res.Inventory.Granted,
			ItemID:    res.Inventory.ItemID,
			Requested: res.Inventory.Requested,
			Remaining: res.Inventory.Remaining,
			Available: res.Inventory.Available,
			Reason:    res.Inventory.Reason,
		},
		MissingField: res.MissingField,
	}
}

type orderRecordResponse struct {
	OrderID            string             `json:"order_id"`
	Status             fulfillment.Status `json:"status"`
	Total              string             `json:"total"`
	Currency           string             `json:"currency"`
	NotificationResult string             `json:"notification_result"`
	ItemID             string             `json:"item_id,omitempty"`
	Quantity           int                `json:"quantity,omitempty"`
	InventoryReason    string             `json:"inventory_reason,omitempty"`
	RecordedAt         time.Time          `json:"recorded_at"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Journal.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderRecordResponse{
		OrderID:            rec.OrderID,
		Status:             rec.Status,
		Total:              rec.Total.StringFixed(2),
		Currency:           rec.Currency,
		NotificationResult: rec.NotificationResult,
		ItemID:             rec.ItemID,
		Quantity:           rec.Quantity,
		InventoryReason:    rec.InventoryReason,
		RecordedAt:         rec.RecordedAt,
	})
}

type materialResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Quantity  int       `json:"quantity"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newMaterialResponse(it inventory.Item) materialResponse {
	return materialResponse{
		ID:        it.ID,
		Title:     it.Title,
		Quantity:  it.Quantity,
		IsActive:  it.Active,
		UpdatedAt: it.UpdatedAt,
	}
}

func (h *Handler) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	item, err := h.deps.Stock.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMaterialResponse(item))
}

type putMaterialRequest struct {
	Title    string `json:"title"`
	Quantity *int   `json:"quantity"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) handlePutMaterial(w http.ResponseWriter, r *http.Request) {
	var req putMaterialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, errors.New("quantity is required"))
		return
	}

	item, err := inventory.NewItem(chi.URLParam(r, "id"), req.Title, *req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.IsActive != nil {
		item.Active = *req.IsActive
	}
	if err := h.deps.Stock.Put(r.Context(), item); err != nil {
		writeDomainError(w, err)
		return
	}

	logctx.FromOr(r.Context(), h.log).Info("material_stock_set",
		observability.F("item_id", item.ID),
		observability.F("quantity", item.Quantity),
		observability.F("active", item.Active),
	)
	writeJSON(w, http.StatusOK, newMaterialResponse(item))
}

type reduceQuantityRequest struct {
	QuantityPurchased int `json:"quantity_purchased"`
}

type reduceQuantityResponse struct {
	ItemID    string `json:"item_id"`
	Remaining int    `json:"remaining"`
}

type insufficientStockResponse struct {
	Error     string `json:"error"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (h *Handler) handleReduceQuantity(w http.ResponseWriter, r *http.Request) {
	var req reduceQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	itemID := chi.URLParam(r, "id")

	res, err := h.deps.Decrement.Execute(r.Context(), appinv.DecrementCommand{
		ItemID:   itemID,
		Quantity: req.QuantityPurchased,
	})
	if err != nil {
		if available, ok := inventory.Available(err); ok {
			writeJSON(w, http.StatusBadRequest, insufficientStockResponse{
				Error:     "insufficient quantity available",
				Available: available,
				Requested: req.QuantityPurchased,
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reduceQuantityResponse{ItemID: itemID, Remaining: res.Remaining})
}

type welcomeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type welcomeResponse struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	var req welcomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.deps.Welcome.Execute(r.Context(), welcome.Command(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, welcomeResponse{Outcome: res.Outcome})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeFromContext(parentCtx)

		ctx, span := tracer.Start(parentCtx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withHTTPMetrics records RED metrics on the instruments resolved at construction.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
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
	switch {
	case err == nil:
		writeError(w, http.StatusInternalServerError, errors.New("no result"))
	case errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, fulfillment.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, inventory.ErrUnavailable):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, welcome.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
