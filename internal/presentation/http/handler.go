package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

type (
	CreateOrderUseCase  = application.UseCase[appcheckout.CreateOrderInput, *appcheckout.CreateOrderResult]
	CaptureOrderUseCase = application.UseCase[appcheckout.CaptureOrderInput, *appcheckout.CaptureOrderResult]
)

type Handler struct {
	createOrder  CreateOrderUseCase
	captureOrder CaptureOrderUseCase
	page         PageConfig
	limiter      *rate.Limiter

	log          observability.Logger
	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"

	pathCheckout      = "/checkout"
	pathCreateOrder   = "/checkout/create-order"
	pathCompleteOrder = "/checkout/complete-order"
	pathHealth        = "/health"

	maxBodyBytes = 64 << 10

	captureSuccess = "success"
	captureFailure = "error"
)

// createOrderFailure is the body for every failed create-order call.
var createOrderFailure = map[string]int{"id": 0}

// NewHandler wires the checkout routes. A nil limiter disables rate limiting.
func NewHandler(
	createOrder CreateOrderUseCase,
	captureOrder CaptureOrderUseCase,
	page PageConfig,
	limiter *rate.Limiter,
	logger observability.Logger,
	tel observability.Observability,
) *Handler {
	baseLogger := logger
	if baseLogger == nil && tel != nil {
		baseLogger = tel.Logger()
	}
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		metricsProvider = tel.Metrics()
	}

	return &Handler{
		createOrder:  createOrder,
		captureOrder: captureOrder,
		page:         page,
		limiter:      limiter,
		log:          baseLogger.With(observability.F("component", componentHTTPHandler)),
		reqCounter:   metricsProvider.Counter(observability.MHTTPRequests),
		durHistogram: metricsProvider.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → request logger → HTTP metrics → access log → (rate limit) → handler
	h.muxHandle(mux, http.MethodGet, pathCheckout, http.HandlerFunc(h.handleCheckoutPage))
	h.muxHandle(mux, http.MethodPost, pathCreateOrder, h.withRateLimit(createOrderFailure, http.HandlerFunc(h.handleCreateOrder)))
	h.muxHandle(mux, http.MethodPost, pathCompleteOrder, h.withRateLimit(captureFailure, http.HandlerFunc(h.handleCompleteOrder)))
	h.muxHandle(mux, http.MethodGet, pathHealth, http.HandlerFunc(h.handleHealth))

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, path string, handler http.Handler) {
	route := method + " " + path
	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		// Stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

func (h *Handler) handleCheckoutPage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := checkoutPage.Execute(&buf, pageData{
		PageConfig:        h.page,
		CreateOrderPath:   pathCreateOrder,
		CompleteOrderPath: pathCompleteOrder,
	})
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Error("page_render_failed", observability.F("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type createOrderRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// handleCreateOrder answers {"id":"<order id>"} or {"id":0}.
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logctx.FromOr(r.Context(), h.log).Info("request_rejected", observability.F("error", err.Error()))
		writeJSON(w, http.StatusOK, createOrderFailure)
		return
	}

	result, err := h.createOrder.Execute(r.Context(), appcheckout.CreateOrderInput{
		Amount: amountText(req.Amount),
	})
	if err != nil {
		writeJSON(w, http.StatusOK, createOrderFailure)
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{ID: result.OrderID})
}

type completeOrderRequest struct {
	OrderID string `json:"orderId"`
}

// handleCompleteOrder answers the JSON string "success" or "error".
func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logctx.FromOr(r.Context(), h.log).Info("request_rejected", observability.F("error", err.Error()))
		writeJSON(w, http.StatusOK, captureFailure)
		return
	}

	if _, err := h.captureOrder.Execute(r.Context(), appcheckout.CaptureOrderInput{OrderID: req.OrderID}); err != nil {
		writeJSON(w, http.StatusOK, captureFailure)
		return
	}

	writeJSON(w, http.StatusOK, captureSuccess)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// amountText accepts the amount as a JSON string or number. Anything else,
// including null, yields "" and is rejected by the use case.
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	default:
		return ""
	}
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
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected instruments.
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
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body has trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
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
