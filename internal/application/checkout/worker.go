package checkout

import (
	"context"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const workerService = "checkout-audit-worker"

// AuditWorker records every checkout event as one structured log line and a
// checkout_events_total sample. It is the hook where captured orders would be
// persisted.
type AuditWorker struct {
	subscriber domoutbox.Subscriber
	instruments
	eventCounter observability.Counter // checkout_events_total{event}
}

func NewAuditWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *AuditWorker {
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		metricsProvider = tel.Metrics()
	}
	return &AuditWorker{
		subscriber:   subscriber,
		instruments:  newInstruments(tel, workerService),
		eventCounter: metricsProvider.Counter(observability.MCheckoutEvents),
	}
}

func (w *AuditWorker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domain.OrderCreatedEvent{}.EventName(), w.handleOrderCreated)
	w.subscriber.Subscribe(domain.OrderCapturedEvent{}.EventName(), w.handleOrderCaptured)
}

func (w *AuditWorker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.OrderCreatedEvent)
	if !ok {
		w.observe("checkout.worker.order_created", "ignored", 0)
		return nil
	}
	return w.record(ctx, "checkout.worker.order_created", "order_created", e.EventName(),
		observability.F("order_id", evt.OrderID),
		observability.F("amount", evt.Amount.Value),
		observability.F("currency", evt.Amount.CurrencyCode),
		observability.F("occurred_at", evt.OccurredAt),
	)
}

func (w *AuditWorker) handleOrderCaptured(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domain.OrderCapturedEvent)
	if !ok {
		w.observe("checkout.worker.order_captured", "ignored", 0)
		return nil
	}
	return w.record(ctx, "checkout.worker.order_captured", "order_captured", e.EventName(),
		observability.F("order_id", evt.OrderID),
		observability.F("gateway_status", string(evt.Status)),
		observability.F("occurred_at", evt.OccurredAt),
	)
}

func (w *AuditWorker) record(ctx context.Context, useCase, msg, event string, fields ...observability.Field) error {
	ctx, span := w.tracer.Start(ctx, spanPrefix+"Audit",
		attribute.String("use_case", useCase),
		attribute.String("event", event),
	)
	start := time.Now()

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCase),
		observability.F("event", event),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	logger.Info(msg, fields...)
	w.eventCounter.Add(1, observability.L("event", event))

	span.SetStatus(codes.Ok, "OK")
	span.End()
	w.observe(useCase, "success", time.Since(start).Seconds())
	return nil
}
