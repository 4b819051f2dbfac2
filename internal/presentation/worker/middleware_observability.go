package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "event", "handler").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 4+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Subscriber decorates a domoutbox.Subscriber so every registered handler runs
// with an event-scoped logger on its context.
type Subscriber struct {
	next domoutbox.Subscriber
	log  observability.Logger
}

func NewSubscriber(next domoutbox.Subscriber, logger observability.Logger) *Subscriber {
	return &Subscriber{next: next, log: logger}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		base := logctx.FromOr(ctx, s.log)
		ctx = WithEventContext(ctx, base, map[string]string{"event": e.EventName()})
		return h(ctx, e)
	})
}
