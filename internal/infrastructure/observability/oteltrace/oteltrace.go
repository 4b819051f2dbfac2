package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a Tracer backed by the global OpenTelemetry provider.
// InitProvider must run first for spans to be recorded or exported.
func New(name string) observability.Tracer {
	if name == "" {
		name = "minishop-checkout"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
