package oteltrace

import (
	"context"
	"net/http"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitProvider_DisabledStillPropagates(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	tp, err := InitProvider(context.Background(), "minishop-checkout", config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := New("test").Start(context.Background(), "UC.CreateOrder")
	defer span.End()
	require.True(t, span.SpanContext().IsValid())

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	assert.Contains(t, header.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestTracer_StartRecordsAttributes(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prevTP) })

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	_, span := New("").Start(context.Background(), "paypal.orders.capture",
		attribute.String("order.id", "5O190127TN364715T"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "paypal.orders.capture", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("order.id", "5O190127TN364715T"))
}
