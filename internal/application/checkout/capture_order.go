package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const useCaseCaptureOrder = "checkout.capture_order"

// CaptureOrderUseCase completes a buyer-approved order. Only a COMPLETED
// capture counts as success.
type CaptureOrderUseCase struct {
	gateway   Gateway
	publisher domoutbox.Publisher
	instruments
}

func NewCaptureOrderUseCase(
	gateway Gateway,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CaptureOrderUseCase {
	return &CaptureOrderUseCase{
		gateway:     gateway,
		publisher:   publisher,
		instruments: newInstruments(tel, checkoutService),
	}
}

type CaptureOrderInput struct {
	OrderID string
}

type CaptureOrderResult struct {
	OrderID string
	Status  domain.Status
}

// Execute captures the order. A 2xx capture whose status is anything but
// COMPLETED returns ErrNotCompleted.
func (uc *CaptureOrderUseCase) Execute(ctx context.Context, cmd CaptureOrderInput) (_ *CaptureOrderResult, err error) {
	orderID := strings.TrimSpace(cmd.OrderID)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CaptureOrder",
		attribute.String("use_case", useCaseCaptureOrder),
		attribute.String("order.id", orderID),
	)
	ctx, logger := logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCaseCaptureOrder),
		observability.F("order_id", orderID),
	)

	start := time.Now()
	outcome, statusText := "success", "OK"
	var gatewayStatus domain.Status
	var publishErr error

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			outcome, statusText = "error", statusFor(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.observe(useCaseCaptureOrder, outcome, lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if gatewayStatus != "" {
			fields = append(fields, observability.F("gateway_status", string(gatewayStatus)))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if orderID, err = domain.ParseOrderID(orderID); err != nil {
		return nil, err
	}

	order, err := uc.gateway.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	gatewayStatus = order.Status
	span.SetAttributes(attribute.String("order.status", string(order.Status)))

	if !order.Completed() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrNotCompleted, order.Status)
	}

	if publishErr = uc.publish(ctx, uc.publisher, domain.NewOrderCapturedEvent(order)); publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}
	span.AddEvent("order.captured", trace.WithAttributes(attribute.String("order.id", order.ID)))

	return &CaptureOrderResult{OrderID: order.ID, Status: order.Status}, nil
}
