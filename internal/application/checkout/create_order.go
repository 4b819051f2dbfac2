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

const useCaseCreateOrder = "checkout.create_order"

// CreateOrderUseCase registers a capture-intent order with the gateway for the
// amount the buyer is about to approve.
type CreateOrderUseCase struct {
	gateway   Gateway
	publisher domoutbox.Publisher
	currency  string
	instruments
}

func NewCreateOrderUseCase(
	gateway Gateway,
	publisher domoutbox.Publisher,
	currency string,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		gateway:     gateway,
		publisher:   publisher,
		currency:    currency,
		instruments: newInstruments(tel, checkoutService),
	}
}

type CreateOrderInput struct {
	Amount string
}

type CreateOrderResult struct {
	OrderID string
	Status  domain.Status
}

// Execute validates the amount, creates the gateway order and publishes
// checkout.order_created.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseCreateOrder),
		attribute.String("checkout.currency", uc.currency),
	)
	ctx, logger := logctx.Enrich(ctx, uc.log, observability.F("use_case", useCaseCreateOrder))

	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string
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

		uc.observe(useCaseCreateOrder, outcome, lat)

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
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	req, err := domain.NewOrderRequest(cmd.Amount, uc.currency)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("checkout.amount", req.PurchaseUnits[0].Amount.Value))

	order, err := uc.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	orderID = order.ID

	if publishErr = uc.publish(ctx, uc.publisher, domain.NewOrderCreatedEvent(order.ID, req.PurchaseUnits[0].Amount)); publishErr != nil {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(attribute.String("order.status", string(order.Status)))
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", order.ID)))

	return &CreateOrderResult{OrderID: order.ID, Status: order.Status}, nil
}
