package checkout

import (
	"context"
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	checkoutService = "checkout-service"
	spanPrefix      = "UC."
	publishPeer     = "outbox"
	publishTimeout  = 300 * time.Millisecond
)

// instruments are the observability handles shared by the checkout use cases.
type instruments struct {
	tracer observability.Tracer
	log    observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func newInstruments(tel observability.Observability, service string) instruments {
	baseLog := observability.NopLogger()
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}

	return instruments{
		tracer:       tracer,
		log:          baseLog.With(observability.F("service", service)),
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

func (in instruments) observe(useCase, outcome string, latencySeconds float64) {
	in.reqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	in.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCase),
	)
}

// publish hands e to the bus under a short timeout. The result never changes
// the caller's outcome; it is only measured and returned for logging.
func (in instruments) publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := publisher.Publish(pubCtx, e)
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}

	in.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}

// statusFor maps a failure onto the status text recorded on spans and logs.
func statusFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrAmountRequired):
		return "AMOUNT_REQUIRED"
	case errors.Is(err, domain.ErrOrderIDRequired):
		return "ORDER_ID_REQUIRED"
	case errors.Is(err, domain.ErrOrderIDInvalid):
		return "ORDER_ID_INVALID"
	case errors.Is(err, domain.ErrTokenUnavailable):
		return "TOKEN_UNAVAILABLE"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "GATEWAY_REJECTED"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "MALFORMED_RESPONSE"
	case errors.Is(err, domain.ErrOrderIDMissing):
		return "ORDER_ID_MISSING"
	case errors.Is(err, domain.ErrNotCompleted):
		return "NOT_COMPLETED"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "GATEWAY_CALL_FAILED"
	}
}
