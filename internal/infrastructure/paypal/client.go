package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const componentClient = "paypal_client"

// Client talks to the PayPal REST API. Every call obtains a fresh access token;
// nothing is cached between calls.
type Client struct {
	baseURL string
	http    *http.Client
	creds   clientcredentials.Config

	log          observability.Logger
	tracer       observability.Tracer
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client. Its transport is wrapped so
// trace context is still injected.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(cfg config.PayPalConfig, tel observability.Observability, opts ...Option) *Client {
	baseLog := observability.NopLogger()
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}

	c := &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.Secret,
			TokenURL:     cfg.URL + tokenPath,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		log:          baseLog.With(observability.F("component", componentClient)),
		tracer:       tracer,
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(c)
	}

	wrapped := *c.http
	wrapped.Transport = &tracePropagator{base: c.http.Transport}
	c.http = &wrapped
	return c
}

// FetchToken performs one client-credentials exchange.
func (c *Client) FetchToken(ctx context.Context) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := c.instrument(ctx, endpointToken, func(ctx context.Context) error {
		var err error
		tok, err = c.creds.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
		if err != nil {
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil {
				return fmt.Errorf("%w: %w", checkout.ErrTokenUnavailable, &GatewayError{
					Endpoint:   endpointToken,
					StatusCode: rerr.Response.StatusCode,
					Name:       rerr.ErrorCode,
					Message:    rerr.ErrorDescription,
				})
			}
			return fmt.Errorf("%w: %w", checkout.ErrTokenUnavailable, err)
		}
		return nil
	})
	return tok, err
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	tok, err := c.FetchToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// CreateOrder registers req with the gateway and returns the new order.
func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (checkout.Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return checkout.Order{}, fmt.Errorf("paypal: encode order request: %w", err)
	}

	var out orderResponse
	if err := c.post(ctx, endpointCreate, ordersPath, body, &out); err != nil {
		return checkout.Order{}, err
	}
	if out.ID == "" {
		return checkout.Order{}, checkout.ErrOrderIDMissing
	}
	return checkout.Order{ID: out.ID, Status: checkout.Status(out.Status)}, nil
}

// CaptureOrder captures payment for an approved order. Ids outside the
// gateway charset are refused before any request is sent.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (checkout.Order, error) {
	orderID, err := checkout.ParseOrderID(orderID)
	if err != nil {
		return checkout.Order{}, err
	}

	var out orderResponse
	path := fmt.Sprintf(capturePath, url.PathEscape(orderID))
	if err := c.post(ctx, endpointCapture, path, nil, &out); err != nil {
		return checkout.Order{}, err
	}
	if out.ID == "" {
		out.ID = orderID
	}
	return checkout.Order{ID: out.ID, Status: checkout.Status(out.Status)}, nil
}

// post sends body with a bearer token and decodes a 2xx JSON response into out.
func (c *Client) post(ctx context.Context, endpoint, path string, body []byte, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	return c.instrument(ctx, endpoint, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("paypal: %s: build request: %w", endpoint, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("paypal: %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("paypal: %s: read body: %w", endpoint, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return newGatewayError(endpoint, resp.StatusCode, raw)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %s: %v", checkout.ErrMalformedResponse, endpoint, err)
		}
		return nil
	})
}

// instrument wraps one gateway round trip in a span, RED metrics and a failure log.
func (c *Client) instrument(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "paypal."+endpoint,
		attribute.String("peer.service", peerName),
		attribute.String("paypal.endpoint", endpoint),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		fields := []observability.Field{
			observability.F("endpoint", endpoint),
			observability.F("latency_ms", latency.Milliseconds()),
			observability.F("error", err.Error()),
		}
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			span.SetAttributes(attribute.Int("http.status_code", gerr.StatusCode))
			fields = append(fields, observability.F("status", gerr.StatusCode))
			if gerr.DebugID != "" {
				fields = append(fields, observability.F("debug_id", gerr.DebugID))
			}
		}
		logctx.FromOr(ctx, c.log).Warn("gateway_call_failed", fields...)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	c.extCounter.Add(1,
		observability.L("peer", peerName),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	c.extHistogram.Observe(latency.Seconds(),
		observability.L("peer", peerName),
		observability.L("endpoint", endpoint),
	)
	return err
}

func newGatewayError(endpoint string, status int, raw []byte) *GatewayError {
	gerr := &GatewayError{Endpoint: endpoint, StatusCode: status}
	var env errorResponse
	if json.Unmarshal(raw, &env) == nil {
		gerr.Name, gerr.Message, gerr.DebugID = env.Name, env.Message, env.DebugID
		if gerr.Name == "" {
			gerr.Name, gerr.Message = env.Error, env.ErrorDescription
		}
	}
	return gerr
}

// tracePropagator injects the W3C trace context of the request context into
// outbound headers, for token and order calls alike.
type tracePropagator struct {
	base http.RoundTripper
}

func (t *tracePropagator) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))
	return base.RoundTrip(req)
}
