package httppresentation

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/paypal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sandbox stands in for the PayPal REST API behind the real client.
type sandbox struct {
	tokenStatus   int
	captureStatus string

	tokenCalls   atomic.Int32
	createCalls  atomic.Int32
	captureCalls atomic.Int32
}

func (sb *sandbox) start(t *testing.T) testServer {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		sb.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if sb.tokenStatus != http.StatusOK {
			w.WriteHeader(sb.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"A21AA-token","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, _ *http.Request) {
		sb.createCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED"}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		sb.captureCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"` + r.PathValue("id") + `","status":"` + sb.captureStatus + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := paypal.New(config.PayPalConfig{
		ClientID: "client-id",
		Secret:   "client-secret",
		URL:      srv.URL,
		Currency: "USD",
		Timeout:  5 * time.Second,
	}, nil, paypal.WithHTTPClient(srv.Client()))
	return newServerWithGateway(client, nil)
}

func TestCreateOrder_TokenFailureWithPayPalClient(t *testing.T) {
	sb := &sandbox{tokenStatus: http.StatusUnauthorized}
	s := sb.start(t)

	rec := s.do(http.MethodPost, "/checkout/create-order", `{"amount":"10.00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":0}`, rec.Body.String())
	assert.EqualValues(t, 1, sb.tokenCalls.Load())
	assert.Zero(t, sb.createCalls.Load())
}

func TestCreateOrder_WithPayPalClient(t *testing.T) {
	sb := &sandbox{tokenStatus: http.StatusOK}
	s := sb.start(t)

	rec := s.do(http.MethodPost, "/checkout/create-order", `{"amount":"10.00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"5O190127TN364715T"}`, rec.Body.String())
	assert.EqualValues(t, 1, sb.createCalls.Load())
}

func TestCompleteOrder_WithPayPalClient(t *testing.T) {
	tests := []struct {
		name        string
		tokenStatus int
		capture     string
		body        string
		want        string
		wantCalls   int32
	}{
		{name: "completed", tokenStatus: http.StatusOK, capture: "COMPLETED", body: `{"orderId":"ORDER-1"}`, want: `"success"`, wantCalls: 1},
		{name: "not completed", tokenStatus: http.StatusOK, capture: "PAYER_ACTION_REQUIRED", body: `{"orderId":"ORDER-1"}`, want: `"error"`, wantCalls: 1},
		{name: "token failure", tokenStatus: http.StatusUnauthorized, capture: "COMPLETED", body: `{"orderId":"ORDER-1"}`, want: `"error"`, wantCalls: 0},
		{name: "parent segment", tokenStatus: http.StatusOK, capture: "COMPLETED", body: `{"orderId":".."}`, want: `"error"`, wantCalls: 0},
		{name: "dot segment", tokenStatus: http.StatusOK, capture: "COMPLETED", body: `{"orderId":"."}`, want: `"error"`, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &sandbox{tokenStatus: tt.tokenStatus, captureStatus: tt.capture}
			s := sb.start(t)

			rec := s.do(http.MethodPost, "/checkout/complete-order", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Equal(t, tt.wantCalls, sb.captureCalls.Load())
		})
	}
}
