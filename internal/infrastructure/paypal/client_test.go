package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// fakeGateway is a minimal PayPal stand-in. Handlers left nil answer 404.
type fakeGateway struct {
	token   http.HandlerFunc
	create  http.HandlerFunc
	capture http.HandlerFunc

	tokenCalls   atomic.Int32
	createCalls  atomic.Int32
	captureCalls atomic.Int32
}

func (g *fakeGateway) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenCalls.Add(1)
		serveOr404(g.token, w, r)
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		g.createCalls.Add(1)
		serveOr404(g.create, w, r)
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		g.captureCalls.Add(1)
		serveOr404(g.capture, w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serveOr404(h http.HandlerFunc, w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func okToken(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok, "token request uses basic auth")
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		writeJSON(w, http.StatusOK, `{"access_token":"A21AA-token","token_type":"Bearer","expires_in":32400}`)
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return New(config.PayPalConfig{
		ClientID: "client-id",
		Secret:   "client-secret",
		URL:      srv.URL,
		Currency: "USD",
		Timeout:  5 * time.Second,
	}, nil, WithHTTPClient(srv.Client()))
}

func TestFetchToken(t *testing.T) {
	g := &fakeGateway{token: okToken(t)}
	c := newTestClient(g.start(t))

	tok, err := c.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A21AA-token", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(32400*time.Second), tok.Expiry, time.Minute)
}

func TestFetchToken_Rejected(t *testing.T) {
	g := &fakeGateway{token: func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"Client Authentication failed"}`)
	}}
	c := newTestClient(g.start(t))

	_, err := c.FetchToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, checkout.ErrTokenUnavailable)

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusUnauthorized, gerr.StatusCode)
	assert.Equal(t, "invalid_client", gerr.Name)
}

func TestCreateOrder(t *testing.T) {
	g := &fakeGateway{
		token: okToken(t),
		create: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer A21AA-token", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "CAPTURE", body["intent"])
			units := body["purchase_units"].([]any)
			require.Len(t, units, 1)
			amount := units[0].(map[string]any)["amount"].(map[string]any)
			assert.Equal(t, "USD", amount["currency_code"])
			assert.Equal(t, "12.50", amount["value"])

			writeJSON(w, http.StatusCreated, `{"id":"5O190127TN364715T","status":"CREATED","links":[]}`)
		},
	}
	c := newTestClient(g.start(t))

	req, err := checkout.NewOrderRequest("12.50", "USD")
	require.NoError(t, err)

	order, err := c.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, checkout.StatusCreated, order.Status)
	assert.EqualValues(t, 1, g.tokenCalls.Load())
}

func TestCreateOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		create  http.HandlerFunc
		wantErr error
	}{
		{
			name: "gateway rejects",
			create: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","message":"bad amount","debug_id":"abc123"}`)
			},
			wantErr: checkout.ErrGatewayRejected,
		},
		{
			name: "unparsable body",
			create: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusCreated, `not json`)
			},
			wantErr: checkout.ErrMalformedResponse,
		},
		{
			name: "no id",
			create: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusCreated, `{"status":"CREATED"}`)
			},
			wantErr: checkout.ErrOrderIDMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGateway{token: okToken(t), create: tt.create}
			c := newTestClient(g.start(t))

			req, err := checkout.NewOrderRequest("1.00", "USD")
			require.NoError(t, err)

			_, err = c.CreateOrder(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateOrder_GatewayErrorDetails(t *testing.T) {
	g := &fakeGateway{
		token: okToken(t),
		create: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"name":"INVALID_REQUEST","message":"Request is not well-formed","debug_id":"f00ba5"}`)
		},
	}
	c := newTestClient(g.start(t))

	req, _ := checkout.NewOrderRequest("1.00", "USD")
	_, err := c.CreateOrder(context.Background(), req)

	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, endpointCreate, gerr.Endpoint)
	assert.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", gerr.Name)
	assert.Equal(t, "f00ba5", gerr.DebugID)
	assert.Contains(t, gerr.Error(), "debug_id f00ba5")
}

func TestCreateOrder_NoOrderCallWithoutToken(t *testing.T) {
	g := &fakeGateway{
		token: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{}`)
		},
		create: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, `{"id":"never"}`)
		},
	}
	c := newTestClient(g.start(t))

	req, _ := checkout.NewOrderRequest("1.00", "USD")
	_, err := c.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, checkout.ErrTokenUnavailable)
	assert.Zero(t, g.createCalls.Load())
}

func TestCaptureOrder(t *testing.T) {
	var gotID string
	g := &fakeGateway{
		token: okToken(t),
		capture: func(w http.ResponseWriter, r *http.Request) {
			gotID = r.PathValue("id")
			assert.Equal(t, "Bearer A21AA-token", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			assert.Empty(t, body)
			writeJSON(w, http.StatusCreated, `{"id":"5O190127TN364715T","status":"COMPLETED"}`)
		},
	}
	c := newTestClient(g.start(t))

	order, err := c.CaptureOrder(context.Background(), "5O190127TN364715T")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", gotID)
	assert.True(t, order.Completed())
}

func TestCaptureOrder_StatusPassthrough(t *testing.T) {
	g := &fakeGateway{
		token: okToken(t),
		capture: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"status":"PAYER_ACTION_REQUIRED"}`)
		},
	}
	c := newTestClient(g.start(t))

	order, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", order.ID, "falls back to the requested id")
	assert.Equal(t, checkout.StatusPayerActionRequired, order.Status)
	assert.False(t, order.Completed())
}

func TestCaptureOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		capture http.HandlerFunc
		wantErr error
	}{
		{
			name: "already captured",
			capture: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnprocessableEntity, `{"name":"UNPROCESSABLE_ENTITY","message":"ORDER_ALREADY_CAPTURED","debug_id":"f00d"}`)
			},
			wantErr: checkout.ErrGatewayRejected,
		},
		{
			name: "server error",
			capture: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusInternalServerError, `{"name":"INTERNAL_SERVER_ERROR"}`)
			},
			wantErr: checkout.ErrGatewayRejected,
		},
		{
			name: "unparsable body",
			capture: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusCreated, `not json`)
			},
			wantErr: checkout.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &fakeGateway{token: okToken(t), capture: tt.capture}
			c := newTestClient(g.start(t))

			_, err := c.CaptureOrder(context.Background(), "ORDER-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.EqualValues(t, 1, g.captureCalls.Load())
		})
	}
}

func TestCaptureOrder_EmptyBodyIsNotCompleted(t *testing.T) {
	g := &fakeGateway{
		token: okToken(t),
		capture: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{}`)
		},
	}
	c := newTestClient(g.start(t))

	order, err := c.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Empty(t, order.Status)
	assert.False(t, order.Completed())
}

func TestCaptureOrder_RejectsUnsafeID(t *testing.T) {
	for _, id := range []string{".", "..", "a b", "a/b", "../../v1/oauth2/token"} {
		t.Run(id, func(t *testing.T) {
			g := &fakeGateway{
				token: okToken(t),
				capture: func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusOK, `{"status":"COMPLETED"}`)
				},
			}
			c := newTestClient(g.start(t))

			_, err := c.CaptureOrder(context.Background(), id)
			assert.ErrorIs(t, err, checkout.ErrOrderIDInvalid)
			assert.Zero(t, g.tokenCalls.Load())
			assert.Zero(t, g.captureCalls.Load())
		})
	}
}

func TestCaptureOrder_EmptyID(t *testing.T) {
	g := &fakeGateway{token: okToken(t)}
	c := newTestClient(g.start(t))

	_, err := c.CaptureOrder(context.Background(), "")
	assert.ErrorIs(t, err, checkout.ErrOrderIDRequired)
	assert.Zero(t, g.tokenCalls.Load())
}
