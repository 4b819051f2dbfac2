package paypal

import (
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

const (
	tokenPath   = "/v1/oauth2/token"
	ordersPath  = "/v2/checkout/orders"
	capturePath = "/v2/checkout/orders/%s/capture"

	peerName = "paypal"

	endpointToken   = "oauth2.token"
	endpointCreate  = "orders.create"
	endpointCapture = "orders.capture"

	maxResponseBytes = 1 << 20
)

// orderResponse covers both the create and the capture payloads; only id and
// status are read.
type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// errorResponse is the gateway's error envelope. OAuth failures use the
// error/error_description pair instead of name/message.
type errorResponse struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	DebugID          string `json:"debug_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// GatewayError is returned for any non-2xx gateway response.
type GatewayError struct {
	Endpoint   string
	StatusCode int
	Name       string
	Message    string
	DebugID    string
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("paypal: %s: status %d", e.Endpoint, e.StatusCode)
	if e.Name != "" {
		msg += ": " + e.Name
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.DebugID != "" {
		msg += " (debug_id " + e.DebugID + ")"
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return checkout.ErrGatewayRejected }
