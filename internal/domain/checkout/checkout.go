package checkout

import (
	"errors"
	"strings"
)

var (
	ErrAmountRequired    = errors.New("checkout: amount is required")
	ErrOrderIDRequired   = errors.New("checkout: order id is required")
	ErrOrderIDInvalid    = errors.New("checkout: order id is invalid")
	ErrTokenUnavailable  = errors.New("checkout: access token unavailable")
	ErrGatewayRejected   = errors.New("checkout: gateway rejected the request")
	ErrMalformedResponse = errors.New("checkout: malformed gateway response")
	ErrOrderIDMissing    = errors.New("checkout: gateway response has no order id")
	ErrNotCompleted      = errors.New("checkout: capture did not complete")
)

// Intent tells the gateway what happens once the buyer approves the order.
type Intent string

const (
	IntentCapture Intent = "CAPTURE"
)

// Status is the gateway-side order status.
type Status string

const (
	StatusCreated             Status = "CREATED"
	StatusApproved            Status = "APPROVED"
	StatusCompleted           Status = "COMPLETED"
	StatusPayerActionRequired Status = "PAYER_ACTION_REQUIRED"
)

// Amount is a money value as the gateway expects it: a currency code and a
// decimal string. The value is passed through untouched; the gateway validates it.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	Amount Amount `json:"amount"`
}

// OrderRequest is the body of a create-order call.
type OrderRequest struct {
	Intent        Intent         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// NewOrderRequest builds a single purchase unit capture order for value in currency.
func NewOrderRequest(value, currency string) (OrderRequest, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return OrderRequest{}, ErrAmountRequired
	}
	return OrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{
			{Amount: Amount{CurrencyCode: currency, Value: value}},
		},
	}, nil
}

// Order is the part of a gateway order this service reads back.
type Order struct {
	ID     string
	Status Status
}

func (o Order) Completed() bool { return o.Status == StatusCompleted }

const maxOrderIDLength = 64

// ParseOrderID trims id and checks it against the gateway's id charset
// (letters, digits, '-' and '_'). Anything else never reaches a request path.
func ParseOrderID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrOrderIDRequired
	}
	if len(id) > maxOrderIDLength {
		return "", ErrOrderIDInvalid
	}
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", ErrOrderIDInvalid
		}
	}
	return id, nil
}
