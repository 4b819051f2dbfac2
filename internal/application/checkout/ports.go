package checkout

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

// Gateway is the payment gateway as the checkout use cases see it. Token
// handling stays behind this port.
type Gateway interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (domain.Order, error)
}
