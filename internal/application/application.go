// Package application holds the use cases that sit between the HTTP boundary
// and the payment gateway.
package application

import "context"

// UseCase is one application operation taking a command and returning a result.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
