package contracts

import "context"

// Transactor runs fn inside a unit of work carried by the context.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
