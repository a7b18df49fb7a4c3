// storage/gateway.go
package storage

import "context"

// Handle runs parameterized statements. Statements use `?` placeholders and
// every value travels as a bound argument; nothing is ever spliced into the
// statement text.
type Handle interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, statement string, args ...any) (int64, error)
	// Select runs a query and scans the rows into dest, which is a pointer
	// to a slice of structs or to a single scalar.
	Select(ctx context.Context, dest any, statement string, args ...any) error
}

// Gateway is the single path between the service and the relational store.
type Gateway interface {
	Handle

	// WithTransaction runs fn on a handle bound to one transaction on one
	// pooled connection. The transaction commits only if fn returns nil;
	// otherwise it rolls back and fn's error is returned. The connection is
	// released on every path, including a panic in fn.
	WithTransaction(ctx context.Context, fn func(tx Handle) error) error

	Ping(ctx context.Context) error
	Close() error
}
