package interfaces

import (
	"context"
	"os"
)

// SignalHandler is one cleanup callback. Failures are logged by the
// dispatcher and never propagated.
type SignalHandler func(ctx context.Context, sig os.Signal) error

// SignalRegistry tracks ordered handler lists per lifecycle signal, with
// push/pop snapshotting for scoped overrides.
type SignalRegistry interface {
	Register(sig os.Signal, h SignalHandler, opts ...SignalOption) error
	Unregister(sig os.Signal, h SignalHandler)
	Dispatch(ctx context.Context, sig os.Signal)
	Push(sigs ...os.Signal)
	Pop(sigs ...os.Signal) error
	Level() int
	Restore(sig os.Signal)
}

// SignalOption adjusts a single Register call.
type SignalOption func(*SignalOptions)

// SignalOptions carries the resolved options for one registration.
type SignalOptions struct {
	AllowDuplicates bool
	Legacy          SignalHandler
}

// AllowDuplicates permits registering the same handler twice for a signal.
func AllowDuplicates() SignalOption {
	return func(o *SignalOptions) { o.AllowDuplicates = true }
}

// WithLegacy records a pre-existing disposition at first registration. It
// always runs first during dispatch.
func WithLegacy(h SignalHandler) SignalOption {
	return func(o *SignalOptions) { o.Legacy = h }
}
