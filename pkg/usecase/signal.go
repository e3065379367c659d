package usecase

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/interfaces"
	"github.com/m-mizutani/hookrun/pkg/taglog"
)

// signalRecord is the per-signal state: the optional legacy disposition
// captured at first registration, the handler list in registration order,
// and the OS watcher channel.
type signalRecord struct {
	legacy   interfaces.SignalHandler
	handlers []interfaces.SignalHandler
	ch       chan os.Signal
}

type snapshot map[os.Signal][]interfaces.SignalHandler

// SignalRegistry dispatches lifecycle signals to ordered handler lists.
// Dispatch runs the legacy handler first, then registered handlers in LIFO
// order; it never raises, so it is safe as the terminal cleanup point.
type SignalRegistry struct {
	mu        sync.Mutex
	records   map[os.Signal]*signalRecord
	snapshots []snapshot

	// seams for tests; default to os/signal
	notifyFn func(ch chan<- os.Signal, sigs ...os.Signal)
	stopFn   func(ch chan<- os.Signal)
	resetFn  func(sigs ...os.Signal)

	log *taglog.Registry
}

var _ interfaces.SignalRegistry = (*SignalRegistry)(nil)

// NewSignalRegistry creates a registry backed by os/signal.
func NewSignalRegistry(log *taglog.Registry) *SignalRegistry {
	if log == nil {
		log = taglog.New(nil)
	}
	return &SignalRegistry{
		records:  map[os.Signal]*signalRecord{},
		notifyFn: signal.Notify,
		stopFn:   signal.Stop,
		resetFn:  signal.Reset,
		log:      log,
	}
}

// NewDetachedSignalRegistry creates a registry that never touches OS signal
// dispositions; Dispatch is driven by the caller. Used by tests and by
// embedders that own signal delivery themselves.
func NewDetachedSignalRegistry(log *taglog.Registry) *SignalRegistry {
	r := NewSignalRegistry(log)
	r.notifyFn = func(chan<- os.Signal, ...os.Signal) {}
	r.stopFn = func(chan<- os.Signal) {}
	r.resetFn = func(...os.Signal) {}
	return r
}

func handlerKey(h interfaces.SignalHandler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// Register appends h to the handler list for sig. The first registration
// for a signal captures the legacy disposition (if supplied via WithLegacy)
// and installs the registry's dispatcher as the OS-level handler.
// Registering the same handler twice is an error unless AllowDuplicates.
func (r *SignalRegistry) Register(sig os.Signal, h interfaces.SignalHandler, opts ...interfaces.SignalOption) error {
	if h == nil {
		return goerr.Wrap(domain.ErrRegistration, "signal handler must not be nil")
	}

	var options interfaces.SignalOptions
	for _, opt := range opts {
		opt(&options)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sig]
	if !ok {
		rec = &signalRecord{
			legacy: options.Legacy,
			ch:     make(chan os.Signal, 1),
		}
		r.records[sig] = rec
		r.notifyFn(rec.ch, sig)
		go r.watch(rec.ch)
	}

	if !options.AllowDuplicates {
		key := handlerKey(h)
		for _, existing := range rec.handlers {
			if handlerKey(existing) == key {
				return goerr.Wrap(domain.ErrRegistration, "handler already registered for signal")
			}
		}
	}

	rec.handlers = append(rec.handlers, h)
	return nil
}

// Unregister removes h from sig's handler list; no-op when absent.
func (r *SignalRegistry) Unregister(sig os.Signal, h interfaces.SignalHandler) {
	if h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sig]
	if !ok {
		return
	}

	key := handlerKey(h)
	for i, existing := range rec.handlers {
		if handlerKey(existing) == key {
			rec.handlers = append(rec.handlers[:i], rec.handlers[i+1:]...)
			return
		}
	}
}

func (r *SignalRegistry) watch(ch chan os.Signal) {
	for sig := range ch {
		r.Dispatch(context.Background(), sig)
	}
}

// Dispatch runs the legacy handler, then registered handlers most-recent
// first. A failing or panicking handler is logged and the remaining
// handlers still run; cleanup is never blocked by one failure.
func (r *SignalRegistry) Dispatch(ctx context.Context, sig os.Signal) {
	r.mu.Lock()
	rec, ok := r.records[sig]
	if !ok {
		r.mu.Unlock()
		return
	}
	legacy := rec.legacy
	handlers := make([]interfaces.SignalHandler, len(rec.handlers))
	copy(handlers, rec.handlers)
	r.mu.Unlock()

	if legacy != nil {
		r.invoke(ctx, sig, legacy, "legacy")
	}
	for i := len(handlers) - 1; i >= 0; i-- {
		r.invoke(ctx, sig, handlers[i], "registered")
	}
}

func (r *SignalRegistry) invoke(ctx context.Context, sig os.Signal, h interfaces.SignalHandler, kind string) {
	ch := r.log.Channel("signal")
	defer func() {
		if rec := recover(); rec != nil {
			ch.Linef("signal handler panicked: %v", rec)
		}
	}()

	if err := h(ctx, sig); err != nil {
		ch.Line("signal handler failed",
			slog.String("signal", sig.String()),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

// Push snapshots the handler lists for the given signals, or for all active
// signals when none are named. Snapshot depth is unbounded.
func (r *SignalRegistry) Push(sigs ...os.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := snapshot{}
	for _, sig := range r.targets(sigs) {
		if rec, ok := r.records[sig]; ok {
			handlers := make([]interfaces.SignalHandler, len(rec.handlers))
			copy(handlers, rec.handlers)
			snap[sig] = handlers
		}
	}
	r.snapshots = append(r.snapshots, snap)
}

// Pop restores the most recent snapshot for the given signals (or all
// snapshotted signals) and discards it.
func (r *SignalRegistry) Pop(sigs ...os.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snapshots) == 0 {
		return goerr.Wrap(domain.ErrSignal, "no snapshot to pop")
	}

	snap := r.snapshots[len(r.snapshots)-1]
	r.snapshots = r.snapshots[:len(r.snapshots)-1]

	restore := r.targets(sigs)
	for _, sig := range restore {
		handlers, ok := snap[sig]
		if !ok {
			continue
		}
		if rec, exists := r.records[sig]; exists {
			rec.handlers = handlers
		}
	}
	return nil
}

// targets resolves an optional signal list to the active set. Caller holds mu.
func (r *SignalRegistry) targets(sigs []os.Signal) []os.Signal {
	if len(sigs) > 0 {
		return sigs
	}
	all := make([]os.Signal, 0, len(r.records))
	for sig := range r.records {
		all = append(all, sig)
	}
	return all
}

// Level returns the current snapshot depth.
func (r *SignalRegistry) Level() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

// Restore discards the registry's dispatcher and handler list for sig,
// reinstating the default OS disposition. Snapshot entries for sig are
// dropped as well, so a later Pop cannot resurrect restored handlers.
func (r *SignalRegistry) Restore(sig os.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[sig]
	if !ok {
		return
	}

	r.stopFn(rec.ch)
	r.resetFn(sig)
	close(rec.ch)
	delete(r.records, sig)

	for _, snap := range r.snapshots {
		delete(snap, sig)
	}
}
