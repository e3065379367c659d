// Package taglog provides tag-filterable diagnostic channels on top of
// log/slog. Each tag gets a Channel built once at first lookup: a small
// capability table of closures for emitting lines, formatted lines, or
// piping a whole stream. Tags can be switched on and off independently of
// the backing logger's level.
package taglog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Channel is the capability table for one tag.
type Channel struct {
	// Line emits one diagnostic line under the tag.
	Line func(msg string, attrs ...slog.Attr)
	// Linef emits one formatted diagnostic line under the tag.
	Linef func(format string, args ...any)
	// Sink returns a writer that logs each written line under the tag.
	// The caller must Close it to release the pump goroutine.
	Sink func() io.WriteCloser
}

// Registry maps tag names to channels and their on/off switches.
type Registry struct {
	mu       sync.Mutex
	logger   *slog.Logger
	enabled  map[string]bool
	channels map[string]*Channel
}

// New creates a registry on the given logger with the listed tags enabled.
// A nil logger falls back to slog.Default.
func New(logger *slog.Logger, tags ...string) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:   logger,
		enabled:  map[string]bool{},
		channels: map[string]*Channel{},
	}
	for _, tag := range tags {
		r.enabled[tag] = true
	}
	return r
}

// Enable switches a tag on.
func (r *Registry) Enable(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled[tag] = true
}

// Disable switches a tag off.
func (r *Registry) Disable(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled[tag] = false
}

// Enabled reports whether a tag is switched on.
func (r *Registry) Enabled(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled[tag]
}

// Channel returns the capability table for tag, building it on first use.
func (r *Registry) Channel(tag string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[tag]; ok {
		return ch
	}

	ch := &Channel{
		Line: func(msg string, attrs ...slog.Attr) {
			if !r.Enabled(tag) {
				return
			}
			args := make([]any, 0, len(attrs)+1)
			args = append(args, slog.String("tag", tag))
			for _, a := range attrs {
				args = append(args, a)
			}
			r.logger.Info(msg, args...)
		},
		Linef: func(format string, args ...any) {
			if !r.Enabled(tag) {
				return
			}
			r.logger.Info(fmt.Sprintf(format, args...), slog.String("tag", tag))
		},
		Sink: func() io.WriteCloser {
			pr, pw := io.Pipe()
			go func() {
				scanner := bufio.NewScanner(pr)
				for scanner.Scan() {
					if r.Enabled(tag) {
						r.logger.Info(scanner.Text(), slog.String("tag", tag))
					}
				}
			}()
			return pw
		},
	}
	r.channels[tag] = ch
	return ch
}
