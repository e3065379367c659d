package model

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Environ is the coordinator's live environment. It is the only state that
// implementations may influence: source-mode callbacks mutate it directly,
// capture-mode implementations only through middleware directives.
type Environ struct {
	mu      sync.RWMutex
	vars    map[string]string
	listSep string
}

// NewEnviron creates an empty environment.
func NewEnviron() *Environ {
	return &Environ{
		vars:    map[string]string{},
		listSep: string(os.PathListSeparator),
	}
}

// EnvironFromOS creates an environment seeded from the process environment.
func EnvironFromOS() *Environ {
	e := NewEnviron()
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			e.vars[name] = value
		}
	}
	return e
}

// Get returns the value of name and whether it is set.
func (e *Environ) Get(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[name]
	return v, ok
}

// Set assigns value to name, replacing any previous value.
func (e *Environ) Set(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
}

// Unset removes name entirely.
func (e *Environ) Unset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.vars, name)
}

// Append adds segment to the end of a path-like value. An unset or empty
// variable becomes exactly segment, with no leading separator.
func (e *Environ) Append(name, segment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.vars[name]
	if cur == "" {
		e.vars[name] = segment
		return
	}
	e.vars[name] = cur + e.listSep + segment
}

// Prepend adds segment to the front of a path-like value.
func (e *Environ) Prepend(name, segment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.vars[name]
	if cur == "" {
		e.vars[name] = segment
		return
	}
	e.vars[name] = segment + e.listSep + cur
}

// Remove deletes every occurrence of segment from a path-like value. If
// nothing remains the variable is set to the empty string, not unset.
func (e *Environ) Remove(name, segment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.vars[name]
	if !ok {
		return
	}
	parts := strings.Split(cur, e.listSep)
	kept := parts[:0]
	for _, p := range parts {
		if p != segment {
			kept = append(kept, p)
		}
	}
	e.vars[name] = strings.Join(kept, e.listSep)
}

// Snapshot renders the environment as a sorted KEY=VALUE slice suitable
// for exec.Cmd.Env.
func (e *Environ) Snapshot() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.vars))
	for name, value := range e.vars {
		out = append(out, fmt.Sprintf("%s=%s", name, value))
	}
	sort.Strings(out)
	return out
}
