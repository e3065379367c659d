package model

import (
	"context"
	"io"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// Mode selects how an implementation runs.
//
// Exec-mode implementations are isolated: their output goes through the
// capture harness and middleware, and they cannot touch the coordinator's
// live environment. Source-mode implementations bypass capture and
// middleware entirely and run against the coordinator's real streams;
// source-mode callbacks additionally receive the live Environ.
type Mode string

const (
	ModeExec   Mode = "exec"
	ModeSource Mode = "source"
)

var hookNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateHookName checks that name is a legal hook name.
func ValidateHookName(name string) error {
	if name == "" {
		return goerr.New("hook name must not be empty")
	}
	if !hookNamePattern.MatchString(name) {
		return goerr.New("malformed hook name", goerr.V("name", name))
	}
	return nil
}

// HookContext is what a callback implementation receives. Stdout and Stderr
// are the only sanctioned output channels; in capture mode they feed the
// invocation's buffer, in source mode they are the coordinator's real
// streams. Env is non-nil only in source mode.
type HookContext struct {
	Hook   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
	Env    *Environ
}

// Callback is an in-process hook implementation. It returns an exit status;
// a non-nil error with a zero status is reported as status 1.
type Callback func(ctx context.Context, hc *HookContext) (int, error)

// ImplKind distinguishes the three implementation sources.
type ImplKind string

const (
	KindInline     ImplKind = "inline"
	KindRegistered ImplKind = "registered"
	KindScript     ImplKind = "script"
)

// Implementation is one concrete behavior bound to a hook. Callback is set
// for inline and registered kinds, Path for scripts. SortKey orders
// registered and script implementations into one merged sequence.
type Implementation struct {
	Kind     ImplKind
	SortKey  string
	Callback Callback
	Path     string
	Mode     Mode
}

// HookInfo describes one declared hook for diagnostics.
type HookInfo struct {
	Name       string
	Contexts   []string
	HasInline  bool
	InlineMode Mode
	Registered []string
	Scripts    []string
}
