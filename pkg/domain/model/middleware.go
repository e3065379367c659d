package model

import (
	"context"
	"io"
)

// ArgSeparator must precede implementation arguments when middleware is
// applied. Its absence is a usage error: without it, arguments could be
// misread as contract content.
const ArgSeparator = "--"

// FlowAction is what the orchestrator should do after one implementation's
// middleware has run.
type FlowAction int

const (
	FlowContinue FlowAction = iota
	FlowRoute
	FlowExit
)

// Flow carries routing and forced-exit requests from middleware back to the
// orchestrator. The zero value means normal continuation.
type Flow struct {
	Action    FlowAction
	RoutePath string
	ExitCode  int
}

// Route requests that subsequent execution be replaced by the script at path.
func (f *Flow) Route(path string) {
	f.Action = FlowRoute
	f.RoutePath = path
}

// Exit requests process termination with the given code.
func (f *Flow) Exit(code int) {
	f.Action = FlowExit
	f.ExitCode = code
}

// MiddlewareRequest is everything a middleware needs to decide the effective
// result of one implementation: the captured buffer, the raw exit status,
// the implementation's arguments, the coordinator's live environment, and
// the real output streams for replay.
type MiddlewareRequest struct {
	Hook       string
	ExitStatus int
	Buffer     *CaptureBuffer
	Args       []string
	Env        *Environ
	Flow       *Flow
	Stdout     io.Writer
	Stderr     io.Writer
}

// Middleware interprets one implementation's captured output and exit
// status. The returned status becomes the implementation's effective result.
type Middleware func(ctx context.Context, req *MiddlewareRequest) (int, error)
