package interfaces

import (
	"context"

	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

// HookEngine declares hooks, collects implementations and drives them
// through the capture harness and middleware in one deterministic order.
type HookEngine interface {
	Declare(names ...string) error
	DeclareFrom(declContext string, names ...string) error
	Register(hook, sortKey string, cb model.Callback) error
	Unregister(hook, sortKey string) error
	SetInline(hook string, cb model.Callback, mode model.Mode) error
	SetMiddleware(hook string, mw model.Middleware)
	ClearMiddleware(hook string)
	Do(ctx context.Context, hook string, args ...string) (int, error)
	List() []model.HookInfo
	Reset()
}

// Harness runs one implementation and records its output into an
// addressable buffer.
type Harness interface {
	RunScript(ctx context.Context, hook, path string, env []string, args ...string) (*model.CaptureBuffer, int, error)
	RunCallback(ctx context.Context, hook string, cb model.Callback, args ...string) (*model.CaptureBuffer, int, error)
}
