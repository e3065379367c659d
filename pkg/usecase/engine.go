package usecase

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/interfaces"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
	"github.com/m-mizutani/hookrun/pkg/taglog"
)

// DeclContextMain is the declaring context used when none is named.
const DeclContextMain = "main"

// hookState is everything known about one declared hook.
type hookState struct {
	contexts   map[string]struct{}
	inline     model.Callback
	inlineMode model.Mode
	registered map[string]model.Callback
}

// Engine is the hook registry and orchestrator. It owns the coordinator's
// environment, the capture harness, the middleware bindings and the signal
// registry; there is no process-wide state, so tests build throwaway
// engines and Reset them freely.
type Engine struct {
	mu          sync.Mutex
	cfg         *model.Config
	env         *model.Environ
	hooks       map[string]*hookState
	middlewares map[string]model.Middleware

	harness *Harness
	signals *SignalRegistry
	log     *taglog.Registry

	stdout io.Writer
	stderr io.Writer
}

var _ interfaces.HookEngine = (*Engine)(nil)

// EngineOption adjusts engine construction.
type EngineOption func(*Engine)

// WithStdout redirects the engine's real stdout (replay target).
func WithStdout(w io.Writer) EngineOption {
	return func(e *Engine) { e.stdout = w }
}

// WithStderr redirects the engine's real stderr (replay target).
func WithStderr(w io.Writer) EngineOption {
	return func(e *Engine) { e.stderr = w }
}

// WithEnviron supplies a pre-seeded coordinator environment.
func WithEnviron(env *model.Environ) EngineOption {
	return func(e *Engine) { e.env = env }
}

// WithSignalRegistry supplies a signal registry (tests use a detached one).
func WithSignalRegistry(r *SignalRegistry) EngineOption {
	return func(e *Engine) { e.signals = r }
}

// WithTagLog supplies the diagnostic channel registry.
func WithTagLog(log *taglog.Registry) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates an engine for the given configuration.
func NewEngine(cfg *model.Config, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = &model.Config{}
	}
	e := &Engine{
		cfg:         cfg,
		hooks:       map[string]*hookState{},
		middlewares: map[string]model.Middleware{},
		harness:     NewHarness(),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = taglog.New(nil, cfg.LogTags...)
	}
	if e.env == nil {
		e.env = model.EnvironFromOS()
	}
	if e.signals == nil {
		e.signals = NewSignalRegistry(e.log)
	}
	return e
}

// Config returns the engine's configuration.
func (e *Engine) Config() *model.Config {
	return e.cfg
}

// Env returns the coordinator's live environment.
func (e *Engine) Env() *model.Environ {
	return e.env
}

// Signals returns the engine's signal registry.
func (e *Engine) Signals() *SignalRegistry {
	return e.signals
}

// Declare registers hook names as valid under the default context.
func (e *Engine) Declare(names ...string) error {
	return e.DeclareFrom(DeclContextMain, names...)
}

// DeclareFrom registers hook names as valid. Re-declaring an existing hook
// from a different context merges contexts; nested tool invocations compose
// without error.
func (e *Engine) DeclareFrom(declContext string, names ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, name := range names {
		if err := model.ValidateHookName(name); err != nil {
			return domain.ErrDeclaration.Wrap(err)
		}
		st, ok := e.hooks[name]
		if !ok {
			st = &hookState{
				contexts:   map[string]struct{}{},
				registered: map[string]model.Callback{},
			}
			e.hooks[name] = st
		}
		st.contexts[declContext] = struct{}{}
	}
	return nil
}

// Register binds a callback implementation to a hook under a sort key. The
// sort key orders execution only; registering an existing key is an error.
func (e *Engine) Register(hook, sortKey string, cb model.Callback) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.hooks[hook]
	if !ok {
		return goerr.Wrap(domain.ErrRegistration, "hook is not declared", goerr.V("hook", hook))
	}
	if cb == nil {
		return goerr.Wrap(domain.ErrRegistration, "callback must not be nil", goerr.V("hook", hook))
	}
	if sortKey == "" {
		return goerr.Wrap(domain.ErrRegistration, "sort key must not be empty", goerr.V("hook", hook))
	}
	if _, exists := st.registered[sortKey]; exists {
		return goerr.Wrap(domain.ErrRegistration, "sort key already registered",
			goerr.V("hook", hook), goerr.V("sort_key", sortKey))
	}
	st.registered[sortKey] = cb
	return nil
}

// Unregister removes the callback under sortKey; no-op when absent.
func (e *Engine) Unregister(hook, sortKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.hooks[hook]; ok {
		delete(st.registered, sortKey)
	}
	return nil
}

// SetInline binds the by-convention inline implementation of a hook. It
// always runs first, before the merged registered/script sequence.
func (e *Engine) SetInline(hook string, cb model.Callback, mode model.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.hooks[hook]
	if !ok {
		return goerr.Wrap(domain.ErrRegistration, "hook is not declared", goerr.V("hook", hook))
	}
	if cb == nil {
		return goerr.Wrap(domain.ErrRegistration, "callback must not be nil", goerr.V("hook", hook))
	}
	st.inline = cb
	st.inlineMode = mode
	return nil
}

// SetMiddleware binds a middleware to a hook, replacing any previous one.
func (e *Engine) SetMiddleware(hook string, mw model.Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mw == nil {
		delete(e.middlewares, hook)
		return
	}
	e.middlewares[hook] = mw
}

// ClearMiddleware removes a hook's middleware binding, restoring the
// default replay behavior.
func (e *Engine) ClearMiddleware(hook string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.middlewares, hook)
}

// RegisterConfigured declares the hooks named in configuration and
// registers their static command implementations.
func (e *Engine) RegisterConfigured() error {
	for _, hc := range e.cfg.Hooks {
		if err := e.DeclareFrom("config", hc.Name); err != nil {
			return err
		}
		for i := range hc.Implementations {
			impl, err := hc.Implementations[i].ToCommandImpl()
			if err != nil {
				return domain.ErrConfiguration.Wrap(err, goerr.V("hook", hc.Name))
			}
			if err := e.Register(hc.Name, hc.Implementations[i].SortKey, CommandCallback(impl)); err != nil {
				return err
			}
		}
	}
	return nil
}

// InstallFinalHook registers the configured end-of-life hook as a signal
// handler so it runs even when the process is interrupted mid-hook.
func (e *Engine) InstallFinalHook(sigs ...os.Signal) error {
	if e.cfg.FinalHook == "" {
		return goerr.Wrap(domain.ErrConfiguration, "final_hook is not configured")
	}
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	handler := func(ctx context.Context, sig os.Signal) error {
		_, err := e.Do(ctx, e.cfg.FinalHook)
		return err
	}
	for _, sig := range sigs {
		if err := e.signals.Register(sig, handler, interfaces.AllowDuplicates()); err != nil {
			return err
		}
	}
	return nil
}

// Do runs every implementation of a hook: the inline implementation first,
// then registered callbacks and discovered scripts merged into one sequence
// ascending by sort key. Each capture-mode implementation goes through the
// harness and its hook's middleware; routing and exit requests from
// middleware short-circuit the sequence. The return value is the last
// implementation's effective exit status, or 0 if none ran.
func (e *Engine) Do(ctx context.Context, hook string, args ...string) (int, error) {
	invocation := uuid.NewString()
	logger := ctxlog.From(ctx).With(
		slog.String("hook", hook),
		slog.String("invocation", invocation),
	)
	ctx = ctxlog.With(ctx, logger)

	e.mu.Lock()
	st, declared := e.hooks[hook]
	e.mu.Unlock()

	if !declared {
		e.log.Channel("engine").Linef("hook %q has no consumers", hook)
		return 0, nil
	}

	status := 0

	// Inline first.
	e.mu.Lock()
	inline, inlineMode := st.inline, st.inlineMode
	e.mu.Unlock()
	if inline != nil {
		s, flow, err := e.runCallback(ctx, hook, inline, inlineMode, args)
		if err != nil {
			return 0, err
		}
		status = s
		if done, s2, err := e.checkFlow(ctx, flow); done || err != nil {
			return s2, err
		}
	}

	// Registered and script implementations merge into one sequence.
	impls, err := e.collectMerged(hook)
	if err != nil {
		return 0, err
	}
	if inline == nil && len(impls) == 0 {
		e.log.Channel("engine").Linef("no implementations found for hook %q", hook)
	}

	for _, impl := range impls {
		var flow *model.Flow
		switch impl.Kind {
		case model.KindScript:
			status, flow, err = e.runScript(ctx, hook, invocation, impl, args)
		default:
			status, flow, err = e.runCallback(ctx, hook, impl.Callback, impl.Mode, args)
		}
		if err != nil {
			return 0, err
		}
		if done, s, err := e.checkFlow(ctx, flow); done || err != nil {
			return s, err
		}
	}

	return status, nil
}

// collectMerged returns the registered and script implementations in one
// ascending sort-key order, independent of registration order.
func (e *Engine) collectMerged(hook string) ([]model.Implementation, error) {
	e.mu.Lock()
	st, ok := e.hooks[hook]
	if !ok {
		e.mu.Unlock()
		return nil, nil
	}
	impls := make([]model.Implementation, 0, len(st.registered))
	for key, cb := range st.registered {
		impls = append(impls, model.Implementation{
			Kind:     model.KindRegistered,
			SortKey:  key,
			Callback: cb,
			Mode:     model.ModeExec,
		})
	}
	e.mu.Unlock()

	scripts, err := discoverScripts(e.cfg.HooksDir, hook, e.cfg.ResolvedDefaultMode(), e.log)
	if err != nil {
		return nil, err
	}
	impls = append(impls, scripts...)

	sort.SliceStable(impls, func(i, j int) bool {
		return impls[i].SortKey < impls[j].SortKey
	})
	return impls, nil
}

// runCallback executes an in-process implementation. Source mode bypasses
// capture and middleware and hands the callback the live environment; it is
// the only way an implementation mutates coordinator state directly.
func (e *Engine) runCallback(ctx context.Context, hook string, cb model.Callback, mode model.Mode, args []string) (int, *model.Flow, error) {
	if mode == model.ModeSource {
		hc := &model.HookContext{
			Hook:   hook,
			Args:   args,
			Stdout: e.stdout,
			Stderr: e.stderr,
			Env:    e.env,
		}
		status, err := cb(ctx, hc)
		if err != nil {
			ctxlog.From(ctx).Warn("source-mode implementation failed",
				slog.String("error", err.Error()),
			)
			if status == 0 {
				status = 1
			}
		}
		return status, nil, nil
	}

	buf, status, err := e.harness.RunCallback(ctx, hook, cb, args...)
	if err != nil {
		return 0, nil, err
	}
	return e.apply(ctx, hook, status, buf, append([]string{model.ArgSeparator}, args...))
}

// runScript executes a script implementation in its resolved mode.
func (e *Engine) runScript(ctx context.Context, hook, invocation string, impl model.Implementation, args []string) (int, *model.Flow, error) {
	env := e.scriptEnv(hook, invocation)

	if impl.Mode == model.ModeSource {
		status, err := e.runDirect(ctx, impl.Path, env, args)
		return status, nil, err
	}

	buf, status, err := e.harness.RunScript(ctx, hook, impl.Path, env, args...)
	if err != nil {
		return 0, nil, err
	}
	return e.apply(ctx, hook, status, buf, append([]string{model.ArgSeparator}, args...))
}

// runDirect runs a script against the coordinator's real streams, with no
// capture and no middleware. Used for source-mode scripts and for routed
// continuations.
func (e *Engine) runDirect(ctx context.Context, path string, env []string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, path, args...) // #nosec G204 - path comes from the configured hooks directory
	cmd.Env = env
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 127, nil
	}
	return 0, nil
}

// scriptEnv builds the subprocess environment: the coordinator snapshot plus
// the hook name and invocation ID so scripts can tag their own output.
func (e *Engine) scriptEnv(hook, invocation string) []string {
	env := e.env.Snapshot()
	return append(env,
		"HOOKRUN_HOOK="+hook,
		"HOOKRUN_INVOCATION="+invocation,
	)
}

// ApplyMiddleware runs the hook's bound middleware (or the default) over a
// capture buffer and exit status. Implementation arguments must follow the
// literal separator token; a missing separator fails loudly rather than
// letting arguments be misread as contract content.
func (e *Engine) ApplyMiddleware(ctx context.Context, hook string, status int, buf *model.CaptureBuffer, argv ...string) (int, error) {
	effective, _, err := e.apply(ctx, hook, status, buf, argv)
	return effective, err
}

func (e *Engine) apply(ctx context.Context, hook string, status int, buf *model.CaptureBuffer, argv []string) (int, *model.Flow, error) {
	if len(argv) == 0 || argv[0] != model.ArgSeparator {
		return 0, nil, goerr.Wrap(domain.ErrContract, "implementation arguments must follow the separator token",
			goerr.V("hook", hook), goerr.V("separator", model.ArgSeparator))
	}

	e.mu.Lock()
	mw, ok := e.middlewares[hook]
	e.mu.Unlock()
	if !ok {
		mw = DefaultMiddleware
	}

	req := &model.MiddlewareRequest{
		Hook:       hook,
		ExitStatus: status,
		Buffer:     buf,
		Args:       argv[1:],
		Env:        e.env,
		Flow:       &model.Flow{},
		Stdout:     e.stdout,
		Stderr:     e.stderr,
	}

	effective, err := mw(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	return effective, req.Flow, nil
}

// checkFlow honors routing and exit requests recorded by middleware. A
// route replaces the remaining continuation with the routed script; an exit
// terminates the sequence with the forced code. The bool result reports
// whether the sequence is done.
func (e *Engine) checkFlow(ctx context.Context, flow *model.Flow) (bool, int, error) {
	if flow == nil {
		return false, 0, nil
	}
	switch flow.Action {
	case model.FlowExit:
		ctxlog.From(ctx).Debug("middleware forced exit", slog.Int("code", flow.ExitCode))
		return true, flow.ExitCode, nil
	case model.FlowRoute:
		ctxlog.From(ctx).Debug("middleware routed execution", slog.String("path", flow.RoutePath))
		status, err := e.runDirect(ctx, flow.RoutePath, e.env.Snapshot(), nil)
		return true, status, err
	default:
		return false, 0, nil
	}
}

// List enumerates declared hooks and their implementations for diagnostics.
func (e *Engine) List() []model.HookInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.hooks))
	for name := range e.hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]model.HookInfo, 0, len(names))
	for _, name := range names {
		st := e.hooks[name]

		contexts := make([]string, 0, len(st.contexts))
		for c := range st.contexts {
			contexts = append(contexts, c)
		}
		sort.Strings(contexts)

		registered := make([]string, 0, len(st.registered))
		for key := range st.registered {
			registered = append(registered, key)
		}
		sort.Strings(registered)

		var scripts []string
		if impls, err := discoverScripts(e.cfg.HooksDir, name, e.cfg.ResolvedDefaultMode(), e.log); err == nil {
			for _, impl := range impls {
				scripts = append(scripts, impl.SortKey)
			}
			sort.Strings(scripts)
		}

		infos = append(infos, model.HookInfo{
			Name:       name,
			Contexts:   contexts,
			HasInline:  st.inline != nil,
			InlineMode: st.inlineMode,
			Registered: registered,
			Scripts:    scripts,
		})
	}
	return infos
}

// Reset clears all declarations, registrations, middleware bindings and the
// buffer name counter. Test isolation only; the environment is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = map[string]*hookState{}
	e.middlewares = map[string]model.Middleware{}
	e.harness.ResetSequence()
}
