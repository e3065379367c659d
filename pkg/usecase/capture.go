package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hookrun/pkg/domain"
	"github.com/m-mizutani/hookrun/pkg/domain/interfaces"
	"github.com/m-mizutani/hookrun/pkg/domain/model"
)

// Harness runs one implementation and records its combined output into a
// uniquely named buffer. Buffer names combine a monotonically increasing
// sequence counter with a filesystem-safe slug of the hook name, so no two
// invocations ever share a buffer.
type Harness struct {
	seq atomic.Uint64
}

var _ interfaces.Harness = (*Harness)(nil)

// NewHarness creates a harness with a fresh sequence counter.
func NewHarness() *Harness {
	return &Harness{}
}

// ResetSequence rewinds the buffer name counter. Test isolation only.
func (h *Harness) ResetSequence() {
	h.seq.Store(0)
}

func (h *Harness) bufferName(hook string) string {
	return fmt.Sprintf("capture.%d.%s", h.seq.Add(1), slugify(hook))
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// RunScript executes the file at path as an isolated subprocess with the
// given environment, draining both streams line by line into the buffer.
// The subprocess exit status is returned unmodified; wiring failures are
// capture errors and never conflated with it.
func (h *Harness) RunScript(ctx context.Context, hook, path string, env []string, args ...string) (*model.CaptureBuffer, int, error) {
	logger := ctxlog.From(ctx)
	buf := model.NewCaptureBuffer(h.bufferName(hook))

	cmd := exec.CommandContext(ctx, path, args...) // #nosec G204 - path comes from the configured hooks directory
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, domain.ErrCapture.Wrap(err, goerr.V("hook", hook))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, 0, domain.ErrCapture.Wrap(err, goerr.V("hook", hook))
	}

	if err := cmd.Start(); err != nil {
		// Mirrors shell behavior: a script that cannot start reports
		// status 127 through the normal exit-status channel.
		buf.Append(model.StreamStderr, err.Error())
		logger.Debug("script failed to start",
			slog.String("hook", hook),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return buf, 127, nil
	}

	// One reader per stream. Per-stream order is exact; cross-stream
	// interleaving depends on the script's own buffering.
	var wg sync.WaitGroup
	readErrs := make([]error, 2)
	for i, src := range []struct {
		stream model.Stream
		r      io.Reader
	}{
		{model.StreamStdout, stdout},
		{model.StreamStderr, stderr},
	} {
		wg.Add(1)
		go func(slot int, stream model.Stream, r io.Reader) {
			defer wg.Done()
			readErrs[slot] = drainStream(buf, stream, r)
		}(i, src.stream, src.r)
	}
	wg.Wait()

	status := 0
	if err := cmd.Wait(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, 0, domain.ErrCapture.Wrap(err, goerr.V("hook", hook))
		}
		status = exitErr.ExitCode()
	}
	if err := errors.Join(readErrs[0], readErrs[1]); err != nil {
		return buf, status, domain.ErrCapture.Wrap(err, goerr.V("hook", hook))
	}

	logger.Debug("script captured",
		slog.String("hook", hook),
		slog.String("path", path),
		slog.String("buffer", buf.Name),
		slog.Int("lines", buf.Len()),
		slog.Int("status", status),
	)
	return buf, status, nil
}

// drainStream appends each line of src to buf under the stream tag. Lines
// have no length ceiling, and the stream is always read to the end so the
// child never blocks on a full pipe; read failures are capture errors, not
// silent truncation.
func drainStream(buf *model.CaptureBuffer, stream model.Stream, src io.Reader) error {
	r := bufio.NewReader(src)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			buf.Append(stream, strings.TrimSuffix(line, "\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RunCallback executes an in-process callback with writers that feed the
// buffer instead of the real streams. The callback receives no environment
// handle; capture-mode implementations influence the coordinator only
// through middleware directives.
func (h *Harness) RunCallback(ctx context.Context, hook string, cb model.Callback, args ...string) (*model.CaptureBuffer, int, error) {
	if cb == nil {
		return nil, 0, goerr.Wrap(domain.ErrCapture, "callback must not be nil", goerr.V("hook", hook))
	}

	buf := model.NewCaptureBuffer(h.bufferName(hook))
	stdout := newLineWriter(buf, model.StreamStdout)
	stderr := newLineWriter(buf, model.StreamStderr)
	defer stdout.Flush()
	defer stderr.Flush()

	hc := &model.HookContext{
		Hook:   hook,
		Args:   args,
		Stdout: stdout,
		Stderr: stderr,
	}

	status, err := cb(ctx, hc)
	if err != nil {
		// Implementation failure, not an engine error: record it and
		// report through the exit-status channel.
		stderr.Flush()
		buf.Append(model.StreamStderr, err.Error())
		if status == 0 {
			status = 1
		}
	}
	return buf, status, nil
}

// lineWriter splits written bytes into lines and appends them to a capture
// buffer under one stream tag. A trailing partial line is emitted by Flush.
type lineWriter struct {
	mu     sync.Mutex
	buf    *model.CaptureBuffer
	stream model.Stream
	rest   strings.Builder
}

func newLineWriter(buf *model.CaptureBuffer, stream model.Stream) *lineWriter {
	return &lineWriter{buf: buf, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, b := range p {
		if b == '\n' {
			w.buf.Append(w.stream, w.rest.String())
			w.rest.Reset()
			continue
		}
		w.rest.WriteByte(b)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rest.Len() > 0 {
		w.buf.Append(w.stream, w.rest.String())
		w.rest.Reset()
	}
}
