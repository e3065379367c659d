package model

import "sync"

// Stream identifies the origin of a captured output line.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one captured output line tagged with its stream of origin.
type Line struct {
	Stream Stream
	Text   string
}

// CaptureBuffer records the combined output of a single implementation
// invocation. Lines from both streams are appended in arrival order;
// per-stream order is exact, cross-stream interleaving is best-effort.
//
// A buffer is owned by the invocation that created it and discarded after
// middleware consumes it. Append is safe for concurrent use because the
// two stream readers of a subprocess feed the same buffer.
type CaptureBuffer struct {
	Name string

	mu    sync.Mutex
	lines []Line
}

// NewCaptureBuffer creates an empty buffer with the given unique name.
func NewCaptureBuffer(name string) *CaptureBuffer {
	return &CaptureBuffer{Name: name}
}

// Append adds one line to the buffer.
func (b *CaptureBuffer) Append(stream Stream, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, Line{Stream: stream, Text: text})
}

// Lines returns a copy of the buffered lines in arrival order.
func (b *CaptureBuffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of buffered lines.
func (b *CaptureBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
