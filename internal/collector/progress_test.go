package collector

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestCopyWithContext(t *testing.T) {
	var dst bytes.Buffer
	n, err := copyWithContext(context.Background(), &dst, strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != int64(len("payload")) || dst.String() != "payload" {
		t.Fatalf("copy lost data: n=%d content=%q", n, dst.String())
	}
}

func TestCopyWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, err := copyWithContext(ctx, &dst, strings.NewReader("payload"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dst.Len() != 0 {
		t.Fatalf("expected no bytes copied, got %q", dst.String())
	}
}

func TestProgressWriterRoutesToRenderer(t *testing.T) {
	rend := &countingTaskRenderer{}
	printer := &Printer{renderer: rend}

	pw := newProgressWriter(1000, printer, "video1")
	if rend.registered != 1 {
		t.Fatalf("expected the task registered, got %d", rend.registered)
	}

	if _, err := pw.Write(make([]byte, 600)); err != nil {
		t.Fatalf("write: %v", err)
	}
	pw.Finish()

	if rend.finished != 1 {
		t.Fatalf("expected one finish, got %d", rend.finished)
	}
	if got := rend.lastCurrent; got != 600 {
		t.Fatalf("expected the final update to carry the running total, got %d", got)
	}

	// A second finish is a no-op.
	pw.Finish()
	if rend.finished != 1 {
		t.Fatalf("finish must be idempotent, got %d", rend.finished)
	}
}

func TestProgressWriterReset(t *testing.T) {
	rend := &countingTaskRenderer{}
	printer := &Printer{renderer: rend}

	pw := newProgressWriter(1000, printer, "video1")
	if _, err := pw.Write(make([]byte, 400)); err != nil {
		t.Fatalf("write: %v", err)
	}
	pw.Reset(2000)

	if pw.total.Load() != 0 {
		t.Fatalf("expected total cleared on reset, got %d", pw.total.Load())
	}
	if pw.size != 2000 {
		t.Fatalf("expected new size, got %d", pw.size)
	}
	if rend.lastCurrent != 0 {
		t.Fatalf("expected reset update at zero, got %d", rend.lastCurrent)
	}

	var nilWriter *progressWriter
	nilWriter.Reset(10)
}

// --- Test helpers ---

// countingTaskRenderer records progress callbacks.
type countingTaskRenderer struct {
	mu          sync.Mutex
	registered  int
	finished    int
	lastCurrent int64
}

func (r *countingTaskRenderer) Register(label string, total int64, unit TaskUnit) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered++
	return "task-" + label
}

func (r *countingTaskRenderer) Update(id string, current, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCurrent = current
}

func (r *countingTaskRenderer) Finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *countingTaskRenderer) Log(level LogLevel, msg string) {}
