package collector

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// progressWriter reports audio download bytes, either as an in-place
// stderr line or through the attached renderer when one exists.
type progressWriter struct {
	size       int64
	total      atomic.Int64
	start      time.Time
	lastUpdate atomic.Int64 // Unix nanoseconds
	finished   atomic.Bool
	prefix     string
	printer    *Printer
	taskID     string
	renderer   ProgressRenderer
	mu         sync.Mutex
}

func newProgressWriter(size int64, printer *Printer, prefix string) *progressWriter {
	taskID := ""
	var renderer ProgressRenderer
	if printer != nil && printer.renderer != nil {
		renderer = printer.renderer
		taskID = renderer.Register(prefix, size, UnitBytes)
	}
	now := time.Now()
	pw := &progressWriter{
		size:     size,
		start:    now,
		prefix:   prefix,
		printer:  printer,
		taskID:   taskID,
		renderer: renderer,
	}
	pw.lastUpdate.Store(now.UnixNano())
	return pw
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n := len(b)
	p.total.Add(int64(n))

	// Update at most every 100ms to keep the writer off the hot path.
	now := time.Now()
	lastUpdateNano := p.lastUpdate.Load()
	if now.UnixNano()-lastUpdateNano >= 100*time.Millisecond.Nanoseconds() {
		if p.lastUpdate.CompareAndSwap(lastUpdateNano, now.UnixNano()) {
			p.print()
		}
	}
	return n, nil
}

func (p *progressWriter) print() {
	if p.finished.Load() {
		return
	}
	total := p.total.Load()
	if p.renderer != nil && p.taskID != "" {
		p.renderer.Update(p.taskID, total, p.size)
		return
	}
	if !p.printer.progressEnabled {
		return
	}
	line := p.printer.progressLine(p.prefix, total, p.size, time.Since(p.start))
	p.printer.writeProgressLine(line)
}

func (p *progressWriter) Finish() {
	if p.finished.Swap(true) {
		return
	}
	total := p.total.Load()
	if p.renderer != nil && p.taskID != "" {
		p.renderer.Update(p.taskID, total, p.size)
		p.renderer.Finish(p.taskID)
		return
	}
	if !p.printer.progressEnabled {
		return
	}
	p.printer.clearLine()
}

func (p *progressWriter) Reset(size int64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.size = size
	p.total.Store(0)
	p.start = now
	p.lastUpdate.Store(now.UnixNano())
	p.finished.Store(false)
	if p.renderer != nil && p.taskID != "" {
		p.renderer.Update(p.taskID, 0, p.size)
	}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
		return r.r.Read(p)
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	reader := &contextReader{ctx: ctx, r: src}
	return io.Copy(dst, reader)
}
