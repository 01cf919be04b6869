package web

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lvcoi/shorts-collector/internal/app"
	"github.com/lvcoi/shorts-collector/internal/collector"
	"github.com/lvcoi/shorts-collector/internal/ws"
)

// ProgressEvent is a structured event sent over SSE. Seq numbers the
// stream so a reconnecting client can resume with Last-Event-ID.
type ProgressEvent struct {
	Seq      int64        `json:"seq,omitempty"`
	Type     string       `json:"type"`
	ID       string       `json:"id,omitempty"`
	Label    string       `json:"label,omitempty"`
	Current  int64        `json:"current,omitempty"`
	Total    int64        `json:"total,omitempty"`
	Percent  float64      `json:"percent,omitempty"`
	Unit     string       `json:"unit,omitempty"`
	Level    string       `json:"level,omitempty"`
	Message  string       `json:"message,omitempty"`
	Status   string       `json:"status,omitempty"`
	ExitCode int          `json:"exit_code,omitempty"`
	Error    string       `json:"error,omitempty"`
	Results  []app.Result `json:"results,omitempty"`
}

const (
	maxEventHistory    = 1024
	subscriberBuffer   = 256
	jobCompletedTTL    = 15 * time.Minute
	jobErroredTTL      = 30 * time.Minute
	jobCleanupInterval = time.Minute
)

// Job represents an async collection job.
type Job struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Channels    []string     `json:"channels"`
	CreatedAt   time.Time    `json:"created_at"`
	Results     []app.Result `json:"results,omitempty"`
	ExitCode    int          `json:"exit_code,omitempty"`
	Error       string       `json:"error,omitempty"`
	CompletedAt time.Time    `json:"completed_at,omitempty"`

	mu         sync.RWMutex `json:"-"`
	seq        int64
	history    []ProgressEvent
	subs       map[int64]chan ProgressEvent
	subCounter int64
	closed     bool
}

// jobTracker manages active collection jobs.
type jobTracker struct {
	jobs    sync.Map
	counter atomic.Int64
}

var tracker = &jobTracker{}

func (jt *jobTracker) Create(channels []string) *Job {
	id := fmt.Sprintf("job_%d", jt.counter.Add(1))
	channelCopy := append([]string(nil), channels...)
	job := &Job{
		ID:        id,
		Status:    "queued",
		Channels:  channelCopy,
		CreatedAt: time.Now(),
		history:   make([]ProgressEvent, 0, 64),
		subs:      make(map[int64]chan ProgressEvent),
	}
	jt.jobs.Store(id, job)
	return job
}

func (jt *jobTracker) Get(id string) (*Job, bool) {
	v, ok := jt.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Job), true
}

func (jt *jobTracker) ActiveCount() int {
	count := 0
	jt.jobs.Range(func(_, v any) bool {
		if j, ok := v.(*Job); ok && j.isActive() {
			count++
		}
		return true
	})
	return count
}

func (jt *jobTracker) Delete(id string) {
	jt.jobs.Delete(id)
}

func (jt *jobTracker) RemoveExpired(now time.Time, completedTTL, erroredTTL time.Duration) int {
	removed := 0
	jt.jobs.Range(func(key, value any) bool {
		id, ok := key.(string)
		if !ok {
			return true
		}
		job, ok := value.(*Job)
		if !ok {
			return true
		}
		if job.isExpired(now, completedTTL, erroredTTL) {
			jt.jobs.Delete(id)
			removed++
		}
		return true
	})
	return removed
}

func (jt *jobTracker) StartCleanup(ctx context.Context, interval, completedTTL, erroredTTL time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				jt.RemoveExpired(now, completedTTL, erroredTTL)
			}
		}
	}()
}

func (j *Job) isActive() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == "queued" || j.Status == "running"
}

func (j *Job) StatusValue() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) setTerminalStatusLocked(status string) {
	j.Status = status
	if status == "complete" || status == "error" {
		j.CompletedAt = time.Now()
		return
	}
	j.CompletedAt = time.Time{}
}

func (j *Job) SetStatus(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setTerminalStatusLocked(status)
}

func (j *Job) SetOutcome(results []app.Result, exitCode int) string {
	resultsCopy := append([]app.Result(nil), results...)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.Results = resultsCopy
	j.ExitCode = exitCode
	j.Error = ""

	if exitCode != 0 {
		j.setTerminalStatusLocked("error")
		for _, result := range resultsCopy {
			if result.Error != "" {
				j.Error = result.Error
				break
			}
		}
		return j.Status
	}

	j.setTerminalStatusLocked("complete")
	return j.Status
}

func (j *Job) isExpired(now time.Time, completedTTL, erroredTTL time.Duration) bool {
	j.mu.RLock()
	status := j.Status
	completedAt := j.CompletedAt
	j.mu.RUnlock()

	if completedAt.IsZero() {
		return false
	}
	switch status {
	case "complete":
		if completedTTL <= 0 {
			return false
		}
		return now.Sub(completedAt) > completedTTL
	case "error":
		if erroredTTL <= 0 {
			return false
		}
		return now.Sub(completedAt) > erroredTTL
	default:
		return false
	}
}

// publish appends the event to the job's history and fans it out to live
// subscribers. Slow subscribers are skipped; they catch up on reconnect
// through the Seq replay.
func (j *Job) publish(evt ProgressEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	j.seq++
	evt.Seq = j.seq
	j.history = append(j.history, evt)
	if len(j.history) > maxEventHistory {
		j.history = j.history[len(j.history)-maxEventHistory:]
	}
	for _, sub := range j.subs {
		select {
		case sub <- evt:
		default:
		}
	}
}

// Subscribe returns a stream of events with Seq greater than afterSeq,
// replaying retained history first. The cancel func must be called when
// the consumer goes away.
func (j *Job) Subscribe(afterSeq int64) (<-chan ProgressEvent, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	for _, evt := range j.history {
		if evt.Seq <= afterSeq {
			continue
		}
		select {
		case ch <- evt:
		default:
		}
	}

	if j.closed {
		close(ch)
		return ch, func() {}
	}

	j.subCounter++
	id := j.subCounter
	j.subs[id] = ch

	cancel := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if sub, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// CloseEvents ends the stream for every subscriber. Called once after the
// terminal event is published.
func (j *Job) CloseEvents() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	j.closed = true
	for id, sub := range j.subs {
		delete(j.subs, id)
		close(sub)
	}
}

func (j *Job) snapshot() (exitCode int, errMsg string, results []app.Result) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.ExitCode, j.Error, j.Results
}

// webRenderer implements collector.ProgressRenderer for SSE streaming and
// mirrors every event to the WebSocket hub.
type webRenderer struct {
	job *Job
	hub *ws.Hub
}

var _ collector.ProgressRenderer = (*webRenderer)(nil)

func unitName(unit collector.TaskUnit) string {
	if unit == collector.UnitCount {
		return "videos"
	}
	return "bytes"
}

func (w *webRenderer) Register(label string, total int64, unit collector.TaskUnit) string {
	id := fmt.Sprintf("%s@%d", label, time.Now().UnixNano())
	w.job.publish(ProgressEvent{Type: "register", ID: id, Label: label, Total: total, Unit: unitName(unit)})
	if w.hub != nil {
		w.hub.Broadcast(ws.WSMessage{Type: "progress", Payload: ws.ProgressPayload{
			JobID:  w.job.ID,
			TaskID: id,
			Label:  label,
			Status: "started",
			Total:  total,
			Unit:   unitName(unit),
		}})
	}
	return id
}

func (w *webRenderer) Update(id string, current, total int64) {
	percent := 0.0
	if total > 0 {
		percent = float64(current) * 100 / float64(total)
	}
	w.job.publish(ProgressEvent{Type: "progress", ID: id, Current: current, Total: total, Percent: percent})
	if w.hub != nil {
		w.hub.Broadcast(ws.WSMessage{Type: "progress", Payload: ws.ProgressPayload{
			JobID:   w.job.ID,
			TaskID:  id,
			Percent: percent,
			Status:  "running",
			Done:    current,
			Total:   total,
		}})
	}
}

func (w *webRenderer) Finish(id string) {
	w.job.publish(ProgressEvent{Type: "finish", ID: id})
	if w.hub != nil {
		w.hub.Broadcast(ws.WSMessage{Type: "progress", Payload: ws.ProgressPayload{
			JobID:   w.job.ID,
			TaskID:  id,
			Percent: 100,
			Status:  "finished",
		}})
	}
}

func (w *webRenderer) Log(level collector.LogLevel, msg string) {
	levelStr := "info"
	switch level {
	case collector.LogDebug:
		levelStr = "debug"
	case collector.LogWarn:
		levelStr = "warn"
	case collector.LogError:
		levelStr = "error"
	}
	w.job.publish(ProgressEvent{Type: "log", Level: levelStr, Message: msg})
	if w.hub != nil {
		w.hub.Broadcast(ws.WSMessage{Type: "log", Payload: ws.LogPayload{
			JobID:   w.job.ID,
			Level:   levelStr,
			Message: msg,
		}})
	}
}
