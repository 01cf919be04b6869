package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lvcoi/shorts-collector/internal/collector"
)

func TestRunNoChannels(t *testing.T) {
	results, code := Run(context.Background(), nil, testOptions(), 4, nil)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	// A non-positive worker count falls back to one worker.
	if _, code := Run(context.Background(), nil, testOptions(), 0, nil); code != 0 {
		t.Fatalf("expected exit 0 with clamped workers, got %d", code)
	}
}

func TestRunReportsFailures(t *testing.T) {
	channels := []string{"https://vimeo.com/a", "https://example.com/b"}
	store := &recordingStore{}

	results, code := Run(context.Background(), channels, testOptions(), 2, store)
	if code != 2 {
		t.Fatalf("expected invalid-url exit code 2, got %d", code)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result per channel, got %+v", results)
	}
	seen := map[string]bool{}
	for _, res := range results {
		seen[res.Channel] = true
		if res.Err == nil || res.Error == "" {
			t.Fatalf("expected populated error for %q, got %+v", res.Channel, res)
		}
		if res.Summary != nil {
			t.Fatalf("unexpected summary on a failed channel: %+v", res)
		}
	}
	for _, channel := range channels {
		if !seen[channel] {
			t.Fatalf("missing result for %q: %+v", channel, results)
		}
	}
	if got := store.count(); got != 0 {
		t.Fatalf("expected no persistence without a finished run, got %d saves", got)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, code := Run(ctx, []string{"UCzzzzzzzzzzzzzzzzzzzzzz"}, testOptions(), 1, nil)
	if code != 130 {
		t.Fatalf("expected exit 130 after cancellation, got %d", code)
	}
	// The submit loop races cancellation, so the single channel may or
	// may not have produced a result.
	if len(results) > 1 {
		t.Fatalf("expected at most one result, got %+v", results)
	}
	if len(results) == 1 {
		if results[0].Channel != "UCzzzzzzzzzzzzzzzzzzzzzz" {
			t.Fatalf("unexpected result: %+v", results[0])
		}
		if !errors.Is(results[0].Err, context.Canceled) {
			t.Fatalf("expected context error, got %v", results[0].Err)
		}
	}
}

func TestResultJSONShape(t *testing.T) {
	failed, err := json.Marshal(Result{Channel: "main", Err: errors.New("boom"), Error: "boom"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(failed) != `{"channel":"main","error":"boom"}` {
		t.Fatalf("unexpected failed-result shape: %s", failed)
	}

	ok, err := json.Marshal(Result{
		Channel: "main",
		Summary: &collector.ExportSummary{Channel: "main", Total: 2},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(ok), "error") {
		t.Fatalf("error field must be omitted on success: %s", ok)
	}
	if !strings.Contains(string(ok), `"total":2`) {
		t.Fatalf("summary not embedded: %s", ok)
	}
}

// --- Test helpers ---

func testOptions() collector.Options {
	return collector.Options{Quiet: true, DisableSTT: true}
}

type recordingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *recordingStore) SaveRun(ctx context.Context, result *collector.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
