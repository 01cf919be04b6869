package collector

import (
	"context"
	"errors"
	"sync"
)

// TranscriptTier identifies which cascade produced a transcript.
type TranscriptTier string

const (
	TierCaption      TranscriptTier = "caption"
	TierSpeechToText TranscriptTier = "speech-to-text"
	TierNone         TranscriptTier = "none"
)

// TranscriptRecord is the per-video transcript outcome. Text is empty when
// both tiers came up dry; Tier records which one delivered.
type TranscriptRecord struct {
	ID   string         `json:"id"`
	Text string         `json:"text"`
	Tier TranscriptTier `json:"tier"`
}

// TranscriptConfig wires the transcript tiers for a collection run.
// Captions builds the caption cascade for a video; SpeechToText builds
// the speech tier, consulted only when captions yield no text and
// EnableSTT is set. SpeechToText may return a cleanup func, run after
// the tier finishes.
type TranscriptConfig struct {
	Captions     func(id string) []Source[string]
	SpeechToText func(id string) ([]Source[string], func())
	EnableSTT    bool
	Throttle     Throttle
	Workers      int

	// OnResolved observes each finished video in completion order. It is
	// called from a single goroutine.
	OnResolved func(rec TranscriptRecord, attempts []Attempt)
}

// ResolveTranscript resolves one video: captions first, speech-to-text
// only when captions yield no text and STT is enabled. Source failures
// never escape; a video with no transcript comes back with tier "none".
// The returned error is non-nil only on context cancellation.
func ResolveTranscript(ctx context.Context, id string, cfg TranscriptConfig) (TranscriptRecord, []Attempt, error) {
	rec := TranscriptRecord{ID: id, Tier: TierNone}
	var trail []Attempt

	var captionSources []Source[string]
	if cfg.Captions != nil {
		captionSources = cfg.Captions(id)
	}
	text, _, attempts, err := RunCascade(ctx, cfg.Throttle, captionSources)
	trail = append(trail, attempts...)
	if err != nil && !isExhausted(err) {
		return rec, trail, err
	}
	if err == nil {
		if cleaned := collapseWhitespace(text); cleaned != "" {
			rec.Text = cleaned
			rec.Tier = TierCaption
			return rec, trail, nil
		}
	}

	if !cfg.EnableSTT || cfg.SpeechToText == nil {
		return rec, trail, nil
	}
	if len(trail) > 0 {
		if err := waitThrottle(ctx, cfg.Throttle); err != nil {
			return rec, trail, err
		}
	}
	sttSources, cleanup := cfg.SpeechToText(id)
	if cleanup != nil {
		defer cleanup()
	}
	text, _, attempts, err = RunCascade(ctx, cfg.Throttle, sttSources)
	trail = append(trail, attempts...)
	if err != nil {
		if isExhausted(err) {
			return rec, trail, nil
		}
		return rec, trail, err
	}
	if cleaned := collapseWhitespace(text); cleaned != "" {
		rec.Text = cleaned
		rec.Tier = TierSpeechToText
	}
	return rec, trail, nil
}

// ResolveTranscripts resolves all ids on a bounded worker pool.
// Cancellation is cooperative: videos already resolved stay in the
// returned map, videos not yet started are skipped.
func ResolveTranscripts(ctx context.Context, ids []string, cfg TranscriptConfig) (map[string]TranscriptRecord, error) {
	records := make(map[string]TranscriptRecord, len(ids))
	if len(ids) == 0 {
		return records, nil
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	type result struct {
		rec      TranscriptRecord
		attempts []Attempt
		err      error
	}
	tasks := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for id := range tasks {
				if !first {
					if err := waitThrottle(ctx, cfg.Throttle); err != nil {
						results <- result{err: err}
						continue
					}
				}
				first = false
				rec, attempts, err := ResolveTranscript(ctx, id, cfg)
				results <- result{rec: rec, attempts: attempts, err: err}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, id := range ids {
			select {
			case tasks <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		records[res.rec.ID] = res.rec
		if cfg.OnResolved != nil {
			cfg.OnResolved(res.rec, res.attempts)
		}
	}
	return records, firstErr
}

func isExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
