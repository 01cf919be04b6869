package app

import (
	"context"
	"sync"

	"github.com/lvcoi/shorts-collector/internal/collector"
)

// Result is one channel's outcome, JSON-shaped for the -json stream.
type Result struct {
	Channel string                   `json:"channel"`
	Err     error                    `json:"-"`
	Error   string                   `json:"error,omitempty"`
	Summary *collector.ExportSummary `json:"summary,omitempty"`
}

// Store persists finished runs. A nil Store skips persistence.
type Store interface {
	SaveRun(ctx context.Context, result *collector.RunResult) error
}

// Run collects every channel on a bounded worker pool and returns the
// per-channel results plus the process exit code: the highest code among
// failures, or 130 when the context was cancelled.
func Run(ctx context.Context, channels []string, opts collector.Options, jobs int, store Store) ([]Result, int) {
	if jobs < 1 {
		jobs = 1
	}

	type task struct {
		channel string
	}
	tasks := make(chan task)
	results := make(chan Result, len(channels))

	if opts.Progress != nil {
		opts.Progress.Start(ctx)
		defer opts.Progress.Stop()
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-tasks:
					if !ok {
						return
					}
					result := Result{Channel: t.channel}
					result.Err = collectOne(ctx, t.channel, opts, store, &result)
					if result.Err != nil {
						result.Error = result.Err.Error()
					}
					select {
					case results <- result:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	submitted := 0
	for _, channel := range channels {
		select {
		case <-ctx.Done():
			close(tasks)
			goto done
		case tasks <- task{channel: channel}:
			submitted++
		}
	}
	close(tasks)

done:
	go func() {
		wg.Wait()
		close(results)
	}()

	output := make([]Result, 0, submitted)
	exitCode := 0

	for res := range results {
		output = append(output, res)
		if res.Err != nil {
			if code := collector.ExitCode(res.Err); code > exitCode {
				exitCode = code
			}
		}
	}

	// Cancellation overrides whatever codes the interrupted channels
	// surfaced on the way down.
	if ctx.Err() != nil {
		exitCode = 130
	}

	return output, exitCode
}

// collectOne runs one channel with its own Collector; a shared TUI rides
// in on opts. Partial results from a cancelled run are still persisted.
func collectOne(ctx context.Context, channel string, opts collector.Options, store Store, result *Result) error {
	c, err := collector.New(opts)
	if err != nil {
		return err
	}
	runResult, err := c.Collect(ctx, channel)
	if runResult != nil {
		summary := runResult.Summary
		result.Summary = &summary
		if store != nil {
			if saveErr := store.SaveRun(ctx, runResult); saveErr != nil && err == nil {
				err = saveErr
			}
		}
	}
	return err
}
