package collector

import (
	"context"
	"fmt"
	"strings"
)

// Source is one provider in a fallback cascade: a name for diagnostics and
// a fetch that returns the decoded value. A cascade run makes exactly one
// Fetch call per source.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (T, error)
}

// Attempt records the outcome of one source invocation. Err is kept for
// callers inside the process; Reason is its JSON-safe rendering.
type Attempt struct {
	Source    string `json:"source"`
	Succeeded bool   `json:"succeeded"`
	Err       error  `json:"-"`
	Reason    string `json:"reason,omitempty"`
}

func newAttempt(source string, err error) Attempt {
	a := Attempt{Source: source, Succeeded: err == nil, Err: err}
	if err != nil {
		a.Reason = err.Error()
	}
	return a
}

// ExhaustedError reports that every source in a cascade failed, or that no
// sources were configured. Attempts preserve cascade order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no sources configured"
	}
	return fmt.Sprintf("all %d sources failed: %s", len(e.Attempts), strings.Join(e.Reasons(), "; "))
}

// Reasons returns one failure description per attempt, in cascade order.
func (e *ExhaustedError) Reasons() []string {
	return attemptReasons(e.Attempts)
}

func attemptReasons(attempts []Attempt) []string {
	reasons := make([]string, 0, len(attempts))
	for _, a := range attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %v", a.Source, a.Err))
	}
	return reasons
}

// winnerOf returns the name of the source that succeeded, or "" when none
// did.
func winnerOf(attempts []Attempt) string {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Succeeded {
			return attempts[i].Source
		}
	}
	return ""
}

// RunCascade tries each source in priority order and returns the first
// success along with the winning source's name and the attempt log.
// Individual failures are swallowed into the attempts; the returned error
// is non-nil only when the context is cancelled or every source failed.
// Sources are never retried here: a second chance for a failed source only
// comes from the caller running the cascade again.
func RunCascade[T any](ctx context.Context, throttle Throttle, sources []Source[T]) (T, string, []Attempt, error) {
	var zero T
	attempts := make([]Attempt, 0, len(sources))
	for i, src := range sources {
		if i > 0 {
			if err := waitThrottle(ctx, throttle); err != nil {
				return zero, "", attempts, err
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, "", attempts, err
		}
		value, err := src.Fetch(ctx)
		if err != nil {
			attempts = append(attempts, newAttempt(src.Name, providerErr(src.Name, err)))
			continue
		}
		attempts = append(attempts, newAttempt(src.Name, nil))
		return value, src.Name, attempts, nil
	}
	return zero, "", attempts, &ExhaustedError{Attempts: attempts}
}
