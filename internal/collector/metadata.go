package collector

import (
	"context"
	"errors"
	"fmt"
)

// MetadataRecord is the normalized per-video metadata a source resolves.
// Unknown counts stay 0 and unknown dates stay empty; the merge engine
// exports those defaults as-is.
type MetadataRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	ReleaseDate string `json:"release_date"`
}

// MetadataSource is one provider in the metadata cascade. Exactly one of
// Batch and Video is set: Batch resolves many ids in a single call, Video
// resolves one id per call.
type MetadataSource struct {
	Name  string
	Batch func(ctx context.Context, ids []string) (map[string]MetadataRecord, error)
	Video func(ctx context.Context, id string) (MetadataRecord, error)
}

// MetadataUnavailableError means the metadata pass resolved nothing at
// all: every source failed for every video. Attempts preserve walk order.
type MetadataUnavailableError struct {
	Attempts []Attempt
}

func (e *MetadataUnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "metadata unavailable: no sources configured"
	}
	return fmt.Sprintf("metadata unavailable: all %d sources failed", len(e.Attempts))
}

// Reasons returns one failure description per source, in walk order.
func (e *MetadataUnavailableError) Reasons() []string {
	return attemptReasons(e.Attempts)
}

// CollectMetadata walks the source list in priority order until every id
// is resolved or the list runs out. The first batch source that returns
// records settles every still-unresolved id at once (ids it omits degrade
// to the empty record). Per-video sources resolve ids independently; ids
// they fail on continue to later sources, and ids no source resolves
// degrade to the empty record. Only a pass that resolves nothing for
// anyone is an error.
func CollectMetadata(ctx context.Context, ids []string, sources []MetadataSource, throttle Throttle) (map[string]MetadataRecord, []Attempt, error) {
	records := make(map[string]MetadataRecord, len(ids))
	attempts := make([]Attempt, 0, len(sources))
	if len(ids) == 0 {
		return records, attempts, nil
	}

	unresolved := make([]string, len(ids))
	copy(unresolved, ids)
	resolvedTotal := 0

	for i, src := range sources {
		if len(unresolved) == 0 {
			break
		}
		if i > 0 {
			if err := waitThrottle(ctx, throttle); err != nil {
				return records, attempts, err
			}
		}
		if err := ctx.Err(); err != nil {
			return records, attempts, err
		}

		switch {
		case src.Batch != nil:
			found, err := src.Batch(ctx, unresolved)
			if err == nil && len(found) == 0 {
				err = errors.New("empty response")
			}
			if err != nil {
				attempts = append(attempts, newAttempt(src.Name, providerErr(src.Name, err)))
				continue
			}
			// A winning batch settles the rest of the walk outright.
			for _, id := range unresolved {
				rec, ok := found[id]
				if ok {
					resolvedTotal++
				}
				rec.ID = id
				records[id] = rec
			}
			unresolved = nil
			attempts = append(attempts, newAttempt(src.Name, nil))

		case src.Video != nil:
			var still []string
			var lastErr error
			resolvedHere := 0
			for j, id := range unresolved {
				if j > 0 {
					if err := waitThrottle(ctx, throttle); err != nil {
						return records, attempts, err
					}
				}
				if err := ctx.Err(); err != nil {
					return records, attempts, err
				}
				rec, err := src.Video(ctx, id)
				if err != nil {
					lastErr = providerErr(src.Name, err)
					still = append(still, id)
					continue
				}
				rec.ID = id
				records[id] = rec
				resolvedHere++
			}
			if resolvedHere > 0 {
				resolvedTotal += resolvedHere
				attempts = append(attempts, newAttempt(src.Name, nil))
			} else {
				attempts = append(attempts, newAttempt(src.Name, fmt.Errorf("resolved none of %d videos: %w", len(unresolved), lastErr)))
			}
			unresolved = still

		default:
			attempts = append(attempts, newAttempt(src.Name, errors.New("source has no fetch function")))
		}
	}

	if resolvedTotal == 0 {
		return nil, attempts, wrapCategory(CategoryNoData, &MetadataUnavailableError{Attempts: attempts})
	}
	for _, id := range unresolved {
		records[id] = MetadataRecord{ID: id}
	}
	return records, attempts, nil
}
