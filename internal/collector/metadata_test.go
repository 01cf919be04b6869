package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestCollectMetadataBatchSettlesRemaining(t *testing.T) {
	ids := []string{"aaa", "bbb", "ccc"}
	var laterCalls int32
	sources := []MetadataSource{
		{
			Name: "partial-batch",
			Batch: func(ctx context.Context, ids []string) (map[string]MetadataRecord, error) {
				// Resolves two of three; the third must degrade to an
				// empty record rather than reach the next source.
				return map[string]MetadataRecord{
					"aaa": {Title: "first", Views: 10},
					"bbb": {Title: "second", Views: 20},
				}, nil
			},
		},
		{
			Name: "never-reached",
			Video: func(ctx context.Context, id string) (MetadataRecord, error) {
				atomic.AddInt32(&laterCalls, 1)
				return MetadataRecord{Title: "late"}, nil
			},
		},
	}

	records, attempts, err := CollectMetadata(context.Background(), ids, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records["aaa"].Title != "first" || records["bbb"].Title != "second" {
		t.Fatalf("resolved records wrong: %+v", records)
	}
	if rec := records["ccc"]; rec.ID != "ccc" || rec.Title != "" || rec.Views != 0 {
		t.Fatalf("omitted id must degrade to the empty record, got %+v", rec)
	}
	if laterCalls != 0 {
		t.Fatalf("batch win must settle the walk, but later source saw %d calls", laterCalls)
	}
	if len(attempts) != 1 || !attempts[0].Succeeded {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
}

func TestCollectMetadataPerVideoIsolation(t *testing.T) {
	ids := []string{"aaa", "bbb"}
	sources := []MetadataSource{
		{
			Name: "flaky",
			Video: func(ctx context.Context, id string) (MetadataRecord, error) {
				if id == "aaa" {
					return MetadataRecord{}, errors.New("not in index")
				}
				return MetadataRecord{Title: "from flaky"}, nil
			},
		},
		{
			Name: "backup",
			Video: func(ctx context.Context, id string) (MetadataRecord, error) {
				return MetadataRecord{Title: "from backup"}, nil
			},
		},
	}

	records, attempts, err := CollectMetadata(context.Background(), ids, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records["bbb"].Title != "from flaky" {
		t.Fatalf("expected bbb resolved by first source, got %+v", records["bbb"])
	}
	if records["aaa"].Title != "from backup" {
		t.Fatalf("expected aaa to fall through to backup, got %+v", records["aaa"])
	}
	if len(attempts) != 2 || !attempts[0].Succeeded || !attempts[1].Succeeded {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
}

func TestCollectMetadataRecordsCarryTheirID(t *testing.T) {
	sources := []MetadataSource{
		{
			Name: "forgetful",
			Video: func(ctx context.Context, id string) (MetadataRecord, error) {
				// Sources routinely leave ID unset; the walk stamps it.
				return MetadataRecord{Title: "t"}, nil
			},
		},
	}
	records, _, err := CollectMetadata(context.Background(), []string{"vid1"}, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records["vid1"].ID != "vid1" {
		t.Fatalf("expected stamped id, got %+v", records["vid1"])
	}
}

func TestCollectMetadataAllSourcesFail(t *testing.T) {
	sources := []MetadataSource{
		{Name: "one", Batch: func(ctx context.Context, ids []string) (map[string]MetadataRecord, error) {
			return nil, errors.New("down")
		}},
		{Name: "two", Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			return MetadataRecord{}, errors.New("also down")
		}},
	}

	records, attempts, err := CollectMetadata(context.Background(), []string{"aaa"}, sources, nil)
	if records != nil {
		t.Fatalf("expected nil records on total failure, got %+v", records)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	var unavailable *MetadataUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected MetadataUnavailableError, got %T: %v", err, err)
	}
	if got := CategoryOf(err); got != CategoryNoData {
		t.Fatalf("expected no-data category, got %q", got)
	}
	if len(unavailable.Reasons()) != 2 {
		t.Fatalf("expected 2 reasons, got %v", unavailable.Reasons())
	}
}

func TestCollectMetadataEmptyBatchIsFailure(t *testing.T) {
	var backupCalls int32
	sources := []MetadataSource{
		{Name: "hollow", Batch: func(ctx context.Context, ids []string) (map[string]MetadataRecord, error) {
			return map[string]MetadataRecord{}, nil
		}},
		{Name: "backup", Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			atomic.AddInt32(&backupCalls, 1)
			return MetadataRecord{Title: "saved"}, nil
		}},
	}

	records, attempts, err := CollectMetadata(context.Background(), []string{"aaa"}, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backupCalls != 1 {
		t.Fatalf("empty batch must not settle the walk, backup saw %d calls", backupCalls)
	}
	if records["aaa"].Title != "saved" {
		t.Fatalf("unexpected record: %+v", records["aaa"])
	}
	if len(attempts) != 2 || attempts[0].Succeeded {
		t.Fatalf("expected failed first attempt: %+v", attempts)
	}
}

func TestCollectMetadataLeftoverIDsDegrade(t *testing.T) {
	// One id resolves, the other fails everywhere: the run still succeeds
	// and the loser comes back as an id-only record.
	sources := []MetadataSource{
		{Name: "picky", Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			if id != "good" {
				return MetadataRecord{}, errors.New("unknown video")
			}
			return MetadataRecord{Title: "found"}, nil
		}},
	}

	records, _, err := CollectMetadata(context.Background(), []string{"good", "lost"}, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records["good"].Title != "found" {
		t.Fatalf("unexpected resolved record: %+v", records["good"])
	}
	if rec := records["lost"]; rec.ID != "lost" || rec.Title != "" {
		t.Fatalf("expected empty record for unresolved id, got %+v", rec)
	}
}

func TestCollectMetadataNoIDs(t *testing.T) {
	var calls int32
	sources := []MetadataSource{
		{Name: "untouched", Batch: func(ctx context.Context, ids []string) (map[string]MetadataRecord, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("should not run")
		}},
	}
	records, attempts, err := CollectMetadata(context.Background(), nil, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 || len(attempts) != 0 || calls != 0 {
		t.Fatalf("expected idle walk for zero ids: %d records, %d attempts, %d calls", len(records), len(attempts), calls)
	}
}

func TestCollectMetadataContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sources := []MetadataSource{
		{Name: "canceller", Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			cancel()
			return MetadataRecord{Title: "partial"}, nil
		}},
	}

	_, _, err := CollectMetadata(ctx, []string{"aaa", "bbb"}, sources, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCollectMetadataSourceWithoutFetch(t *testing.T) {
	sources := []MetadataSource{
		{Name: "misconfigured"},
		{Name: "working", Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			return MetadataRecord{Title: "ok"}, nil
		}},
	}
	records, attempts, err := CollectMetadata(context.Background(), []string{"aaa"}, sources, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records["aaa"].Title != "ok" {
		t.Fatalf("unexpected record: %+v", records["aaa"])
	}
	if len(attempts) != 2 || attempts[0].Succeeded {
		t.Fatalf("misconfigured source must log a failed attempt: %+v", attempts)
	}
}
