package collector

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractVideoIDFieldNames(t *testing.T) {
	// The same id must come back regardless of which field a provider
	// stores it under.
	records := []map[string]any{
		{"id": "dQw4w9WgXcQ"},
		{"videoId": "dQw4w9WgXcQ"},
		{"url": "https://www.youtube.com/shorts/dQw4w9WgXcQ"},
		{"videoUrl": "https://youtu.be/dQw4w9WgXcQ"},
	}
	for i, record := range records {
		id, err := ExtractVideoID(record)
		if err != nil {
			t.Errorf("record %d: unexpected error: %v", i, err)
			continue
		}
		if id != "dQw4w9WgXcQ" {
			t.Errorf("record %d: expected dQw4w9WgXcQ, got %q", i, id)
		}
	}
}

func TestExtractVideoIDURLShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-"},
		{"https://youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-"},
		{"https://www.youtube.com/watch?v=abc123XYZ_-", "abc123XYZ_-"},
		{"https://youtu.be/abc123XYZ_-", "abc123XYZ_-"},
		{"https://m.youtube.com/shorts/abc123XYZ_-/", "abc123XYZ_-"},
		{"abc123XYZ_-", "abc123XYZ_-"},
		{"  abc123XYZ_-  ", "abc123XYZ_-"},
	}
	for _, tt := range tests {
		id, err := ExtractVideoID(tt.raw)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.raw, err)
			continue
		}
		if id != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.raw, tt.want, id)
		}
	}
}

func TestExtractVideoIDFieldPriority(t *testing.T) {
	// id outranks the url fields when both are present.
	record := map[string]any{
		"id":  "firstchoice",
		"url": "https://www.youtube.com/shorts/secondchoice",
	}
	id, err := ExtractVideoID(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "firstchoice" {
		t.Fatalf("expected id field to win, got %q", id)
	}
}

func TestExtractVideoIDSkipsUnusableFields(t *testing.T) {
	// A non-string id must not mask a usable url field.
	record := map[string]any{
		"id":  42,
		"url": "https://www.youtube.com/shorts/fallback11",
	}
	id, err := ExtractVideoID(record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "fallback11" {
		t.Fatalf("expected fallback to url field, got %q", id)
	}
}

func TestExtractVideoIDUnresolvable(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"empty string", ""},
		{"whitespace", "   "},
		{"keyless record", map[string]any{"title": "hi"}},
		{"unsupported type", 42},
		{"relative path", "some/relative/path"},
		{"no video marker", "https://www.youtube.com/feed/subscriptions"},
	}
	for _, tt := range tests {
		_, err := ExtractVideoID(tt.raw)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !errors.Is(err, ErrUnresolvableIdentifier) {
			t.Errorf("%s: expected ErrUnresolvableIdentifier, got %v", tt.name, err)
		}
		if got := CategoryOf(err); got != CategoryInvalidURL {
			t.Errorf("%s: expected invalid-url category, got %q", tt.name, got)
		}
	}
}

func TestExtractVideoIDErrorNamesRecordKeys(t *testing.T) {
	_, err := ExtractVideoID(map[string]any{"zeta": 1, "alpha": 2})
	if err == nil {
		t.Fatal("expected error")
	}
	// Keys are sorted so the message is stable across runs.
	if !strings.Contains(err.Error(), "[alpha zeta]") {
		t.Fatalf("expected sorted keys in message, got %q", err.Error())
	}
}
