package db

import "strings"

// Completeness labels for a collected record.
const (
	CompletenessFull           = "full"
	CompletenessMetadataOnly   = "metadata-only"
	CompletenessTranscriptOnly = "transcript-only"
	CompletenessEmpty          = "empty"
)

// ClassifyCompleteness reports what a record actually carries. Videos that
// every metadata pass missed still get a row with the canonical URL, so the
// URL and ID fields do not count as metadata here.
func ClassifyCompleteness(record ShortRecord) string {
	hasMetadata := record.Title != "" ||
		record.ReleaseDate != "" ||
		record.Views > 0 ||
		record.Likes > 0
	hasTranscript := strings.TrimSpace(record.Transcript) != ""

	switch {
	case hasMetadata && hasTranscript:
		return CompletenessFull
	case hasMetadata:
		return CompletenessMetadataOnly
	case hasTranscript:
		return CompletenessTranscriptOnly
	default:
		return CompletenessEmpty
	}
}
