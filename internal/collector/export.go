package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExportSummary is the per-channel run summary for machine output and the
// control panel.
type ExportSummary struct {
	Channel         string `json:"channel"`
	Output          string `json:"output,omitempty"`
	Total           int    `json:"total"`
	WithTranscripts int    `json:"with_transcripts"`
	Captioned       int    `json:"captioned"`
	Transcribed     int    `json:"transcribed"`
}

// Summarize counts transcript coverage for a finished record set.
func Summarize(channel, output string, records []ExportRecord, transcripts map[string]TranscriptRecord) ExportSummary {
	s := ExportSummary{Channel: channel, Output: output, Total: len(records)}
	for _, rec := range records {
		if rec.Transcript != "" {
			s.WithTranscripts++
		}
	}
	for _, t := range transcripts {
		switch t.Tier {
		case TierCaption:
			s.Captioned++
		case TierSpeechToText:
			s.Transcribed++
		}
	}
	return s
}

// EncodeExport writes records as an indented JSON array with HTML escaping
// off, so titles and transcripts survive round-trips literally. A nil
// slice still encodes as an empty array.
func EncodeExport(w io.Writer, records []ExportRecord) error {
	if records == nil {
		records = []ExportRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// WriteExport writes records to path, creating parent directories as
// needed.
func WriteExport(path string, records []ExportRecord) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapCategory(CategoryFilesystem, fmt.Errorf("creating output directory: %w", err))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("creating export file: %w", err))
	}
	if err := EncodeExport(f, records); err != nil {
		f.Close()
		return wrapCategory(CategoryFilesystem, fmt.Errorf("writing export: %w", err))
	}
	if err := f.Close(); err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("closing export file: %w", err))
	}
	return nil
}

// exportPath resolves the output file for a channel. An explicit template
// may carry a {channel} placeholder; the default is
// <channel>_shorts_data.json in the working directory.
func exportPath(template, slug string) string {
	if template == "" {
		return slug + "_shorts_data.json"
	}
	if strings.Contains(template, "{channel}") {
		return strings.ReplaceAll(template, "{channel}", slug)
	}
	return template
}
