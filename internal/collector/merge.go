package collector

import "sort"

// ExportRecord is one exported video. Struct order here is the serialized
// field order; keep it stable.
type ExportRecord struct {
	Title       string `json:"title"`
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	ReleaseDate string `json:"release_date"`
	VideoURL    string `json:"video_url"`
	VideoID     string `json:"video_id"`
	Transcript  string `json:"transcript"`
}

// Merge joins metadata and transcripts into one record per video. ids fix
// the output order; identifiers appearing only in the maps are appended
// after them in sorted order, so equal inputs always produce identical
// output. Missing halves keep their zero values, and video_url is always
// rebuilt from the id no matter which source discovered the video.
func Merge(ids []string, meta map[string]MetadataRecord, transcripts map[string]TranscriptRecord) []ExportRecord {
	seen := make(map[string]struct{}, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	var extra []string
	for id := range meta {
		if _, ok := seen[id]; !ok && id != "" {
			seen[id] = struct{}{}
			extra = append(extra, id)
		}
	}
	for id := range transcripts {
		if _, ok := seen[id]; !ok && id != "" {
			seen[id] = struct{}{}
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	records := make([]ExportRecord, 0, len(order))
	for _, id := range order {
		m := meta[id]
		t := transcripts[id]
		records = append(records, ExportRecord{
			Title:       m.Title,
			Views:       m.Views,
			Likes:       m.Likes,
			ReleaseDate: m.ReleaseDate,
			VideoURL:    ShortsURL(id),
			VideoID:     id,
			Transcript:  t.Text,
		})
	}
	return records
}
