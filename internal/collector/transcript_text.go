package collector

import "strings"

// transcriptKeys are the payload fields probed for transcript text, in
// order. Providers disagree on the field name; these cover the shapes seen
// in the wild.
var transcriptKeys = [...]string{"text", "transcript", "captions", "transcription", "content", "subtitles"}

// TranscriptText flattens a provider transcript payload to plain text. It
// accepts a bare string, a map carrying one of the known text fields, or a
// list of segments (strings or maps), and returns trimmed text with runs
// of whitespace collapsed. Malformed payloads yield "".
func TranscriptText(payload any) string {
	return collapseWhitespace(flattenTranscript(payload))
}

func flattenTranscript(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range transcriptKeys {
			value, ok := v[key]
			if !ok {
				continue
			}
			if text := flattenTranscript(value); text != "" {
				return text
			}
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if text := flattenTranscript(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
