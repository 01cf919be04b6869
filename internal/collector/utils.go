package collector

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parseCount turns a human count ("1,234", "1.2M views", "No views") into
// an integer. Malformed or unknown counts come back 0.
func parseCount(raw string) int64 {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "  "); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult, s = 1_000, s[:len(s)-1]
	case 'M', 'm':
		mult, s = 1_000_000, s[:len(s)-1]
	case 'B', 'b':
		mult, s = 1_000_000_000, s[:len(s)-1]
	}
	if mult == 1 {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(math.Round(f * float64(mult)))
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseDate normalizes the date formats providers emit to YYYY-MM-DD.
// Unrecognized formats come back empty rather than wrong.
func parseDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

func sanitizeFilename(name string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(name, "-")
	cleaned = strings.Trim(cleaned, " .-")
	if cleaned == "" {
		return "channel"
	}
	return cleaned
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// formatDurationShort formats a duration in a short human-readable format.
// Returns format like "5s", "2m30s", or "1h15m" depending on duration length.
func formatDurationShort(d time.Duration) string {
	totalSeconds := int64(d.Seconds())

	if d < time.Minute {
		return fmt.Sprintf("%ds", totalSeconds)
	} else if d < time.Hour {
		mins := totalSeconds / 60
		secs := totalSeconds % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}

	hours := totalSeconds / 3600
	mins := (totalSeconds % 3600) / 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
