package collector

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// channelRef identifies a channel by whichever reference the caller gave:
// a raw UC id, an @handle, or a channel URL (including legacy /c/ and
// /user/ paths that only resolve to an id over the network).
type channelRef struct {
	Input      string
	ID         string
	Handle     string
	LegacyPath string
}

func parseChannelRef(raw string) (channelRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return channelRef{}, wrapCategory(CategoryInvalidURL, errors.New("no channel provided"))
	}
	ref := channelRef{Input: trimmed}
	if strings.HasPrefix(trimmed, "@") {
		ref.Handle = strings.TrimPrefix(trimmed, "@")
		return ref, nil
	}
	if isChannelID(trimmed) {
		ref.ID = trimmed
		return ref, nil
	}
	if !strings.Contains(trimmed, "/") {
		// A bare word is taken as a handle.
		ref.Handle = trimmed
		return ref, nil
	}
	withScheme := trimmed
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	parsed, err := url.Parse(withScheme)
	if err != nil {
		return channelRef{}, wrapCategory(CategoryInvalidURL, fmt.Errorf("invalid channel URL: %w", err))
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
	default:
		return channelRef{}, wrapCategory(CategoryInvalidURL, fmt.Errorf("not a youtube channel URL: %s", trimmed))
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	switch {
	case len(parts) > 0 && strings.HasPrefix(parts[0], "@") && len(parts[0]) > 1:
		ref.Handle = strings.TrimPrefix(parts[0], "@")
	case len(parts) > 1 && parts[0] == "channel" && isChannelID(parts[1]):
		ref.ID = parts[1]
	case len(parts) > 1 && (parts[0] == "c" || parts[0] == "user") && parts[1] != "":
		ref.LegacyPath = parts[0] + "/" + parts[1]
	default:
		return channelRef{}, wrapCategory(CategoryInvalidURL, fmt.Errorf("unrecognized channel reference: %s", trimmed))
	}
	return ref, nil
}

// isChannelID reports whether s looks like a raw channel id.
func isChannelID(s string) bool {
	return len(s) == 24 && strings.HasPrefix(s, "UC")
}

// Slug returns the filename-friendly channel name used for export files.
func (c channelRef) Slug() string {
	switch {
	case c.Handle != "":
		return sanitizeFilename(c.Handle)
	case c.ID != "":
		return c.ID
	case c.LegacyPath != "":
		if i := strings.IndexByte(c.LegacyPath, '/'); i >= 0 {
			return sanitizeFilename(c.LegacyPath[i+1:])
		}
	}
	return "channel"
}

// PageURL returns the channel page fetched to resolve the UC id when only
// a handle or legacy path is known.
func (c channelRef) PageURL() string {
	switch {
	case c.ID != "":
		return "https://www.youtube.com/channel/" + c.ID
	case c.Handle != "":
		return "https://www.youtube.com/@" + url.PathEscape(c.Handle)
	default:
		return "https://www.youtube.com/" + c.LegacyPath
	}
}

// ShortsURL rebuilds the canonical shorts URL for a video id. Export
// records always carry this form regardless of how the id was discovered.
func ShortsURL(videoID string) string {
	return "https://www.youtube.com/shorts/" + videoID
}

func watchURLForID(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// shortsPlaylistID maps a channel id to its shorts-only uploads playlist
// ("UUSH" plus the id without its UC prefix).
func shortsPlaylistID(channelID string) string {
	if !isChannelID(channelID) {
		return ""
	}
	return "UUSH" + strings.TrimPrefix(channelID, "UC")
}

func feedURLForChannel(channelID string) string {
	return "https://www.youtube.com/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}
