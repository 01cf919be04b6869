package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/kkdai/youtube/v2"
)

// shortsEntry is one row of a channel's shorts listing: the id plus
// whatever approximate metadata the listing itself carried.
type shortsEntry struct {
	ID        string
	Title     string
	ViewsText string
}

var channelIDPattern = regexp.MustCompile(`"(?:channelId|externalId|browseId)":"(UC[0-9A-Za-z_-]{22})"`)

// resolveChannelID turns any channel reference into its UC id, fetching
// the channel page when the reference does not carry the id directly.
func resolveChannelID(ctx context.Context, httpClient *http.Client, ref channelRef) (string, error) {
	if ref.ID != "" {
		return ref.ID, nil
	}
	pageURL := ref.PageURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", wrapCategory(CategoryNetwork, fmt.Errorf("fetching channel page: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("fetching channel page: unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", wrapCategory(CategoryNetwork, fmt.Errorf("reading channel page: %w", err))
	}
	if m := channelIDPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", wrapCategory(CategoryNoData, fmt.Errorf("no channel id on page %s", pageURL))
}

// listingSources builds the enumeration cascade: the Shorts tab first,
// the synthesized shorts playlist as backup, the uploads feed as last
// resort. The feed covers only recent uploads and cannot distinguish
// shorts from regular videos, so it trades accuracy for availability.
func (c *Collector) listingSources(channelID string, feed *rssFeed) []Source[[]shortsEntry] {
	return []Source[[]shortsEntry]{
		{
			Name: "innertube-shorts",
			Fetch: func(ctx context.Context) ([]shortsEntry, error) {
				return c.browse.listShorts(ctx, channelID, c.opts.Limit, c.throttle)
			},
		},
		{
			Name: "uploads-playlist",
			Fetch: func(ctx context.Context) ([]shortsEntry, error) {
				return listShortsPlaylist(ctx, c.yt, channelID, c.opts.Limit)
			},
		},
		rssListingSource(feed, c.opts.Limit),
	}
}

// listShortsPlaylist lists through the channel's synthesized shorts
// playlist (UUSH prefix). The playlist API carries titles but no view
// counts.
func listShortsPlaylist(ctx context.Context, client *youtube.Client, channelID string, limit int) ([]shortsEntry, error) {
	playlistID := shortsPlaylistID(channelID)
	if playlistID == "" {
		return nil, fmt.Errorf("no shorts playlist for %q", channelID)
	}
	playlist, err := client.GetPlaylistContext(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist %s: %w", playlistID, err)
	}
	entries := make([]shortsEntry, 0, len(playlist.Videos))
	for _, video := range playlist.Videos {
		if video == nil || video.ID == "" {
			continue
		}
		entries = append(entries, shortsEntry{ID: video.ID, Title: video.Title})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

// listingMetadataSource serves approximate metadata from rows the listing
// pass already fetched, without further network calls. Listing view
// counts are rounded ("1.2M views"), and the listing has no dates or like
// counts.
func listingMetadataSource(entries []shortsEntry) MetadataSource {
	byID := make(map[string]shortsEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return MetadataSource{
		Name: "shorts-listing",
		Batch: func(ctx context.Context, ids []string) (map[string]MetadataRecord, error) {
			found := make(map[string]MetadataRecord)
			for _, id := range ids {
				e, ok := byID[id]
				if !ok || e.Title == "" {
					continue
				}
				found[id] = MetadataRecord{
					ID:    id,
					Title: e.Title,
					Views: parseCount(e.ViewsText),
				}
			}
			if len(found) == 0 {
				return nil, errors.New("no listing rows for requested videos")
			}
			return found, nil
		},
	}
}
