package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// rssFeed lazily fetches and caches a channel's uploads feed. The feed
// covers only the most recent uploads, so lookups miss for older videos.
type rssFeed struct {
	channelID string
	parser    *gofeed.Parser

	once    sync.Once
	byID    map[string]MetadataRecord
	entries []shortsEntry
	err     error
}

func newRSSFeed(httpClient *http.Client, channelID string) *rssFeed {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	return &rssFeed{channelID: channelID, parser: parser}
}

func (f *rssFeed) load(ctx context.Context) (map[string]MetadataRecord, error) {
	f.once.Do(func() {
		feed, err := f.parser.ParseURLWithContext(feedURLForChannel(f.channelID), ctx)
		if err != nil {
			f.err = fmt.Errorf("fetching feed: %w", err)
			return
		}
		f.byID = make(map[string]MetadataRecord, len(feed.Items))
		for _, item := range feed.Items {
			rec, ok := feedItemRecord(item)
			if !ok {
				continue
			}
			f.byID[rec.ID] = rec
			f.entries = append(f.entries, shortsEntry{ID: rec.ID, Title: rec.Title})
		}
	})
	return f.byID, f.err
}

// feedItemRecord turns a feed item into a metadata record. View and like
// counts ride in the Media RSS community block.
func feedItemRecord(item *gofeed.Item) (MetadataRecord, bool) {
	id := feedVideoID(item)
	if id == "" {
		return MetadataRecord{}, false
	}
	rec := MetadataRecord{ID: id, Title: item.Title}
	if item.PublishedParsed != nil {
		rec.ReleaseDate = item.PublishedParsed.Format("2006-01-02")
	}
	if group := firstExtension(item.Extensions, "media", "group"); group != nil {
		if community := group.Children["community"]; len(community) > 0 {
			if stats := community[0].Children["statistics"]; len(stats) > 0 {
				rec.Views = parseCount(stats[0].Attrs["views"])
			}
			if rating := community[0].Children["starRating"]; len(rating) > 0 {
				rec.Likes = parseCount(rating[0].Attrs["count"])
			}
		}
	}
	return rec, true
}

func feedVideoID(item *gofeed.Item) string {
	if e := firstExtension(item.Extensions, "yt", "videoId"); e != nil && e.Value != "" {
		return e.Value
	}
	if item.Link != "" {
		if id, err := ExtractVideoID(item.Link); err == nil {
			return id
		}
	}
	return ""
}

func firstExtension(exts ext.Extensions, space, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	values := exts[space][name]
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

// rssMetadataSource resolves individual videos against the cached feed.
func rssMetadataSource(feed *rssFeed) MetadataSource {
	return MetadataSource{
		Name: "rss-feed",
		Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			records, err := feed.load(ctx)
			if err != nil {
				return MetadataRecord{}, err
			}
			rec, ok := records[id]
			if !ok {
				return MetadataRecord{}, fmt.Errorf("video %s not in feed", id)
			}
			return rec, nil
		},
	}
}

// rssListingSource enumerates from the cached feed, newest first.
func rssListingSource(feed *rssFeed, limit int) Source[[]shortsEntry] {
	return Source[[]shortsEntry]{
		Name: "rss-feed",
		Fetch: func(ctx context.Context) ([]shortsEntry, error) {
			if _, err := feed.load(ctx); err != nil {
				return nil, err
			}
			entries := feed.entries
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if len(entries) == 0 {
				return nil, errors.New("feed has no entries")
			}
			return entries, nil
		},
	}
}
