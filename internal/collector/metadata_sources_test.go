package collector

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestListingMetadataSource(t *testing.T) {
	entries := []shortsEntry{
		{ID: "aaa", Title: "First Short", ViewsText: "1.2M views"},
		{ID: "bbb", Title: "", ViewsText: "10 views"},
	}
	src := listingMetadataSource(entries)

	found, err := src.Batch(context.Background(), []string{"aaa", "bbb", "ccc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected only the titled row, got %v", found)
	}
	rec := found["aaa"]
	if rec.Title != "First Short" || rec.Views != 1200000 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Untitled rows and unknown ids resolve nothing.
	if _, err := src.Batch(context.Background(), []string{"bbb", "ccc"}); err == nil {
		t.Fatal("expected error when no rows match")
	}
}

func TestParseWatchPage(t *testing.T) {
	page := `<html><head>
<meta itemprop="name" content="Scraped Title">
<meta itemprop="interactionCount" content="543210">
<meta itemprop="datePublished" content="2024-02-10">
<script>var ytInitialData = {"likeCount":"6789","allowRatings":true};</script>
</head><body></body></html>`

	rec, err := parseWatchPage("abc", []byte(page))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "abc" || rec.Title != "Scraped Title" {
		t.Fatalf("unexpected identity: %+v", rec)
	}
	if rec.Views != 543210 || rec.Likes != 6789 {
		t.Fatalf("unexpected counts: %+v", rec)
	}
	if rec.ReleaseDate != "2024-02-10" {
		t.Fatalf("unexpected date: %+v", rec)
	}
}

func TestParseWatchPageFallbacks(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="OG Title">
<meta itemprop="uploadDate" content="2024-01-05T08:00:00Z">
</head></html>`

	rec, err := parseWatchPage("abc", []byte(page))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "OG Title" {
		t.Fatalf("expected og:title fallback, got %+v", rec)
	}
	if rec.ReleaseDate != "2024-01-05" {
		t.Fatalf("expected uploadDate fallback, got %+v", rec)
	}

	if _, err := parseWatchPage("abc", []byte("<html><head></head></html>")); err == nil {
		t.Fatal("expected error for a page without title metadata")
	}
}

func TestOembedSource(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		u := req.URL.String()
		if !strings.Contains(u, "/oembed") || !strings.Contains(u, "watch%3Fv%3Dabc") {
			t.Fatalf("unexpected oembed url: %s", u)
		}
		body := `{"title":"My Short","author_name":"Some Channel"}`
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(body))}, nil
	})}

	rec, err := oembedSource(client).Video(context.Background(), "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "abc" || rec.Title != "My Short" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestOembedSourceRejectsEmptyTitle(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`{"author_name":"x"}`))}, nil
	})}

	_, err := oembedSource(client).Video(context.Background(), "abc")
	if err == nil || !strings.Contains(err.Error(), "no title") {
		t.Fatalf("expected no-title error, got %v", err)
	}
}

func TestResolveChannelID(t *testing.T) {
	// A raw id resolves without touching the network.
	ref := channelRef{ID: "UCabcdefghijklmnopqrstuv"}
	id, err := resolveChannelID(context.Background(), nil, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "UCabcdefghijklmnopqrstuv" {
		t.Fatalf("unexpected id: %q", id)
	}

	// A handle needs the channel page.
	page := `<html><script>{"responseContext":{},"metadata":{"externalId":"UCabcdefghijklmnopqrstuv"}}</script></html>`
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.String(), "/@somechannel") {
			t.Fatalf("unexpected page url: %s", req.URL)
		}
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(page))}, nil
	})}
	id, err = resolveChannelID(context.Background(), client, channelRef{Handle: "somechannel"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "UCabcdefghijklmnopqrstuv" {
		t.Fatalf("unexpected id from page: %q", id)
	}
}

func TestResolveChannelIDErrors(t *testing.T) {
	notFound := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 404, Body: http.NoBody}, nil
	})}
	_, err := resolveChannelID(context.Background(), notFound, channelRef{Handle: "gone"})
	if got := CategoryOf(err); got != CategoryNoData {
		t.Fatalf("expected no-data category for 404, got %q (%v)", got, err)
	}

	noID := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader("<html>consent page</html>"))}, nil
	})}
	_, err = resolveChannelID(context.Background(), noID, channelRef{Handle: "opaque"})
	if err == nil || !strings.Contains(err.Error(), "no channel id") {
		t.Fatalf("expected missing-id error, got %v", err)
	}
	if got := CategoryOf(err); got != CategoryNoData {
		t.Fatalf("expected no-data category, got %q", got)
	}
}

const uploadsFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
  <title>Uploads</title>
  <entry>
    <id>yt:video:vid000000001</id>
    <yt:videoId>vid000000001</yt:videoId>
    <title>First Short</title>
    <link rel="alternate" href="https://www.youtube.com/shorts/vid000000001"/>
    <published>2024-03-15T10:00:00+00:00</published>
    <media:group>
      <media:title>First Short</media:title>
      <media:community>
        <media:starRating count="321" average="5.00" min="1" max="5"/>
        <media:statistics views="123456"/>
      </media:community>
    </media:group>
  </entry>
  <entry>
    <title>Linked Short</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=vid000000002"/>
    <published>2024-03-14T10:00:00+00:00</published>
  </entry>
  <entry>
    <title>Not a video</title>
    <link rel="alternate" href="https://example.com/elsewhere"/>
  </entry>
</feed>`

func feedClientForTest(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.String(), "feeds/videos.xml?channel_id=UCabcdefghijklmnopqrstuv") {
			t.Fatalf("unexpected feed url: %s", req.URL)
		}
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"application/atom+xml"}},
			Body:       io.NopCloser(strings.NewReader(uploadsFeedFixture)),
		}, nil
	})}
}

func TestRSSMetadataSource(t *testing.T) {
	feed := newRSSFeed(feedClientForTest(t), "UCabcdefghijklmnopqrstuv")
	src := rssMetadataSource(feed)

	rec, err := src.Video(context.Background(), "vid000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "First Short" || rec.ReleaseDate != "2024-03-15" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Views != 123456 || rec.Likes != 321 {
		t.Fatalf("community stats not parsed: %+v", rec)
	}

	// The second entry has no yt:videoId and falls back to its link.
	rec, err = src.Video(context.Background(), "vid000000002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Linked Short" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := src.Video(context.Background(), "missing00000"); err == nil {
		t.Fatal("expected error for an id outside the feed")
	}
}

func TestRSSListingSource(t *testing.T) {
	feed := newRSSFeed(feedClientForTest(t), "UCabcdefghijklmnopqrstuv")

	entries, _, _, err := RunCascade(context.Background(), nil, []Source[[]shortsEntry]{rssListingSource(feed, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The non-video entry is dropped during the load.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].ID != "vid000000001" || entries[1].ID != "vid000000002" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	limited := newRSSFeed(feedClientForTest(t), "UCabcdefghijklmnopqrstuv")
	entries, err = rssListingSource(limited, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected limit applied, got %+v", entries)
	}
}

func TestRSSFeedFetchesOnce(t *testing.T) {
	calls := 0
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{"application/atom+xml"}},
			Body:       io.NopCloser(strings.NewReader(uploadsFeedFixture)),
		}, nil
	})}

	feed := newRSSFeed(client, "UCabcdefghijklmnopqrstuv")
	for i := 0; i < 3; i++ {
		if _, err := feed.load(context.Background()); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single feed fetch, got %d", calls)
	}
}
