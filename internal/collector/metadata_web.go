package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

type oEmbedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// oembedSource resolves titles through the public oEmbed endpoint. It
// never sees view counts, likes or dates, which makes it the cascade's
// last resort.
func oembedSource(httpClient *http.Client) MetadataSource {
	return MetadataSource{
		Name: "oembed",
		Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			endpoint := "https://www.youtube.com/oembed?format=json&url=" + url.QueryEscape(watchURLForID(id))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return MetadataRecord{}, err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return MetadataRecord{}, wrapCategory(CategoryNetwork, fmt.Errorf("fetching oembed: %w", err))
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return MetadataRecord{}, wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("fetching oembed: unexpected status %d", resp.StatusCode))
			}
			var payload oEmbedResponse
			if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
				return MetadataRecord{}, fmt.Errorf("decoding oembed: %w", err)
			}
			if payload.Title == "" {
				return MetadataRecord{}, errors.New("oembed carried no title")
			}
			return MetadataRecord{ID: id, Title: payload.Title}, nil
		},
	}
}

var likeCountPattern = regexp.MustCompile(`"likeCount":"(\d+)"`)

// watchScrapeSource scrapes the watch page's schema.org microdata. It is
// the slow path when the structured endpoints fail, and the only source
// besides the feed that sees like counts.
func watchScrapeSource(httpClient *http.Client) MetadataSource {
	return MetadataSource{
		Name: "watch-scrape",
		Video: func(ctx context.Context, id string) (MetadataRecord, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURLForID(id), nil)
			if err != nil {
				return MetadataRecord{}, err
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return MetadataRecord{}, wrapCategory(CategoryNetwork, fmt.Errorf("fetching watch page: %w", err))
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return MetadataRecord{}, wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("fetching watch page: unexpected status %d", resp.StatusCode))
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			if err != nil {
				return MetadataRecord{}, wrapCategory(CategoryNetwork, fmt.Errorf("reading watch page: %w", err))
			}
			return parseWatchPage(id, body)
		},
	}
}

func parseWatchPage(id string, body []byte) (MetadataRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return MetadataRecord{}, fmt.Errorf("parsing watch page: %w", err)
	}
	rec := MetadataRecord{ID: id}
	rec.Title, _ = doc.Find(`meta[itemprop="name"]`).Attr("content")
	if rec.Title == "" {
		rec.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	if views, ok := doc.Find(`meta[itemprop="interactionCount"]`).Attr("content"); ok {
		rec.Views = parseCount(views)
	}
	if date, ok := doc.Find(`meta[itemprop="datePublished"]`).Attr("content"); ok {
		rec.ReleaseDate = parseDate(date)
	}
	if rec.ReleaseDate == "" {
		if date, ok := doc.Find(`meta[itemprop="uploadDate"]`).Attr("content"); ok {
			rec.ReleaseDate = parseDate(date)
		}
	}
	if m := likeCountPattern.FindSubmatch(body); m != nil {
		rec.Likes = parseCount(string(m[1]))
	}
	if rec.Title == "" {
		return MetadataRecord{}, errors.New("watch page carried no title metadata")
	}
	return rec, nil
}
