package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// pickCaptionTrack chooses the most trustworthy track: manual captions in
// the preferred language, then auto-generated ones, then English, then
// whatever is left. Tracks served with the xpe experiment flag answer
// with empty payloads and are skipped.
func pickCaptionTrack(tracks []youtube.CaptionTrack, lang string) *youtube.CaptionTrack {
	usable := make([]youtube.CaptionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL == "" || strings.Contains(t.BaseURL, "exp=xpe") {
			continue
		}
		usable = append(usable, t)
	}
	if len(usable) == 0 {
		return nil
	}
	ranks := []func(t youtube.CaptionTrack) bool{
		func(t youtube.CaptionTrack) bool { return t.Kind != "asr" && trackHasLang(t, lang) },
		func(t youtube.CaptionTrack) bool { return trackHasLang(t, lang) },
		func(t youtube.CaptionTrack) bool { return t.Kind != "asr" && trackHasLang(t, "en") },
		func(t youtube.CaptionTrack) bool { return trackHasLang(t, "en") },
	}
	for _, matches := range ranks {
		for i := range usable {
			if matches(usable[i]) {
				return &usable[i]
			}
		}
	}
	return &usable[0]
}

func trackHasLang(t youtube.CaptionTrack, lang string) bool {
	if lang == "" {
		return false
	}
	return t.LanguageCode == lang || strings.HasPrefix(t.LanguageCode, lang+"-")
}

var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// watchPageCaptionTracks pulls the caption track list out of the player
// config embedded in a watch page.
func watchPageCaptionTracks(ctx context.Context, httpClient *http.Client, id string) ([]youtube.CaptionTrack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURLForID(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("fetching watch page: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("fetching watch page: unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("reading watch page: %w", err))
	}
	m := captionTracksPattern.FindSubmatch(body)
	if m == nil {
		return nil, errors.New("no caption tracks on watch page")
	}
	var tracks []youtube.CaptionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return nil, fmt.Errorf("decoding caption tracks: %w", err)
	}
	return tracks, nil
}

// captionSources builds the caption cascade for one video: the player
// API's track list, the bare timedtext endpoint, then the watch page's
// embedded track list.
func captionSources(httpClient *http.Client, videos *videoCache, id, lang string) []Source[string] {
	return []Source[string]{
		{
			Name: "api-captions",
			Fetch: func(ctx context.Context) (string, error) {
				video, err := videos.get(ctx, id)
				if err != nil {
					return "", err
				}
				track := pickCaptionTrack(video.CaptionTracks, lang)
				if track == nil {
					return "", errors.New("video lists no caption tracks")
				}
				return fetchTimedtext(ctx, httpClient, track.BaseURL)
			},
		},
		{
			Name: "timedtext",
			Fetch: func(ctx context.Context) (string, error) {
				text, err := fetchTimedtext(ctx, httpClient, timedtextURL(id, lang, ""))
				if err == nil && text != "" {
					return text, nil
				}
				return fetchTimedtext(ctx, httpClient, timedtextURL(id, lang, "asr"))
			},
		},
		{
			Name: "watch-captions",
			Fetch: func(ctx context.Context) (string, error) {
				tracks, err := watchPageCaptionTracks(ctx, httpClient, id)
				if err != nil {
					return "", err
				}
				track := pickCaptionTrack(tracks, lang)
				if track == nil {
					return "", errors.New("watch page lists no usable tracks")
				}
				return fetchTimedtext(ctx, httpClient, track.BaseURL)
			},
		},
	}
}
