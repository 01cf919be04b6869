package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	Segs []timedtextSeg `json:"segs"`
}

type timedtextSeg struct {
	UTF8 string `json:"utf8"`
}

// parseTimedtextJSON flattens a json3 payload into one line of text.
// Window events without segments are skipped.
func parseTimedtextJSON(data []byte) (string, error) {
	var decoded timedtextResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decoding timedtext: %w", err)
	}
	var b strings.Builder
	for _, event := range decoded.Events {
		for _, seg := range event.Segs {
			if seg.UTF8 == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(seg.UTF8)
		}
	}
	return collapseWhitespace(b.String()), nil
}

type timedtextXML struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedtextXML flattens the legacy XML format. The payload is
// double-escaped, so entities survive the XML decode and need a second
// unescape.
func parseTimedtextXML(data []byte) (string, error) {
	var decoded timedtextXML
	if err := xml.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decoding timedtext xml: %w", err)
	}
	parts := make([]string, 0, len(decoded.Texts))
	for _, t := range decoded.Texts {
		if s := html.UnescapeString(t.Value); strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return collapseWhitespace(strings.Join(parts, " ")), nil
}

// timedtextURL builds a direct caption request for videos whose track
// list is unavailable. kind "asr" selects auto-generated captions.
func timedtextURL(videoID, lang, kind string) string {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)
	q.Set("fmt", "json3")
	if kind != "" {
		q.Set("kind", kind)
	}
	return "https://www.youtube.com/api/timedtext?" + q.Encode()
}

// fetchTimedtext downloads one caption track and flattens it. Track base
// URLs default to the XML format, so json3 is forced unless the URL
// already picked one. The endpoint answers 200 with an empty body when
// the requested track does not exist.
func fetchTimedtext(ctx context.Context, httpClient *http.Client, trackURL string) (string, error) {
	u, err := url.Parse(trackURL)
	if err != nil {
		return "", fmt.Errorf("parsing track url: %w", err)
	}
	q := u.Query()
	if q.Get("fmt") == "" {
		q.Set("fmt", "json3")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", wrapCategory(CategoryNetwork, fmt.Errorf("fetching captions: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("fetching captions: unexpected status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", wrapCategory(CategoryNetwork, fmt.Errorf("reading captions: %w", err))
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", errors.New("no caption track on server")
	}
	if trimmed[0] == '<' {
		return parseTimedtextXML(trimmed)
	}
	return parseTimedtextJSON(trimmed)
}
