package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	browseEndpoint         = "https://www.youtube.com/youtubei/v1/browse"
	innertubeClientName    = "WEB"
	innertubeClientVersion = "2.20240101.00.00"

	// shortsTabParams selects the Shorts tab in a channel browse request.
	shortsTabParams = "EgZzaG9ydHPyBgUKA5oBAA%3D%3D"
)

type browseRequest struct {
	Context      innertubeContext `json:"context"`
	BrowseID     string           `json:"browseId,omitempty"`
	Params       string           `json:"params,omitempty"`
	Continuation string           `json:"continuation,omitempty"`
}

type innertubeContext struct {
	Client innertubeClientInfo `json:"client"`
}

type innertubeClientInfo struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl"`
	GL            string `json:"gl"`
}

type browseResponse struct {
	Contents                  *browseContents  `json:"contents"`
	OnResponseReceivedActions []responseAction `json:"onResponseReceivedActions"`
	Metadata                  *channelMetadata `json:"metadata"`
}

type browseContents struct {
	TwoColumnBrowseResultsRenderer *twoColumnRenderer `json:"twoColumnBrowseResultsRenderer"`
}

type twoColumnRenderer struct {
	Tabs []browseTab `json:"tabs"`
}

type browseTab struct {
	TabRenderer *tabRenderer `json:"tabRenderer"`
}

type tabRenderer struct {
	Title    string      `json:"title"`
	Selected bool        `json:"selected"`
	Content  *tabContent `json:"content"`
}

type tabContent struct {
	RichGridRenderer *richGridRenderer `json:"richGridRenderer"`
}

type richGridRenderer struct {
	Contents []gridItem `json:"contents"`
}

type responseAction struct {
	AppendContinuationItemsAction  *continuationItems `json:"appendContinuationItemsAction"`
	ReloadContinuationItemsCommand *continuationItems `json:"reloadContinuationItemsCommand"`
}

type continuationItems struct {
	ContinuationItems []gridItem `json:"continuationItems"`
}

type channelMetadata struct {
	ChannelMetadataRenderer *channelMetadataRenderer `json:"channelMetadataRenderer"`
}

type channelMetadataRenderer struct {
	Title      string `json:"title"`
	ExternalID string `json:"externalId"`
}

// gridItem is one cell of the shorts grid: a video row in either renderer
// generation the server emits, or the continuation marker.
type gridItem struct {
	RichItemRenderer         *richItemRenderer         `json:"richItemRenderer"`
	ContinuationItemRenderer *continuationItemRenderer `json:"continuationItemRenderer"`
}

type richItemRenderer struct {
	Content *richItemContent `json:"content"`
}

type richItemContent struct {
	ReelItemRenderer      *reelItemRenderer      `json:"reelItemRenderer"`
	ShortsLockupViewModel *shortsLockupViewModel `json:"shortsLockupViewModel"`
}

type reelItemRenderer struct {
	VideoID       string    `json:"videoId"`
	Headline      *textRuns `json:"headline"`
	ViewCountText *textRuns `json:"viewCountText"`
}

type shortsLockupViewModel struct {
	EntityID        string           `json:"entityId"`
	OnTap           *lockupOnTap     `json:"onTap"`
	OverlayMetadata *overlayMetadata `json:"overlayMetadata"`
}

type lockupOnTap struct {
	InnertubeCommand *innertubeCommand `json:"innertubeCommand"`
}

type innertubeCommand struct {
	ReelWatchEndpoint *reelWatchEndpoint `json:"reelWatchEndpoint"`
}

type reelWatchEndpoint struct {
	VideoID string `json:"videoId"`
}

type overlayMetadata struct {
	PrimaryText   *viewModelText `json:"primaryText"`
	SecondaryText *viewModelText `json:"secondaryText"`
}

type viewModelText struct {
	Content string `json:"content"`
}

type continuationItemRenderer struct {
	ContinuationEndpoint *continuationEndpoint `json:"continuationEndpoint"`
}

type continuationEndpoint struct {
	ContinuationCommand *continuationCommand `json:"continuationCommand"`
}

type continuationCommand struct {
	Token string `json:"token"`
}

type textRuns struct {
	SimpleText string    `json:"simpleText"`
	Runs       []textRun `json:"runs"`
}

type textRun struct {
	Text string `json:"text"`
}

func (t *textRuns) text() string {
	if t == nil {
		return ""
	}
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var parts []string
	for _, run := range t.Runs {
		parts = append(parts, run.Text)
	}
	return strings.Join(parts, "")
}

// browseClient talks to the Innertube browse endpoint the way the web
// client does.
type browseClient struct {
	httpClient *http.Client
}

func newBrowseClient(httpClient *http.Client) *browseClient {
	return &browseClient{httpClient: httpClient}
}

// browse posts one request: a channel page with tab params the first
// time, a continuation page afterwards.
func (c *browseClient) browse(ctx context.Context, browseID, params, continuation string) (*browseResponse, error) {
	req := browseRequest{
		Context: innertubeContext{Client: innertubeClientInfo{
			ClientName:    innertubeClientName,
			ClientVersion: innertubeClientVersion,
			HL:            "en",
			GL:            "US",
		}},
	}
	if continuation != "" {
		req.Continuation = continuation
	} else {
		req.BrowseID = browseID
		req.Params = params
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding browse request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, browseEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Origin", "https://www.youtube.com")
	httpReq.Header.Set("Referer", "https://www.youtube.com/")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("browse request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, wrapCategory(statusCategory(resp.StatusCode), fmt.Errorf("browse request: unexpected status %d", resp.StatusCode))
	}
	var parsed browseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding browse response: %w", err)
	}
	return &parsed, nil
}

// gridRows pulls the shorts grid out of a browse response: the selected
// tab's grid on the first page, the appended items on continuations.
func (r *browseResponse) gridRows() []gridItem {
	if r == nil {
		return nil
	}
	if r.Contents != nil && r.Contents.TwoColumnBrowseResultsRenderer != nil {
		for _, tab := range r.Contents.TwoColumnBrowseResultsRenderer.Tabs {
			tr := tab.TabRenderer
			if tr == nil || tr.Content == nil || tr.Content.RichGridRenderer == nil {
				continue
			}
			return tr.Content.RichGridRenderer.Contents
		}
	}
	for _, action := range r.OnResponseReceivedActions {
		if action.AppendContinuationItemsAction != nil {
			return action.AppendContinuationItemsAction.ContinuationItems
		}
		if action.ReloadContinuationItemsCommand != nil {
			return action.ReloadContinuationItemsCommand.ContinuationItems
		}
	}
	return nil
}

// entry parses a grid row into a listing entry. Both renderer generations
// are handled; rows that are neither (ads, continuations) report false.
func (it gridItem) entry() (shortsEntry, bool) {
	if it.RichItemRenderer == nil || it.RichItemRenderer.Content == nil {
		return shortsEntry{}, false
	}
	content := it.RichItemRenderer.Content
	switch {
	case content.ReelItemRenderer != nil:
		r := content.ReelItemRenderer
		if r.VideoID == "" {
			return shortsEntry{}, false
		}
		return shortsEntry{
			ID:        r.VideoID,
			Title:     r.Headline.text(),
			ViewsText: r.ViewCountText.text(),
		}, true
	case content.ShortsLockupViewModel != nil:
		v := content.ShortsLockupViewModel
		var id string
		if v.OnTap != nil && v.OnTap.InnertubeCommand != nil && v.OnTap.InnertubeCommand.ReelWatchEndpoint != nil {
			id = v.OnTap.InnertubeCommand.ReelWatchEndpoint.VideoID
		}
		if id == "" {
			return shortsEntry{}, false
		}
		entry := shortsEntry{ID: id}
		if v.OverlayMetadata != nil {
			if v.OverlayMetadata.PrimaryText != nil {
				entry.Title = v.OverlayMetadata.PrimaryText.Content
			}
			if v.OverlayMetadata.SecondaryText != nil {
				entry.ViewsText = v.OverlayMetadata.SecondaryText.Content
			}
		}
		return entry, true
	}
	return shortsEntry{}, false
}

func continuationToken(items []gridItem) string {
	for _, it := range items {
		if it.ContinuationItemRenderer != nil &&
			it.ContinuationItemRenderer.ContinuationEndpoint != nil &&
			it.ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand != nil {
			return it.ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand.Token
		}
	}
	return ""
}

// listShorts pages through the channel's Shorts tab. limit 0 means all.
// A channel without a Shorts tab lists as empty; a failed continuation
// ends the listing with what was paged so far.
func (c *browseClient) listShorts(ctx context.Context, channelID string, limit int, throttle Throttle) ([]shortsEntry, error) {
	var entries []shortsEntry
	seen := make(map[string]struct{})
	continuation := ""
	for page := 0; ; page++ {
		if page > 0 {
			if err := waitThrottle(ctx, throttle); err != nil {
				return entries, err
			}
		}
		resp, err := c.browse(ctx, channelID, shortsTabParams, continuation)
		if err != nil {
			if page == 0 {
				return nil, err
			}
			return entries, nil
		}
		rows := resp.gridRows()
		parsed := 0
		for _, row := range rows {
			e, ok := row.entry()
			if !ok {
				continue
			}
			parsed++
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				return entries, nil
			}
		}
		continuation = continuationToken(rows)
		if page == 0 && len(rows) > 0 && parsed == 0 && continuation == "" {
			// Rows came back but none matched a known renderer: format
			// drift, not an empty channel.
			return nil, fmt.Errorf("unrecognized shorts listing format (%d rows)", len(rows))
		}
		if continuation == "" {
			return entries, nil
		}
	}
}
