package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"
)

const defaultTimeout = 60 * time.Second

// Options configures one collection run.
type Options struct {
	// Output is the export path template; {channel} is replaced with the
	// channel slug. Empty means <slug>_shorts_data.json.
	Output string

	Limit        int    // max videos per channel, 0 = all
	Language     string // preferred caption language
	DisableSTT   bool
	STTModel     string // whisper model name (tiny, base, small, medium, large)
	STTModelFile string // ggml model path for whisper.cpp
	KeepAudio    bool
	AudioDir     string
	Jobs         int           // transcript workers
	Delay        time.Duration // pause between source calls
	RateLimit    float64       // requests per second; overrides Delay when > 0
	CookieFile   string
	Timeout      time.Duration
	Quiet        bool
	Verbose      bool

	// Progress attaches the TUI; nil means plain stderr output.
	Progress *ProgressManager
	// Renderer overrides Progress with a caller-supplied sink, used by
	// the web server to stream events to browsers.
	Renderer ProgressRenderer
}

// Collector drives the pipeline for one channel at a time. Stream and
// page fetches share one HTTP client; per-channel state is reset by each
// Collect call, so run one Collector per concurrent channel.
type Collector struct {
	opts         Options
	http         *http.Client
	yt           *youtube.Client
	browse       *browseClient
	videos       *videoCache
	printer      *Printer
	throttle     Throttle
	transcribers []Transcriber

	mu      sync.RWMutex
	channel string
	meta    map[string]MetadataRecord
}

// RunResult is one channel's finished collection.
type RunResult struct {
	Channel     string
	ChannelID   string
	Output      string
	Records     []ExportRecord
	Transcripts map[string]TranscriptRecord
	Summary     ExportSummary
}

// New builds a Collector: the shared HTTP stack, the player client and
// the speech-to-text engines.
func New(opts Options) (*Collector, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.STTModel == "" {
		opts.STTModel = "base"
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}

	var jar http.CookieJar
	if opts.CookieFile != "" {
		loaded, err := loadCookieFile(opts.CookieFile)
		if err != nil {
			return nil, err
		}
		jar = loaded
	}
	httpClient := newHTTPClient(opts.Timeout, jar)

	printer := newPrinter(opts)
	switch {
	case opts.Renderer != nil:
		printer.renderer = opts.Renderer
	case opts.Progress != nil:
		printer.renderer = opts.Progress.Renderer()
	}

	c := &Collector{
		opts:    opts,
		http:    httpClient,
		yt:      newYouTubeClient(httpClient),
		browse:  newBrowseClient(httpClient),
		printer: printer,
	}
	c.videos = newVideoCache(c.yt)

	if opts.RateLimit > 0 {
		c.throttle = RateThrottle(opts.RateLimit, 1)
	} else if opts.Delay > 0 {
		c.throttle = FixedDelay(opts.Delay)
	}

	if !opts.DisableSTT {
		if !ffmpegAvailable() {
			printer.Log(LogWarn, "ffmpeg not found, speech-to-text disabled")
		} else {
			c.transcribers = []Transcriber{
				newWhisperCLI(opts.STTModel),
				newWhisperCpp(opts.STTModelFile),
			}
		}
	}
	return c, nil
}

// Printer exposes the collector's printer so callers can log through the
// same channel the pipeline uses.
func (c *Collector) Printer() *Printer { return c.printer }

func (c *Collector) sttEnabled() bool {
	for _, t := range c.transcribers {
		if t.IsConfigured() {
			return true
		}
	}
	return false
}

func (c *Collector) metadataSources(entries []shortsEntry, feed *rssFeed) []MetadataSource {
	return []MetadataSource{
		youtubeAPISource(c.videos),
		rssMetadataSource(feed),
		listingMetadataSource(entries),
		watchScrapeSource(c.http),
		oembedSource(c.http),
	}
}

func (c *Collector) captionsFor(id string) []Source[string] {
	return captionSources(c.http, c.videos, id, c.opts.Language)
}

func (c *Collector) metaFor(id string) MetadataRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta[id]
}

func (c *Collector) titleFor(id string) string {
	if title := c.metaFor(id).Title; title != "" {
		return title
	}
	return id
}

// Collect runs the full pipeline for one channel reference: enumerate the
// shorts, resolve metadata, resolve transcripts, merge and export. On
// cancellation the finished portion is still merged and written before
// the context error returns alongside the partial result.
func (c *Collector) Collect(ctx context.Context, channel string) (*RunResult, error) {
	ref, err := parseChannelRef(channel)
	if err != nil {
		return nil, err
	}
	slug := ref.Slug()
	c.printer.Log(LogInfo, fmt.Sprintf("resolving channel %s", ref.Input))

	channelID, err := resolveChannelID(ctx, c.http, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving channel %s: %w", ref.Input, err)
	}

	feed := newRSSFeed(c.http, channelID)

	entries, lister, _, err := RunCascade(ctx, c.throttle, c.listingSources(channelID, feed))
	if err != nil {
		var exhausted *ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, wrapCategory(CategoryNoData, fmt.Errorf("listing %s: %w", slug, err))
		}
		return nil, err
	}
	c.printer.Log(LogInfo, fmt.Sprintf("listed %d shorts via %s", len(entries), lister))

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	meta, _, err := CollectMetadata(ctx, ids, c.metadataSources(entries, feed), c.throttle)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.channel = slug
	c.meta = meta
	c.mu.Unlock()

	transcripts, tErr := c.resolveAllTranscripts(ctx, slug, ids)
	if tErr != nil && !errors.Is(tErr, context.Canceled) && !errors.Is(tErr, context.DeadlineExceeded) {
		return nil, tErr
	}

	records := Merge(ids, meta, transcripts)
	output := exportPath(c.opts.Output, slug)
	if err := WriteExport(output, records); err != nil {
		return nil, err
	}

	summary := Summarize(slug, output, records, transcripts)
	c.printer.Summary(summary.Captioned, summary.Transcribed, summary.Total-summary.WithTranscripts, summary.Total, output)

	result := &RunResult{
		Channel:     slug,
		ChannelID:   channelID,
		Output:      output,
		Records:     records,
		Transcripts: transcripts,
		Summary:     summary,
	}
	return result, tErr
}

func (c *Collector) resolveAllTranscripts(ctx context.Context, slug string, ids []string) (map[string]TranscriptRecord, error) {
	total := len(ids)
	if total == 0 {
		return map[string]TranscriptRecord{}, nil
	}

	var taskID string
	if c.printer.renderer != nil {
		taskID = c.printer.renderer.Register(slug, int64(total), UnitCount)
	}

	done := 0
	cfg := TranscriptConfig{
		Captions:     c.captionsFor,
		SpeechToText: c.speechToTextSources,
		EnableSTT:    c.sttEnabled(),
		Throttle:     c.throttle,
		Workers:      c.opts.Jobs,
		OnResolved: func(rec TranscriptRecord, attempts []Attempt) {
			done++
			prefix := c.printer.Prefix(done, total, c.titleFor(rec.ID))
			c.printer.ItemResult(prefix, rec, winnerOf(attempts), nil)
			if taskID != "" {
				c.printer.renderer.Update(taskID, int64(done), int64(total))
			}
		},
	}

	records, err := ResolveTranscripts(ctx, ids, cfg)
	if taskID != "" {
		c.printer.renderer.Finish(taskID)
	}
	return records, err
}
