package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lvcoi/shorts-collector/internal/app"
	"github.com/lvcoi/shorts-collector/internal/collector"
	"github.com/lvcoi/shorts-collector/internal/db"
	"github.com/lvcoi/shorts-collector/internal/web"
)

func main() {
	var opts collector.Options
	var (
		jobs         int
		jsonOut      bool
		progressMode string
		dbPath       string
		serve        bool
		listenAddr   string
	)

	flag.StringVar(&opts.Output, "o", "{channel}_shorts_data.json", "output path or template (supports {channel})")
	flag.IntVar(&opts.Limit, "limit", 0, "stop after N shorts per channel (0 = all)")
	flag.StringVar(&opts.Language, "lang", "en", "preferred caption language")
	flag.BoolVar(&opts.DisableSTT, "no-stt", false, "disable speech-to-text for videos without captions")
	flag.StringVar(&opts.STTModel, "stt-model", "base", "whisper model: tiny, base, small, medium, large")
	flag.StringVar(&opts.STTModelFile, "stt-model-file", "", "ggml model file for whisper.cpp")
	flag.BoolVar(&opts.KeepAudio, "keep-audio", false, "keep extracted audio as tagged mp3 files")
	flag.StringVar(&opts.AudioDir, "audio-dir", "", "directory for kept audio files (default <channel>_audio)")
	flag.StringVar(&opts.CookieFile, "cookies", "", "Netscape cookies.txt for age-restricted or rate-limited channels")
	flag.DurationVar(&opts.Delay, "delay", 500*time.Millisecond, "pause between source calls")
	flag.Float64Var(&opts.RateLimit, "rate", 0, "max requests per second (0 = use -delay)")
	flag.IntVar(&opts.Jobs, "workers", 4, "transcript workers per channel")
	flag.IntVar(&jobs, "jobs", 1, "number of channels collected concurrently")
	flag.StringVar(&dbPath, "db", "", "sqlite catalog path; collected records are upserted per run")
	flag.BoolVar(&jsonOut, "json", false, "emit one JSON line per channel (suppresses human-readable progress)")
	flag.StringVar(&progressMode, "progress", "auto", "progress display: auto, tui or plain")
	flag.BoolVar(&serve, "serve", false, "run the control panel instead of a one-shot collection")
	flag.StringVar(&listenAddr, "listen", ":8080", "control panel listen address (with -serve)")
	flag.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "per-request timeout")
	flag.BoolVar(&opts.Quiet, "q", false, "suppress progress output (errors still shown)")
	flag.BoolVar(&opts.Verbose, "v", false, "verbose logging")
	flag.Parse()

	switch progressMode {
	case "auto", "tui", "plain":
	default:
		fmt.Fprintf(os.Stderr, "error: invalid -progress %q (want auto, tui or plain)\n", progressMode)
		os.Exit(2)
	}

	if jobs < 1 {
		jobs = 1
	}
	if jsonOut {
		opts.Quiet = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		if dbPath == "" {
			dbPath = "shorts.db"
		}
		catalog, err := db.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(collector.ExitCode(err))
		}
		defer catalog.Close()

		if err := web.ListenAndServe(ctx, listenAddr, opts, catalog); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	channels := flag.Args()
	if len(channels) == 0 {
		err := collector.CategorizedError{Category: collector.CategoryInvalidURL, Err: errors.New("no channel provided")}
		if jsonOut {
			writeJSONError("", err)
		} else {
			fmt.Fprintf(os.Stderr, "usage: %s [options] <channel> [channel...]\n", os.Args[0])
			fmt.Fprintf(os.Stderr, "channels may be @handles, channel URLs or UC ids\n")
			flag.PrintDefaults()
		}
		os.Exit(collector.ExitCode(err))
	}

	var store app.Store
	if dbPath != "" {
		catalog, err := db.Open(dbPath)
		if err != nil {
			if jsonOut {
				writeJSONError("", err)
			} else {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			os.Exit(collector.ExitCode(err))
		}
		defer catalog.Close()
		store = catalog
	}

	useTUI := false
	switch progressMode {
	case "tui":
		useTUI = true
	case "auto":
		useTUI = !opts.Quiet && stderrIsTerminal()
	}
	if useTUI {
		opts.Progress = collector.NewProgressManager()
	}

	results, exitCode := app.Run(ctx, channels, opts, jobs, store)

	for _, res := range results {
		if res.Err != nil {
			if jsonOut {
				writeJSONError(res.Channel, res.Err)
			} else if !collector.IsReported(res.Err) {
				fmt.Fprintf(os.Stderr, "error: %s: %v\n", res.Channel, res.Err)
			}
			continue
		}
		if jsonOut {
			emitJSONResult(res)
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func emitJSONResult(res app.Result) {
	payload := struct {
		Type    string                   `json:"type"`
		Channel string                   `json:"channel"`
		Summary *collector.ExportSummary `json:"summary,omitempty"`
	}{
		Type:    "result",
		Channel: res.Channel,
		Summary: res.Summary,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeJSONError(channel string, err error) {
	payload := struct {
		Type     string `json:"type"`
		Channel  string `json:"channel,omitempty"`
		Category string `json:"category"`
		Error    string `json:"error"`
	}{
		Type:     "error",
		Channel:  channel,
		Category: string(collector.CategoryOf(err)),
		Error:    err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
