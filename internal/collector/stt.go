package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Transcriber converts an audio file to text. IsConfigured reports
// whether the backing binary and model are actually present, so the
// cascade can skip unconfigured engines without touching the network.
type Transcriber interface {
	Name() string
	IsConfigured() bool
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// whisperCLI shells out to the OpenAI whisper command line tool.
type whisperCLI struct {
	binary string
	model  string
}

func newWhisperCLI(model string) *whisperCLI {
	bin, _ := exec.LookPath("whisper")
	return &whisperCLI{binary: bin, model: model}
}

func (w *whisperCLI) Name() string { return "whisper" }

func (w *whisperCLI) IsConfigured() bool { return w.binary != "" }

func (w *whisperCLI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	outDir := filepath.Dir(audioPath)
	cmd := exec.CommandContext(ctx, w.binary, audioPath,
		"--model", w.model,
		"--output_format", "txt",
		"--output_dir", outDir,
		"--fp16", "False",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running whisper: %w: %s", err, truncateText(strings.TrimSpace(stderr.String()), 200))
	}
	txtPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".txt"
	data, err := os.ReadFile(txtPath)
	if err != nil {
		return "", fmt.Errorf("reading whisper output: %w", err)
	}
	return string(data), nil
}

// whisperCpp shells out to a whisper.cpp build. It needs an explicit
// ggml model file and stays unconfigured without one.
type whisperCpp struct {
	binary string
	model  string
}

func newWhisperCpp(modelPath string) *whisperCpp {
	var bin string
	for _, name := range []string{"whisper-cli", "whisper-cpp", "main"} {
		if p, err := exec.LookPath(name); err == nil {
			bin = p
			break
		}
	}
	return &whisperCpp{binary: bin, model: modelPath}
}

func (w *whisperCpp) Name() string { return "whisper-cpp" }

func (w *whisperCpp) IsConfigured() bool { return w.binary != "" && w.model != "" }

func (w *whisperCpp) Transcribe(ctx context.Context, audioPath string) (string, error) {
	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	cmd := exec.CommandContext(ctx, w.binary,
		"-m", w.model,
		"-f", audioPath,
		"-otxt",
		"-of", outBase,
		"-np",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running whisper.cpp: %w: %s", err, truncateText(strings.TrimSpace(stderr.String()), 200))
	}
	data, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("reading whisper.cpp output: %w", err)
	}
	return string(data), nil
}

// transcriberSource adapts one engine into a cascade source sharing the
// lazily acquired audio file.
func transcriberSource(t Transcriber, audio func(ctx context.Context) (string, error)) Source[string] {
	return Source[string]{
		Name: t.Name(),
		Fetch: func(ctx context.Context) (string, error) {
			if !t.IsConfigured() {
				return "", errors.New("not configured")
			}
			path, err := audio(ctx)
			if err != nil {
				return "", err
			}
			return t.Transcribe(ctx, path)
		},
	}
}

// speechToTextSources builds the speech tier for one video. The audio is
// downloaded once, on the first configured engine that asks for it, and
// shared by the rest; cleanup runs after the tier finishes and keeps the
// mp3 when requested.
func (c *Collector) speechToTextSources(id string) ([]Source[string], func()) {
	var (
		once       sync.Once
		dir        string
		path       string
		acquireErr error
	)
	audio := func(ctx context.Context) (string, error) {
		once.Do(func() {
			dir, acquireErr = os.MkdirTemp("", "shorts-audio-")
			if acquireErr != nil {
				acquireErr = wrapCategory(CategoryFilesystem, fmt.Errorf("creating audio temp dir: %w", acquireErr))
				return
			}
			path, acquireErr = c.acquireAudio(ctx, id, dir)
		})
		return path, acquireErr
	}
	cleanup := func() {
		if dir == "" {
			return
		}
		if c.opts.KeepAudio && path != "" {
			if kept, err := c.keepAudioFile(id, path); err != nil {
				c.printer.Log(LogWarn, fmt.Sprintf("keeping audio for %s failed: %v", id, err))
			} else {
				c.printer.Log(LogDebug, fmt.Sprintf("kept audio %s", kept))
			}
		}
		os.RemoveAll(dir)
	}

	sources := make([]Source[string], 0, len(c.transcribers))
	for _, t := range c.transcribers {
		sources = append(sources, transcriberSource(t, audio))
	}
	return sources, cleanup
}
