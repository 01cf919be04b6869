package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	minChunkSize     int64 = 256 * 1024      // 256KB keeps progress responsive on small files
	maxChunkSize     int64 = 2 * 1024 * 1024 // cap to avoid excessive requests on large files
	targetChunkCount int64 = 64
)

// adjustChunkSize picks a smaller chunk size for the player client to keep
// progress updates frequent without spawning thousands of requests.
func adjustChunkSize(client *youtube.Client, contentLength int64) {
	if client == nil || contentLength <= 0 {
		return
	}
	chunk := contentLength / targetChunkCount
	if chunk < minChunkSize {
		chunk = minChunkSize
	} else if chunk > maxChunkSize {
		chunk = maxChunkSize
	}
	client.ChunkSize = chunk
}

func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// bestAudioFormat returns the highest-bitrate audio-only format.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func audioExt(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	default:
		return ".m4a"
	}
}

// acquireAudio downloads the video's best audio-only stream into dir and
// transcodes it to the 96k mp3 the transcribers accept. The raw stream is
// removed after conversion; dir itself is the caller's to clean up.
func (c *Collector) acquireAudio(ctx context.Context, id, dir string) (string, error) {
	video, err := c.videos.get(ctx, id)
	if err != nil {
		return "", err
	}
	format := bestAudioFormat(video.Formats)
	if format == nil {
		return "", wrapCategory(CategoryUnsupported, errors.New("no audio-only format"))
	}

	rawPath := filepath.Join(dir, id+audioExt(format.MimeType))
	written, err := c.downloadStream(ctx, video, format, rawPath)
	if err != nil {
		return "", err
	}
	c.printer.Log(LogDebug, fmt.Sprintf("audio %s: %s downloaded", id, humanBytes(written)))

	mp3Path := filepath.Join(dir, id+".mp3")
	if err := convertToMP3(rawPath, mp3Path); err != nil {
		return "", err
	}
	os.Remove(rawPath)
	return mp3Path, nil
}

// downloadStream copies one format to disk. YouTube blocks chunked
// audio-only downloads on some videos with 403; those are retried as a
// single unchunked request before giving up.
func (c *Collector) downloadStream(ctx context.Context, video *youtube.Video, format *youtube.Format, path string) (int64, error) {
	adjustChunkSize(c.yt, format.ContentLength)
	stream, size, err := c.yt.GetStreamContext(ctx, video, format)
	if err != nil {
		return 0, wrapCategory(CategoryNetwork, fmt.Errorf("starting audio stream: %w", err))
	}
	if size <= 0 && format.ContentLength > 0 {
		size = format.ContentLength
	}
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	file, err := os.Create(path)
	if err != nil {
		return 0, wrapCategory(CategoryFilesystem, fmt.Errorf("creating audio file: %w", err))
	}
	defer file.Close()

	var writer io.Writer = file
	var progress *progressWriter
	if !c.opts.Quiet {
		progress = newProgressWriter(size, c.printer, video.ID)
		writer = io.MultiWriter(file, progress)
	}

	written, err := copyWithContext(ctx, writer, stream)
	if err != nil && isUnexpectedStatus(err, http.StatusForbidden) {
		c.printer.Log(LogWarn, "chunked audio download blocked (403), retrying with single request")
		if _, seekErr := file.Seek(0, 0); seekErr != nil {
			return 0, wrapCategory(CategoryFilesystem, seekErr)
		}
		if truncErr := file.Truncate(0); truncErr != nil {
			return 0, wrapCategory(CategoryFilesystem, truncErr)
		}

		single := *format
		single.ContentLength = 0

		stream.Close()
		stream = nil
		stream, _, err = c.yt.GetStreamContext(ctx, video, &single)
		if err != nil {
			return 0, wrapCategory(CategoryNetwork, fmt.Errorf("retrying audio stream: %w", err))
		}
		if progress != nil {
			progress.Reset(size)
		}
		written, err = copyWithContext(ctx, writer, stream)
	}
	if err != nil {
		return 0, wrapCategory(CategoryNetwork, fmt.Errorf("downloading audio: %w", err))
	}
	if progress != nil {
		progress.Finish()
	}
	return written, nil
}

// convertToMP3 transcodes the raw stream to the 96k mp3 the transcribers
// expect.
func convertToMP3(inputPath, outputPath string) error {
	kwargs := ffmpeg.KwArgs{
		"vn":     "",
		"acodec": "libmp3lame",
		"b:a":    "96k",
		"ar":     "44100",
	}
	if err := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		Silent(true).
		Run(); err != nil {
		return wrapCategory(CategoryUnsupported, fmt.Errorf("converting audio: %w", err))
	}
	return nil
}

func isUnexpectedStatus(err error, code int) bool {
	var statusErr youtube.ErrUnexpectedStatusCode
	if errors.As(err, &statusErr) {
		return int(statusErr) == code
	}
	return false
}
