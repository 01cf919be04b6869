package collector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	id3v2 "github.com/bogem/id3v2/v2"
)

// keepAudioFile moves a transcribed mp3 into the audio directory and tags
// it with the video's metadata. Tagging failures keep the file and only
// warn.
func (c *Collector) keepAudioFile(id, srcPath string) (string, error) {
	dir := c.opts.AudioDir
	if dir == "" {
		dir = "audio"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", wrapCategory(CategoryFilesystem, fmt.Errorf("creating audio directory: %w", err))
	}
	dstPath := filepath.Join(dir, id+".mp3")
	if err := moveFile(srcPath, dstPath); err != nil {
		return "", err
	}

	meta := c.metaFor(id)
	if err := embedAudioTags(dstPath, meta.Title, c.channel, meta.ReleaseDate); err != nil {
		c.printer.Log(LogWarn, fmt.Sprintf("warning: metadata tag embedding failed: %v", err))
	}
	return dstPath, nil
}

func embedAudioTags(path, title, artist, date string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening id3 tags: %w", err)
	}
	defer tag.Close()

	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	if len(date) >= 4 {
		tag.AddTextFrame(tag.CommonID("Year"), tag.DefaultEncoding(), date[:4])
	}
	return tag.Save()
}

// moveFile renames src to dst, falling back to copy-and-delete when the
// paths sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("opening audio file: %w", err))
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("creating kept audio file: %w", err))
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return wrapCategory(CategoryFilesystem, fmt.Errorf("copying audio file: %w", err))
	}
	if err := out.Close(); err != nil {
		return wrapCategory(CategoryFilesystem, fmt.Errorf("closing kept audio file: %w", err))
	}
	os.Remove(src)
	return nil
}
