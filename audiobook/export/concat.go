package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/makeitchaccha/audiobook/audiobook"
	"github.com/makeitchaccha/audiobook/audiobook/wavfile"
)

const (
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// Concatenator joins the files of a manifest, in order, into one output file.
type Concatenator interface {
	// Ext is the file extension of the output, without a dot.
	Ext() string
	Concat(ctx context.Context, manifest []string, out string) error
}

// NewConcatenator returns the concatenator for format.
func NewConcatenator(format, ffmpegPath, bitrate string) (Concatenator, error) {
	switch format {
	case FormatMP3, "":
		return &FFmpegConcatenator{Path: ffmpegPath, Bitrate: bitrate}, nil
	case FormatWAV:
		return WAVConcatenator{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q: %w", format, audiobook.ErrConfig)
}

// WAVConcatenator joins PCM data natively. Every input must share one format.
type WAVConcatenator struct{}

func (WAVConcatenator) Ext() string {
	return FormatWAV
}

func (WAVConcatenator) Concat(_ context.Context, manifest []string, out string) error {
	if _, err := wavfile.Concat(out, manifest); err != nil {
		return fmt.Errorf("%w: %w", audiobook.ErrExport, err)
	}
	return nil
}

// FFmpegConcatenator encodes the manifest to mp3 with the ffmpeg concat demuxer.
type FFmpegConcatenator struct {
	Path    string
	Bitrate string
}

func (c *FFmpegConcatenator) Ext() string {
	return FormatMP3
}

func (c *FFmpegConcatenator) Concat(ctx context.Context, manifest []string, out string) error {
	list, err := os.CreateTemp(filepath.Dir(out), "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w: %w", audiobook.ErrExport, err)
	}
	defer os.Remove(list.Name())

	if _, err := list.WriteString(concatList(manifest)); err != nil {
		list.Close()
		return fmt.Errorf("failed to write concat list: %w: %w", audiobook.ErrExport, err)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("failed to write concat list: %w: %w", audiobook.ErrExport, err)
	}

	program := c.Path
	if program == "" {
		program = "ffmpeg"
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-f", "concat", "-safe", "0", "-i", list.Name()}
	if c.Bitrate != "" {
		args = append(args, "-b:a", c.Bitrate)
	}
	args = append(args, out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stderr = &stderr
	slog.Debug("running ffmpeg", "program", program, "inputs", len(manifest), "out", out)
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return fmt.Errorf("ffmpeg failed: %s: %w: %w", strings.TrimSpace(stderr.String()), audiobook.ErrExport, err)
	}
	return nil
}

// concatList renders manifest in the concat demuxer's list syntax.
func concatList(manifest []string) string {
	var b strings.Builder
	for _, path := range manifest {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(path, "'", `'\''`))
	}
	return b.String()
}
