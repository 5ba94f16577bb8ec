package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// DefaultFFmpegPath is used when no ffmpeg binary is configured.
const DefaultFFmpegPath = "ffmpeg"

// PCM output format fed to the opus encoder.
const (
	pcmSampleRate = 48000
	pcmChannels   = 2
)

// FFmpegTranscoder encodes audio streams to MP3 files and decodes cache
// files back to raw PCM with ffmpeg.
type FFmpegTranscoder struct {
	path string
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder using the given binary.
func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpegTranscoder{path: path}
}

// Transcode reads src until EOF and writes an MP3 at the requested bitrate to outputPath.
func (t *FFmpegTranscoder) Transcode(
	ctx context.Context,
	src io.Reader,
	bitrateKbps int,
	outputPath string,
) error {
	cmd := exec.CommandContext(ctx, t.path, t.args(bitrateKbps, outputPath)...)
	cmd.Stdin = src

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func (t *FFmpegTranscoder) args(bitrateKbps int, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-f", "mp3",
		"-y",
		outputPath,
	}
}

// DecodePCM streams path as signed 16-bit little-endian stereo PCM at 48 kHz,
// starting offset into the file. Closing the reader stops ffmpeg.
func (t *FFmpegTranscoder) DecodePCM(ctx context.Context, path string, offset time.Duration) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, t.path, t.pcmArgs(path, offset)...)
	return startStream("ffmpeg", cmd)
}

func (t *FFmpegTranscoder) pcmArgs(path string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(pcmSampleRate),
		"-ac", strconv.Itoa(pcmChannels),
		"pipe:1",
	)
}

// Ensure FFmpegTranscoder implements ports.Transcoder.
var _ ports.Transcoder = (*FFmpegTranscoder)(nil)
