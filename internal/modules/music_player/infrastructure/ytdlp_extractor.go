package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
)

// YtdlpExtractor streams the audio track of a video through yt-dlp.
type YtdlpExtractor struct{}

// NewYtdlpExtractor creates a new YtdlpExtractor.
func NewYtdlpExtractor() *YtdlpExtractor {
	return &YtdlpExtractor{}
}

// ExtractAudio starts yt-dlp writing the best audio format of locator to stdout.
func (e *YtdlpExtractor) ExtractAudio(ctx context.Context, locator string) (io.ReadCloser, error) {
	cmd := ytdlp.New().
		Format("bestaudio/best").
		Output("-").
		NoPlaylist().
		NoPart().
		NoWarnings().
		IgnoreConfig().
		Quiet().
		BuildCommand(ctx, locator)

	return startStream("yt-dlp", cmd)
}

// processStream is the stdout of a running process. Close waits for the
// process and reports a non-zero exit as an error.
type processStream struct {
	io.ReadCloser
	name   string
	cmd    *exec.Cmd
	stderr *bytes.Buffer

	once sync.Once
	err  error
}

func startStream(name string, cmd *exec.Cmd) (io.ReadCloser, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", name, err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: start: %w", name, err)
	}

	return &processStream{
		ReadCloser: stdout,
		name:       name,
		cmd:        cmd,
		stderr:     stderr,
	}, nil
}

func (s *processStream) Close() error {
	s.once.Do(func() {
		// Closing the read end first unblocks a process still writing.
		_ = s.ReadCloser.Close()
		if err := s.cmd.Wait(); err != nil {
			s.err = fmt.Errorf("%s: %w: %s", s.name, err, lastLine(s.stderr.String()))
		}
	})
	return s.err
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if i := strings.LastIndexByte(output, '\n'); i >= 0 {
		return output[i+1:]
	}
	return output
}

// Ensure YtdlpExtractor implements ports.AudioExtractor.
var _ ports.AudioExtractor = (*YtdlpExtractor)(nil)
