package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
)

// fakeFFmpeg writes a script that copies stdin to its last argument,
// or fails when FAIL is in the input.
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := `#!/bin/sh
for last; do :; done
data=$(cat)
case "$data" in
  *FAIL*) echo "Invalid data found when processing input" >&2; exit 1 ;;
esac
printf '%s' "$data" > "$last"
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegTranscoder_args(t *testing.T) {
	args := NewFFmpegTranscoder("").args(256, "/cache/out.mp3.part")

	for _, want := range [][]string{
		{"-i", "pipe:0"},
		{"-b:a", "256k"},
		{"-f", "mp3"},
	} {
		i := slices.Index(args, want[0])
		if i < 0 || i+1 >= len(args) || args[i+1] != want[1] {
			t.Errorf("expected %s %s in %v", want[0], want[1], args)
		}
	}
	if args[len(args)-1] != "/cache/out.mp3.part" {
		t.Errorf("expected output path last, got %v", args)
	}
}

func TestFFmpegTranscoder_Transcode(t *testing.T) {
	transcoder := NewFFmpegTranscoder(fakeFFmpeg(t))
	out := filepath.Join(t.TempDir(), "song.mp3.part")

	err := transcoder.Transcode(context.Background(), strings.NewReader("pcm"), 256, out)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "pcm" {
		t.Errorf("output = %q", data)
	}
}

func TestFFmpegTranscoder_TranscodeFailure(t *testing.T) {
	transcoder := NewFFmpegTranscoder(fakeFFmpeg(t))
	out := filepath.Join(t.TempDir(), "song.mp3.part")

	err := transcoder.Transcode(context.Background(), strings.NewReader("FAIL"), 256, out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("expected stderr in error, got %v", err)
	}
}

func TestFFmpegTranscoder_pcmArgs(t *testing.T) {
	tests := []struct {
		name     string
		offset   time.Duration
		wantSeek string
	}{
		{name: "from start", offset: 0},
		{name: "with offset", offset: 90500 * time.Millisecond, wantSeek: "90.500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := NewFFmpegTranscoder("").pcmArgs("/cache/a.mp3", tt.offset)

			i := slices.Index(args, "-ss")
			switch {
			case tt.wantSeek == "" && i >= 0:
				t.Errorf("unexpected seek in %v", args)
			case tt.wantSeek != "" && (i < 0 || args[i+1] != tt.wantSeek):
				t.Errorf("expected -ss %s in %v", tt.wantSeek, args)
			}
			if j := slices.Index(args, "-i"); tt.wantSeek != "" && j < i {
				t.Errorf("expected input seeking before -i, got %v", args)
			}
			if args[len(args)-1] != "pipe:1" || !slices.Contains(args, "s16le") {
				t.Errorf("expected raw pcm on stdout, got %v", args)
			}
		})
	}
}
