package infrastructure

import (
	"io"
	"os/exec"
	"runtime"
	"strings"
	"testing"
)

func shellCommand(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	return exec.Command("sh", "-c", script)
}

func TestProcessStream_ReadsOutput(t *testing.T) {
	stream, err := startStream("test", shellCommand(t, "printf audio-bytes"))
	if err != nil {
		t.Fatalf("startStream() error = %v", err)
	}

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("read %q", data)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestProcessStream_CloseReportsFailure(t *testing.T) {
	stream, err := startStream("test", shellCommand(t, "echo 'first' >&2; echo 'ERROR: video unavailable' >&2; exit 1"))
	if err != nil {
		t.Fatalf("startStream() error = %v", err)
	}

	_, _ = io.ReadAll(stream)
	err = stream.Close()
	if err == nil {
		t.Fatal("expected error from failed process")
	}
	if !strings.Contains(err.Error(), "ERROR: video unavailable") {
		t.Errorf("expected last stderr line in error, got %v", err)
	}

	// Close is idempotent
	if err2 := stream.Close(); err2 != err {
		t.Errorf("second Close() = %v, want %v", err2, err)
	}
}

func TestProcessStream_CloseBeforeEOF(t *testing.T) {
	stream, err := startStream("test", shellCommand(t, "yes"))
	if err != nil {
		t.Fatalf("startStream() error = %v", err)
	}

	buf := make([]byte, 16)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}

	// The process is killed by the broken pipe, Close must not hang.
	_ = stream.Close()
}

func TestLastLine(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"single":            "single",
		"a\nb\nlast\n":      "last",
		"  padded line \n ": "padded line",
	}
	for in, want := range tests {
		if got := lastLine(in); got != want {
			t.Errorf("lastLine(%q) = %q, want %q", in, got, want)
		}
	}
}
