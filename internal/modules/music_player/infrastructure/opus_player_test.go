package infrastructure

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// fakeDecoder returns canned PCM per path. Paths missing from pcm fail to open.
type fakeDecoder struct {
	mu      sync.Mutex
	pcm     map[string][]byte
	block   map[string]bool // stream forever
	offsets []time.Duration
}

func (d *fakeDecoder) DecodePCM(ctx context.Context, path string, offset time.Duration) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.offsets = append(d.offsets, offset)
	if d.block[path] {
		return &endlessReader{ctx: ctx}, nil
	}
	data, ok := d.pcm[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// endlessReader yields silence until its context is cancelled.
type endlessReader struct {
	ctx context.Context
}

func (r *endlessReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	clear(p)
	return len(p), nil
}

func (r *endlessReader) Close() error { return nil }

// passthroughEncoder returns the first sample of each frame as the "packet".
type passthroughEncoder struct{}

func (passthroughEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(pcm[0]))
	return out, nil
}

type recordingSink struct {
	mu       sync.Mutex
	frames   [][]byte
	speaking []bool
}

func (s *recordingSink) SendFrame(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) < 1000 {
		s.frames = append(s.frames, frame)
	}
	return nil
}

func (s *recordingSink) Speaking(speaking bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = append(s.speaking, speaking)
	return nil
}

func (s *recordingSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// pcmFrames builds n full frames whose samples are all value.
func pcmFrames(n int, value int16) []byte {
	buf := make([]byte, n*opusFrameBytes)
	for i := 0; i < len(buf); i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(value))
	}
	return buf
}

func newTestOpusPlayer(decoder *fakeDecoder) *OpusPlayer {
	p := NewOpusPlayer(1, decoder)
	p.newEncoder = func() (opusEncoder, error) { return passthroughEncoder{}, nil }
	return p
}

func nextSignal(t *testing.T, p *OpusPlayer) ports.PlayerSignal {
	t.Helper()
	select {
	case sig := <-p.Signals():
		return sig
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for player signal")
		return ports.PlayerSignal{}
	}
}

func TestOpusPlayer_PlaysToEnd(t *testing.T) {
	decoder := &fakeDecoder{pcm: map[string][]byte{"a.mp3": pcmFrames(3, 100)}}
	p := newTestOpusPlayer(decoder)
	defer p.Close()

	sink := &recordingSink{}
	p.Attach(sink)

	resource := &ports.PlaybackResource{Path: "a.mp3", Volume: 1}
	if err := p.Play(resource); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if sig := nextSignal(t, p); sig.Kind != ports.PlayerSignalPlaying || sig.Resource != resource {
		t.Errorf("expected playing signal, got %+v", sig)
	}
	sig := nextSignal(t, p)
	if sig.Kind != ports.PlayerSignalIdle || sig.Reason != domain.TrackEndFinished {
		t.Errorf("expected finished, got %+v", sig)
	}

	if sink.frameCount() != 3 {
		t.Errorf("expected 3 frames, got %d", sink.frameCount())
	}
	if len(sink.speaking) != 2 || !sink.speaking[0] || sink.speaking[1] {
		t.Errorf("expected speaking on then off, got %v", sink.speaking)
	}
}

func TestOpusPlayer_PadsPartialFrame(t *testing.T) {
	data := append(pcmFrames(1, 7), pcmFrames(1, 7)[:100]...)
	p := newTestOpusPlayer(&fakeDecoder{pcm: map[string][]byte{"a.mp3": data}})
	defer p.Close()

	sink := &recordingSink{}
	p.Attach(sink)
	_ = p.Play(&ports.PlaybackResource{Path: "a.mp3", Volume: 1})

	nextSignal(t, p)
	if sig := nextSignal(t, p); sig.Reason != domain.TrackEndFinished {
		t.Errorf("expected finished, got %+v", sig)
	}
	if sink.frameCount() != 2 {
		t.Errorf("expected trailing bytes sent as a padded frame, got %d frames", sink.frameCount())
	}
}

func TestOpusPlayer_LoadFailures(t *testing.T) {
	tests := []struct {
		name string
		pcm  map[string][]byte
	}{
		{name: "decoder cannot open", pcm: map[string][]byte{}},
		{name: "no samples", pcm: map[string][]byte{"a.mp3": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpusPlayer(&fakeDecoder{pcm: tt.pcm})
			defer p.Close()
			p.Attach(&recordingSink{})

			_ = p.Play(&ports.PlaybackResource{Path: "a.mp3", Volume: 1})

			sig := nextSignal(t, p)
			if sig.Kind != ports.PlayerSignalIdle || sig.Reason != domain.TrackEndLoadFailed {
				t.Errorf("expected load_failed, got %+v", sig)
			}
		})
	}
}

func TestOpusPlayer_ReplaceAndStop(t *testing.T) {
	decoder := &fakeDecoder{block: map[string]bool{"a.mp3": true, "b.mp3": true}}
	p := newTestOpusPlayer(decoder)
	defer p.Close()
	p.Attach(&recordingSink{})

	first := &ports.PlaybackResource{Path: "a.mp3", Volume: 1}
	_ = p.Play(first)
	nextSignal(t, p) // playing

	second := &ports.PlaybackResource{Path: "b.mp3", Offset: 30 * time.Second, Volume: 1}
	_ = p.Play(second)

	seen := map[*ports.PlaybackResource][]ports.PlayerSignal{}
	for len(seen[first]) < 1 || len(seen[second]) < 1 {
		sig := nextSignal(t, p)
		seen[sig.Resource] = append(seen[sig.Resource], sig)
	}
	if got := seen[first][0]; got.Kind != ports.PlayerSignalIdle || got.Reason != domain.TrackEndReplaced {
		t.Errorf("expected replaced, got %+v", got)
	}
	if got := seen[second][0]; got.Kind != ports.PlayerSignalPlaying {
		t.Errorf("expected second resource playing, got %+v", got)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	sig := nextSignal(t, p)
	if sig.Resource != second || sig.Reason != domain.TrackEndStopped {
		t.Errorf("expected stopped, got %+v", sig)
	}

	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	if decoder.offsets[1] != 30*time.Second {
		t.Errorf("expected offset passed to decoder, got %v", decoder.offsets)
	}
}

func TestOpusPlayer_WaitsForSinkAndUnpause(t *testing.T) {
	p := newTestOpusPlayer(&fakeDecoder{pcm: map[string][]byte{"a.mp3": pcmFrames(2, 1)}})
	defer p.Close()

	_ = p.Play(&ports.PlaybackResource{Path: "a.mp3", Volume: 1})
	_ = p.Pause()

	select {
	case sig := <-p.Signals():
		t.Fatalf("expected no progress without a sink, got %+v", sig)
	case <-time.After(50 * time.Millisecond):
	}

	sink := &recordingSink{}
	p.Attach(sink)

	select {
	case sig := <-p.Signals():
		t.Fatalf("expected no progress while paused, got %+v", sig)
	case <-time.After(50 * time.Millisecond):
	}

	_ = p.Unpause()
	nextSignal(t, p)
	if sig := nextSignal(t, p); sig.Reason != domain.TrackEndFinished {
		t.Errorf("expected finished, got %+v", sig)
	}
	if sink.frameCount() != 2 {
		t.Errorf("expected 2 frames, got %d", sink.frameCount())
	}
}

func TestOpusPlayer_CloseStopsStreaming(t *testing.T) {
	p := newTestOpusPlayer(&fakeDecoder{block: map[string]bool{"a.mp3": true}})
	p.Attach(&recordingSink{})
	_ = p.Play(&ports.PlaybackResource{Path: "a.mp3", Volume: 1})

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return")
	}

	for range p.Signals() {
	}
	if err := p.Play(&ports.PlaybackResource{Path: "a.mp3"}); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("expected ErrPlayerClosed, got %v", err)
	}
	p.Close()
}

func TestScalePCM(t *testing.T) {
	tests := []struct {
		name   string
		sample int16
		volume float64
		want   int16
	}{
		{name: "unity", sample: 1000, volume: 1, want: 1000},
		{name: "half", sample: 1000, volume: 0.5, want: 500},
		{name: "mute", sample: -1000, volume: 0, want: 0},
		{name: "clamps high", sample: 30000, volume: 2, want: 32767},
		{name: "clamps low", sample: -30000, volume: 2, want: -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := make([]byte, 2)
			binary.LittleEndian.PutUint16(src, uint16(tt.sample))
			dst := make([]int16, 1)

			scalePCM(dst, src, tt.volume)
			if dst[0] != tt.want {
				t.Errorf("scalePCM() = %d, want %d", dst[0], tt.want)
			}
		})
	}
}
