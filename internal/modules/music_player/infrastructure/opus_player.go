package infrastructure

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
	"layeh.com/gopus"
)

// Opus framing used by Discord voice: 20ms of 48kHz stereo.
const (
	opusFrameSamples = 960
	opusFrameBytes   = opusFrameSamples * pcmChannels * 2
	opusMaxBytes     = 4000
	opusBitrate      = 128000
)

// ErrPlayerClosed is returned when a closed player is asked to play.
var ErrPlayerClosed = errors.New("player is closed")

// FrameSink receives encoded opus frames.
type FrameSink interface {
	SendFrame(ctx context.Context, frame []byte) error
	Speaking(speaking bool) error
}

// PCMDecoder decodes a cache file to 48kHz stereo s16le PCM.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, path string, offset time.Duration) (io.ReadCloser, error)
}

type opusEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

func newGopusEncoder() (opusEncoder, error) {
	enc, err := gopus.NewEncoder(pcmSampleRate, pcmChannels, gopus.Audio)
	if err != nil {
		return nil, err
	}
	enc.SetBitrate(opusBitrate)
	return enc, nil
}

// playback is one resource being streamed.
type playback struct {
	resource *ports.PlaybackResource
	cancel   context.CancelFunc
	reason   domain.TrackEndReason // guarded by OpusPlayer.mu, used once cancelled
}

// OpusPlayer streams cache files as opus frames into an attached sink.
// Frames are only produced while unpaused and attached.
type OpusPlayer struct {
	guildID    snowflake.ID
	decoder    PCMDecoder
	newEncoder func() (opusEncoder, error)

	mu      sync.Mutex
	sink    FrameSink
	paused  bool
	volume  float64
	wake    chan struct{}
	current *playback
	closed  bool

	signals chan ports.PlayerSignal
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewOpusPlayer creates a new OpusPlayer.
func NewOpusPlayer(guildID snowflake.ID, decoder PCMDecoder) *OpusPlayer {
	return &OpusPlayer{
		guildID:    guildID,
		decoder:    decoder,
		newEncoder: newGopusEncoder,
		volume:     1,
		wake:       make(chan struct{}),
		signals:    make(chan ports.PlayerSignal, 8),
		closing:    make(chan struct{}),
	}
}

// Attach routes frames into sink, replacing the previous one.
func (p *OpusPlayer) Attach(sink FrameSink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sink = sink
	p.wakeLocked()
}

// Detach stops routing frames into sink if it is the attached one.
func (p *OpusPlayer) Detach(sink FrameSink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == sink {
		p.sink = nil
	}
}

// Play starts resource, replacing the current playback. It does not wait
// for the replaced playback to wind down.
func (p *OpusPlayer) Play(resource *ports.PlaybackResource) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}
	if p.current != nil {
		p.current.reason = domain.TrackEndReplaced
		p.current.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{resource: resource, cancel: cancel, reason: domain.TrackEndStopped}
	p.current = pb
	p.volume = resource.Volume
	p.paused = false
	p.wakeLocked()

	p.wg.Add(1)
	go p.run(ctx, pb)
	return nil
}

// Pause holds frame production until Unpause.
func (p *OpusPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = true
	return nil
}

// Unpause resumes frame production.
func (p *OpusPlayer) Unpause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = false
	p.wakeLocked()
	return nil
}

// Stop ends the current playback. The idle signal carries TrackEndStopped.
func (p *OpusPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.reason = domain.TrackEndStopped
		p.current.cancel()
		p.current = nil
	}
	p.paused = false
	return nil
}

// SetVolume applies from the next frame on.
func (p *OpusPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
}

// Signals delivers status transitions. The channel is closed by Close.
func (p *OpusPlayer) Signals() <-chan ports.PlayerSignal {
	return p.signals
}

// Close stops playback and waits for the streaming goroutines to exit.
func (p *OpusPlayer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.current != nil {
		p.current.reason = domain.TrackEndStopped
		p.current.cancel()
		p.current = nil
	}
	p.sink = nil
	close(p.closing)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.signals)
}

func (p *OpusPlayer) wakeLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

func (p *OpusPlayer) run(ctx context.Context, pb *playback) {
	defer p.wg.Done()

	reason := p.stream(ctx, pb)

	p.mu.Lock()
	if p.current == pb {
		p.current = nil
	}
	p.mu.Unlock()
	pb.cancel()

	p.emit(ports.PlayerSignal{Kind: ports.PlayerSignalIdle, Resource: pb.resource, Reason: reason})
}

// stream pumps frames until the file ends or the playback is cancelled.
func (p *OpusPlayer) stream(ctx context.Context, pb *playback) domain.TrackEndReason {
	log := slog.With("guild", p.guildID, "path", pb.resource.Path)

	src, err := p.decoder.DecodePCM(ctx, pb.resource.Path, pb.resource.Offset)
	if err != nil {
		if ctx.Err() != nil {
			return p.cancelReason(pb)
		}
		log.Error("failed to open audio", "error", err)
		return domain.TrackEndLoadFailed
	}
	defer func() { _ = src.Close() }()

	enc, err := p.newEncoder()
	if err != nil {
		log.Error("failed to create opus encoder", "error", err)
		return domain.TrackEndLoadFailed
	}

	reader := bufio.NewReaderSize(src, 32768)
	buf := make([]byte, opusFrameBytes)
	pcm := make([]int16, opusFrameSamples*pcmChannels)

	var speaking FrameSink
	defer func() {
		if speaking != nil {
			_ = speaking.Speaking(false)
		}
	}()

	started := false
	for {
		sink, volume, err := p.waitReady(ctx)
		if err != nil {
			return p.cancelReason(pb)
		}

		n, err := io.ReadFull(reader, buf)
		last := false
		switch {
		case err == nil:
		case errors.Is(err, io.ErrUnexpectedEOF):
			clear(buf[n:])
			last = true
		case errors.Is(err, io.EOF):
			if ctx.Err() != nil {
				return p.cancelReason(pb)
			}
			if !started {
				if cerr := src.Close(); cerr != nil {
					log.Error("audio produced no samples", "error", cerr)
				}
				return domain.TrackEndLoadFailed
			}
			return domain.TrackEndFinished
		default:
			if ctx.Err() != nil {
				return p.cancelReason(pb)
			}
			log.Error("failed to read audio", "error", err)
			if !started {
				return domain.TrackEndLoadFailed
			}
			return domain.TrackEndFinished
		}

		scalePCM(pcm, buf, volume)
		frame, err := enc.Encode(pcm, opusFrameSamples, opusMaxBytes)
		if err != nil {
			log.Error("failed to encode opus frame", "error", err)
			if !started {
				return domain.TrackEndLoadFailed
			}
			return domain.TrackEndFinished
		}

		if !started {
			started = true
			p.emit(ports.PlayerSignal{Kind: ports.PlayerSignalPlaying, Resource: pb.resource})
		}

		if sink != speaking {
			if speaking != nil {
				_ = speaking.Speaking(false)
			}
			if err := sink.Speaking(true); err != nil {
				log.Debug("failed to set speaking state", "error", err)
			}
			speaking = sink
		}

		if err := sink.SendFrame(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return p.cancelReason(pb)
			}
			log.Debug("dropped opus frame", "error", err)
		}

		if last {
			return domain.TrackEndFinished
		}
	}
}

// waitReady blocks while paused or detached.
func (p *OpusPlayer) waitReady(ctx context.Context) (FrameSink, float64, error) {
	for {
		p.mu.Lock()
		if !p.paused && p.sink != nil {
			sink, volume := p.sink, p.volume
			p.mu.Unlock()
			return sink, volume, nil
		}
		wake := p.wake
		p.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}

func (p *OpusPlayer) cancelReason(pb *playback) domain.TrackEndReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pb.reason
}

// emit gives up once the player is closing, nobody reads signals after that.
func (p *OpusPlayer) emit(sig ports.PlayerSignal) {
	select {
	case p.signals <- sig:
	case <-p.closing:
	}
}

// scalePCM converts little-endian s16 bytes to samples, applying volume.
func scalePCM(dst []int16, src []byte, volume float64) {
	for i := range dst {
		sample := int16(binary.LittleEndian.Uint16(src[2*i:]))
		if volume == 1 {
			dst[i] = sample
			continue
		}
		v := math.Round(float64(sample) * volume)
		dst[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
}

// Ensure OpusPlayer implements ports.AudioPlayer.
var _ ports.AudioPlayer = (*OpusPlayer)(nil)
