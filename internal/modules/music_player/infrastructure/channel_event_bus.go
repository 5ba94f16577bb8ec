package infrastructure

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// DefaultEventBufferSize is the default buffer size for the event channel.
const DefaultEventBufferSize = 100

var (
	// ErrEventBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrEventBufferFull is returned when an event was dropped because the buffer is full.
	ErrEventBufferFull = errors.New("event buffer full")
)

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus provides a channel-based event bus for async event handling.
// Events are delivered on a single dispatcher goroutine, so handlers observe
// them in publish order.
type ChannelEventBus struct {
	events   chan domain.Event
	handlers map[domain.EventKind][]func(context.Context, domain.Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus with the given buffer size.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		events:   make(chan domain.Event, bufferSize),
		handlers: make(map[domain.EventKind][]func(context.Context, domain.Event)),
		ctx:      ctx,
		cancel:   cancel,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

func (b *ChannelEventBus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.mu.RLock()
			handlers := b.handlers[event.Kind()]
			b.mu.RUnlock()
			for _, handler := range handlers {
				b.invoke(handler, event)
			}
		}
	}
}

func (b *ChannelEventBus) invoke(handler func(context.Context, domain.Event), event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", event.Kind(), "panic", r)
		}
	}()
	handler(b.ctx, event)
}

// Publish enqueues an event for delivery.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *ChannelEventBus) Publish(event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", event.Kind())
		return ErrEventBusClosed
	}

	select {
	case b.events <- event:
		slog.Debug("published event", "type", event.Kind(), "guild", event.Snapshot().GuildID)
		return nil
	default:
		slog.Warn("event buffer full, dropping event", "type", event.Kind())
		return ErrEventBufferFull
	}
}

// Subscribe registers a handler for events of the given kind.
func (b *ChannelEventBus) Subscribe(
	kind domain.EventKind,
	handler func(context.Context, domain.Event),
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[kind] = append(b.handlers[kind], handler)
	return nil
}

// Close closes the event channel and stops the dispatcher.
// After calling Close, publishing will no longer send events.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	// Cancel context to stop the dispatcher
	b.cancel()

	// Close the channel to unblock any pending read
	close(b.events)

	// Wait for the dispatcher to finish
	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
