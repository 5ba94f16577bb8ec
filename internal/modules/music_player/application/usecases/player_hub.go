package usecases

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// Resolver turns a query into candidates.
type Resolver interface {
	Search(ctx context.Context, query string) []domain.Candidate
}

var _ Resolver = (*MediaResolver)(nil)

// PlayerFactory creates the audio player of a new queue.
type PlayerFactory func(guildID snowflake.ID) ports.AudioPlayer

// PlayerHubOptions controls queue teardown policies.
type PlayerHubOptions struct {
	LeaveOnEnd   bool
	LeaveOnEmpty bool
	EmptyTimeout time.Duration
}

// VoiceStateUpdateInput contains one voice presence change.
type VoiceStateUpdateInput struct {
	GuildID   snowflake.ID
	UserID    snowflake.ID
	ChannelID snowflake.ID // 0 means disconnected
	IsSelf    bool         // the update concerns the bot itself
}

// emptyTimer is a pending empty-channel check for one guild.
type emptyTimer struct {
	stop func() bool
}

// PlayerHub owns the guild to queue registry and applies presence policies.
type PlayerHub struct {
	registry   QueueRegistry
	resolver   Resolver
	cache      Materializer
	transport  ports.VoiceTransport
	newPlayer  PlayerFactory
	voiceState ports.VoiceStateProvider
	publisher  ports.EventPublisher
	opts       PlayerHubOptions

	now       func() time.Time
	shuffle   func(n int, swap func(i, j int))
	afterFunc func(d time.Duration, f func()) func() bool

	mu     sync.Mutex
	timers map[snowflake.ID]*emptyTimer
}

// NewPlayerHub creates a new PlayerHub.
func NewPlayerHub(
	registry QueueRegistry,
	resolver Resolver,
	cache Materializer,
	transport ports.VoiceTransport,
	newPlayer PlayerFactory,
	voiceState ports.VoiceStateProvider,
	publisher ports.EventPublisher,
	opts PlayerHubOptions,
) *PlayerHub {
	return &PlayerHub{
		registry:   registry,
		resolver:   resolver,
		cache:      cache,
		transport:  transport,
		newPlayer:  newPlayer,
		voiceState: voiceState,
		publisher:  publisher,
		opts:       opts,
		now:        time.Now,
		shuffle:    rand.Shuffle,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		timers: make(map[snowflake.ID]*emptyTimer),
	}
}

// Search is a pass-through to the resolver.
func (h *PlayerHub) Search(ctx context.Context, query string) []domain.Candidate {
	return h.resolver.Search(ctx, query)
}

// CreateQueue returns the guild's queue, creating it on first use.
func (h *PlayerHub) CreateQueue(guildID, textChannelID snowflake.ID) *GuildQueue {
	h.mu.Lock()
	q, ok := h.registry.Get(guildID)
	if !ok {
		q = newGuildQueue(h, guildID, textChannelID)
		h.registry.Save(guildID, q)
		h.mu.Unlock()

		slog.Info("queue created", "guild", guildID)
		return q
	}
	h.mu.Unlock()

	q.SetTextChannel(textChannelID)
	return q
}

// GetQueue returns the guild's queue, or nil.
func (h *PlayerHub) GetQueue(guildID snowflake.ID) *GuildQueue {
	q, ok := h.registry.Get(guildID)
	if !ok {
		return nil
	}
	return q
}

// DeleteQueue stops and removes the guild's queue.
func (h *PlayerHub) DeleteQueue(guildID snowflake.ID) error {
	q := h.GetQueue(guildID)
	if q == nil {
		return ErrNotConnected
	}
	return q.Stop()
}

// Queues returns every live queue.
func (h *PlayerHub) Queues() []*GuildQueue {
	return h.registry.Values()
}

// release removes q from the registry if it is still the guild's queue.
func (h *PlayerHub) release(guildID snowflake.ID, q *GuildQueue) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.registry.Get(guildID); ok && current == q {
		h.registry.Delete(guildID)
	}
	h.cancelTimerLocked(guildID)
}

// FileInUse reports whether any live queue references filename.
func (h *PlayerHub) FileInUse(filename string) bool {
	for _, q := range h.registry.Values() {
		if q.ReferencesFile(filename) {
			return true
		}
	}
	return false
}

// ActiveFilenames returns every cache file referenced by a live queue.
func (h *PlayerHub) ActiveFilenames() map[string]struct{} {
	result := make(map[string]struct{})
	for _, q := range h.registry.Values() {
		for _, name := range q.Filenames() {
			result[name] = struct{}{}
		}
	}
	return result
}

// HandleVoiceStateUpdate applies auto-stop policies to a presence change.
func (h *PlayerHub) HandleVoiceStateUpdate(input VoiceStateUpdateInput) {
	q := h.GetQueue(input.GuildID)
	if q == nil {
		return
	}

	if input.IsSelf {
		if input.ChannelID == 0 {
			h.cancelTimer(input.GuildID)
			snapshot := q.Snapshot()
			if err := q.Stop(); err != nil {
				return
			}
			h.publish(domain.ClientDisconnectEvent{Queue: snapshot})
			slog.Info("bot disconnected from voice", "guild", input.GuildID)
			return
		}
		q.setVoiceChannel(input.ChannelID)
	}

	if !h.opts.LeaveOnEmpty {
		return
	}

	channelID := q.VoiceChannelID()
	if channelID == 0 {
		return
	}

	listeners, err := h.voiceState.CountListeners(input.GuildID, channelID)
	if err != nil {
		slog.Warn("failed to count voice channel members",
			"guild", input.GuildID,
			"channel", channelID,
			"error", err,
		)
		return
	}

	if listeners == 0 {
		h.scheduleEmptyCheck(input.GuildID, q)
	} else {
		h.cancelTimer(input.GuildID)
	}
}

// scheduleEmptyCheck replaces any pending check for the guild with a new one.
func (h *PlayerHub) scheduleEmptyCheck(guildID snowflake.ID, q *GuildQueue) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelTimerLocked(guildID)

	timer := &emptyTimer{}
	h.timers[guildID] = timer
	timer.stop = h.afterFunc(h.opts.EmptyTimeout, func() {
		h.onEmptyTimeout(guildID, q, timer)
	})
}

func (h *PlayerHub) onEmptyTimeout(guildID snowflake.ID, q *GuildQueue, timer *emptyTimer) {
	h.mu.Lock()
	if h.timers[guildID] != timer {
		h.mu.Unlock()
		return
	}
	delete(h.timers, guildID)
	h.mu.Unlock()

	if current := h.GetQueue(guildID); current != q {
		return
	}

	channelID := q.VoiceChannelID()
	listeners, err := h.voiceState.CountListeners(guildID, channelID)
	if err != nil || listeners > 0 {
		return
	}

	snapshot := q.Snapshot()
	if err := q.Stop(); err != nil {
		return
	}
	h.publish(domain.ChannelEmptyEvent{Queue: snapshot})
	slog.Info("left empty voice channel", "guild", guildID, "channel", channelID)
}

func (h *PlayerHub) cancelTimer(guildID snowflake.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelTimerLocked(guildID)
}

func (h *PlayerHub) cancelTimerLocked(guildID snowflake.ID) {
	timer, ok := h.timers[guildID]
	if !ok {
		return
	}
	if timer.stop != nil {
		timer.stop()
	}
	delete(h.timers, guildID)
}

// HasPendingEmptyCheck reports whether an empty-channel check is scheduled.
func (h *PlayerHub) HasPendingEmptyCheck(guildID snowflake.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.timers[guildID]
	return ok
}

func (h *PlayerHub) publish(event domain.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		slog.Warn("failed to publish event", "event", event.Kind(), "error", err)
	}
}

// Close stops every queue and pending timer.
func (h *PlayerHub) Close() {
	h.mu.Lock()
	for guildID := range h.timers {
		h.cancelTimerLocked(guildID)
	}
	h.mu.Unlock()

	for _, q := range h.registry.Values() {
		_ = q.Stop()
	}
}
