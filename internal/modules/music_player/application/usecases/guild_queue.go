package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

// DefaultVolume is the volume a new queue starts with.
const DefaultVolume = 1.0

// MaxVolume is the highest accepted volume.
const MaxVolume = 2.0

// PlayInput contains the input for GuildQueue.Play.
type PlayInput struct {
	Query         string
	RequesterID   snowflake.ID
	RequesterName string

	// OnTrackDownloadStart is called before each candidate is materialized.
	OnTrackDownloadStart func(track *domain.Track)
}

// FailedTrack describes a candidate that could not be materialized.
type FailedTrack struct {
	Track  *domain.Track
	Reason string
}

// PlayResult contains the result of GuildQueue.Play.
type PlayResult struct {
	Source string // e.g. "Track", "Album «name»"
	Added  []*domain.Track
	Failed []FailedTrack
}

// queueEffects collects work that must run after the queue lock is released.
type queueEffects struct {
	discard     []string
	release     bool
	closePlayer bool
}

func (fx *queueEffects) discardTrack(track *domain.Track) {
	if track != nil && track.IsMaterialized() {
		fx.discard = append(fx.discard, track.Filename())
	}
}

// GuildQueue is the playback state machine of one guild.
// Index 0 of its track list is the only track eligible for playback.
type GuildQueue struct {
	guildID   snowflake.ID
	hub       *PlayerHub
	cache     Materializer
	transport ports.VoiceTransport
	player    ports.AudioPlayer
	publisher ports.EventPublisher

	leaveOnEnd bool
	now        func() time.Time
	shuffle    func(n int, swap func(i, j int))

	mu             sync.Mutex
	textChannelID  snowflake.ID
	voiceChannelID snowflake.ID
	tracks         *domain.Queue
	repeatMode     domain.RepeatMode
	volume         float64
	status         domain.PlayerStatus
	conn           ports.VoiceConnection
	resource       *ports.PlaybackResource
	nowPlaying     *domain.Track
	pendingLoads   int
	awaiting       bool // head emptied while a Play batch was still loading
	closed         bool

	done chan struct{}
}

func newGuildQueue(hub *PlayerHub, guildID, textChannelID snowflake.ID) *GuildQueue {
	q := &GuildQueue{
		guildID:       guildID,
		hub:           hub,
		cache:         hub.cache,
		transport:     hub.transport,
		player:        hub.newPlayer(guildID),
		publisher:     hub.publisher,
		leaveOnEnd:    hub.opts.LeaveOnEnd,
		now:           hub.now,
		shuffle:       hub.shuffle,
		textChannelID: textChannelID,
		tracks:        domain.NewQueue(),
		repeatMode:    domain.RepeatModeOff,
		volume:        DefaultVolume,
		status:        domain.PlayerStatusIdle,
		done:          make(chan struct{}),
	}
	go q.watch()
	return q
}

// watch feeds player status signals into the state machine.
func (q *GuildQueue) watch() {
	signals := q.player.Signals()
	for {
		select {
		case <-q.done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			q.handleSignal(sig)
		}
	}
}

// GuildID returns the guild this queue belongs to.
func (q *GuildQueue) GuildID() snowflake.ID {
	return q.guildID
}

// Join connects the queue to a voice channel. Joining the current channel is a no-op.
func (q *GuildQueue) Join(ctx context.Context, voiceChannelID snowflake.ID) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.conn != nil && q.voiceChannelID == voiceChannelID {
		q.mu.Unlock()
		return nil
	}
	previous := q.status
	q.status = domain.PlayerStatusConnecting
	q.mu.Unlock()

	conn, err := q.transport.Connect(ctx, q.guildID, voiceChannelID)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.status == domain.PlayerStatusConnecting {
		q.status = previous
	}
	if err != nil {
		return err
	}
	if q.closed {
		if err := conn.Destroy(); err != nil {
			slog.Warn("failed to destroy voice connection", "guild", q.guildID, "error", err)
		}
		return ErrQueueClosed
	}

	if q.conn != nil && q.conn != conn {
		if err := q.conn.Destroy(); err != nil {
			slog.Warn("failed to destroy previous voice connection", "guild", q.guildID, "error", err)
		}
	}
	q.conn = conn
	q.voiceChannelID = voiceChannelID

	if q.resource != nil {
		if err := conn.Subscribe(q.player); err != nil {
			slog.Warn("failed to subscribe player", "guild", q.guildID, "error", err)
		}
	}

	return nil
}

// Play resolves the query and appends every candidate that materializes.
// Candidates are processed in resolution order, one at a time.
func (q *GuildQueue) Play(ctx context.Context, input PlayInput) (*PlayResult, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.pendingLoads++
	q.mu.Unlock()

	var fx queueEffects
	candidates := q.hub.Search(ctx, input.Query)
	if len(candidates) == 0 {
		q.mu.Lock()
		q.pendingLoads--
		q.settleLocked(&fx)
		q.mu.Unlock()
		q.finish(fx)
		return nil, ErrNoTracksFound
	}

	result := &PlayResult{Source: domain.DescribeSource(candidates)}

	for _, candidate := range candidates {
		track := candidate.ToTrack(input.RequesterID, input.RequesterName)
		if input.OnTrackDownloadStart != nil {
			input.OnTrackDownloadStart(track)
		}

		res, err := q.cache.EnsureLocal(ctx, track.Metadata)
		if err == nil && res.Status == MaterializeSuccess {
			err = track.SetFilename(res.Filename)
			if track.Metadata.Duration == 0 {
				track.Metadata.Duration = res.Duration
			}
		}
		if err != nil || res.Status != MaterializeSuccess {
			reason := res.Message
			if err != nil {
				reason = err.Error()
			}
			slog.Warn("failed to materialize track",
				"guild", q.guildID,
				"title", track.Metadata.Title,
				"reason", reason,
			)
			result.Failed = append(result.Failed, FailedTrack{Track: track, Reason: reason})
			continue
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			fx.discardTrack(track)
			break
		}
		if q.tracks.Append(track) == 1 {
			q.awaiting = false
			q.advanceLocked(&fx)
		}
		q.mu.Unlock()

		result.Added = append(result.Added, track)
	}

	q.mu.Lock()
	q.pendingLoads--
	if !q.closed {
		snapshot := q.snapshotLocked()
		switch len(result.Added) {
		case 0:
		case 1:
			q.publish(domain.SongAddEvent{Queue: snapshot, Track: result.Added[0]})
		default:
			q.publish(domain.PlaylistAddEvent{
				Queue:    snapshot,
				Playlist: domain.CollectionInfo(candidates),
				Tracks:   result.Added,
			})
		}
		q.settleLocked(&fx)
	}
	q.mu.Unlock()
	q.finish(fx)

	if len(result.Added) == 0 {
		return result, ErrMaterializationFailed
	}
	return result, nil
}

// Skip advances past the current track and returns it.
// In queue repeat mode the track is moved to the tail instead of being dropped.
func (q *GuildQueue) Skip() (*domain.Track, error) {
	var fx queueEffects

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	head := q.tracks.Head()
	if head == nil {
		q.mu.Unlock()
		return nil, ErrNoCurrentTrack
	}
	q.skipLocked(&fx)
	q.mu.Unlock()

	q.finish(fx)
	return head, nil
}

// SkipTo drops every track before index and skips to the track at index.
// index must satisfy 1 <= index < Size().
func (q *GuildQueue) SkipTo(index int) (*domain.Track, error) {
	var fx queueEffects

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if index < 1 || index >= q.tracks.Len() {
		q.mu.Unlock()
		return nil, ErrIndexOutOfRange
	}

	target := q.tracks.At(index)
	for _, removed := range q.tracks.RemoveRange(1, index) {
		fx.discardTrack(removed)
	}
	q.skipLocked(&fx)
	q.mu.Unlock()

	q.finish(fx)
	return target, nil
}

// Seek restarts the current track at position.
func (q *GuildQueue) Seek(position time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	head := q.tracks.Head()
	if head == nil || !head.IsMaterialized() {
		return ErrNoCurrentTrack
	}
	if position < 0 || (head.Metadata.Duration > 0 && position > head.Metadata.Duration) {
		return ErrInvalidSeek
	}

	// A track that has not reported playing yet still gets its start notification.
	restarted := !head.StartedAt().IsZero()
	if restarted {
		head.MarkSeeked()
	}
	resource := &ports.PlaybackResource{
		Path:   q.cache.Path(head.Filename()),
		Offset: position,
		Volume: q.volume,
	}
	if err := q.player.Play(resource); err != nil {
		if restarted {
			head.ConsumeSeeked()
		}
		return err
	}

	q.resource = resource
	q.nowPlaying = head
	q.status = domain.PlayerStatusPlaying
	return nil
}

// SetPause pauses or resumes playback. It returns false when nothing is playing.
func (q *GuildQueue) SetPause(paused bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.nowPlaying == nil || q.resource == nil {
		return false, nil
	}

	if paused {
		if err := q.player.Pause(); err != nil {
			return false, err
		}
		q.status = domain.PlayerStatusPaused
	} else {
		if err := q.player.Unpause(); err != nil {
			return false, err
		}
		q.status = domain.PlayerStatusPlaying
	}
	return true, nil
}

// SetRepeatMode changes the repeat mode. Invalid modes leave the current mode unchanged.
func (q *GuildQueue) SetRepeatMode(mode domain.RepeatMode) (domain.RepeatMode, error) {
	if !mode.IsValid() {
		return 0, ErrInvalidRepeatMode
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.repeatMode = mode
	return mode, nil
}

// SetVolume changes the volume, applying it to the current playback immediately.
func (q *GuildQueue) SetVolume(volume float64) error {
	if volume < 0 || volume > MaxVolume {
		return ErrVolumeOutOfRange
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.volume = volume
	if q.resource != nil {
		q.player.SetVolume(volume)
	}
	return nil
}

// Shuffle randomly reorders the upcoming tracks. The current track never moves.
func (q *GuildQueue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks.Shuffle(q.shuffle)
}

// Remove drops the upcoming track at index. Use Skip for the current track.
func (q *GuildQueue) Remove(index int) (*domain.Track, error) {
	var fx queueEffects

	q.mu.Lock()
	if index < 1 || index >= q.tracks.Len() {
		q.mu.Unlock()
		return nil, ErrIndexOutOfRange
	}
	removed := q.tracks.RemoveAt(index)
	fx.discardTrack(removed)
	q.mu.Unlock()

	q.finish(fx)
	return removed, nil
}

// Clear drops every upcoming track and keeps the current one.
func (q *GuildQueue) Clear() int {
	var fx queueEffects

	q.mu.Lock()
	removed := q.tracks.RemoveRange(1, q.tracks.Len())
	for _, track := range removed {
		fx.discardTrack(track)
	}
	q.mu.Unlock()

	q.finish(fx)
	return len(removed)
}

// Stop halts playback, leaves the voice channel and destroys the queue.
func (q *GuildQueue) Stop() error {
	var fx queueEffects

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	snapshot := q.snapshotLocked()
	if err := q.player.Stop(); err != nil {
		slog.Warn("failed to stop player", "guild", q.guildID, "error", err)
	}
	q.destroyConnectionLocked()
	for _, track := range q.tracks.Clear() {
		fx.discardTrack(track)
	}
	q.resource = nil
	q.nowPlaying = nil
	q.status = domain.PlayerStatusIdle
	q.closed = true
	fx.release = true
	fx.closePlayer = true
	q.mu.Unlock()

	q.finish(fx)
	q.publish(domain.QueueDestroyedEvent{Queue: snapshot})

	slog.Info("queue destroyed", "guild", q.guildID)
	return nil
}

// Leave is an alias for Stop.
func (q *GuildQueue) Leave() error {
	return q.Stop()
}

// handleSignal applies one player status transition.
// Signals for a resource other than the current one are stale and ignored.
func (q *GuildQueue) handleSignal(sig ports.PlayerSignal) {
	var fx queueEffects

	q.mu.Lock()
	if q.closed || q.resource == nil || sig.Resource != q.resource {
		q.mu.Unlock()
		return
	}

	head := q.tracks.Head()
	switch sig.Kind {
	case ports.PlayerSignalPlaying:
		if head == nil || head.ConsumeSeeked() {
			break
		}
		if q.status != domain.PlayerStatusPaused {
			q.status = domain.PlayerStatusPlaying
		}
		head.MarkStarted(q.now())
		q.publish(domain.SongStartedEvent{Queue: q.snapshotLocked(), Track: head})

	case ports.PlayerSignalIdle:
		if !sig.Reason.ShouldAdvanceQueue() {
			break
		}
		q.resource = nil
		if head == nil {
			q.advanceLocked(&fx)
			break
		}

		q.publish(domain.SongEndedEvent{Queue: q.snapshotLocked(), Track: head})
		if q.repeatMode == domain.RepeatModeTrack && sig.Reason == domain.TrackEndFinished {
			head.ResetRuntime()
			q.advanceLocked(&fx)
		} else {
			q.skipLocked(&fx)
		}
	}
	q.mu.Unlock()

	q.finish(fx)
}

func (q *GuildQueue) skipLocked(fx *queueEffects) {
	head := q.tracks.Head()
	if head == nil {
		q.advanceLocked(fx)
		return
	}

	if q.repeatMode == domain.RepeatModeQueue {
		head.ResetRuntime()
		q.tracks.Requeue()
	} else {
		q.tracks.Shift()
		fx.discardTrack(head)
	}
	q.resource = nil
	q.advanceLocked(fx)
}

// advanceLocked starts the head of the queue, or ends the queue when it is empty.
func (q *GuildQueue) advanceLocked(fx *queueEffects) {
	for {
		head := q.tracks.Head()
		if head == nil {
			if q.pendingLoads > 0 {
				q.idleLocked()
				q.awaiting = true
				return
			}
			q.endLocked(fx)
			return
		}

		if !head.IsMaterialized() {
			slog.Warn("skipping track without a local file",
				"guild", q.guildID,
				"title", head.Metadata.Title,
			)
			q.tracks.Shift()
			continue
		}

		resource := &ports.PlaybackResource{
			Path:   q.cache.Path(head.Filename()),
			Volume: q.volume,
		}
		if err := q.player.Play(resource); err != nil {
			slog.Error("failed to start playback",
				"guild", q.guildID,
				"title", head.Metadata.Title,
				"error", err,
			)
			q.tracks.Shift()
			fx.discardTrack(head)
			continue
		}

		q.resource = resource
		q.nowPlaying = head
		q.status = domain.PlayerStatusPlaying
		if q.conn != nil {
			if err := q.conn.Subscribe(q.player); err != nil {
				slog.Warn("failed to subscribe player", "guild", q.guildID, "error", err)
			}
		}
		return
	}
}

func (q *GuildQueue) idleLocked() {
	if err := q.player.Stop(); err != nil {
		slog.Warn("failed to stop player", "guild", q.guildID, "error", err)
	}
	q.resource = nil
	q.nowPlaying = nil
	q.status = domain.PlayerStatusIdle
}

// endLocked tears the queue down after its last track.
func (q *GuildQueue) endLocked(fx *queueEffects) {
	q.idleLocked()
	q.status = domain.PlayerStatusEnding

	if q.leaveOnEnd {
		q.destroyConnectionLocked()
	}

	q.publish(domain.QueueEndEvent{Queue: q.snapshotLocked()})

	q.closed = true
	q.status = domain.PlayerStatusIdle
	fx.release = true
	fx.closePlayer = true

	slog.Info("queue ended", "guild", q.guildID)
}

// settleLocked closes the queue once no batch is loading and nothing is left
// to play. A queue that played tracks ends normally, one that never received
// a playable track is abandoned.
func (q *GuildQueue) settleLocked(fx *queueEffects) {
	switch {
	case q.closed || q.pendingLoads > 0:
	case q.awaiting && q.tracks.IsEmpty():
		q.endLocked(fx)
	case q.unusedLocked():
		q.abandonLocked(fx)
	}
}

// unusedLocked reports whether the queue has nothing queued, loading or playing.
func (q *GuildQueue) unusedLocked() bool {
	return !q.closed &&
		q.pendingLoads == 0 &&
		!q.awaiting &&
		q.tracks.IsEmpty() &&
		q.resource == nil &&
		q.nowPlaying == nil
}

// abandonLocked tears down a queue that never received a playable track.
// No queue end is announced since nothing was played.
func (q *GuildQueue) abandonLocked(fx *queueEffects) {
	q.idleLocked()
	q.destroyConnectionLocked()
	q.closed = true
	fx.release = true
	fx.closePlayer = true

	slog.Info("queue abandoned", "guild", q.guildID)
}

func (q *GuildQueue) destroyConnectionLocked() {
	if q.conn == nil {
		return
	}
	if err := q.conn.Destroy(); err != nil {
		slog.Warn("failed to destroy voice connection", "guild", q.guildID, "error", err)
	}
	q.conn = nil
}

// finish runs the effects collected under the lock.
func (q *GuildQueue) finish(fx queueEffects) {
	if fx.release {
		q.hub.release(q.guildID, q)
	}

	seen := make(map[string]struct{}, len(fx.discard))
	for _, filename := range fx.discard {
		if _, ok := seen[filename]; ok {
			continue
		}
		seen[filename] = struct{}{}

		if q.hub.FileInUse(filename) {
			continue
		}
		q.cache.Discard(filename)
	}

	if fx.closePlayer {
		close(q.done)
		q.player.Close()
	}
}

func (q *GuildQueue) publish(event domain.Event) {
	if q.publisher == nil {
		return
	}
	if err := q.publisher.Publish(event); err != nil {
		slog.Warn("failed to publish event", "event", event.Kind(), "guild", q.guildID, "error", err)
	}
}

// Snapshot returns the notification view of the queue.
func (q *GuildQueue) Snapshot() domain.QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.snapshotLocked()
}

func (q *GuildQueue) snapshotLocked() domain.QueueSnapshot {
	return domain.QueueSnapshot{
		GuildID:        q.guildID,
		TextChannelID:  q.textChannelID,
		VoiceChannelID: q.voiceChannelID,
		Length:         q.tracks.Len(),
		RepeatMode:     q.repeatMode,
		Volume:         q.volume,
	}
}

// Tracks returns a copy of the track list, current track first.
func (q *GuildQueue) Tracks() []*domain.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.tracks.List()
}

// Size returns the number of tracks including the current one.
func (q *GuildQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.tracks.Len()
}

// IsEmpty reports whether the queue holds no tracks.
func (q *GuildQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Current returns the head of the queue, or nil.
func (q *GuildQueue) Current() *domain.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.tracks.Head()
}

// NowPlaying returns the track handed to the player, or nil.
func (q *GuildQueue) NowPlaying() *domain.Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.nowPlaying
}

// ElapsedDisplay returns the mm:ss position of the current track.
func (q *GuildQueue) ElapsedDisplay() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.nowPlaying == nil {
		return domain.FormatClock(0)
	}
	return q.nowPlaying.ElapsedDisplay(q.now())
}

// RepeatMode returns the current repeat mode.
func (q *GuildQueue) RepeatMode() domain.RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.repeatMode
}

// Volume returns the current volume.
func (q *GuildQueue) Volume() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.volume
}

// Status returns the state machine status.
func (q *GuildQueue) Status() domain.PlayerStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.status
}

// IsPaused reports whether playback is paused.
func (q *GuildQueue) IsPaused() bool {
	return q.Status() == domain.PlayerStatusPaused
}

// TextChannelID returns the channel notifications are posted to.
func (q *GuildQueue) TextChannelID() snowflake.ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.textChannelID
}

// SetTextChannel changes the channel notifications are posted to.
func (q *GuildQueue) SetTextChannel(channelID snowflake.ID) {
	if channelID == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.textChannelID = channelID
}

// VoiceChannelID returns the connected voice channel, or 0.
func (q *GuildQueue) VoiceChannelID() snowflake.ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.voiceChannelID
}

// setVoiceChannel records that the bot was moved to another channel.
func (q *GuildQueue) setVoiceChannel(channelID snowflake.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.voiceChannelID = channelID
}

// IsClosed reports whether the queue was torn down.
func (q *GuildQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// ReferencesFile reports whether any track in the queue uses filename.
func (q *GuildQueue) ReferencesFile(filename string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.tracks.ReferencesFile(filename)
}

// Filenames returns the cache files referenced by the queue.
func (q *GuildQueue) Filenames() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.tracks.Filenames()
}
