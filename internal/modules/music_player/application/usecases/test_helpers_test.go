package usecases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodicord/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodicord/internal/modules/music_player/domain"
)

const (
	testGuildID        = snowflake.ID(1)
	testTextChannelID  = snowflake.ID(10)
	testVoiceChannelID = snowflake.ID(20)
	testRequesterID    = snowflake.ID(100)
)

func candidate(title string) domain.Candidate {
	return domain.Candidate{
		Title:      title,
		URL:        "https://open.spotify.com/track/" + title,
		Author:     domain.Author{Name: "Artist"},
		Duration:   3 * time.Minute,
		Type:       domain.TrackTypeTrack,
		SourceKind: domain.SourceKindCatalog,
	}
}

func playlistCandidates(name string, titles ...string) []domain.Candidate {
	info := &domain.PlaylistInfo{Name: name, Type: domain.TrackTypePlaylist}
	result := make([]domain.Candidate, len(titles))
	for i, title := range titles {
		c := candidate(title)
		c.Type = domain.TrackTypePlaylist
		c.Playlist = info
		result[i] = c
	}
	return result
}

func trackTitles(tracks []*domain.Track) []string {
	result := make([]string, len(tracks))
	for i, t := range tracks {
		result[i] = t.Metadata.Title
	}
	return result
}

// mockResolver returns canned candidates per query.
type mockResolver struct {
	results  map[string][]domain.Candidate
	queries  []string
	onSearch func() // runs before the results are returned
}

func (m *mockResolver) Search(_ context.Context, query string) []domain.Candidate {
	m.queries = append(m.queries, query)
	if m.onSearch != nil {
		m.onSearch()
	}
	return m.results[query]
}

// mockMaterializer names files after the track title.
type mockMaterializer struct {
	mu        sync.Mutex
	failures  map[string]error         // title -> error
	statuses  map[string]string        // title -> error-status message
	filenames map[string]string        // title -> filename override
	durations map[string]time.Duration // title -> duration read from the file
	calls     []string
	discarded []string
}

func newMockMaterializer() *mockMaterializer {
	return &mockMaterializer{
		failures:  make(map[string]error),
		statuses:  make(map[string]string),
		filenames: make(map[string]string),
		durations: make(map[string]time.Duration),
	}
}

func (m *mockMaterializer) EnsureLocal(
	_ context.Context,
	meta domain.TrackMetadata,
) (MaterializeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, meta.Title)
	if err := m.failures[meta.Title]; err != nil {
		return MaterializeResult{Status: MaterializeError, Message: err.Error()}, err
	}
	if msg, ok := m.statuses[meta.Title]; ok {
		return MaterializeResult{Status: MaterializeError, Message: msg}, nil
	}
	filename := meta.Title + ".mp3"
	if override, ok := m.filenames[meta.Title]; ok {
		filename = override
	}
	return MaterializeResult{
		Status:   MaterializeSuccess,
		Message:  MessageDownloaded,
		Filename: filename,
		Duration: m.durations[meta.Title],
	}, nil
}

func (m *mockMaterializer) Path(filename string) string {
	return "/cache/" + filename
}

func (m *mockMaterializer) Discard(filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discarded = append(m.discarded, filename)
}

// mockAudioPlayer records calls; signals are injected through handleSignal.
type mockAudioPlayer struct {
	plays     []*ports.PlaybackResource
	playErr   error
	paused    bool
	volume    float64
	stopCount int
	closed    bool
}

func (m *mockAudioPlayer) Play(resource *ports.PlaybackResource) error {
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, resource)
	m.paused = false
	m.volume = resource.Volume
	return nil
}

func (m *mockAudioPlayer) Pause() error {
	m.paused = true
	return nil
}

func (m *mockAudioPlayer) Unpause() error {
	m.paused = false
	return nil
}

func (m *mockAudioPlayer) Stop() error {
	m.stopCount++
	return nil
}

func (m *mockAudioPlayer) SetVolume(volume float64) {
	m.volume = volume
}

func (m *mockAudioPlayer) Signals() <-chan ports.PlayerSignal {
	return nil
}

func (m *mockAudioPlayer) Close() {
	m.closed = true
}

func (m *mockAudioPlayer) lastPlay() *ports.PlaybackResource {
	if len(m.plays) == 0 {
		return nil
	}
	return m.plays[len(m.plays)-1]
}

type mockVoiceConnection struct {
	channelID  snowflake.ID
	subscribed int
	destroyed  bool
}

func (m *mockVoiceConnection) ChannelID() snowflake.ID {
	return m.channelID
}

func (m *mockVoiceConnection) Subscribe(_ ports.AudioPlayer) error {
	m.subscribed++
	return nil
}

func (m *mockVoiceConnection) Destroy() error {
	m.destroyed = true
	return nil
}

type mockVoiceTransport struct {
	connectErr  error
	connections []*mockVoiceConnection
}

func (m *mockVoiceTransport) Connect(
	_ context.Context,
	_ snowflake.ID,
	channelID snowflake.ID,
) (ports.VoiceConnection, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	conn := &mockVoiceConnection{channelID: channelID}
	m.connections = append(m.connections, conn)
	return conn, nil
}

type mockVoiceStateProvider struct {
	listeners map[snowflake.ID]int // channel -> non-bot members
	countErr  error
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(_, _ snowflake.ID) (snowflake.ID, error) {
	return testVoiceChannelID, nil
}

func (m *mockVoiceStateProvider) CountListeners(_, channelID snowflake.ID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.listeners[channelID], nil
}

type mockEventPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockEventPublisher) Publish(event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	return nil
}

func (m *mockEventPublisher) kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]domain.EventKind, len(m.events))
	for i, e := range m.events {
		result[i] = e.Kind()
	}
	return result
}

func (m *mockEventPublisher) count(kind domain.EventKind) int {
	n := 0
	for _, k := range m.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (m *mockEventPublisher) last(kind domain.EventKind) domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Kind() == kind {
			return m.events[i]
		}
	}
	return nil
}

// memoryRegistry is a map-backed QueueRegistry.
type memoryRegistry struct {
	mu     sync.Mutex
	queues map[snowflake.ID]*GuildQueue
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{queues: make(map[snowflake.ID]*GuildQueue)}
}

func (r *memoryRegistry) Get(guildID snowflake.ID) (*GuildQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[guildID]
	return q, ok
}

func (r *memoryRegistry) Save(guildID snowflake.ID, q *GuildQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queues[guildID] = q
}

func (r *memoryRegistry) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.queues, guildID)
}

func (r *memoryRegistry) Values() []*GuildQueue {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*GuildQueue, 0, len(r.queues))
	for _, q := range r.queues {
		result = append(result, q)
	}
	return result
}

// fakeTimer is a manually fired afterFunc timer.
type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) fire() {
	if !t.stopped {
		t.fn()
	}
}

// testHub bundles a PlayerHub with its mocks.
type testHub struct {
	hub        *PlayerHub
	registry   *memoryRegistry
	resolver   *mockResolver
	cache      *mockMaterializer
	transport  *mockVoiceTransport
	voiceState *mockVoiceStateProvider
	publisher  *mockEventPublisher
	players    []*mockAudioPlayer
	timers     []*fakeTimer
	clock      time.Time
}

func newTestHub(opts PlayerHubOptions) *testHub {
	env := &testHub{
		registry:   newMemoryRegistry(),
		resolver:   &mockResolver{results: make(map[string][]domain.Candidate)},
		cache:      newMockMaterializer(),
		transport:  &mockVoiceTransport{},
		voiceState: &mockVoiceStateProvider{listeners: make(map[snowflake.ID]int)},
		publisher:  &mockEventPublisher{},
		clock:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	env.hub = NewPlayerHub(
		env.registry,
		env.resolver,
		env.cache,
		env.transport,
		func(snowflake.ID) ports.AudioPlayer {
			player := &mockAudioPlayer{}
			env.players = append(env.players, player)
			return player
		},
		env.voiceState,
		env.publisher,
		opts,
	)
	env.hub.now = func() time.Time { return env.clock }
	env.hub.shuffle = func(n int, swap func(i, j int)) {
		// Reverse instead of randomizing.
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	env.hub.afterFunc = func(d time.Duration, f func()) func() bool {
		timer := &fakeTimer{delay: d, fn: f}
		env.timers = append(env.timers, timer)
		return func() bool {
			wasActive := !timer.stopped
			timer.stopped = true
			return wasActive
		}
	}
	return env
}

func defaultHubOptions() PlayerHubOptions {
	return PlayerHubOptions{LeaveOnEnd: true, LeaveOnEmpty: true}
}

func (e *testHub) player() *mockAudioPlayer {
	return e.players[len(e.players)-1]
}

// connectedQueue creates a queue joined to the test voice channel.
func (e *testHub) connectedQueue() *GuildQueue {
	q := e.hub.CreateQueue(testGuildID, testTextChannelID)
	if err := q.Join(context.Background(), testVoiceChannelID); err != nil {
		panic(err)
	}
	return q
}

// playing plays titles as one batch and returns the queue.
func (e *testHub) playing(titles ...string) *GuildQueue {
	query := "batch"
	for _, t := range titles {
		query += " " + t
	}
	candidates := make([]domain.Candidate, len(titles))
	for i, title := range titles {
		candidates[i] = candidate(title)
	}
	e.resolver.results[query] = candidates

	q := e.connectedQueue()
	if _, err := q.Play(context.Background(), PlayInput{Query: query, RequesterID: testRequesterID}); err != nil {
		panic(err)
	}
	return q
}

func (e *testHub) finishCurrent(q *GuildQueue) {
	q.handleSignal(ports.PlayerSignal{
		Kind:     ports.PlayerSignalIdle,
		Resource: e.player().lastPlay(),
		Reason:   domain.TrackEndFinished,
	})
}

func (e *testHub) startCurrent(q *GuildQueue) {
	q.handleSignal(ports.PlayerSignal{
		Kind:     ports.PlayerSignalPlaying,
		Resource: e.player().lastPlay(),
	})
}

// mockVideoPlatform returns canned search hits keyed by query text.
type mockVideoPlatform struct {
	mu        sync.Mutex
	hits      map[string]*ports.VideoMetadata
	metadata  map[string]*ports.VideoMetadata
	searchErr error
	fetchErr  error
	searches  []string
}

func (m *mockVideoPlatform) SearchVideo(_ context.Context, text string) (*ports.VideoMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.searches = append(m.searches, text)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.hits[text], nil
}

func (m *mockVideoPlatform) FetchMetadata(_ context.Context, locator string) (*ports.VideoMetadata, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	meta, ok := m.metadata[locator]
	if !ok {
		return nil, errors.New("video unavailable")
	}
	return meta, nil
}

type mockCatalogClient struct {
	lookups   map[string][]domain.Candidate
	searches  map[string][]domain.Candidate
	lookupErr error
	searchErr error
	lastOpts  ports.SearchOptions
}

func (m *mockCatalogClient) AccessToken(_ context.Context) (string, error) {
	return "token", nil
}

func (m *mockCatalogClient) Lookup(
	_ context.Context,
	_ domain.TrackType,
	id string,
) ([]domain.Candidate, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.lookups[id], nil
}

func (m *mockCatalogClient) Search(
	_ context.Context,
	query string,
	opts ports.SearchOptions,
) ([]domain.Candidate, error) {
	m.lastOpts = opts
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searches[query], nil
}

// mockExtractor streams fixed bytes and counts calls.
type mockExtractor struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when set, ExtractAudio waits for it to close
	started chan struct{}
}

func (m *mockExtractor) ExtractAudio(_ context.Context, _ string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(bytes.NewReader([]byte("audio"))), nil
}

func (m *mockExtractor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// fileTranscoder copies the stream to the output path.
type fileTranscoder struct {
	err      error
	bitrates []int
	mu       sync.Mutex
}

func (m *fileTranscoder) Transcode(_ context.Context, src io.Reader, bitrateKbps int, out string) error {
	m.mu.Lock()
	m.bitrates = append(m.bitrates, bitrateKbps)
	m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

type mockTagger struct {
	tagged []ports.AudioTags
	err    error
}

func (m *mockTagger) Tag(_ string, tags ports.AudioTags) error {
	m.tagged = append(m.tagged, tags)
	return m.err
}

// mockProbe reports canned file info keyed by base filename.
type mockProbe struct {
	mu     sync.Mutex
	infos  map[string]*ports.AudioInfo
	broken map[string]bool
	err    error
}

func (m *mockProbe) Probe(path string) (*ports.AudioInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := filepath.Base(path)
	if m.err != nil {
		return nil, m.err
	}
	if m.broken[name] {
		return nil, errors.New("no mp3 frames found")
	}
	if info, ok := m.infos[name]; ok {
		return info, nil
	}
	return &ports.AudioInfo{}, nil
}

// memoryIndex is a map-backed CacheIndex.
type memoryIndex struct {
	mu      sync.Mutex
	entries map[string]ports.CacheEntry
	records int
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{entries: make(map[string]ports.CacheEntry)}
}

func (m *memoryIndex) Lookup(sourceID string) (ports.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[sourceID]
	return e, ok
}

func (m *memoryIndex) Record(entry ports.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records++
	m.entries[entry.VideoID] = entry
	return nil
}

func (m *memoryIndex) Remove(sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, sourceID)
	return nil
}

func (m *memoryIndex) Entries() []ports.CacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ports.CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		result = append(result, e)
	}
	return result
}

func writeFile(dir, name string) string {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("mp3"), 0o644); err != nil {
		panic(err)
	}
	return path
}
