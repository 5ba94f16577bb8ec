package domain

// Queue is the ordered list of tracks for one guild.
// Index 0 is the head: the track playing or about to play.
type Queue struct {
	tracks []*Track
}

// NewQueue creates a new empty Queue.
func NewQueue() *Queue {
	return &Queue{
		tracks: make([]*Track, 0),
	}
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) isValidIndex(index int) bool {
	return 0 <= index && index < q.Len()
}

// Head returns the track at index 0, or nil if the queue is empty.
func (q *Queue) Head() *Track {
	if q.IsEmpty() {
		return nil
	}
	return q.tracks[0]
}

// At returns the track at the given index, or nil if out of bounds.
func (q *Queue) At(index int) *Track {
	if !q.isValidIndex(index) {
		return nil
	}
	return q.tracks[index]
}

// List returns a copy of the tracks in queue order.
func (q *Queue) List() []*Track {
	result := make([]*Track, q.Len())
	copy(result, q.tracks)
	return result
}

// Append adds tracks to the tail and returns the new length.
func (q *Queue) Append(tracks ...*Track) int {
	q.tracks = append(q.tracks, tracks...)
	return q.Len()
}

// Shift removes and returns the head, or nil if the queue is empty.
func (q *Queue) Shift() *Track {
	if q.IsEmpty() {
		return nil
	}
	head := q.tracks[0]
	q.tracks[0] = nil
	q.tracks = q.tracks[1:]
	return head
}

// Requeue moves the head to the tail and returns it.
func (q *Queue) Requeue() *Track {
	head := q.Shift()
	if head != nil {
		q.tracks = append(q.tracks, head)
	}
	return head
}

// RemoveAt removes and returns the track at the given index.
// Returns nil if the index is out of bounds.
func (q *Queue) RemoveAt(index int) *Track {
	if !q.isValidIndex(index) {
		return nil
	}
	track := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return track
}

// RemoveRange removes the tracks in [from, to) and returns them.
// Returns nil if the range is empty or out of bounds.
func (q *Queue) RemoveRange(from, to int) []*Track {
	if from < 0 || to > q.Len() || from >= to {
		return nil
	}
	removed := make([]*Track, to-from)
	copy(removed, q.tracks[from:to])
	q.tracks = append(q.tracks[:from], q.tracks[to:]...)
	return removed
}

// Shuffle permutes every track after the head. The head never moves.
// The shuffle function has the signature of math/rand.Shuffle.
func (q *Queue) Shuffle(shuffle func(n int, swap func(i, j int))) {
	if q.Len() < 3 {
		return
	}
	upcoming := q.tracks[1:]
	shuffle(len(upcoming), func(i, j int) {
		upcoming[i], upcoming[j] = upcoming[j], upcoming[i]
	})
}

// ReferencesFile reports whether any track in the queue is backed by filename.
func (q *Queue) ReferencesFile(filename string) bool {
	if filename == "" {
		return false
	}
	for _, t := range q.tracks {
		if t.Filename() == filename {
			return true
		}
	}
	return false
}

// Filenames returns the cache files backing the queued tracks.
func (q *Queue) Filenames() []string {
	names := make([]string, 0, q.Len())
	for _, t := range q.tracks {
		if t.IsMaterialized() {
			names = append(names, t.Filename())
		}
	}
	return names
}

// Clear removes every track and returns what was removed.
func (q *Queue) Clear() []*Track {
	removed := q.tracks
	q.tracks = make([]*Track, 0)
	return removed
}
