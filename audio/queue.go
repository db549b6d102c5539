package audio

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Queue is the play order of one guild. While playback is active the
// element at position 0 is the current track.
//
// Every method takes the queue's own lock, so guilds never contend with
// each other.
type Queue struct {
	mu sync.RWMutex

	tracks []TrackHandle
	paused bool
	loop   LoopMode

	// active is true while a playback chain owns this queue: some Play has
	// been issued whose end event is still to be handled.
	active bool

	// leaving is closed once the session the last chain played on has been
	// left. It is nil unless a leave is in progress.
	leaving chan struct{}

	// generation changes on every Reset. Work issued for an older
	// generation must not touch the queue.
	generation uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends t to the back. The returned bool is true when the guild
// was idle; the caller then owns starting playback of the head.
func (q *Queue) Enqueue(t Track) (TrackHandle, bool) {
	h, _, start, _, _ := q.enqueue(t)
	return h, start
}

// enqueue appends t. While the guild's session is being left, nothing is
// started and leaving is returned; call restart once it is closed.
func (q *Queue) enqueue(t Track) (h, head TrackHandle, start bool, gen uint64, leaving <-chan struct{}) {
	h = NewTrackHandle(t)

	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = append(q.tracks, h)
	if q.leaving != nil {
		return h, q.tracks[0], false, q.generation, q.leaving
	}
	start = !q.active
	q.active = true
	return h, q.tracks[0], start, q.generation, nil
}

// restart claims an idle, non-empty queue for a new chain.
func (q *Queue) restart() (head TrackHandle, start bool, gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active || q.leaving != nil || len(q.tracks) == 0 {
		return TrackHandle{}, false, q.generation
	}
	q.active = true
	return q.tracks[0], true, q.generation
}

// Current returns the track at position 0.
func (q *Queue) Current() (TrackHandle, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.tracks) == 0 {
		return TrackHandle{}, false
	}
	return q.tracks[0], true
}

// List returns a copy of the queue in play order.
func (q *Queue) List() []TrackHandle {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]TrackHandle(nil), q.tracks...)
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) Pause() error {
	return q.setPaused(true)
}

func (q *Queue) Resume() error {
	return q.setPaused(false)
}

func (q *Queue) setPaused(p bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return ErrNotPlaying
	}
	q.paused = p
	return nil
}

// Paused reports the play/pause flag. The streamer polls it between frames.
func (q *Queue) Paused() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.paused
}

// Skip removes the current track, whatever it is.
func (q *Queue) Skip() (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return TrackHandle{}, ErrNotPlaying
	}
	return q.popFront(), nil
}

// SkipTrack removes the current track only if it is still id. Commands use
// it so that a skip racing with a natural track end advances the queue
// once.
func (q *Queue) SkipTrack(id uuid.UUID) (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return TrackHandle{}, ErrNotPlaying
	}
	if q.tracks[0].ID != id {
		return TrackHandle{}, ErrStaleTrack
	}
	return q.popFront(), nil
}

// MoveToFront makes the track at index the next one to play. Indexes 0 and
// 1 are left alone.
func (q *Queue) MoveToFront(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index <= 1 {
		return nil
	}
	if index >= len(q.tracks) {
		return ErrIndexOutOfRange
	}
	h := q.tracks[index]
	copy(q.tracks[2:index+1], q.tracks[1:index])
	q.tracks[1] = h
	return nil
}

// Remove deletes a queued, not yet playing track. Use Skip for position 0.
func (q *Queue) Remove(index int) (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 1 || index >= len(q.tracks) {
		return TrackHandle{}, ErrIndexOutOfRange
	}
	h := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return h, nil
}

// ShuffleRemainder permutes everything after the current track.
func (q *Queue) ShuffleRemainder() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) < 3 {
		return
	}
	rest := q.tracks[1:]
	for i := len(rest) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
}

// RotateCurrentToBack replaces the current track id with a fresh copy at
// the back of the queue. The next track becomes current.
func (q *Queue) RotateCurrentToBack(id uuid.UUID, gen uint64, fresh Track) (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isCurrent(id, gen) {
		return TrackHandle{}, ErrStaleTrack
	}
	h := NewTrackHandle(fresh)
	copy(q.tracks, q.tracks[1:])
	q.tracks[len(q.tracks)-1] = h
	q.paused = false
	return h, nil
}

// RequeueCurrentFront replaces the current track id with a fresh copy that
// stays at position 0.
func (q *Queue) RequeueCurrentFront(id uuid.UUID, gen uint64, fresh Track) (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isCurrent(id, gen) {
		return TrackHandle{}, ErrStaleTrack
	}
	h := NewTrackHandle(fresh)
	q.tracks[0] = h
	q.paused = false
	return h, nil
}

// Drop removes the current track id after it finished.
func (q *Queue) Drop(id uuid.UUID, gen uint64) (TrackHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isCurrent(id, gen) {
		return TrackHandle{}, ErrStaleTrack
	}
	return q.popFront(), nil
}

func (q *Queue) LoopMode() LoopMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loop
}

func (q *Queue) SetLoopMode(m LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = m
}

func (q *Queue) Generation() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.generation
}

// Reset empties the queue and starts a new generation, abandoning any
// end-of-track handling still in flight. The loop mode is kept.
func (q *Queue) Reset() uint64 {
	_, _, gen := q.clear()
	return gen
}

// clear is Reset that also returns the track that was current.
func (q *Queue) clear() (head TrackHandle, had bool, gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) > 0 {
		head, had = q.tracks[0], true
	}
	q.tracks = nil
	q.paused = false
	q.active = false
	q.generation++
	return head, had, q.generation
}

// inspect reads what the router needs to handle the end of id, as one
// snapshot. live is false when gen is no longer the queue's generation.
func (q *Queue) inspect(id uuid.UUID, gen uint64) (mode LoopMode, current, live bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if gen != q.generation {
		return q.loop, false, false
	}
	return q.loop, len(q.tracks) > 0 && q.tracks[0].ID == id, true
}

// settle closes the handling of one end event. Either the head must be
// played next, or the queue just went idle and the session should be left.
// leave is true once per transition to idle; the caller must then call
// left after leaving.
func (q *Queue) settle(gen uint64) (next TrackHandle, play, leave bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.generation {
		return TrackHandle{}, false, false
	}
	if len(q.tracks) == 0 {
		leave = q.active
		q.active = false
		if leave && q.leaving == nil {
			q.leaving = make(chan struct{})
		}
		return TrackHandle{}, false, leave
	}
	if !q.active {
		return TrackHandle{}, false, false
	}
	return q.tracks[0], true, false
}

// left ends the leave started by settle and wakes enqueues waiting on it.
func (q *Queue) left() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.leaving != nil {
		close(q.leaving)
		q.leaving = nil
	}
}

// halt marks the chain of gen as broken so the next Enqueue restarts it.
func (q *Queue) halt(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen == q.generation {
		q.active = false
	}
}

func (q *Queue) isCurrent(id uuid.UUID, gen uint64) bool {
	return gen == q.generation && len(q.tracks) > 0 && q.tracks[0].ID == id
}

func (q *Queue) popFront() TrackHandle {
	h := q.tracks[0]
	q.tracks[0] = TrackHandle{}
	q.tracks = q.tracks[1:]
	q.paused = false
	return h
}

// QueueManager maps guild IDs to queues. Its lock only guards the map;
// queue contents are guarded per guild.
type QueueManager struct {
	mu     sync.RWMutex
	queues map[string]*Queue // guildID → Queue
}

func NewQueueManager() *QueueManager {
	return &QueueManager{
		queues: make(map[string]*Queue),
	}
}

// Get returns the guild's queue, creating an empty one on first use.
func (qm *QueueManager) Get(guildID string) *Queue {
	if q, ok := qm.Lookup(guildID); ok {
		return q
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()

	q, ok := qm.queues[guildID]
	if !ok {
		q = NewQueue()
		qm.queues[guildID] = q
	}
	return q
}

// Lookup returns the guild's queue without creating it.
func (qm *QueueManager) Lookup(guildID string) (*Queue, bool) {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	q, ok := qm.queues[guildID]
	return q, ok
}

// Guilds returns the IDs of every guild that has a queue, sorted.
func (qm *QueueManager) Guilds() []string {
	qm.mu.RLock()
	ids := make([]string, 0, len(qm.queues))
	for id := range qm.queues {
		ids = append(ids, id)
	}
	qm.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
