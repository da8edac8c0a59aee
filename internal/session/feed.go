package session

import (
	"sync"

	"duelsync/internal/curve"
)

// CurveView is the serializable shape of one curve for snapshots.
type CurveView struct {
	Points []curve.Point `json:"points"`
	Method string        `json:"method"`
}

// Snapshot is a read-only view of the session published after each
// tick that changed observable state. Version increments per publish.
type Snapshot struct {
	Version          int       `json:"version"`
	MatchID          string    `json:"match_id"`
	Role             Role      `json:"role"`
	Phase            Phase     `json:"phase"`
	Round            int       `json:"round"`
	Connected        bool      `json:"connected"`
	LocalLives       int       `json:"local_lives"`
	RemoteLives      int       `json:"remote_lives"`
	LocalReady       bool      `json:"local_ready"`
	RemoteReady      bool      `json:"remote_ready"`
	ReadyCount       int       `json:"ready_count"`
	PlayerCount      int       `json:"player_count"`
	TimeRemainingSec float64   `json:"time_remaining_sec"`
	EditCurve        CurveView `json:"edit_curve"`
	IncomingCurve    CurveView `json:"incoming_curve"`
}

// Feed fans session snapshots out to subscribers (status API,
// spectator websockets). Publish happens on the game-loop goroutine;
// Subscribe/Latest may be called from anywhere. A subscriber that
// stops draining is dropped rather than allowed to stall the loop.
type Feed struct {
	mu      sync.Mutex
	version int
	latest  Snapshot
	hasAny  bool
	subs    map[string]chan Snapshot
	closed  bool
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[string]chan Snapshot)}
}

// Subscribe registers an outbox under id, replacing any previous one.
// The current snapshot, if any, is delivered immediately.
func (f *Feed) Subscribe(id string) <-chan Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.subs[id]; ok {
		close(old)
	}
	ch := make(chan Snapshot, 8)
	if f.closed {
		close(ch)
		return ch
	}
	f.subs[id] = ch
	if f.hasAny {
		ch <- f.latest
	}
	return ch
}

// Unsubscribe drops and closes the outbox registered under id.
func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
	}
}

// Latest returns the most recent snapshot.
func (f *Feed) Latest() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.hasAny
}

// Publish records s as the latest snapshot and fans it out. Called by
// the session after each tick that changed observable state.
func (f *Feed) Publish(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.version++
	s.Version = f.version
	f.latest = s
	f.hasAny = true
	for id, ch := range f.subs {
		select {
		case ch <- s:
		default:
			// Slow subscriber: drop it so the game loop never waits.
			close(ch)
			delete(f.subs, id)
		}
	}
}

func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}
