// Package ready tracks per-player ready flags and the planning
// countdown. Quorum is both players ready or the timer running out;
// the timeout guarantees a stalled peer cannot hold planning open
// forever.
package ready

import (
	"time"

	"go.uber.org/zap"
)

// Trigger says why the ready phase completed.
type Trigger string

const (
	TriggerAllReady     Trigger = "all_ready"
	TriggerTimerExpired Trigger = "timer_expired"
	TriggerForced       Trigger = "forced"
)

// Manager tracks ready flags for a fixed set of players during the
// planning phase. Not safe for concurrent use; the session confines it
// to the game-loop goroutine.
type Manager struct {
	log *zap.SugaredLogger

	playerCount int
	timeout     time.Duration
	remaining   time.Duration
	active      bool
	ready       map[string]bool

	trigger   Trigger
	triggered bool
}

// NewManager builds a manager for playerCount players. A zero timeout
// disables the countdown entirely.
func NewManager(log *zap.SugaredLogger, playerCount int, timeout time.Duration) *Manager {
	if playerCount < 1 {
		playerCount = 1
	}
	if timeout < 0 {
		timeout = 0
	}
	return &Manager{
		log:         log,
		playerCount: playerCount,
		timeout:     timeout,
		ready:       make(map[string]bool),
	}
}

// Start activates the ready phase: clears flags, rearms the countdown.
func (m *Manager) Start() {
	m.active = true
	m.triggered = false
	m.trigger = ""
	clear(m.ready)
	m.remaining = m.timeout
	m.log.Infow("ready phase started", "players", m.playerCount, "timeout", m.timeout)
}

// Stop deactivates without firing a trigger.
func (m *Manager) Stop() {
	m.active = false
	clear(m.ready)
	m.remaining = 0
}

// SetReady marks a player ready. Returns false if inactive or already
// ready.
func (m *Manager) SetReady(playerID string) bool {
	if !m.active || m.ready[playerID] {
		return false
	}
	m.ready[playerID] = true
	m.log.Infow("player ready", "player", playerID, "count", m.ReadyCount(), "of", m.playerCount)
	if m.AllReady() {
		m.fire(TriggerAllReady)
	}
	return true
}

// SetUnready clears a player's flag. Returns false if it was not set.
func (m *Manager) SetUnready(playerID string) bool {
	if !m.ready[playerID] {
		return false
	}
	delete(m.ready, playerID)
	m.log.Infow("player unready", "player", playerID, "count", m.ReadyCount(), "of", m.playerCount)
	return true
}

// ForceReady fires the quorum immediately (host override).
func (m *Manager) ForceReady() {
	if m.active {
		m.fire(TriggerForced)
	}
}

// Update advances the countdown. Call once per tick while planning.
func (m *Manager) Update(dt time.Duration) {
	if !m.active || m.timeout == 0 {
		return
	}
	m.remaining -= dt
	if m.remaining <= 0 {
		m.remaining = 0
		m.fire(TriggerTimerExpired)
	}
}

// Consume returns the pending trigger, if any, exactly once. The
// session polls this on its tick to drive PLANNING -> BATTLE.
func (m *Manager) Consume() (Trigger, bool) {
	if !m.triggered {
		return "", false
	}
	m.triggered = false
	return m.trigger, true
}

func (m *Manager) IsReady(playerID string) bool { return m.ready[playerID] }

func (m *Manager) AllReady() bool { return len(m.ready) >= m.playerCount }

func (m *Manager) ReadyCount() int { return len(m.ready) }

func (m *Manager) PlayerCount() int { return m.playerCount }

func (m *Manager) Active() bool { return m.active }

// TimeRemaining is clamped at zero and non-increasing between ready
// calls; display code relies on both.
func (m *Manager) TimeRemaining() time.Duration {
	if m.remaining < 0 {
		return 0
	}
	return m.remaining
}

func (m *Manager) Timeout() time.Duration { return m.timeout }

func (m *Manager) fire(trigger Trigger) {
	// Deactivate first so a second condition in the same tick cannot
	// re-fire.
	m.active = false
	m.trigger = trigger
	m.triggered = true
	m.log.Infow("ready quorum", "trigger", trigger)
}
