package ready

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(timeout time.Duration) *Manager {
	return NewManager(zap.NewNop().Sugar(), 2, timeout)
}

func TestQuorum_BothReady(t *testing.T) {
	m := newTestManager(60 * time.Second)
	m.Start()

	require.True(t, m.SetReady("host"))
	_, fired := m.Consume()
	assert.False(t, fired, "one of two players is not quorum")

	require.True(t, m.SetReady("client"))
	trigger, fired := m.Consume()
	require.True(t, fired)
	assert.Equal(t, TriggerAllReady, trigger)

	// Consume is one-shot.
	_, fired = m.Consume()
	assert.False(t, fired)
}

func TestQuorum_TimerExpiry(t *testing.T) {
	m := newTestManager(2 * time.Second)
	m.Start()

	m.Update(1 * time.Second)
	_, fired := m.Consume()
	require.False(t, fired)
	assert.Equal(t, 1*time.Second, m.TimeRemaining())

	m.Update(1500 * time.Millisecond)
	trigger, fired := m.Consume()
	require.True(t, fired)
	assert.Equal(t, TriggerTimerExpired, trigger)
	assert.Equal(t, time.Duration(0), m.TimeRemaining(), "clamped at zero")
}

func TestTimeRemaining_Monotonic(t *testing.T) {
	m := newTestManager(5 * time.Second)
	m.Start()

	prev := m.TimeRemaining()
	for i := 0; i < 10; i++ {
		m.Update(300 * time.Millisecond)
		cur := m.TimeRemaining()
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, time.Duration(0))
		prev = cur
	}
}

func TestSetUnready(t *testing.T) {
	m := newTestManager(60 * time.Second)
	m.Start()

	require.True(t, m.SetReady("host"))
	require.True(t, m.SetUnready("host"))
	assert.False(t, m.SetUnready("host"), "already cleared")
	assert.Equal(t, 0, m.ReadyCount())

	// Re-ready both after the toggle; quorum still works.
	require.True(t, m.SetReady("host"))
	require.True(t, m.SetReady("client"))
	trigger, fired := m.Consume()
	require.True(t, fired)
	assert.Equal(t, TriggerAllReady, trigger)
}

func TestInactive_RejectsReady(t *testing.T) {
	m := newTestManager(time.Minute)
	assert.False(t, m.Active())
	assert.False(t, m.SetReady("host"))

	m.Start()
	require.True(t, m.Active())
	m.Stop()
	assert.False(t, m.SetReady("host"))
}

func TestZeroTimeout_DisablesCountdown(t *testing.T) {
	m := newTestManager(0)
	m.Start()
	m.Update(time.Hour)
	_, fired := m.Consume()
	assert.False(t, fired)
}

func TestForceReady(t *testing.T) {
	m := newTestManager(time.Minute)
	m.Start()
	m.ForceReady()
	trigger, fired := m.Consume()
	require.True(t, fired)
	assert.Equal(t, TriggerForced, trigger)
	assert.False(t, m.Active(), "quorum deactivates the manager")
}

func TestStart_ResetsState(t *testing.T) {
	m := newTestManager(10 * time.Second)
	m.Start()
	require.True(t, m.SetReady("host"))
	m.Update(4 * time.Second)

	m.Start()
	assert.Equal(t, 0, m.ReadyCount())
	assert.Equal(t, 10*time.Second, m.TimeRemaining())
	assert.False(t, m.IsReady("host"))
}
