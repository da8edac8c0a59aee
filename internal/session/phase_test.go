package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseMachine_HappyPath(t *testing.T) {
	pm := newPhaseMachine()
	assert.Equal(t, PhaseWaitingOpponent, pm.Current())

	for _, next := range []Phase{PhasePlanning, PhaseBattle, PhaseRoundEnd, PhasePlanning, PhaseBattle, PhaseRoundEnd, PhaseMatchEnd} {
		require.NoError(t, pm.transitionTo(next))
		assert.Equal(t, next, pm.Current())
	}
}

func TestPhaseMachine_IllegalTransitions(t *testing.T) {
	cases := []struct {
		from Phase
		to   Phase
	}{
		{PhaseWaitingOpponent, PhaseBattle},
		{PhaseWaitingOpponent, PhaseRoundEnd},
		{PhasePlanning, PhaseRoundEnd},
		{PhasePlanning, PhaseWaitingOpponent},
		{PhaseBattle, PhasePlanning},
		{PhaseBattle, PhaseMatchEnd},
		{PhaseRoundEnd, PhaseBattle},
		{PhaseMatchEnd, PhasePlanning},
		{PhaseDisconnected, PhasePlanning},
	}
	for _, tc := range cases {
		pm := &phaseMachine{current: tc.from}
		err := pm.transitionTo(tc.to)
		assert.ErrorIs(t, err, ErrBadTransition, "%s -> %s must be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, pm.Current(), "failed transition must not move the machine")
	}
}

func TestPhaseMachine_DisconnectReachableFromAnywhereButTerminal(t *testing.T) {
	for _, from := range []Phase{PhaseWaitingOpponent, PhasePlanning, PhaseBattle, PhaseRoundEnd, PhaseMatchEnd} {
		pm := &phaseMachine{current: from}
		assert.NoError(t, pm.transitionTo(PhaseDisconnected), "from %s", from)
	}
}

func TestParsePhase(t *testing.T) {
	p, ok := ParsePhase("BATTLE")
	require.True(t, ok)
	assert.Equal(t, PhaseBattle, p)

	_, ok = ParsePhase("battle")
	assert.False(t, ok)
	_, ok = ParsePhase("")
	assert.False(t, ok)
}
