package session

import (
	"errors"
	"fmt"
)

// ErrBadTransition is returned when a phase change violates the
// transition table.
var ErrBadTransition = errors.New("illegal phase transition")

// Phase is the single piece of session state both peers must keep
// identical. It only advances through the table below; each peer runs
// the same machine driven by locally observed signals.
type Phase string

const (
	PhaseWaitingOpponent Phase = "WAITING_OPPONENT"
	PhasePlanning        Phase = "PLANNING"
	PhaseBattle          Phase = "BATTLE"
	PhaseRoundEnd        Phase = "ROUND_END"
	PhaseMatchEnd        Phase = "MATCH_END"
	PhaseDisconnected    Phase = "DISCONNECTED"
)

// transitions lists the legal successors of each phase. MATCH_END and
// DISCONNECTED are terminal apart from a terminal disconnect.
var transitions = map[Phase][]Phase{
	PhaseWaitingOpponent: {PhasePlanning, PhaseDisconnected},
	PhasePlanning:        {PhaseBattle, PhaseDisconnected},
	PhaseBattle:          {PhaseRoundEnd, PhaseDisconnected},
	PhaseRoundEnd:        {PhasePlanning, PhaseMatchEnd, PhaseDisconnected},
	PhaseMatchEnd:        {PhaseDisconnected},
	PhaseDisconnected:    {},
}

// ParsePhase maps a wire string onto a known phase.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseWaitingOpponent, PhasePlanning, PhaseBattle, PhaseRoundEnd, PhaseMatchEnd, PhaseDisconnected:
		return p, true
	default:
		return "", false
	}
}

// phaseMachine enforces the transition table. Confined to the
// game-loop goroutine.
type phaseMachine struct {
	current Phase
}

func newPhaseMachine() *phaseMachine {
	return &phaseMachine{current: PhaseWaitingOpponent}
}

func (pm *phaseMachine) Current() Phase { return pm.current }

func (pm *phaseMachine) canTransition(to Phase) bool {
	for _, next := range transitions[pm.current] {
		if next == to {
			return true
		}
	}
	return false
}

func (pm *phaseMachine) transitionTo(to Phase) error {
	if !pm.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, pm.current, to)
	}
	pm.current = to
	return nil
}
