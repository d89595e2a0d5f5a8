// internal/game/phases.go
package game

import (
	"fmt"
	"time"
)

// Phase identifies a room-level lifecycle phase.
type Phase string

// Room phases, in their natural forward order.
const (
	PhaseWaiting     Phase = "waiting"
	PhasePositioning Phase = "positioning"
	PhaseTileInput   Phase = "tile-input"
	PhaseCharleston  Phase = "charleston"
	PhasePlaying     Phase = "playing"
	PhaseFinished    Phase = "finished"
)

// legalTransitions enumerates every edge the phase machine accepts.
// Each non-waiting phase also supports exactly one step of rollback to
// its immediate predecessor.
var legalTransitions = map[Phase][]Phase{
	PhaseWaiting:     {PhasePositioning},
	PhasePositioning: {PhaseTileInput, PhaseWaiting},
	PhaseTileInput:   {PhaseCharleston, PhasePositioning},
	PhaseCharleston:  {PhasePlaying, PhaseTileInput},
	PhasePlaying:     {PhaseFinished, PhaseCharleston},
	PhaseFinished:    {PhaseWaiting},
}

// rollbackTarget maps each phase to its immediate predecessor.
var rollbackTarget = map[Phase]Phase{
	PhasePositioning: PhaseWaiting,
	PhaseTileInput:   PhasePositioning,
	PhaseCharleston:  PhaseTileInput,
	PhasePlaying:     PhaseCharleston,
	PhaseFinished:    PhasePlaying,
}

// PhaseState is the room's current phase plus timing metadata. Time
// limits are advisory: exceeding one only flips the overtime flag for
// UI hinting, it never forces a transition.
type PhaseState struct {
	Phase     Phase     `json:"phase"`
	StartTime time.Time `json:"startTime"`
	Overtime  bool      `json:"overtime"`
}

// PhaseTransitionRecord is one entry in the append-only transition
// audit trail.
type PhaseTransitionRecord struct {
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Rollback  bool      `json:"rollback"`
}

// phaseTimeLimits carries the configurable soft limit per phase. Zero
// disables the overtime indicator for that phase.
type phaseTimeLimits map[Phase]time.Duration

// defaultPhaseTimeLimits mirrors the client-side guidance values.
func defaultPhaseTimeLimits() phaseTimeLimits {
	return phaseTimeLimits{
		PhasePositioning: 2 * time.Minute,
		PhaseTileInput:   5 * time.Minute,
		PhaseCharleston:  10 * time.Minute,
		PhasePlaying:     60 * time.Minute,
	}
}

// SetPhaseTimeLimit overrides one phase's advisory soft limit. A zero
// or negative limit disables the overtime indicator for that phase.
func (s *GameSession) SetPhaseTimeLimit(phase Phase, limit time.Duration) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.phaseLimits[phase] = limit
}

// PhaseTimeLimit returns the advisory soft limit for a phase, zero if
// none is set.
func (s *GameSession) PhaseTimeLimit(phase Phase) time.Duration {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.phaseLimits[phase]
}

func canTransition(from, to Phase) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validatePhaseEntry applies the entry guard for the target phase
// against the current session state. Returns nil when entry is legal.
func (s *GameSession) validatePhaseEntry(to Phase) error {
	switch to {
	case PhasePositioning:
		n := len(s.players)
		if n < 3 || n > 4 {
			return fmt.Errorf("positioning requires 3-4 players, have %d", n)
		}
	case PhaseTileInput:
		seen := map[Position]bool{}
		east := 0
		for _, p := range s.players {
			if p.Position == "" {
				return fmt.Errorf("player %s has no position", p.ID)
			}
			if seen[p.Position] {
				return fmt.Errorf("duplicate position %s", p.Position)
			}
			seen[p.Position] = true
			if p.Position == PositionEast {
				east++
			}
		}
		if east != 1 {
			return fmt.Errorf("exactly one player must hold east, have %d", east)
		}
	case PhaseCharleston:
		if err := s.validateTileCounts(); err != nil {
			return err
		}
	case PhasePlaying:
		if !s.charlestonComplete() {
			return fmt.Errorf("charleston is not complete")
		}
		if err := s.validateTileCounts(); err != nil {
			return err
		}
	}
	return nil
}

// validateTileCounts checks that every seat holds the tile count its
// role requires: 14 for east, 13 for everyone else.
func (s *GameSession) validateTileCounts() error {
	for _, p := range s.players {
		want := 13
		if p.Position == PositionEast {
			want = 14
		}
		if got := len(p.Hand) + p.exposedTileCount(); got != want {
			return fmt.Errorf("player %s holds %d tiles, expected %d", p.ID, got, want)
		}
	}
	return nil
}

// TransitionPhase validates and performs a phase transition, recording
// it in the audit trail and broadcasting the change. The lock must be
// held by the caller's entry point (this is invoked via the session's
// public API which locks).
func (s *GameSession) transitionPhase(to Phase) error {
	from := s.phase.Phase
	if !canTransition(from, to) {
		return fmt.Errorf("illegal phase transition %s -> %s", from, to)
	}
	if err := s.validatePhaseEntry(to); err != nil {
		return err
	}
	s.setPhase(to, rollbackTarget[from] == to)
	return nil
}

// rollbackPhase steps the room back to the current phase's immediate
// predecessor. Only one step of rollback is supported.
func (s *GameSession) rollbackPhase() error {
	prev, ok := rollbackTarget[s.phase.Phase]
	if !ok {
		return fmt.Errorf("phase %s cannot be rolled back", s.phase.Phase)
	}
	s.setPhase(prev, true)
	return nil
}

func (s *GameSession) setPhase(to Phase, rollback bool) {
	from := s.phase.Phase
	s.phase = PhaseState{Phase: to, StartTime: time.Now()}
	s.transitions = append(s.transitions, PhaseTransitionRecord{
		From:      from,
		To:        to,
		Timestamp: s.phase.StartTime,
		Rollback:  rollback,
	})
	s.logger.WithField("from", from).WithField("to", to).Info("phase transition")
	s.logAction(uuidNil, "phase_transition", map[string]interface{}{"from": from, "to": to, "rollback": rollback})
	s.fireEvent(GameEvent{
		Type: EventPhaseChanged,
		Payload: map[string]interface{}{
			"from":     from,
			"to":       to,
			"rollback": rollback,
		},
	})
}

// checkOvertime flips the advisory overtime indicator when the current
// phase has outlived its soft limit. Deadlines are guidance, not
// enforcement: nothing is aborted and no transition is forced.
func (s *GameSession) checkOvertime(now time.Time) bool {
	limit, ok := s.phaseLimits[s.phase.Phase]
	if !ok || limit <= 0 {
		return false
	}
	over := now.Sub(s.phase.StartTime) > limit
	if over && !s.phase.Overtime {
		s.phase.Overtime = true
		s.logger.WithField("phase", s.phase.Phase).Info("phase overtime")
	}
	return s.phase.Overtime
}
