// internal/game/coordination.go — connection state, per-phase
// readiness, and reconnection recovery.
//
// Coordination state is a view over the session aggregate, not a
// second source of truth: positions, hands, and turn state are always
// read from the player data the executor owns.
package game

import (
	"time"

	"github.com/google/uuid"
)

// ReadinessCategory names the three phases a player independently
// readies up for.
type ReadinessCategory string

// Readiness categories.
const (
	ReadinessRoom       ReadinessCategory = "room"
	ReadinessCharleston ReadinessCategory = "charleston"
	ReadinessGameplay   ReadinessCategory = "gameplay"
)

// CoordinationState tracks one player's connection and readiness.
type CoordinationState struct {
	Connected            bool      `json:"connected"`
	LastSeen             time.Time `json:"lastSeen"`
	ReconnectionAttempts int       `json:"reconnectionAttempts"`
	Room                 bool      `json:"roomReady"`
	Charleston           bool      `json:"charlestonReady"`
	Gameplay             bool      `json:"gameplayReady"`
}

func (c *CoordinationState) ready(cat ReadinessCategory) bool {
	switch cat {
	case ReadinessRoom:
		return c.Room
	case ReadinessCharleston:
		return c.Charleston
	case ReadinessGameplay:
		return c.Gameplay
	}
	return false
}

func (c *CoordinationState) setReady(cat ReadinessCategory, ready bool) {
	switch cat {
	case ReadinessRoom:
		c.Room = ready
	case ReadinessCharleston:
		c.Charleston = ready
	case ReadinessGameplay:
		c.Gameplay = ready
	}
}

func (c *CoordinationState) resetReadiness() {
	c.Room = false
	c.Charleston = false
	c.Gameplay = false
}

// initCoordination seeds coordination state for a new player. Lock
// held by caller.
func (s *GameSession) initCoordination(playerID uuid.UUID) {
	s.coord[playerID] = &CoordinationState{
		Connected: true,
		LastSeen:  time.Now(),
	}
}

// SetPlayerReadiness flips one readiness category for a player.
func (s *GameSession) SetPlayerReadiness(playerID uuid.UUID, cat ReadinessCategory, ready bool) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if _, ok := s.coord[playerID]; !ok {
		return executionErrorf("player %s not in room", playerID)
	}
	s.setReadinessLocked(playerID, cat, ready)
	return nil
}

func (s *GameSession) setReadinessLocked(playerID uuid.UUID, cat ReadinessCategory, ready bool) {
	c := s.coord[playerID]
	c.setReady(cat, ready)
	c.LastSeen = time.Now()
	s.fireEvent(GameEvent{
		Type: EventReadinessUpdate,
		Payload: map[string]interface{}{
			"playerId": playerID.String(),
			"category": cat,
			"ready":    ready,
		},
	})
}

// AreAllPlayersReady reports readiness for a category over currently
// connected players only, so a dropped player never wedges a barrier.
func (s *GameSession) AreAllPlayersReady(cat ReadinessCategory) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	any := false
	for _, p := range s.players {
		c, ok := s.coord[p.ID]
		if !ok || !c.Connected {
			continue
		}
		any = true
		if !c.ready(cat) {
			return false
		}
	}
	return any
}

// ReadinessSummary is the per-room readiness rollup.
type ReadinessSummary struct {
	Phase     Phase                         `json:"phase"`
	Players   map[string]*CoordinationState `json:"players"`
	Positions map[string]Position           `json:"positions"`
	AllReady  map[ReadinessCategory]bool    `json:"allReady"`
}

// GetReadinessSummary snapshots connection and readiness for every
// player. Positions are derived from the authoritative player data.
func (s *GameSession) GetReadinessSummary() ReadinessSummary {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	sum := ReadinessSummary{
		Phase:     s.phase.Phase,
		Players:   make(map[string]*CoordinationState, len(s.coord)),
		Positions: make(map[string]Position, len(s.players)),
		AllReady:  make(map[ReadinessCategory]bool, 3),
	}
	for id, c := range s.coord {
		cc := *c
		sum.Players[id.String()] = &cc
	}
	for _, p := range s.players {
		sum.Positions[p.ID.String()] = p.Position
	}
	for _, cat := range []ReadinessCategory{ReadinessRoom, ReadinessCharleston, ReadinessGameplay} {
		sum.AllReady[cat] = s.allReadyLocked(cat)
	}
	return sum
}

func (s *GameSession) allReadyLocked(cat ReadinessCategory) bool {
	any := false
	for _, p := range s.players {
		c, ok := s.coord[p.ID]
		if !ok || !c.Connected {
			continue
		}
		any = true
		if !c.ready(cat) {
			return false
		}
	}
	return any
}

// HandleDisconnect marks a player disconnected and unwinds anything
// they were blocking: a pending charleston submission is discarded and
// the barrier re-checked against the remaining connected players, and
// an open call window drops them from its eligible set. A disconnected
// current player stalls turn progression; there is no skip-on-timeout.
func (s *GameSession) HandleDisconnect(playerID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	c, ok := s.coord[playerID]
	if !ok || !c.Connected {
		return
	}
	c.Connected = false
	c.LastSeen = time.Now()
	s.logger.WithField("player_id", playerID).Info("player disconnected")
	s.logAction(playerID, "player_disconnect", nil)

	delete(s.charleston.selections, playerID)
	if s.phase.Phase == PhaseCharleston && s.charleston.started &&
		!s.charleston.isComplete() && s.charlestonBarrierMet() {
		s.resolveCharlestonRound()
	}

	s.dropFromCallWindow(playerID)

	s.fireEvent(GameEvent{
		Type: EventPlayerConnection,
		Payload: map[string]interface{}{
			"playerId":  playerID.String(),
			"connected": false,
		},
	})
}

// HandleReconnect verifies membership, flips the player back to
// connected, resets their reconnection counter, and returns the full
// state snapshot the protocol layer sends as room-reconnect-response.
// Recovery is snapshot-based, not event-replay-based.
func (s *GameSession) HandleReconnect(playerID uuid.UUID) (*RoomSnapshot, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	p := s.getPlayerByID(playerID)
	if p == nil {
		return nil, executionErrorf("player %s is not a member of this room", playerID)
	}
	c, ok := s.coord[playerID]
	if !ok {
		s.initCoordination(playerID)
		c = s.coord[playerID]
	}
	c.Connected = true
	c.LastSeen = time.Now()
	c.ReconnectionAttempts = 0 // Reset on successful rejoin.
	s.logAction(playerID, "player_reconnect", nil)

	s.fireEvent(GameEvent{
		Type: EventPlayerConnection,
		Payload: map[string]interface{}{
			"playerId":  playerID.String(),
			"connected": true,
		},
	})

	snap := s.snapshotFor(playerID)
	return &snap, nil
}

// RecordReconnectAttempt bumps the counter for a failed or in-flight
// reconnection so operators can spot flapping clients.
func (s *GameSession) RecordReconnectAttempt(playerID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if c, ok := s.coord[playerID]; ok {
		c.ReconnectionAttempts++
	}
}

// SyncPlayerStates bulk-updates connection flags, used by the protocol
// layer after a transport-level sweep.
func (s *GameSession) SyncPlayerStates(connected map[uuid.UUID]bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	for id, on := range connected {
		if c, ok := s.coord[id]; ok {
			c.Connected = on
			c.LastSeen = time.Now()
		}
	}
}

// PhaseTransitions returns a copy of the append-only transition audit
// trail.
func (s *GameSession) PhaseTransitions() []PhaseTransitionRecord {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]PhaseTransitionRecord, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// IsConnected reports a player's connection flag.
func (s *GameSession) IsConnected(playerID uuid.UUID) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	c, ok := s.coord[playerID]
	return ok && c.Connected
}

// ReconnectionAttempts returns the player's current counter.
func (s *GameSession) ReconnectionAttempts(playerID uuid.UUID) int {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if c, ok := s.coord[playerID]; ok {
		return c.ReconnectionAttempts
	}
	return 0
}
