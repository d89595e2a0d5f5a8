// internal/game/charleston.go — the ritual pre-play tile exchange.
//
// Each round is a barrier: every connected player must submit exactly
// three tiles and mark ready before anything moves. Resolution then
// computes each player's source seat from the fixed rotation and
// delivers all incoming tiles atomically, one private broadcast per
// player, before readiness clears and the phase pointer advances.
package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// CharlestonPhase names one round of the exchange.
type CharlestonPhase string

// Charleston rounds in order. Across is skipped with three players:
// there is no symmetric opposite seat.
const (
	CharlestonRight    CharlestonPhase = "right"
	CharlestonAcross   CharlestonPhase = "across"
	CharlestonLeft     CharlestonPhase = "left"
	CharlestonOptional CharlestonPhase = "optional"
	CharlestonComplete CharlestonPhase = "complete"
)

type charlestonState struct {
	sequence   []CharlestonPhase
	idx        int
	started    bool
	selections map[uuid.UUID][]tiles.Tile
}

func newCharlestonState() *charlestonState {
	return &charlestonState{selections: make(map[uuid.UUID][]tiles.Tile)}
}

func (c *charlestonState) current() CharlestonPhase {
	if !c.started {
		return ""
	}
	if c.idx >= len(c.sequence) {
		return CharlestonComplete
	}
	return c.sequence[c.idx]
}

func (c *charlestonState) isComplete() bool {
	return c.started && c.idx >= len(c.sequence)
}

// BeginCharleston fixes the round sequence for the current table size.
// Must be called once the room is in the charleston phase.
func (s *GameSession) BeginCharleston() error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase.Phase != PhaseCharleston {
		return executionErrorf("charleston cannot begin during phase %s", s.phase.Phase)
	}
	if s.charleston.started {
		return nil
	}
	if len(s.players) == 3 {
		s.charleston.sequence = []CharlestonPhase{CharlestonRight, CharlestonLeft, CharlestonOptional}
	} else {
		s.charleston.sequence = []CharlestonPhase{CharlestonRight, CharlestonAcross, CharlestonLeft, CharlestonOptional}
	}
	s.charleston.started = true
	s.logAction(uuidNil, "charleston_started", map[string]interface{}{"rounds": s.charleston.sequence})
	return nil
}

// CharlestonRounds returns the fixed round sequence, empty before the
// charleston begins.
func (s *GameSession) CharlestonRounds() []CharlestonPhase {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	out := make([]CharlestonPhase, len(s.charleston.sequence))
	copy(out, s.charleston.sequence)
	return out
}

// CurrentCharlestonPhase returns the round awaiting submissions.
func (s *GameSession) CurrentCharlestonPhase() CharlestonPhase {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.charleston.current()
}

// HandleCharlestonReady records a player's 3-tile selection for the
// named round and marks them ready. Once every connected player is
// ready the round resolves. In the optional round an empty selection
// means "sit it out"; an all-empty round performs no exchange.
func (s *GameSession) HandleCharlestonReady(playerID uuid.UUID, selected []tiles.Tile, phase CharlestonPhase) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.phase.Phase != PhaseCharleston {
		return newValidationError(nil, fmt.Sprintf("charleston submissions are not accepted during phase %s", s.phase.Phase))
	}
	if !s.charleston.started {
		return newValidationError(nil, "charleston has not begun")
	}
	cur := s.charleston.current()
	if cur == CharlestonComplete {
		return newValidationError(nil, "charleston is already complete")
	}
	if phase != cur {
		return newValidationError(nil, fmt.Sprintf("submission is for round %q but the current round is %q", phase, cur))
	}
	p := s.getPlayerByID(playerID)
	if p == nil {
		return newValidationError(nil, "player is not in this room")
	}
	if len(selected) != 3 && !(cur == CharlestonOptional && len(selected) == 0) {
		return newValidationError(nil, "exactly 3 tiles must be selected")
	}
	// Every selected tile must come from a distinct copy in hand. The
	// stored selection is rebuilt from suit and value so forged joker
	// flags or ids on client-supplied structs never reach another hand.
	remaining := make([]tiles.Tile, len(p.Hand))
	copy(remaining, p.Hand)
	canonical := make([]tiles.Tile, 0, len(selected))
	for _, t := range selected {
		found := -1
		for i, h := range remaining {
			if h.SameKind(t) {
				found = i
				break
			}
		}
		if found < 0 {
			return newValidationError(nil, fmt.Sprintf("tile %s not found in hand", t.ID))
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
		canonical = append(canonical, tiles.New(t.Suit, t.Value))
	}

	s.charleston.selections[playerID] = canonical
	s.setReadinessLocked(playerID, ReadinessCharleston, true)

	s.fireEvent(GameEvent{
		Type: EventCharlestonReady,
		Payload: map[string]interface{}{
			"playerId": playerID.String(),
			"phase":    cur,
		},
	})

	if s.charlestonBarrierMet() {
		s.resolveCharlestonRound()
	}
	return nil
}

// charlestonBarrierMet reports whether every connected active player
// has submitted for the current round. Disconnected players never
// block the barrier. Lock held by caller.
func (s *GameSession) charlestonBarrierMet() bool {
	any := false
	for _, p := range s.players {
		if c, ok := s.coord[p.ID]; ok && !c.Connected {
			continue
		}
		any = true
		if _, ok := s.charleston.selections[p.ID]; !ok {
			return false
		}
	}
	return any
}

// resolveCharlestonRound computes the rotational exchange and delivers
// every player's incoming tiles in one atomic sweep. Lock held by
// caller.
//
// Rotation: a "right" pass hands each seat's tiles to its successor in
// turn order, so each seat receives from its predecessor; "across"
// comes from two seats away; "left" from the successor.
func (s *GameSession) resolveCharlestonRound() {
	cur := s.charleston.current()

	// Rotation order over the players who submitted, in seat order.
	order := make([]uuid.UUID, 0, len(s.players))
	for _, id := range s.turnOrderLocked() {
		if _, ok := s.charleston.selections[id]; ok {
			order = append(order, id)
		}
	}
	n := len(order)

	offset := 0
	switch cur {
	case CharlestonRight:
		offset = n - 1
	case CharlestonAcross:
		offset = 2
	case CharlestonLeft:
		offset = 1
	case CharlestonOptional:
		offset = n - 1 // The optional pass repeats a right pass.
	}

	// The optional round only happens if everyone opted in; one empty
	// submission skips the exchange for the whole table so no hand can
	// end up off-count.
	exchange := n > 1
	if cur == CharlestonOptional {
		for _, id := range order {
			if len(s.charleston.selections[id]) == 0 {
				exchange = false
				break
			}
		}
	}

	incoming := make(map[uuid.UUID][]tiles.Tile, n)
	if exchange {
		for i, id := range order {
			source := order[(i+offset)%n]
			incoming[id] = s.charleston.selections[source]
		}
	}

	// Remove outgoing tiles, then append incoming, per player.
	if exchange {
		for _, id := range order {
			p := s.getPlayerByID(id)
			for _, t := range s.charleston.selections[id] {
				if !p.removeFromHand(t) {
					s.logger.WithField("tile", t.ID).WithField("player_id", id).
						Error("charleston selection vanished from hand")
				}
			}
		}
		for _, id := range order {
			p := s.getPlayerByID(id)
			p.Hand = append(p.Hand, incoming[id]...)
		}
	}

	s.charleston.idx++
	next := s.charleston.current()
	s.charleston.selections = make(map[uuid.UUID][]tiles.Tile)
	for _, c := range s.coord {
		c.Charleston = false
	}

	s.logAction(uuidNil, "charleston_round_resolved", map[string]interface{}{"round": cur, "next": next})

	for _, id := range order {
		s.fireEventToPlayer(id, GameEvent{
			Type: EventCharlestonExchange,
			Payload: map[string]interface{}{
				"tilesReceived": incoming[id],
				"phase":         cur,
				"nextPhase":     next,
			},
		})
	}
}

// charlestonComplete reports whether the exchange has finished. Lock
// held by caller.
func (s *GameSession) charlestonComplete() bool {
	return s.charleston.isComplete()
}

// CharlestonMarkerComplete interprets the client-supplied charleston
// completion marker, whose representation is polymorphic across client
// versions: a bare boolean completion flag, a {"phase": "complete"}
// object, or an {"active": false} object all mean done.
func CharlestonMarkerComplete(marker interface{}) bool {
	switch v := marker.(type) {
	case bool:
		return v
	case string:
		return v == string(CharlestonComplete)
	case map[string]interface{}:
		if phase, ok := v["phase"].(string); ok {
			return phase == string(CharlestonComplete)
		}
		if active, ok := v["active"].(bool); ok {
			return !active
		}
	}
	return false
}
