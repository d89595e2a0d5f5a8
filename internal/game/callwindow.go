// internal/game/callwindow.go — arbitration when several players could
// claim the same discard.
//
// Every discard opens a window. Eligible players (everyone active and
// connected except the discarder) respond with "call" or "pass"; once
// all have answered, the best claim wins: win beats kong beats pung,
// ties broken by seating proximity to the discarder. If everyone
// passes the window simply closes — turn rotation already advanced
// when the discard landed.
package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// callWindowOpenViolation rejects turn actions attempted while a
// discard is still under arbitration.
const callWindowOpenViolation = "a call opportunity on the last discard is still open"

type callClaim struct {
	playerID uuid.UUID
	call     CallType
	tiles    []tiles.Tile
}

type callWindow struct {
	record    DiscardRecord
	eligible  map[uuid.UUID]bool
	responses map[uuid.UUID]*callClaim // nil value records a pass
}

// openCallWindow starts claim arbitration for a fresh discard. Lock
// held by caller.
func (s *GameSession) openCallWindow(rec DiscardRecord) {
	w := &callWindow{
		record:    rec,
		eligible:  make(map[uuid.UUID]bool),
		responses: make(map[uuid.UUID]*callClaim),
	}
	for _, p := range s.players {
		if p.ID == rec.DiscardedBy || p.PassedOut {
			continue
		}
		if c, ok := s.coord[p.ID]; ok && !c.Connected {
			continue
		}
		w.eligible[p.ID] = true
	}
	if len(w.eligible) == 0 {
		return
	}
	s.callWindow = w
}

// dropFromCallWindow removes a player from an open window's eligible
// set and resolves the window if they were the last holdout. Lock held
// by caller.
func (s *GameSession) dropFromCallWindow(playerID uuid.UUID) {
	w := s.callWindow
	if w == nil || !w.eligible[playerID] {
		return
	}
	delete(w.eligible, playerID)
	delete(w.responses, playerID)
	if len(w.eligible) == 0 {
		s.callWindow = nil
	} else if len(w.responses) >= len(w.eligible) {
		s.resolveCallWindow()
	}
}

// HandleCallResponse records a player's answer to the open call
// opportunity and resolves the window once every eligible player has
// responded. response is "call" or "pass".
func (s *GameSession) HandleCallResponse(playerID uuid.UUID, response string, call CallType, committed []tiles.Tile) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	w := s.callWindow
	if w == nil {
		return newValidationError(nil, "no call opportunity is open")
	}
	if !w.eligible[playerID] {
		return newValidationError(nil, "player is not eligible to call this discard")
	}
	if _, answered := w.responses[playerID]; answered {
		return newValidationError(nil, "player already responded to this discard")
	}

	switch response {
	case "pass":
		w.responses[playerID] = nil
	case "call":
		p := s.getPlayerByID(playerID)
		if p == nil {
			return newValidationError(nil, "player is not in this room")
		}
		if err := s.validateClaim(p, w.record.Tile, call, committed); err != nil {
			return err
		}
		w.responses[playerID] = &callClaim{playerID: playerID, call: call, tiles: committed}
	default:
		return newValidationError(nil, fmt.Sprintf("unknown call response %q", response))
	}

	s.fireEvent(GameEvent{
		Type: EventCallResponse,
		Payload: map[string]interface{}{
			"playerId": playerID.String(),
			"response": response,
			"callType": call,
		},
	})

	if len(w.responses) >= len(w.eligible) {
		s.resolveCallWindow()
	}
	return nil
}

// validateClaim checks a call claim against the claimant's hand. Win
// claims only need the 14th-tile arithmetic to work out; the pattern
// itself is the bridge's problem once the claimant declares.
func (s *GameSession) validateClaim(p *PlayerGameData, target tiles.Tile, call CallType, committed []tiles.Tile) *ValidationError {
	switch call {
	case CallPung:
		if err := validateCallTiles(p, target, committed, 2); err != nil {
			return newValidationError(s.alternativesFor(p), err.Error())
		}
	case CallKong:
		if err := validateCallTiles(p, target, committed, 3); err != nil {
			return newValidationError(s.alternativesFor(p), err.Error())
		}
	case CallWin:
		if len(p.Hand)+p.exposedTileCount() != 13 {
			return newValidationError(s.alternativesFor(p), "a winning claim needs a 13-tile hand plus the discard")
		}
	default:
		return newValidationError(nil, fmt.Sprintf("unknown call type %q", call))
	}
	return nil
}

// resolveCallWindow picks the winning claim and executes it. Priority:
// win > kong > pung, then seating proximity to the discarder walking
// the ring from their successor. Lock held by caller.
func (s *GameSession) resolveCallWindow() {
	w := s.callWindow
	s.callWindow = nil

	best := s.bestClaim(w)
	if best == nil {
		s.logAction(uuidNil, "call_window_passed", map[string]interface{}{"tile": w.record.Tile.ID})
		return
	}

	p := s.getPlayerByID(best.playerID)
	if p == nil {
		return
	}
	switch best.call {
	case CallWin:
		// The claimed discard completes the hand; the claimant must
		// follow with declare-mahjong for the bridge verdict.
		if tile, ok := s.ledger.PopForCall(); ok {
			p.Hand = append(p.Hand, tile)
		}
		s.currentPlayer = p.ID
		s.fireEvent(GameEvent{
			Type: EventTurnInterrupted,
			Payload: map[string]interface{}{
				"newCurrentPlayer": p.ID.String(),
				"callType":         CallWin,
				"tiles":            []tiles.Tile{w.record.Tile},
			},
		})
		s.broadcastTurnUpdate()
	default:
		if _, err := s.executeCall(p, best.call, best.tiles); err != nil {
			s.logger.WithError(err).Error("call execution failed after claim validation")
		}
	}
}

// bestClaim applies the tie-break rule over the window's claims.
func (s *GameSession) bestClaim(w *callWindow) *callClaim {
	proximity := func(playerID uuid.UUID) int {
		order := s.turnOrderLocked()
		start := 0
		for i, id := range order {
			if id == w.record.DiscardedBy {
				start = i
				break
			}
		}
		for step := 1; step <= len(order); step++ {
			if order[(start+step)%len(order)] == playerID {
				return step
			}
		}
		return len(order) + 1
	}

	var best *callClaim
	bestProx := 0
	for _, claim := range w.responses {
		if claim == nil {
			continue
		}
		if best == nil {
			best, bestProx = claim, proximity(claim.playerID)
			continue
		}
		p1, p2 := callPriority(claim.call), callPriority(best.call)
		if p1 > p2 || (p1 == p2 && proximity(claim.playerID) < bestProx) {
			best, bestProx = claim, proximity(claim.playerID)
		}
	}
	return best
}
