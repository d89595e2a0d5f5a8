// internal/game/actions.go — the turn-action state machine.
//
// Validation and execution are split: ValidateAction never mutates
// state, and executeAction assumes validation already passed. An
// execution failure therefore indicates an internal bug, not a user
// error, and is surfaced as an ExecutionError.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// ActionType tags each turn action on the wire.
type ActionType string

// The canonical turn actions.
const (
	ActionDraw      ActionType = "draw"
	ActionDiscard   ActionType = "discard"
	ActionCallPung  ActionType = "call_pung"
	ActionCallKong  ActionType = "call_kong"
	ActionJokerSwap ActionType = "joker_swap"
	ActionMahjong   ActionType = "call_mahjong"
	ActionPass      ActionType = "pass"
)

// canonicalActions is the recovery hint attached to unknown-action
// rejections.
var canonicalActions = []ActionType{
	ActionDraw, ActionDiscard, ActionCallPung, ActionCallKong,
	ActionJokerSwap, ActionMahjong, ActionPass,
}

// CallType distinguishes claims on a discard.
type CallType string

// Claim kinds, in ascending precedence.
const (
	CallPung CallType = "pung"
	CallKong CallType = "kong"
	CallWin  CallType = "win"
)

func callPriority(t CallType) int {
	switch t {
	case CallWin:
		return 3
	case CallKong:
		return 2
	case CallPung:
		return 1
	}
	return 0
}

// ActionRequest is the tagged union of turn actions. Each concrete
// request carries exactly the data its validator and executor need, so
// the pairing is exhaustive at compile time instead of falling through
// a stringly-typed switch.
type ActionRequest interface {
	Type() ActionType
}

// DrawAction requests one tile from the wall.
type DrawAction struct{}

// DiscardAction places the named tile on the discard pile.
type DiscardAction struct {
	Tile tiles.Tile
}

// CallAction claims the most recent discard for a pung or kong using
// tiles from the caller's hand.
type CallAction struct {
	Call  CallType     // pung or kong
	Tiles []tiles.Tile // hand tiles committed to the meld
}

// JokerSwapAction trades a concrete replacement tile from the caller's
// hand for a joker sitting in one of their exposed sets.
type JokerSwapAction struct {
	SetIndex    int
	Replacement tiles.Tile
}

// MahjongAction declares a winning hand. Pattern legality is delegated
// to the validation bridge; the server does not re-derive it.
type MahjongAction struct {
	Hand      []tiles.Tile
	PatternID string
	Score     int
}

// PassAction forfeits the caller from the remainder of the hand.
type PassAction struct {
	Reason string
}

func (DrawAction) Type() ActionType    { return ActionDraw }
func (DiscardAction) Type() ActionType { return ActionDiscard }

func (a CallAction) Type() ActionType {
	if a.Call == CallKong {
		return ActionCallKong
	}
	return ActionCallPung
}

func (JokerSwapAction) Type() ActionType { return ActionJokerSwap }
func (MahjongAction) Type() ActionType   { return ActionMahjong }
func (PassAction) Type() ActionType      { return ActionPass }

// UnknownAction is produced by the protocol layer for unrecognized
// action strings; validation rejects it with the canonical action list.
type UnknownAction struct {
	Raw string
}

func (UnknownAction) Type() ActionType { return ActionType("unknown") }

// ActionResult is the executor's outcome for a successful action.
type ActionResult struct {
	Action     ActionType             `json:"action"`
	Data       map[string]interface{} `json:"data,omitempty"`
	NextPlayer uuid.UUID              `json:"nextPlayer,omitempty"`
	GameEnded  bool                   `json:"gameEnded"`
}

// ValidateAction checks an action's preconditions against the current
// state without mutating anything. A nil return means the action is
// legal.
func (s *GameSession) ValidateAction(playerID uuid.UUID, req ActionRequest) *ValidationError {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.validateAction(playerID, req)
}

func (s *GameSession) validateAction(playerID uuid.UUID, req ActionRequest) *ValidationError {
	if s.phase.Phase != PhasePlaying {
		return newValidationError(nil, fmt.Sprintf("actions are not accepted during phase %s", s.phase.Phase))
	}
	if s.gameOver {
		return newValidationError(nil, "the game has ended")
	}
	p := s.getPlayerByID(playerID)
	if p == nil {
		return newValidationError(nil, "player is not in this room")
	}
	if p.PassedOut && req.Type() != ActionPass {
		return newValidationError(nil, "player has passed out of this hand")
	}
	// An unresolved call window means the last discard is still
	// contested; turn actions wait for arbitration.
	windowOpen := s.callWindow != nil

	switch a := req.(type) {
	case DrawAction:
		var violations []string
		if windowOpen {
			violations = append(violations, callWindowOpenViolation)
		}
		if s.currentPlayer != playerID {
			violations = append(violations, "it is not your turn")
		}
		if p.HasDrawn {
			violations = append(violations, "already drawn this turn")
		}
		if s.wall == nil || s.wall.Remaining() == 0 {
			violations = append(violations, "the wall is exhausted")
		}
		if len(p.Hand)+p.exposedTileCount() >= 14 {
			violations = append(violations, "hand is already full")
		}
		if violations != nil {
			return newValidationError(s.alternativesFor(p), violations...)
		}

	case DiscardAction:
		var violations []string
		if windowOpen {
			violations = append(violations, callWindowOpenViolation)
		}
		if s.currentPlayer != playerID {
			violations = append(violations, "it is not your turn")
		}
		// The game-opening discard comes from the dealer's dealt
		// 14-tile hand before any draw.
		openingDiscard := !p.HasDrawn && s.ledger.Size() == 0 &&
			len(p.Hand)+p.exposedTileCount() == 14
		if !p.HasDrawn && !openingDiscard {
			violations = append(violations, "must draw before discarding")
		}
		if !p.holdsKind(a.Tile) {
			violations = append(violations, "Tile not found in hand")
		}
		if violations != nil {
			return newValidationError(s.alternativesFor(p), violations...)
		}

	case CallAction:
		if windowOpen {
			// Contested discards are claimed through the call-response
			// protocol, never by jumping the arbitration.
			return newValidationError(nil, callWindowOpenViolation)
		}
		need := 2
		if a.Call == CallKong {
			need = 3
		} else if a.Call != CallPung {
			return newValidationError(nil, fmt.Sprintf("unsupported call type %q", a.Call))
		}
		top, ok := s.ledger.Top()
		if !ok {
			return newValidationError(s.alternativesFor(p), "the discard pile is empty")
		}
		if err := validateCallTiles(p, top, a.Tiles, need); err != nil {
			return newValidationError(s.alternativesFor(p), err.Error())
		}

	case JokerSwapAction:
		var violations []string
		if windowOpen {
			violations = append(violations, callWindowOpenViolation)
		}
		if a.SetIndex < 0 || a.SetIndex >= len(p.ExposedSets) {
			violations = append(violations, "no such exposed set")
		} else if !p.ExposedSets[a.SetIndex].containsJoker() {
			violations = append(violations, "exposed set contains no joker")
		}
		if !p.holdsKind(a.Replacement) {
			violations = append(violations, "replacement tile not found in hand")
		} else if a.SetIndex >= 0 && a.SetIndex < len(p.ExposedSets) {
			if natural, ok := p.ExposedSets[a.SetIndex].naturalTile(); ok && !a.Replacement.SameKind(natural) {
				violations = append(violations, "replacement tile does not match the exposed set")
			}
		}
		if violations != nil {
			return newValidationError(s.alternativesFor(p), violations...)
		}

	case MahjongAction:
		if windowOpen {
			return newValidationError(s.alternativesFor(p), callWindowOpenViolation)
		}
		if len(p.Hand)+p.exposedTileCount() != 14 {
			return newValidationError(s.alternativesFor(p),
				fmt.Sprintf("a winning hand needs 14 tiles, have %d", len(p.Hand)+p.exposedTileCount()))
		}
		if a.PatternID == "" {
			return newValidationError(s.alternativesFor(p), "no pattern claimed")
		}

	case PassAction:
		// Always valid.

	case UnknownAction:
		return newValidationError(canonicalActions, fmt.Sprintf("Unknown action: %s", a.Raw))

	default:
		return newValidationError(canonicalActions, fmt.Sprintf("Unknown action: %T", req))
	}
	return nil
}

// validateCallTiles checks that the committed hand tiles can form the
// meld with the discarded tile. Jokers count as wildcard matches.
func validateCallTiles(p *PlayerGameData, target tiles.Tile, committed []tiles.Tile, need int) error {
	if len(committed) != need {
		return fmt.Errorf("call requires exactly %d tiles from hand, got %d", need, len(committed))
	}
	// The committed tiles must each match the target and each come
	// from a distinct copy in the hand.
	remaining := make([]tiles.Tile, len(p.Hand))
	copy(remaining, p.Hand)
	for _, t := range committed {
		if !t.MatchesForCall(target) {
			return fmt.Errorf("tile %s does not match the discard", t.ID)
		}
		found := -1
		for i, h := range remaining {
			if h.SameKind(t) {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("tile %s not found in hand", t.ID)
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return nil
}

// alternativesFor builds the legal-action hint list for a player in the
// current state. Lock held by caller.
func (s *GameSession) alternativesFor(p *PlayerGameData) []ActionType {
	alts := []ActionType{ActionPass}
	if s.currentPlayer == p.ID {
		if !p.HasDrawn && s.wall != nil && s.wall.Remaining() > 0 && len(p.Hand)+p.exposedTileCount() < 14 {
			alts = append(alts, ActionDraw)
		}
		if p.HasDrawn {
			alts = append(alts, ActionDiscard)
		}
	}
	if _, ok := s.ledger.Top(); ok {
		alts = append(alts, ActionCallPung, ActionCallKong)
	}
	for _, set := range p.ExposedSets {
		if set.containsJoker() {
			alts = append(alts, ActionJokerSwap)
			break
		}
	}
	if len(p.Hand)+p.exposedTileCount() == 14 {
		alts = append(alts, ActionMahjong)
	}
	return alts
}

// HandleTurnAction validates and executes an action inside one
// critical section, then broadcasts the outcome. A validation failure
// is answered privately with turn-action-rejected; a successful action
// is broadcast to the room.
func (s *GameSession) HandleTurnAction(playerID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if verr := s.validateAction(playerID, req); verr != nil {
		s.fireEventToPlayer(playerID, GameEvent{
			Type: EventTurnActionRejected,
			Payload: map[string]interface{}{
				"reason":             verr.Error(),
				"violations":         verr.Violations,
				"alternativeActions": verr.Alternatives,
			},
		})
		s.logAction(playerID, "action_rejected", map[string]interface{}{"action": req.Type(), "reason": verr.Error()})
		return nil, verr
	}

	res, err := s.executeAction(playerID, req)
	if err != nil {
		// Validation passed, so this is a server defect. State was
		// left unchanged; surface the message verbatim.
		s.logger.WithError(err).WithField("action", req.Type()).Error("execution failed after validation")
		s.fireEventToPlayer(playerID, GameEvent{
			Type:    EventTurnActionRejected,
			Payload: map[string]interface{}{"reason": err.Error()},
		})
		return nil, err
	}

	s.logAction(playerID, "action_executed", map[string]interface{}{"action": req.Type(), "data": res.Data})
	s.fireEvent(GameEvent{
		Type: EventTurnActionBroadcast,
		Payload: map[string]interface{}{
			"playerId":   playerID.String(),
			"action":     res.Action,
			"result":     res.Data,
			"nextPlayer": res.NextPlayer.String(),
			"turnNumber": s.turnNumber,
		},
	})
	return res, nil
}

// executeAction applies a validated action. Lock held by caller.
func (s *GameSession) executeAction(playerID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	p := s.getPlayerByID(playerID)
	if p == nil {
		return nil, executionErrorf("player %s vanished between validation and execution", playerID)
	}

	switch a := req.(type) {
	case DrawAction:
		drawn := s.wall.Draw(1)
		if len(drawn) == 0 {
			return nil, executionErrorf("wall drained between validation and execution")
		}
		p.Hand = append(p.Hand, drawn...)
		p.HasDrawn = true
		// The drawn tile is private to the drawer.
		s.fireEventToPlayer(playerID, GameEvent{
			Type:    EventPrivateSyncState,
			Payload: map[string]interface{}{"drawnTile": drawn[0]},
		})
		return &ActionResult{
			Action:     ActionDraw,
			Data:       map[string]interface{}{"wallRemaining": s.wall.Remaining()},
			NextPlayer: playerID,
		}, nil

	case DiscardAction:
		if !p.removeFromHand(a.Tile) {
			return nil, executionErrorf("tile %s vanished from hand", a.Tile.ID)
		}
		rec := s.ledger.Discard(tiles.New(a.Tile.Suit, a.Tile.Value), playerID, s.turnNumber)
		p.HasDrawn = false
		next := s.seatingSuccessor(playerID)
		s.advanceTurnTo(next)
		s.openCallWindow(rec)
		return &ActionResult{
			Action:     ActionDiscard,
			Data:       map[string]interface{}{"tile": rec.Tile, "availableFor": rec.AvailableFor},
			NextPlayer: next,
		}, nil

	case CallAction:
		return s.executeCall(p, a.Call, a.Tiles)

	case JokerSwapAction:
		set := &p.ExposedSets[a.SetIndex]
		jokerIdx := -1
		for i, t := range set.Tiles {
			if t.IsJoker {
				jokerIdx = i
				break
			}
		}
		if jokerIdx < 0 {
			return nil, executionErrorf("joker vanished from exposed set %d", a.SetIndex)
		}
		if !p.removeFromHand(a.Replacement) {
			return nil, executionErrorf("replacement tile %s vanished from hand", a.Replacement.ID)
		}
		joker := set.Tiles[jokerIdx]
		set.Tiles[jokerIdx] = tiles.New(a.Replacement.Suit, a.Replacement.Value)
		p.Hand = append(p.Hand, joker)
		return &ActionResult{
			Action: ActionJokerSwap,
			Data: map[string]interface{}{
				"setIndex":    a.SetIndex,
				"replacement": a.Replacement.ID,
			},
			NextPlayer: s.currentPlayer,
		}, nil

	case MahjongAction:
		return s.executeMahjong(p, a)

	case PassAction:
		p.PassedOut = true
		// A passed-out player can no longer answer an open call window.
		s.dropFromCallWindow(playerID)
		s.fireEvent(GameEvent{
			Type: EventPlayerPassedOut,
			Payload: map[string]interface{}{
				"playerId": playerID.String(),
				"reason":   a.Reason,
			},
		})
		next := s.currentPlayer
		if s.currentPlayer == playerID {
			next = s.seatingSuccessor(playerID)
			s.advanceTurnTo(next)
		}
		res := &ActionResult{Action: ActionPass, NextPlayer: next}
		if s.activePlayerCount() <= 1 {
			winner, reason := s.lastActiveStanding(a.Reason)
			s.endGame(winner, nil, reason)
			res.GameEnded = true
		}
		return res, nil
	}
	return nil, executionErrorf("unhandled action %T", req)
}

// lastActiveStanding resolves the winner and end reason once pass-outs
// leave at most one player in the hand. With exactly one player left
// they take the hand; the reason is "forfeit" only when the final
// pass-out was an explicit forfeit.
func (s *GameSession) lastActiveStanding(passReason string) (uuid.UUID, string) {
	var winner uuid.UUID
	for _, p := range s.players {
		if !p.PassedOut {
			winner = p.ID
			break
		}
	}
	reason := "all_passed_out"
	if passReason == "forfeit" {
		reason = "forfeit"
	}
	return winner, reason
}

// advanceTurnTo hands the turn to next and bumps the counters. Lock
// held by caller.
func (s *GameSession) advanceTurnTo(next uuid.UUID) {
	if next == uuid.Nil {
		return
	}
	s.currentPlayer = next
	s.turnNumber++
	if n := s.activePlayerCount(); n > 0 {
		s.roundNumber = (s.turnNumber-1)/n + 1
	}
	s.broadcastTurnUpdate()
}

// executeCall claims the top discard into an exposed meld. The caller
// becomes the current player regardless of seating order: turn order
// is an interrupt-driven ring, not strict rotation. Lock held by
// caller.
func (s *GameSession) executeCall(p *PlayerGameData, call CallType, committed []tiles.Tile) (*ActionResult, error) {
	claimed, ok := s.ledger.PopForCall()
	if !ok {
		return nil, executionErrorf("discard pile drained between validation and execution")
	}
	meld := make([]tiles.Tile, 0, len(committed)+1)
	for _, t := range committed {
		if !p.removeFromHand(t) {
			return nil, executionErrorf("tile %s vanished from hand during call", t.ID)
		}
		meld = append(meld, tiles.New(t.Suit, t.Value))
	}
	meld = append(meld, claimed)

	rec, _ := s.ledger.LastRecord()
	p.ExposedSets = append(p.ExposedSets, ExposedSet{
		Type:       call,
		Tiles:      meld,
		CalledFrom: rec.DiscardedBy,
		Timestamp:  time.Now(),
	})

	// Interrupt: the caller takes the turn and must discard next.
	s.currentPlayer = p.ID
	p.HasDrawn = true
	s.callWindow = nil
	s.turnNumber++

	s.fireEvent(GameEvent{
		Type: EventTurnInterrupted,
		Payload: map[string]interface{}{
			"newCurrentPlayer": p.ID.String(),
			"callType":         call,
			"tiles":            meld,
		},
	})
	s.broadcastTurnUpdate()

	return &ActionResult{
		Action:     CallAction{Call: call}.Type(),
		Data:       map[string]interface{}{"callType": call, "tiles": meld},
		NextPlayer: p.ID,
	}, nil
}

// executeMahjong delegates pattern legality to the validation bridge
// and trusts its verdict. The bridge call happens inside the session's
// critical section, so no other mutation can interleave with it.
func (s *GameSession) executeMahjong(p *PlayerGameData, a MahjongAction) (*ActionResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hand := a.Hand
	if len(hand) == 0 {
		hand = append(append([]tiles.Tile{}, p.Hand...), exposedTiles(p)...)
	}
	verdict, err := s.validator.Validate(ctx, hand, a.PatternID)
	if err != nil {
		return nil, executionErrorf("pattern validation bridge failed: %v", err)
	}

	if !verdict.IsValid {
		// Bridge rejections surface as validation text, not a
		// different taxonomy.
		s.fireEvent(GameEvent{
			Type: EventMahjongDeclared,
			Payload: map[string]interface{}{
				"playerId": p.ID.String(),
				"isValid":  false,
				"reason":   verdict.Reason(),
			},
		})
		return &ActionResult{
			Action: ActionMahjong,
			Data:   map[string]interface{}{"isValid": false, "reason": verdict.Reason()},
		}, nil
	}

	score := verdict.Score
	if score == 0 {
		score = a.Score
	}
	s.fireEvent(GameEvent{
		Type: EventMahjongDeclared,
		Payload: map[string]interface{}{
			"playerId":    p.ID.String(),
			"isValid":     true,
			"score":       score,
			"bonusPoints": verdict.BonusPoints,
			"pattern":     a.PatternID,
		},
	})

	scores := make(map[uuid.UUID]int)
	for _, pl := range s.players {
		scores[pl.ID] = 0
	}
	scores[p.ID] = score + verdict.BonusPoints
	s.endGame(p.ID, scores, "mahjong")

	return &ActionResult{
		Action:    ActionMahjong,
		Data:      map[string]interface{}{"isValid": true, "score": score, "bonusPoints": verdict.BonusPoints},
		GameEnded: true,
	}, nil
}

func exposedTiles(p *PlayerGameData) []tiles.Tile {
	var out []tiles.Tile
	for _, set := range p.ExposedSets {
		out = append(out, set.Tiles...)
	}
	return out
}
