// internal/ws/frames.go — inbound wire frames.
package ws

import (
	"encoding/json"

	"github.com/thetrev68/american-mahjong-server/internal/game"
	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// clientFrame is the envelope every inbound message uses. Payload is
// decoded a second time once the type is known.
type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Frame types accepted from clients. Names match the wire protocol.
const (
	frameStartGame        = "turn-start-game"
	frameTurnAction       = "turn-action-request"
	frameCallResponse     = "call-opportunity-response"
	frameCharlestonReady  = "charleston-player-ready"
	frameDeclareMahjong   = "declare-mahjong"
	frameWallCheck        = "check-wall-exhaustion"
	framePassOut          = "player-pass-out"
	frameReconnect        = "room-reconnect"
	framePhaseChange      = "room-phase-change"
	framePhaseRollback    = "room-phase-rollback"
	frameReadiness        = "player-readiness"
	frameAssignPosition   = "room-assign-position"
	frameReadinessSummary = "player-readiness-summary"
)

type startGamePayload struct {
	FirstPlayer string `json:"firstPlayer"`
}

type turnActionPayload struct {
	Action     string          `json:"action"`
	ActionData json.RawMessage `json:"actionData,omitempty"`
}

type discardData struct {
	Tile tiles.Tile `json:"tile"`
}

type callData struct {
	CallType game.CallType `json:"callType"`
	Tiles    []tiles.Tile  `json:"tiles"`
}

type jokerSwapData struct {
	SetIndex    int        `json:"setIndex"`
	Replacement tiles.Tile `json:"replacement"`
}

type passData struct {
	Reason string `json:"reason,omitempty"`
}

type callResponsePayload struct {
	Response string        `json:"response"` // "call" or "pass"
	CallType game.CallType `json:"callType,omitempty"`
	Tiles    []tiles.Tile  `json:"tiles,omitempty"`
}

type charlestonReadyPayload struct {
	SelectedTiles []tiles.Tile         `json:"selectedTiles"`
	Phase         game.CharlestonPhase `json:"phase"`
}

type declareMahjongPayload struct {
	WinningHand     []tiles.Tile `json:"winningHand"`
	SelectedPattern string       `json:"selectedPattern"`
	Score           int          `json:"score,omitempty"`
}

type wallCheckPayload struct {
	MinTilesNeeded int `json:"minTilesNeeded,omitempty"`
}

type phaseChangePayload struct {
	Phase game.Phase `json:"phase"`
	// Charleston is the client's own view of the exchange, sent by some
	// client versions alongside a playing transition. Its shape varies
	// across versions, so it decodes untyped.
	Charleston interface{} `json:"charleston,omitempty"`
}

// charlestonMarkerBlocks reports whether a client-supplied charleston
// status marker contradicts a requested transition into playing. An
// absent marker defers entirely to the session's own entry guard.
func charlestonMarkerBlocks(target game.Phase, marker interface{}) bool {
	return target == game.PhasePlaying && marker != nil && !game.CharlestonMarkerComplete(marker)
}

type readinessPayload struct {
	Category game.ReadinessCategory `json:"category"`
	Ready    bool                   `json:"ready"`
}

type assignPositionPayload struct {
	Position game.Position `json:"position"`
}

// decodeActionRequest maps a wire action onto its typed request.
// Unrecognized actions become UnknownAction so the session rejects them
// with the canonical list instead of the socket dropping the frame.
func decodeActionRequest(p turnActionPayload) (game.ActionRequest, error) {
	switch game.ActionType(p.Action) {
	case game.ActionDraw:
		return game.DrawAction{}, nil
	case game.ActionDiscard:
		var d discardData
		if err := json.Unmarshal(p.ActionData, &d); err != nil {
			return nil, err
		}
		return game.DiscardAction{Tile: d.Tile}, nil
	case game.ActionCallPung, game.ActionCallKong:
		var d callData
		if err := json.Unmarshal(p.ActionData, &d); err != nil {
			return nil, err
		}
		if d.CallType == "" {
			d.CallType = game.CallPung
			if game.ActionType(p.Action) == game.ActionCallKong {
				d.CallType = game.CallKong
			}
		}
		return game.CallAction{Call: d.CallType, Tiles: d.Tiles}, nil
	case game.ActionJokerSwap:
		var d jokerSwapData
		if err := json.Unmarshal(p.ActionData, &d); err != nil {
			return nil, err
		}
		return game.JokerSwapAction{SetIndex: d.SetIndex, Replacement: d.Replacement}, nil
	case game.ActionMahjong:
		var d declareMahjongPayload
		if err := json.Unmarshal(p.ActionData, &d); err != nil {
			return nil, err
		}
		return game.MahjongAction{Hand: d.WinningHand, PatternID: d.SelectedPattern, Score: d.Score}, nil
	case game.ActionPass:
		var d passData
		if len(p.ActionData) > 0 {
			if err := json.Unmarshal(p.ActionData, &d); err != nil {
				return nil, err
			}
		}
		return game.PassAction{Reason: d.Reason}, nil
	}
	return game.UnknownAction{Raw: p.Action}, nil
}
