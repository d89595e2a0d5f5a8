// internal/game/events.go
package game

import "github.com/google/uuid"

// GameEventType represents the type of a room-related event broadcast via WebSockets.
type GameEventType string

// Constants defining the GameEvent types used for WebSocket communication.
// Names match the wire protocol consumed by clients.
const (
	EventTurnUpdate           GameEventType = "turn-update"             // Public: current player / turn counters changed.
	EventTurnActionBroadcast  GameEventType = "turn-action-broadcast"   // Public: a validated action was executed.
	EventTurnActionRejected   GameEventType = "turn-action-rejected"    // Private: an action failed validation.
	EventCallResponse         GameEventType = "call-response-broadcast" // Public: a player responded to a call opportunity.
	EventTurnInterrupted      GameEventType = "turn-interrupted"        // Public: a call stole the turn out of rotation.
	EventCharlestonReady      GameEventType = "charleston-player-ready-update"
	EventCharlestonExchange   GameEventType = "charleston-tile-exchange" // Private: the tiles a player received this round.
	EventMahjongDeclared      GameEventType = "mahjong-declared"
	EventGameEnded            GameEventType = "game-ended"
	EventWallExhaustionCheck  GameEventType = "wall-exhaustion-checked"
	EventPlayerPassedOut      GameEventType = "player-passed-out"
	EventReconnectResponse    GameEventType = "room-reconnect-response" // Private: full snapshot for a rejoining player.
	EventPhaseChanged         GameEventType = "room-phase-changed"
	EventReadinessUpdate      GameEventType = "player-readiness-update"
	EventPlayerConnection     GameEventType = "player-connection-update"
	EventPrivateSyncState     GameEventType = "private-sync-state" // Private: per-observer room snapshot.
	EventError                GameEventType = "error"              // Private: a request failed outside action validation.
)

// GameEvent is the standard structure for broadcasting room state changes.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`

	State *RoomSnapshot `json:"state,omitempty"` // Full snapshot for sync/reconnect events.
}

// OnGameEndFunc is the callback executed when a room's game finishes.
type OnGameEndFunc func(roomID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int, endReason string)
