// internal/game/sync_state.go
package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/tiles"
)

// SnapshotPlayer is one player's state as seen by a specific observer.
// RevealedHand is populated only for the observer themselves; everyone
// else gets a hand size.
type SnapshotPlayer struct {
	PlayerID      string       `json:"playerId"`
	Name          string       `json:"playerName"`
	Position      Position     `json:"position"`
	HandSize      int          `json:"handSize"`
	ExposedSets   []ExposedSet `json:"exposedSets"`
	HasDrawn      bool         `json:"hasDrawn"`
	PassedOut     bool         `json:"passedOut"`
	JokersHeld    int          `json:"jokersHeld,omitempty"` // Self only.
	Connected     bool         `json:"connected"`
	IsCurrentTurn bool         `json:"isCurrentTurn"`
	RevealedHand  []tiles.Tile `json:"revealedHand,omitempty"` // Self only.
}

// SnapshotGameState is the shared game-state portion of a snapshot.
type SnapshotGameState struct {
	Phase            Phase           `json:"phase"`
	PhaseStartTime   time.Time       `json:"phaseStartTime"`
	Overtime         bool            `json:"overtime"`
	CurrentPlayerID  string          `json:"currentPlayerId"`
	TurnNumber       int             `json:"turnNumber"`
	RoundNumber      int             `json:"roundNumber"`
	CurrentWind      Position        `json:"currentWind"`
	WallRemaining    int             `json:"wallRemaining"`
	WallDealt        int             `json:"wallDealt"`
	DiscardPile      []tiles.Tile    `json:"discardPile"`
	DiscardHistory   []DiscardRecord `json:"discardHistory"`
	CharlestonPhase  CharlestonPhase `json:"charlestonPhase,omitempty"`
	CharlestonActive bool            `json:"charlestonActive"`
	GameStarted      bool            `json:"gameStarted"`
	GameOver         bool            `json:"gameOver"`
}

// RoomSnapshot is the full-state recovery payload for a reconnecting
// player: room identity, every player's coordination state, and the
// game state from the observer's perspective.
type RoomSnapshot struct {
	RoomID       string                        `json:"roomId"`
	SessionID    string                        `json:"sessionId"`
	PlayerStates map[string]*CoordinationState `json:"playerStates"`
	Players      []SnapshotPlayer              `json:"players"`
	GameState    SnapshotGameState             `json:"gameState"`
}

// Snapshot builds the full room snapshot from one observer's
// perspective.
func (s *GameSession) Snapshot(forPlayer uuid.UUID) RoomSnapshot {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.snapshotFor(forPlayer)
}

// snapshotFor assembles the snapshot. Lock held by caller.
func (s *GameSession) snapshotFor(forPlayer uuid.UUID) RoomSnapshot {
	snap := RoomSnapshot{
		RoomID:       s.RoomID.String(),
		SessionID:    s.ID.String(),
		PlayerStates: make(map[string]*CoordinationState, len(s.coord)),
		Players:      make([]SnapshotPlayer, 0, len(s.players)),
	}
	for id, c := range s.coord {
		cc := *c
		snap.PlayerStates[id.String()] = &cc
	}

	for _, p := range s.players {
		sp := SnapshotPlayer{
			PlayerID:      p.ID.String(),
			Name:          p.Name,
			Position:      p.Position,
			HandSize:      len(p.Hand),
			ExposedSets:   append([]ExposedSet{}, p.ExposedSets...),
			HasDrawn:      p.HasDrawn,
			PassedOut:     p.PassedOut,
			IsCurrentTurn: s.currentPlayer == p.ID,
		}
		if c, ok := s.coord[p.ID]; ok {
			sp.Connected = c.Connected
		}
		if p.ID == forPlayer {
			sp.RevealedHand = append([]tiles.Tile{}, p.Hand...)
			sp.JokersHeld = p.jokersHeld()
		}
		snap.Players = append(snap.Players, sp)
	}

	gs := SnapshotGameState{
		Phase:           s.phase.Phase,
		PhaseStartTime:  s.phase.StartTime,
		Overtime:        s.phase.Overtime,
		CurrentPlayerID: s.currentPlayer.String(),
		TurnNumber:      s.turnNumber,
		RoundNumber:     s.roundNumber,
		CurrentWind:     s.currentWind,
		DiscardPile:     s.ledger.Pile(),
		DiscardHistory:  s.ledger.History(),
		GameStarted:     s.gameStarted,
		GameOver:        s.gameOver,
	}
	if s.wall != nil {
		gs.WallRemaining = s.wall.Remaining()
		gs.WallDealt = s.wall.Dealt()
	}
	if s.charleston.started {
		gs.CharlestonPhase = s.charleston.current()
		gs.CharlestonActive = !s.charleston.isComplete()
	}
	snap.GameState = gs
	return snap
}
