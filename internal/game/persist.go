// internal/game/persist.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/database"
)

// persistInitialState saves the deal snapshot for audit. Asynchronous
// and guarded: without a database pool it is a no-op. Lock held by
// caller.
func (s *GameSession) persistInitialState() {
	type dealtPlayer struct {
		Position Position `json:"position"`
		HandSize int      `json:"handSize"`
	}
	snap := struct {
		WallRemaining int                    `json:"wallRemaining"`
		Players       map[string]dealtPlayer `json:"players"`
	}{
		WallRemaining: s.wall.Remaining(),
		Players:       make(map[string]dealtPlayer, len(s.players)),
	}
	for _, p := range s.players {
		snap.Players[p.ID.String()] = dealtPlayer{Position: p.Position, HandSize: len(p.Hand)}
	}

	if database.Pool == nil {
		return
	}
	sessionID := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.UpsertInitialGameState(ctx, sessionID, snap); err != nil {
			s.logger.WithError(err).Warn("failed persisting initial game state")
		}
	}()
}

// persistFinalState saves the hand's outcome. Lock held by caller.
func (s *GameSession) persistFinalState(winner uuid.UUID, scores map[uuid.UUID]int, endReason string) {
	if database.Pool == nil {
		return
	}
	finalScores := make(map[string]int, len(scores))
	for id, sc := range scores {
		finalScores[id.String()] = sc
	}
	snap := struct {
		Winner    string         `json:"winner"`
		Scores    map[string]int `json:"finalScores"`
		EndReason string         `json:"endReason"`
		Turns     int            `json:"turns"`
	}{
		Winner:    winner.String(),
		Scores:    finalScores,
		EndReason: endReason,
		Turns:     s.turnNumber,
	}
	sessionID := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := database.StoreFinalGameState(ctx, sessionID, snap); err != nil {
			s.logger.WithError(err).Warn("failed persisting final game state")
		}
	}()
}
