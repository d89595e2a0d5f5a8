// internal/game/historian.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thetrev68/american-mahjong-server/internal/cache"
)

// logAction appends an action record to the room's Redis history
// stream. Fire-and-forget with a short timeout so the historian can
// never stall the game's critical section. Lock held by caller.
func (s *GameSession) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	rec := cache.GameActionRecord{
		RoomID:        s.RoomID,
		SessionID:     s.ID,
		ActionIndex:   s.actionIndex,
		ActorPlayerID: actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			s.logger.WithError(err).WithField("action", rec.ActionType).Warn("failed publishing action to redis")
		}
	}(rec)
}
