// Package cache holds the Redis client and the game-action historian
// queue. Redis is optional: when Rdb is nil every publish is a no-op
// and the server runs purely in memory.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the shared Redis client, nil when Redis is not configured.
var Rdb *redis.Client

// Init connects the shared client and verifies the connection.
func Init(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	Rdb = client
	return nil
}

// GameActionRecord is one entry in a room's action history stream.
type GameActionRecord struct {
	RoomID        uuid.UUID              `json:"roomId"`
	SessionID     uuid.UUID              `json:"sessionId"`
	ActionIndex   int                    `json:"actionIndex"`
	ActorPlayerID uuid.UUID              `json:"actorPlayerId"`
	ActionType    string                 `json:"actionType"`
	ActionPayload map[string]interface{} `json:"actionPayload"`
	Timestamp     int64                  `json:"timestamp"`
}

// PublishGameAction appends a record to the room's history stream.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	if Rdb == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal action record: %w", err)
	}
	stream := "room:actions:" + rec.RoomID.String()
	return Rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"index":  rec.ActionIndex,
			"record": payload,
		},
	}).Err()
}
