// Package database provides optional write-behind persistence of deal
// snapshots and final results. In-flight game state stays in memory: a
// process restart loses running games, and that limitation is logged
// at startup. When Pool is nil all writes are no-ops.
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool, nil when Postgres is not
// configured.
var Pool *pgxpool.Pool

// Init opens the pool and verifies connectivity.
func Init(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pg ping: %w", err)
	}
	Pool = pool
	return nil
}

// Close releases the pool.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}

// UpsertInitialGameState stores the deal snapshot for audit/replay.
func UpsertInitialGameState(ctx context.Context, sessionID uuid.UUID, snapshot interface{}) error {
	if Pool == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal initial state: %w", err)
	}
	_, err = Pool.Exec(ctx, `
		INSERT INTO game_states (session_id, initial_state, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET initial_state = EXCLUDED.initial_state`,
		sessionID, payload)
	return err
}

// StoreFinalGameState stores the outcome of a finished hand.
func StoreFinalGameState(ctx context.Context, sessionID uuid.UUID, snapshot interface{}) error {
	if Pool == nil {
		return nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	_, err = Pool.Exec(ctx, `
		UPDATE game_states SET final_state = $2, finished_at = now()
		WHERE session_id = $1`,
		sessionID, payload)
	return err
}
