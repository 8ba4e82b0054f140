// Package database owns the Postgres connection pool and the game
// snapshot store. Snapshots are latest-wins JSON blobs keyed by game id;
// finished games additionally get an immutable final-state row.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// DB is the process-wide pool. Nil when the server runs without Postgres;
// callers guard on that and skip persistence.
var DB *pgxpool.Pool

// Connect opens the pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) error {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("parsing database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging database: %w", err)
	}
	DB = pool
	logrus.Info("database: connected")
	return nil
}

// Close releases the pool.
func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}

// EnsureSchema creates the tables the server needs. Idempotent.
func EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS game_snapshots (
    game_id    UUID PRIMARY KEY,
    state      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS game_results (
    game_id     UUID PRIMARY KEY,
    final_state JSONB NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := DB.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// UpsertGameSnapshot stores the current game state, replacing any earlier
// snapshot for the same game.
func UpsertGameSnapshot(ctx context.Context, gameID uuid.UUID, state any) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling snapshot for game %s: %w", gameID, err)
	}
	_, err = DB.Exec(ctx, `
INSERT INTO game_snapshots (game_id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (game_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		gameID, blob)
	if err != nil {
		return fmt.Errorf("upserting snapshot for game %s: %w", gameID, err)
	}
	return nil
}

// StoreFinalGameState records the immutable end-of-game state and removes
// the in-progress snapshot.
func StoreFinalGameState(ctx context.Context, gameID uuid.UUID, state any) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling final state for game %s: %w", gameID, err)
	}
	_, err = DB.Exec(ctx, `
INSERT INTO game_results (game_id, final_state, finished_at)
VALUES ($1, $2, now())
ON CONFLICT (game_id) DO NOTHING`,
		gameID, blob)
	if err != nil {
		return fmt.Errorf("storing final state for game %s: %w", gameID, err)
	}
	if _, err := DB.Exec(ctx, `DELETE FROM game_snapshots WHERE game_id = $1`, gameID); err != nil {
		logrus.Warnf("database: deleting snapshot for finished game %s: %v", gameID, err)
	}
	return nil
}

// LoadGameSnapshot fetches the stored state blob for a game, or false
// when none exists.
func LoadGameSnapshot(ctx context.Context, gameID uuid.UUID) ([]byte, bool, error) {
	var blob []byte
	err := DB.QueryRow(ctx, `SELECT state FROM game_snapshots WHERE game_id = $1`, gameID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("loading snapshot for game %s: %w", gameID, err)
	}
	return blob, true, nil
}
