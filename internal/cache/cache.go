// Package cache is the Redis-backed action historian. Every game action
// is appended to a per-game list so a finished or crashed game can be
// replayed action by action.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Rdb is the process-wide client. Nil when the server runs without
// Redis; callers guard on that and skip the audit trail.
var Rdb *redis.Client

// Connect dials Redis and verifies with a ping.
func Connect(ctx context.Context, addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	Rdb = client
	logrus.Info("cache: connected to redis")
	return nil
}

// Close shuts down the client.
func Close() {
	if Rdb != nil {
		_ = Rdb.Close()
		Rdb = nil
	}
}

// GameActionRecord is one entry in a game's action history.
type GameActionRecord struct {
	GameID        uuid.UUID      `json:"gameId"`
	ActionIndex   int            `json:"actionIndex"`
	ActorUserID   uuid.UUID      `json:"actorUserId"`
	ActionType    string         `json:"actionType"`
	ActionPayload map[string]any `json:"actionPayload"`
	Timestamp     int64          `json:"timestamp"`
}

func actionsKey(gameID uuid.UUID) string {
	return fmt.Sprintf("game:%s:actions", gameID)
}

// PublishGameAction appends one record to the game's history list.
func PublishGameAction(ctx context.Context, rec GameActionRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling action record: %w", err)
	}
	if err := Rdb.RPush(ctx, actionsKey(rec.GameID), blob).Err(); err != nil {
		return fmt.Errorf("appending action for game %s: %w", rec.GameID, err)
	}
	return nil
}

// FetchGameActions returns the full ordered history for a game.
func FetchGameActions(ctx context.Context, gameID uuid.UUID) ([]GameActionRecord, error) {
	raw, err := Rdb.LRange(ctx, actionsKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading actions for game %s: %w", gameID, err)
	}
	records := make([]GameActionRecord, 0, len(raw))
	for _, item := range raw {
		var rec GameActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decoding action record for game %s: %w", gameID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
