// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list holding finalized-debate records
// for the out-of-process archiver.
var DefaultQueueName = "podium_results"

// ResultRecord is the minimal finalized-debate payload the archiver
// consumes.
type ResultRecord struct {
	DebateID  uuid.UUID      `json:"debate_id"`
	WinnerID  uuid.UUID      `json:"winner_id"`
	Totals    map[string]int `json:"totals"`
	Source    string         `json:"source"`
	Timestamp int64          `json:"timestamp"`
}

// Connect initializes the global Redis client and pings it.
func Connect(addr string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishResult serializes the record to JSON and RPUSHes it onto the
// archive queue. Fire-and-forget from the caller's point of view; a
// quick network send is the only cost.
func PublishResult(ctx context.Context, record ResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ResultRecord: %w", err)
	}
	if err := Rdb.RPush(ctx, DefaultQueueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", DefaultQueueName, err)
	}
	return nil
}
