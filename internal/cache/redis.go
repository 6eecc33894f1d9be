// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// attachmentTTL bounds how long a disconnected client's subscription filter
// survives before a reconnect stops restoring it.
const attachmentTTL = 24 * time.Hour

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// attachmentRecord is the stored form of one client's subscription filter.
type attachmentRecord struct {
	ClientID string  `json:"client_id"`
	MatchIDs []int64 `json:"match_ids"`
}

// SubscriptionAttachments persists per-client match subscriptions in Redis so
// a reconnecting client resumes its filter without resubscribing.
type SubscriptionAttachments struct {
	client *redis.Client
}

// NewSubscriptionAttachments wraps a connected Redis client.
func NewSubscriptionAttachments(client *redis.Client) *SubscriptionAttachments {
	return &SubscriptionAttachments{client: client}
}

func attachmentKey(clientID string) string {
	return "matchstate:attachment:" + clientID
}

// Save stores the client's current subscription set, replacing any prior one.
// An empty set still writes a record so an explicit unsubscribe survives
// reconnects too.
func (s *SubscriptionAttachments) Save(ctx context.Context, clientID string, matchIDs []int64) error {
	data, err := json.Marshal(attachmentRecord{ClientID: clientID, MatchIDs: matchIDs})
	if err != nil {
		return fmt.Errorf("failed to marshal attachment for %s: %w", clientID, err)
	}
	if err := s.client.Set(ctx, attachmentKey(clientID), data, attachmentTTL).Err(); err != nil {
		return fmt.Errorf("failed to store attachment for %s: %w", clientID, err)
	}
	return nil
}

// Load returns the client's persisted subscription set, or nil when none is
// stored.
func (s *SubscriptionAttachments) Load(ctx context.Context, clientID string) ([]int64, error) {
	data, err := s.client.Get(ctx, attachmentKey(clientID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load attachment for %s: %w", clientID, err)
	}
	var record attachmentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode attachment for %s: %w", clientID, err)
	}
	return record.MatchIDs, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
