package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	typingKeyPrefix   = "typing:"
	typingTTL         = 10 * time.Second
)

// Presence is one user's realtime presence record.
type Presence struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// Store wraps the Redis client with the realtime operations this core needs
type Store struct {
	client *redis.Client
}

// NewStore creates a new realtime store client
func NewStore(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// SetPresence writes a user's presence record
func (s *Store) SetPresence(ctx context.Context, p Presence) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, presenceKeyPrefix+p.UserID, data, 0).Err()
}

// GetPresence returns presence records for the given users. Users without a
// record are reported offline with a zero LastSeen.
func (s *Store) GetPresence(ctx context.Context, userIDs []string) ([]Presence, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKeyPrefix + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Presence, 0, len(userIDs))
	for i, v := range values {
		p := Presence{UserID: userIDs[i]}
		if raw, ok := v.(string); ok {
			_ = json.Unmarshal([]byte(raw), &p)
			p.UserID = userIDs[i]
		}
		out = append(out, p)
	}
	return out, nil
}

// DeletePresence removes a user's presence record and returns how many
// records were removed. Missing keys are a no-op.
func (s *Store) DeletePresence(ctx context.Context, userID string) (int64, error) {
	return s.client.Del(ctx, presenceKeyPrefix+userID).Result()
}

// SetTyping records a short-lived typing indicator for a user in a room
func (s *Store) SetTyping(ctx context.Context, roomID, userID string, typing bool) error {
	key := fmt.Sprintf("%s%s:%s", typingKeyPrefix, roomID, userID)
	if !typing {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, "1", typingTTL).Err()
}

// SweepStalePresence marks users offline whose LastSeen is older than the
// threshold. Returns the number of records updated.
func (s *Store) SweepStalePresence(ctx context.Context, olderThan time.Time) (int, error) {
	swept := 0
	iter := s.client.Scan(ctx, 0, presenceKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return swept, err
		}

		var p Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		if !p.Online || p.LastSeen.After(olderThan) {
			continue
		}

		p.Online = false
		data, _ := json.Marshal(p)
		if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, iter.Err()
}

// Ping checks if the realtime store is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.client.Close()
}
