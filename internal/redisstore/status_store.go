package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StationStatus is the cached connectivity view of one station, kept
// hot so dashboards read it without touching postgres.
type StationStatus struct {
	StationID           string     `json:"station_id"`
	State               string     `json:"state"`
	LastSeen            *time.Time `json:"last_seen,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// StatusStore manages the station status cache.
type StatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusStore returns redis-backed store.
func NewStatusStore(client *redis.Client, ttl time.Duration) *StatusStore {
	return &StatusStore{client: client, ttl: ttl}
}

func (s *StatusStore) key(stationID string) string {
	return fmt.Sprintf("stations:status:%s", stationID)
}

// Save caches the station's status.
func (s *StatusStore) Save(ctx context.Context, status StationStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(status.StationID), data, s.ttl).Err()
}

// Get returns the cached status, or nil when none is cached.
func (s *StatusStore) Get(ctx context.Context, stationID string) (*StationStatus, error) {
	result, err := s.client.Get(ctx, s.key(stationID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var status StationStatus
	if err := json.Unmarshal([]byte(result), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Delete removes the cached status.
func (s *StatusStore) Delete(ctx context.Context, stationID string) error {
	return s.client.Del(ctx, s.key(stationID)).Err()
}
