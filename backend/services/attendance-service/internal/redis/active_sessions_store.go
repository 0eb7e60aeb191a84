package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

const activeIndexKey = "attendance:active"

// ActiveSession is the cached view of a clocked-in worker.
type ActiveSession struct {
	SessionID   string            `json:"session_id"`
	WorkerID    string            `json:"worker_id"`
	SiteName    string            `json:"site_name"`
	ClockedInAt time.Time         `json:"clocked_in_at"`
	Location    models.Coordinate `json:"location"`
}

// Store keeps active sessions in redis so dashboards can list who is on site.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(workerID string) string {
	return fmt.Sprintf("attendance:active:%s", workerID)
}

// Save caches session and adds the worker to the active index.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.WorkerID), data, s.ttl)
		pipe.SAdd(ctx, activeIndexKey, session.WorkerID)
		return nil
	})
	return err
}

// Get returns the cached session of workerID; redis.Nil when absent.
func (s *Store) Get(ctx context.Context, workerID string) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, s.key(workerID)).Result()
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes the cached session.
func (s *Store) Delete(ctx context.Context, workerID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(workerID))
		pipe.SRem(ctx, activeIndexKey, workerID)
		return nil
	})
	return err
}

// List returns every cached session. Index entries whose session key expired
// are pruned.
func (s *Store) List(ctx context.Context) ([]ActiveSession, error) {
	workers, err := s.client.SMembers(ctx, activeIndexKey).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]ActiveSession, 0, len(workers))
	for _, workerID := range workers {
		session, err := s.Get(ctx, workerID)
		if errors.Is(err, redis.Nil) {
			s.client.SRem(ctx, activeIndexKey, workerID)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}
