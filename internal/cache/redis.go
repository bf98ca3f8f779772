package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airbot/config"
	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps workflow snapshots and commit guards in Redis so several
// app instances share them.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
	}
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetState(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	data, err := s.client.Get(ctx, workflowKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var state domain.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode workflow state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) SetState(ctx context.Context, state *domain.WorkflowState, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, workflowKey(state.SessionID), payload, ttl).Err()
}

func (s *RedisStore) DeleteState(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, workflowKey(sessionID)).Err()
}

// AcquireCommit reports whether the caller is the first to commit the given
// confirmation.
func (s *RedisStore) AcquireCommit(ctx context.Context, confirmationID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, commitKey(confirmationID), "committed", ttl).Result()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func workflowKey(sessionID string) string {
	return "workflow:" + sessionID
}

func commitKey(confirmationID string) string {
	return fmt.Sprintf("lock:commit:%s", confirmationID)
}
