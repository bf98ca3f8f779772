package cache

import (
	"context"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
)

// MemoryStore is the single-process counterpart of RedisStore.
type MemoryStore struct {
	states  *TTL[*domain.WorkflowState]
	commits *TTL[struct{}]
}

func NewMemoryStore(opts ...Option[*domain.WorkflowState]) *MemoryStore {
	return &MemoryStore{
		states:  NewTTL(opts...),
		commits: NewTTL[struct{}](),
	}
}

func (s *MemoryStore) GetState(_ context.Context, sessionID string) (*domain.WorkflowState, error) {
	state, ok := s.states.Get(workflowKey(sessionID))
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *MemoryStore) SetState(_ context.Context, state *domain.WorkflowState, ttl time.Duration) error {
	s.states.Set(workflowKey(state.SessionID), state.Clone(), ttl)
	return nil
}

func (s *MemoryStore) DeleteState(_ context.Context, sessionID string) error {
	s.states.Delete(workflowKey(sessionID))
	return nil
}

func (s *MemoryStore) AcquireCommit(_ context.Context, confirmationID string, ttl time.Duration) (bool, error) {
	return s.commits.SetIfAbsent(commitKey(confirmationID), struct{}{}, ttl), nil
}

func (s *MemoryStore) Stats() Stats {
	return s.states.Stats()
}

// Run sweeps both underlying caches until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	go s.commits.Run(ctx, interval)
	s.states.Run(ctx, interval)
}
