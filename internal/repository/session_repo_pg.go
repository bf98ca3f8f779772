package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository stores sessions and the durable workflow snapshot of
// each one.
type SessionRepository interface {
	LoadState(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	SaveState(ctx context.Context, state *domain.WorkflowState) error
	ListIdle(ctx context.Context, before time.Time) ([]string, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

type PGSessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) SessionRepository {
	return &PGSessionRepository{db: db}
}

func (r *PGSessionRepository) LoadState(ctx context.Context, sessionID string) (*domain.WorkflowState, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT state FROM workflow_states WHERE session_id=$1`, sessionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var state domain.WorkflowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode workflow state %s: %w", sessionID, err)
	}
	return &state, nil
}

// SaveState creates the session on first sight, bumps its activity time and
// replaces the snapshot.
func (r *PGSessionRepository) SaveState(ctx context.Context, state *domain.WorkflowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode workflow state %s: %w", state.SessionID, err)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO sessions (session_id, user_id, created_at, last_active_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (session_id) DO UPDATE SET last_active_at = EXCLUDED.last_active_at`,
		state.SessionID, state.UserID, state.UpdatedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO workflow_states (session_id, flow, step, state, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE SET flow = EXCLUDED.flow, step = EXCLUDED.step, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		state.SessionID, state.Flow, state.Step, raw, state.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGSessionRepository) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT session_id FROM workflow_states WHERE flow <> $1 AND updated_at < $2 ORDER BY updated_at`,
		domain.FlowNone, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGSessionRepository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx, `SELECT session_id, user_id, created_at, last_active_at FROM sessions WHERE session_id=$1`, sessionID).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ SessionRepository = (*PGSessionRepository)(nil)
