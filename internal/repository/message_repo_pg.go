package repository

import (
	"context"
	"math"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository is the append-only conversation log plus feedback.
type MessageRepository interface {
	Append(ctx context.Context, msg *domain.Message) error
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
	Analytics(ctx context.Context) (*domain.Analytics, error)
}

type PGMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &PGMessageRepository{db: db}
}

func (r *PGMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	return r.db.QueryRow(ctx, `INSERT INTO messages (session_id, user_id, text, intent, confidence, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING message_id`,
		msg.SessionID, msg.UserID, msg.Text, msg.Intent, msg.Confidence, msg.Response, msg.CreatedAt).
		Scan(&msg.ID)
}

func (r *PGMessageRepository) SaveFeedback(ctx context.Context, fb domain.Feedback) error {
	_, err := r.db.Exec(ctx, `INSERT INTO feedback (session_id, user_id, message_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)`,
		fb.SessionID, fb.UserID, fb.MessageID, fb.Rating, fb.Comment)
	return classify(err)
}

func (r *PGMessageRepository) Analytics(ctx context.Context) (*domain.Analytics, error) {
	a := &domain.Analytics{IntentDistribution: make(map[string]int64)}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT session_id), COALESCE(AVG(confidence), 0) FROM messages`).
		Scan(&a.TotalMessages, &a.TotalSessions, &a.AverageConfidence); err != nil {
		return nil, err
	}
	a.AverageConfidence = math.Round(a.AverageConfidence*1000) / 1000

	rows, err := r.db.Query(ctx, `SELECT intent, COUNT(*) FROM messages GROUP BY intent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var n int64
		if err := rows.Scan(&intent, &n); err != nil {
			return nil, err
		}
		a.IntentDistribution[intent] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(AVG(rating), 0), COUNT(*) FILTER (WHERE rating >= 4) FROM feedback`).
		Scan(&a.TotalFeedback, &a.AverageRating, &a.PositiveFeedback); err != nil {
		return nil, err
	}
	return a, nil
}

var _ MessageRepository = (*PGMessageRepository)(nil)
