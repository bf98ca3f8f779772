package domain

import "time"

type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Message is one entry of the append-only conversation log.
type Message struct {
	ID         int64
	SessionID  string
	UserID     string
	Text       string
	Intent     Intent
	Confidence float64
	Response   string
	CreatedAt  time.Time
}

type Feedback struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	MessageID *int64 `json:"message_id,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
}

type Analytics struct {
	TotalMessages      int64            `json:"total_messages"`
	TotalSessions      int64            `json:"total_sessions"`
	IntentDistribution map[string]int64 `json:"intent_distribution"`
	AverageConfidence  float64          `json:"average_confidence"`
	TotalFeedback      int64            `json:"total_feedback"`
	AverageRating      float64          `json:"average_rating"`
	PositiveFeedback   int64            `json:"positive_feedback"`
}
