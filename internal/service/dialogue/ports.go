package dialogue

import (
	"context"
	"time"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/nlu"
	"github.com/Domenick1991/airbot/internal/recommend"
	"github.com/Domenick1991/airbot/internal/service/airline"
)

type Classifier interface {
	Classify(ctx context.Context, text string, hint nlu.Hint) domain.Classification
}

// Backend is the airline booking system. Errors wrap airline.ErrNotFound,
// airline.ErrRejected or airline.ErrTransient.
type Backend interface {
	CreateBooking(ctx context.Context, input airline.CreateBookingInput) (*domain.ExternalBooking, error)
	GetBooking(ctx context.Context, bookingID, userID string) (*domain.ExternalBooking, error)
	ListUserBookings(ctx context.Context, userID string) ([]domain.ExternalBooking, error)
	CancelBooking(ctx context.Context, bookingID string) (int64, error)
	ChangeDate(ctx context.Context, bookingID, newDate string) (int64, error)
	ListAvailableSeats(ctx context.Context, bookingID string) ([]string, error)
	UpgradeSeat(ctx context.Context, bookingID, seat string) (int64, error)
}

// StateCache holds the live copy of each session's workflow and the commit
// guard. GetState returns nil, nil on a miss.
type StateCache interface {
	GetState(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	SetState(ctx context.Context, state *domain.WorkflowState, ttl time.Duration) error
	DeleteState(ctx context.Context, sessionID string) error
	AcquireCommit(ctx context.Context, confirmationID string, ttl time.Duration) (bool, error)
}

// StateStore is the durable snapshot. LoadState returns
// repository.ErrNotFound for unknown sessions.
type StateStore interface {
	LoadState(ctx context.Context, sessionID string) (*domain.WorkflowState, error)
	SaveState(ctx context.Context, state *domain.WorkflowState) error
	ListIdle(ctx context.Context, before time.Time) ([]string, error)
}

type MessageLog interface {
	Append(ctx context.Context, msg *domain.Message) error
	SaveFeedback(ctx context.Context, fb domain.Feedback) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Advisor interface {
	Recommend(intent domain.Intent, entities []domain.Entity, outcome recommend.Outcome) []domain.Recommendation
	Disclosure(flow domain.Flow) (string, bool)
	Answer(intent domain.Intent) (recommend.Policy, bool)
}

type Metrics interface {
	ObserveTurn(intent string, d time.Duration)
	ObserveBackendCall(op, outcome string, d time.Duration)
	InvariantReset()
	IdleExpired(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTurn(string, time.Duration)                {}
func (noopMetrics) ObserveBackendCall(string, string, time.Duration) {}
func (noopMetrics) InvariantReset()                                  {}
func (noopMetrics) IdleExpired(int)                                  {}
