package domain

import "time"

type Flow string

const (
	FlowNone         Flow = "none"
	FlowBooking      Flow = "booking"
	FlowCancellation Flow = "cancellation"
	FlowDateChange   Flow = "date_change"
	FlowSeatUpgrade  Flow = "seat_upgrade"
)

type Step string

const (
	StepIdle Step = ""

	StepCollectingOrigin      Step = "collecting_origin"
	StepCollectingDestination Step = "collecting_destination"
	StepCollectingDate        Step = "collecting_date"
	StepCollectingName        Step = "collecting_name"
	StepConfirming            Step = "confirming"

	StepSelectingBooking       Step = "selecting_booking"
	StepConfirmingCancellation Step = "confirming_cancellation"

	StepCollectingNewDate Step = "collecting_new_date"
	StepConfirmingChange  Step = "confirming_change"

	StepSelectingSeat     Step = "selecting_seat"
	StepConfirmingUpgrade Step = "confirming_upgrade"

	// Shared by every flow.
	StepCommitting Step = "committing"
	StepFailed     Step = "failed"
	StepCompleted  Step = "completed"
	StepAbandoned  Step = "abandoned"
)

const (
	SlotOrigin        = "origin"
	SlotDestination   = "destination"
	SlotDate          = "date"
	SlotPassengerName = "passenger_name"
	SlotBookingID     = "booking_id"
	SlotNewDate       = "new_date"
	SlotSeat          = "seat"
)

// WorkflowState is the per-session state machine instance.
type WorkflowState struct {
	SessionID           string            `json:"session_id"`
	UserID              string            `json:"user_id"`
	Flow                Flow              `json:"flow"`
	Step                Step              `json:"step"`
	Slots               map[string]string `json:"slots,omitempty"`
	PendingConfirmation bool              `json:"pending_confirmation"`
	PendingAction       string            `json:"pending_action,omitempty"`
	ConfirmationID      string            `json:"confirmation_id,omitempty"`
	// RequestID names the transaction being confirmed. Unlike ConfirmationID
	// it survives retries from the failed step, so the backend can dedupe.
	RequestID string    `json:"request_id,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIdleState returns the state of a session with no active flow.
func NewIdleState(sessionID, userID string, now time.Time) *WorkflowState {
	return &WorkflowState{
		SessionID: sessionID,
		UserID:    userID,
		Flow:      FlowNone,
		Step:      StepIdle,
		Slots:     map[string]string{},
		UpdatedAt: now,
	}
}

func (s *WorkflowState) Active() bool {
	return s != nil && s.Flow != FlowNone
}

// Clone returns a deep copy so callers can mutate slots freely.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	return &cp
}
