package dialogue

import (
	"fmt"

	"github.com/Domenick1991/airbot/internal/domain"
)

type slotSpec struct {
	name   string
	step   domain.Step
	label  string
	prompt string
}

// flowSchema is the legal-transition table of one flow: the slots it
// collects in order, the step that collects each one and its confirm step.
type flowSchema struct {
	flow        domain.Flow
	intent      domain.Intent
	slots       []slotSpec
	confirmStep domain.Step
	action      string
}

var (
	bookingIDSlot = slotSpec{
		name:   domain.SlotBookingID,
		step:   domain.StepSelectingBooking,
		label:  "booking ID",
		prompt: "Which booking is this for? Please give me the booking ID (for example BK001).",
	}

	schemas = map[domain.Flow]*flowSchema{
		domain.FlowBooking: {
			flow:   domain.FlowBooking,
			intent: domain.IntentBookFlight,
			slots: []slotSpec{
				{name: domain.SlotOrigin, step: domain.StepCollectingOrigin, label: "departure airport",
					prompt: "Where are you flying from? A city or a 3-letter airport code works."},
				{name: domain.SlotDestination, step: domain.StepCollectingDestination, label: "destination",
					prompt: "Where are you flying to?"},
				{name: domain.SlotDate, step: domain.StepCollectingDate, label: "travel date",
					prompt: "What date would you like to travel? Please use YYYY-MM-DD."},
				{name: domain.SlotPassengerName, step: domain.StepCollectingName, label: "passenger name",
					prompt: "What is the passenger's full name?"},
			},
			confirmStep: domain.StepConfirming,
			action:      "book the flight",
		},
		domain.FlowCancellation: {
			flow:        domain.FlowCancellation,
			intent:      domain.IntentCancelBooking,
			slots:       []slotSpec{bookingIDSlot},
			confirmStep: domain.StepConfirmingCancellation,
			action:      "cancel the booking",
		},
		domain.FlowDateChange: {
			flow:   domain.FlowDateChange,
			intent: domain.IntentChangeDate,
			slots: []slotSpec{
				bookingIDSlot,
				{name: domain.SlotNewDate, step: domain.StepCollectingNewDate, label: "new travel date",
					prompt: "What new date would you like? Please use YYYY-MM-DD."},
			},
			confirmStep: domain.StepConfirmingChange,
			action:      "change the travel date",
		},
		domain.FlowSeatUpgrade: {
			flow:   domain.FlowSeatUpgrade,
			intent: domain.IntentUpgradeSeat,
			slots: []slotSpec{
				bookingIDSlot,
				{name: domain.SlotSeat, step: domain.StepSelectingSeat, label: "seat",
					prompt: "Which seat would you like?"},
			},
			confirmStep: domain.StepConfirmingUpgrade,
			action:      "change the seat",
		},
	}

	flowByIntent = map[domain.Intent]domain.Flow{
		domain.IntentBookFlight:    domain.FlowBooking,
		domain.IntentCancelBooking: domain.FlowCancellation,
		domain.IntentChangeDate:    domain.FlowDateChange,
		domain.IntentUpgradeSeat:   domain.FlowSeatUpgrade,
	}
)

func (f *flowSchema) declares(slot string) bool {
	for _, s := range f.slots {
		if s.name == slot {
			return true
		}
	}
	return false
}

func (f *flowSchema) missing(slots map[string]string) []slotSpec {
	var out []slotSpec
	for _, s := range f.slots {
		if slots[s.name] == "" {
			out = append(out, s)
		}
	}
	return out
}

// nextStep is the collecting step of the first unfilled slot, or the confirm
// step once every slot is filled.
func (f *flowSchema) nextStep(slots map[string]string) domain.Step {
	if m := f.missing(slots); len(m) > 0 {
		return m[0].step
	}
	return f.confirmStep
}

func (f *flowSchema) validStep(step domain.Step) bool {
	switch step {
	case f.confirmStep, domain.StepCommitting, domain.StepFailed, domain.StepCompleted, domain.StepAbandoned:
		return true
	}
	for _, s := range f.slots {
		if s.step == step {
			return true
		}
	}
	return false
}

// checkInvariants reports why a state is structurally invalid.
func checkInvariants(s *domain.WorkflowState) error {
	if s.Flow == domain.FlowNone {
		switch {
		case s.Step != domain.StepIdle:
			return fmt.Errorf("step %q without an active flow", s.Step)
		case len(s.Slots) > 0:
			return fmt.Errorf("%d slots without an active flow", len(s.Slots))
		case s.PendingConfirmation:
			return fmt.Errorf("pending confirmation without an active flow")
		}
		return nil
	}

	schema, ok := schemas[s.Flow]
	if !ok {
		return fmt.Errorf("unknown flow %q", s.Flow)
	}
	if !schema.validStep(s.Step) {
		return fmt.Errorf("step %q is not part of flow %q", s.Step, s.Flow)
	}
	for name := range s.Slots {
		if !schema.declares(name) {
			return fmt.Errorf("slot %q is not declared by flow %q", name, s.Flow)
		}
	}
	if s.PendingConfirmation != (s.Step == schema.confirmStep) {
		return fmt.Errorf("pending confirmation %t at step %q", s.PendingConfirmation, s.Step)
	}
	if s.Step == schema.confirmStep && len(schema.missing(s.Slots)) > 0 {
		return fmt.Errorf("confirm step %q with unfilled slots", s.Step)
	}
	return nil
}
