package domain

type Intent string

const (
	IntentBookFlight         Intent = "book_flight"
	IntentCheckStatus        Intent = "check_status"
	IntentCancelBooking      Intent = "cancel_booking"
	IntentChangeDate         Intent = "change_date"
	IntentUpgradeSeat        Intent = "upgrade_seat"
	IntentConfirm            Intent = "confirm"
	IntentDeny               Intent = "deny"
	IntentAbandon            Intent = "abandon"
	IntentGreeting           Intent = "greeting"
	IntentHelp               Intent = "help"
	IntentCancellationPolicy Intent = "cancellation_policy"
	IntentBaggageInfo        Intent = "baggage_info"
	IntentPetTravel          Intent = "pet_travel"
	IntentChildrenPolicy     Intent = "children_policy"
	IntentInsurance          Intent = "insurance"
	IntentGeneralFAQ         Intent = "general_faq"
	IntentOther              Intent = "other"
	IntentUnknown            Intent = "unknown"
)

type EntityType string

const (
	EntityBookingID      EntityType = "booking_id"
	EntityFlightNumber   EntityType = "flight_number"
	EntitySeat           EntityType = "seat"
	EntityDate           EntityType = "date"
	EntityAirport        EntityType = "airport"
	EntityOrigin         EntityType = "origin"
	EntityDestination    EntityType = "destination"
	EntityPassengerCount EntityType = "passenger_count"
	EntityPassengerName  EntityType = "passenger_name"
)

// Entity is a typed value found in a message. Start and End are byte
// offsets of Raw within the original text.
type Entity struct {
	Type  EntityType `json:"type"`
	Value string     `json:"value"`
	Raw   string     `json:"raw_span"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

type ClassificationSource string

const (
	SourceRule      ClassificationSource = "rule"
	SourceEmbedding ClassificationSource = "embedding"
	SourceNone      ClassificationSource = "none"
)

// Classification is the extractor's verdict on one message. Margin is how
// far the winning intent scored above the runner-up; rule matches carry 1.
type Classification struct {
	Intent     Intent
	Confidence float64
	Margin     float64
	Entities   []Entity
	Source     ClassificationSource
}

// First returns the first entity of type t.
func (c Classification) First(t EntityType) (Entity, bool) {
	for _, e := range c.Entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}

type RecommendationKind string

const (
	RecommendationPolicy RecommendationKind = "policy"
	RecommendationUpsell RecommendationKind = "upsell"
)

type Recommendation struct {
	Kind     RecommendationKind `json:"kind"`
	Title    string             `json:"title,omitempty"`
	Text     string             `json:"text"`
	Priority int                `json:"priority"`
}
