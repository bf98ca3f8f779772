package nlu

import "github.com/Domenick1991/airbot/internal/domain"

// canonicalUtterances are the reference examples each intent is matched
// against when no rule fires.
var canonicalUtterances = map[domain.Intent][]string{
	domain.IntentBookFlight: {
		"I want to book a flight",
		"Book a flight for me",
		"I need to make a reservation",
		"Can I book a ticket",
	},
	domain.IntentCancelBooking: {
		"Cancel my booking",
		"I want to cancel my flight",
		"Cancel reservation",
		"I need to cancel my ticket",
	},
	domain.IntentCheckStatus: {
		"What's my booking status",
		"Check my reservation",
		"Show my flight details",
		"Flight status",
		"Where is my reservation",
		"Is my flight on time",
		"What's happening with my flight",
		"Is my booking still confirmed",
	},
	domain.IntentChangeDate: {
		"Change my flight",
		"Reschedule my booking",
		"I want to modify my reservation",
		"Can I change my flight date",
	},
	domain.IntentUpgradeSeat: {
		"Upgrade my seat",
		"I want a better seat",
		"Can I get business class",
		"Upgrade to first class",
	},
	domain.IntentBaggageInfo: {
		"Baggage policy",
		"How much luggage can I bring",
		"Baggage allowance",
		"What about checked bags",
	},
	domain.IntentCancellationPolicy: {
		"What's your cancellation policy",
		"Can I get a refund",
		"Cancellation rules",
		"How do I cancel",
	},
	domain.IntentPetTravel: {
		"Can I bring my pet",
		"Are pets allowed on flights",
		"Pet travel policy",
		"Flying with a dog",
	},
	domain.IntentChildrenPolicy: {
		"Do children need their own seat",
		"Infant seating policy",
		"Can children sit on my lap",
		"Special seats for children",
	},
	domain.IntentInsurance: {
		"Travel insurance",
		"Flight insurance policy",
		"Trip protection",
		"Insurance coverage",
	},
	domain.IntentGeneralFAQ: {
		"What are your policies",
		"Tell me about your rules",
		"What's allowed on flights",
		"General information",
	},
	domain.IntentGreeting: {
		"Hello",
		"Hi",
		"Hey there",
		"Good morning",
	},
	domain.IntentHelp: {
		"Help me",
		"What can you do",
		"I need assistance",
		"How does this work",
	},
}

// intentOrder fixes iteration order so ties resolve the same way every run.
var intentOrder = []domain.Intent{
	domain.IntentBookFlight,
	domain.IntentCancelBooking,
	domain.IntentCheckStatus,
	domain.IntentChangeDate,
	domain.IntentUpgradeSeat,
	domain.IntentBaggageInfo,
	domain.IntentCancellationPolicy,
	domain.IntentPetTravel,
	domain.IntentChildrenPolicy,
	domain.IntentInsurance,
	domain.IntentGeneralFAQ,
	domain.IntentGreeting,
	domain.IntentHelp,
}
