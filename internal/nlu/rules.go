package nlu

import (
	"regexp"
	"strings"

	"github.com/Domenick1991/airbot/internal/domain"
)

// Hint carries what the caller knows about the conversation so far.
type Hint struct {
	PendingConfirmation bool
	ActiveFlow          domain.Flow
	PriorIntent         domain.Intent
}

type utterance struct {
	text   string
	tokens []string
	words  map[string]struct{}
}

func newUtterance(raw string) utterance {
	text := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	text = strings.Trim(text, " .!?,;:")
	tokens := tokenize(text)
	words := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		words[t] = struct{}{}
	}
	return utterance{text: text, tokens: tokens, words: words}
}

func (u utterance) hasWord(words ...string) bool {
	for _, w := range words {
		if _, ok := u.words[w]; ok {
			return true
		}
	}
	return false
}

func (u utterance) hasPhrase(phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(u.text, p) {
			return true
		}
	}
	return false
}

// rule maps a predicate to a fixed intent. Rules are evaluated in order and
// the first match wins with confidence 1.
type rule struct {
	name   string
	intent domain.Intent
	match  func(u utterance, h Hint) bool
}

var (
	affirmatives = map[string]struct{}{
		"yes": {}, "y": {}, "yeah": {}, "yep": {}, "yup": {}, "sure": {}, "ok": {}, "okay": {},
		"confirm": {}, "confirmed": {}, "correct": {}, "proceed": {}, "go ahead": {}, "do it": {},
		"yes please": {}, "absolutely": {}, "retry": {}, "try again": {},
	}
	negatives = map[string]struct{}{
		"no": {}, "n": {}, "nope": {}, "nah": {}, "don't": {}, "do not": {}, "no thanks": {},
		"no thank you": {}, "keep it": {},
	}
	cancelBookingRef = regexp.MustCompile(`\bcancel\s+(?:booking\s+)?bk\d{3}\b`)
)

func lone(set map[string]struct{}) func(u utterance, h Hint) bool {
	return func(u utterance, _ Hint) bool {
		_, ok := set[u.text]
		return ok
	}
}

// leading resolves "yes please cancel it" style replies, but only while a
// confirmation is pending.
func leading(words ...string) func(u utterance, h Hint) bool {
	return func(u utterance, h Hint) bool {
		if !h.PendingConfirmation || len(u.tokens) == 0 {
			return false
		}
		for _, w := range words {
			if u.tokens[0] == w {
				return true
			}
		}
		return false
	}
}

var defaultRules = []rule{
	{name: "lone-affirmative", intent: domain.IntentConfirm, match: lone(affirmatives)},
	{name: "lone-negative", intent: domain.IntentDeny, match: lone(negatives)},
	{name: "leading-affirmative", intent: domain.IntentConfirm, match: leading("yes", "yeah", "yep", "sure", "confirm")},
	{name: "leading-negative", intent: domain.IntentDeny, match: leading("no", "nope", "nah")},
	{name: "abandon", intent: domain.IntentAbandon, match: func(u utterance, _ Hint) bool {
		return u.hasPhrase("nevermind", "never mind", "forget it", "start over", "cancel that", "stop this") ||
			u.text == "stop" || u.text == "cancel" || u.text == "quit" || u.text == "exit"
	}},
	{name: "cancellation-policy", intent: domain.IntentCancellationPolicy, match: func(u utterance, _ Hint) bool {
		return u.hasPhrase("cancel", "refund") && u.hasWord("policy", "policies", "rule", "rules", "fee", "fees")
	}},
	{name: "cancel-booking", intent: domain.IntentCancelBooking, match: func(u utterance, _ Hint) bool {
		return u.hasPhrase("cancel my", "cancel booking", "cancel the booking", "cancel flight", "cancel the flight",
			"cancel reservation", "cancel the reservation", "cancel a booking") || cancelBookingRef.MatchString(u.text)
	}},
	{name: "baggage", intent: domain.IntentBaggageInfo, match: func(u utterance, _ Hint) bool {
		return u.hasWord("baggage", "luggage", "bags", "bag", "suitcase")
	}},
	{name: "check-status", intent: domain.IntentCheckStatus, match: func(u utterance, _ Hint) bool {
		return u.hasWord("status") || u.hasPhrase("check my", "show my", "check booking", "my bookings",
			"booking details", "look up", "lookup", "where is my", "where's my", "is my flight", "on time",
			"happening with my")
	}},
	{name: "upgrade-seat", intent: domain.IntentUpgradeSeat, match: func(u utterance, _ Hint) bool {
		return u.hasWord("upgrade") || u.hasPhrase("better seat", "business class", "first class",
			"premium economy", "change my seat", "different seat")
	}},
	{name: "change-date", intent: domain.IntentChangeDate, match: func(u utterance, _ Hint) bool {
		if u.hasWord("reschedule", "postpone") || u.hasPhrase("new date", "change date", "switch date") {
			return true
		}
		return u.hasWord("change", "modify", "move") && u.hasWord("flight", "date", "booking", "reservation", "trip")
	}},
	{name: "pets", intent: domain.IntentPetTravel, match: func(u utterance, _ Hint) bool {
		return u.hasWord("pet", "pets", "dog", "dogs", "cat", "cats", "animal", "animals")
	}},
	{name: "children", intent: domain.IntentChildrenPolicy, match: func(u utterance, _ Hint) bool {
		return u.hasWord("child", "children", "infant", "infants", "baby", "kid", "kids", "toddler") &&
			u.hasWord("seat", "policy", "age", "travel", "fly", "allowed", "lap", "ticket")
	}},
	{name: "insurance", intent: domain.IntentInsurance, match: func(u utterance, _ Hint) bool {
		return u.hasWord("insurance", "coverage") || u.hasPhrase("trip protection", "travel protection")
	}},
	{name: "book-flight", intent: domain.IntentBookFlight, match: func(u utterance, _ Hint) bool {
		if u.hasWord("cancel", "change", "modify", "check", "status") {
			return false
		}
		return u.hasWord("book", "reserve") || u.hasPhrase("new flight", "make a reservation", "buy a ticket")
	}},
	{name: "off-topic", intent: domain.IntentOther, match: func(u utterance, _ Hint) bool {
		return u.hasWord("weather", "news", "joke", "jokes", "story", "recipe", "game", "calculate", "math",
			"translate", "movie", "restaurant", "hotel", "football")
	}},
	{name: "general-faq", intent: domain.IntentGeneralFAQ, match: func(u utterance, _ Hint) bool {
		return u.hasWord("policy", "policies", "rule", "rules", "regulation", "regulations", "allowed", "permitted")
	}},
	{name: "greeting", intent: domain.IntentGreeting, match: func(u utterance, _ Hint) bool {
		if len(u.tokens) == 0 || len(u.tokens) > 4 {
			return false
		}
		return u.hasWord("hi", "hello", "hey", "greetings") || u.hasPhrase("good morning", "good afternoon", "good evening")
	}},
	{name: "help", intent: domain.IntentHelp, match: func(u utterance, _ Hint) bool {
		return u.hasWord("help", "assistance") || u.hasPhrase("what can you do", "how does this work")
	}},
}
