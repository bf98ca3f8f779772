// Package recommend annotates chat replies with policy notes and upsell
// offers. Everything here is a pure function of its inputs and the table.
package recommend

import (
	"fmt"
	"sort"

	"github.com/Domenick1991/airbot/internal/domain"
)

const maxPerGroup = 2

// Outcome is what the workflow engine did with the message.
type Outcome struct {
	Flow      domain.Flow
	Step      domain.Step
	Completed bool
	Booking   *domain.ExternalBooking
}

type Advisor struct {
	table *Table
}

func NewAdvisor(table *Table) *Advisor {
	if table == nil {
		table = DefaultTable()
	}
	return &Advisor{table: table}
}

var intentTopics = map[domain.Intent]Topic{
	domain.IntentCancelBooking:      TopicCancellation,
	domain.IntentCancellationPolicy: TopicCancellation,
	domain.IntentChangeDate:         TopicChange,
	domain.IntentBaggageInfo:        TopicBaggage,
	domain.IntentPetTravel:          TopicPets,
	domain.IntentChildrenPolicy:     TopicChildren,
	domain.IntentInsurance:          TopicInsurance,
	domain.IntentGeneralFAQ:         TopicGeneral,
}

var flowTopics = map[domain.Flow]Topic{
	domain.FlowCancellation: TopicCancellation,
	domain.FlowDateChange:   TopicChange,
}

// TopicFor returns the policy topic an informational intent is about.
func TopicFor(intent domain.Intent) (Topic, bool) {
	t, ok := intentTopics[intent]
	return t, ok
}

// Answer returns the policy text for an informational intent.
func (a *Advisor) Answer(intent domain.Intent) (Policy, bool) {
	topic, ok := intentTopics[intent]
	if !ok {
		return Policy{}, false
	}
	return a.table.Policy(topic)
}

// Disclosure is the policy text shown at the confirm step of flows that
// carry a fee or refund.
func (a *Advisor) Disclosure(flow domain.Flow) (string, bool) {
	topic, ok := flowTopics[flow]
	if !ok {
		return "", false
	}
	p, ok := a.table.Policy(topic)
	if !ok {
		return "", false
	}
	return p.Text, true
}

func (a *Advisor) Recommend(intent domain.Intent, entities []domain.Entity, outcome Outcome) []domain.Recommendation {
	var out []domain.Recommendation

	topic, ok := intentTopics[intent]
	if !ok {
		topic, ok = flowTopics[outcome.Flow]
	}
	if ok {
		if p, found := a.table.Policy(topic); found {
			out = append(out, domain.Recommendation{
				Kind:     domain.RecommendationPolicy,
				Title:    p.Title,
				Text:     p.Text,
				Priority: p.Priority,
			})
		}
	}

	booking := outcome.Booking
	if booking != nil {
		bookingDone := outcome.Flow == domain.FlowBooking && outcome.Completed
		if intent == domain.IntentCheckStatus || intent == domain.IntentUpgradeSeat || bookingDone {
			out = append(out, a.seatUpgrades(booking, entities)...)
		}
		if intent == domain.IntentCheckStatus || bookingDone {
			out = append(out, a.services()...)
		}
	}

	sortRecommendations(out)
	return out
}

func (a *Advisor) seatUpgrades(booking *domain.ExternalBooking, entities []domain.Entity) []domain.Recommendation {
	seat := booking.Seat
	for _, e := range entities {
		if e.Type == domain.EntitySeat {
			seat = e.Value
			break
		}
	}
	offers := a.table.SeatUpgrades[domain.SeatClass(seat)]
	out := make([]domain.Recommendation, 0, maxPerGroup)
	for _, o := range offers {
		if len(out) == maxPerGroup {
			break
		}
		out = append(out, domain.Recommendation{
			Kind:     domain.RecommendationUpsell,
			Title:    o.Title,
			Text:     fmt.Sprintf("%s for %s on booking %s", o.Title, FormatCents(o.PriceCents), booking.BookingID),
			Priority: a.table.UpgradePriority,
		})
	}
	return out
}

func (a *Advisor) services() []domain.Recommendation {
	out := make([]domain.Recommendation, 0, maxPerGroup)
	for _, o := range a.table.Services {
		if len(out) == maxPerGroup {
			break
		}
		out = append(out, domain.Recommendation{
			Kind:     domain.RecommendationUpsell,
			Title:    o.Title,
			Text:     fmt.Sprintf("Add %s for %s", o.Title, FormatCents(o.PriceCents)),
			Priority: a.table.ServicePriority,
		})
	}
	return out
}

func FormatCents(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

var kindRank = map[domain.RecommendationKind]int{
	domain.RecommendationPolicy: 0,
	domain.RecommendationUpsell: 1,
}

func sortRecommendations(recs []domain.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return kindRank[recs[i].Kind] < kindRank[recs[j].Kind]
	})
}
