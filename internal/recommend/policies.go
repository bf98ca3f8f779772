package recommend

import (
	"fmt"
	"os"

	"github.com/Domenick1991/airbot/internal/domain"
	"gopkg.in/yaml.v3"
)

type Topic string

const (
	TopicCancellation Topic = "cancellation"
	TopicChange       Topic = "change"
	TopicBaggage      Topic = "baggage"
	TopicPets         Topic = "pets"
	TopicChildren     Topic = "children"
	TopicInsurance    Topic = "insurance"
	TopicGeneral      Topic = "general"
)

type Policy struct {
	Topic    Topic  `yaml:"topic"`
	Title    string `yaml:"title"`
	Text     string `yaml:"text"`
	Priority int    `yaml:"priority"`
}

type Offer struct {
	Title      string `yaml:"title"`
	PriceCents int64  `yaml:"price_cents"`
}

// Table is the read-only policy and offer data the advisor works from.
type Table struct {
	Policies     []Policy           `yaml:"policies"`
	SeatUpgrades map[string][]Offer `yaml:"seat_upgrades"`
	Services     []Offer            `yaml:"services"`

	UpgradePriority int `yaml:"upgrade_priority"`
	ServicePriority int `yaml:"service_priority"`
}

func (t *Table) Policy(topic Topic) (Policy, bool) {
	for _, p := range t.Policies {
		if p.Topic == topic {
			return p, true
		}
	}
	return Policy{}, false
}

func DefaultTable() *Table {
	return &Table{
		Policies: []Policy{
			{
				Topic:    TopicCancellation,
				Title:    "Cancellation Policy",
				Text:     "Flights can be cancelled up to 24 hours before departure for a full refund. Cancellations within 24 hours incur a $50 fee.",
				Priority: 30,
			},
			{
				Topic:    TopicChange,
				Title:    "Change Policy",
				Text:     "Flight changes are allowed up to 2 hours before departure. Change fees vary by ticket type: $0 for flexible tickets, $75 for standard tickets.",
				Priority: 30,
			},
			{
				Topic:    TopicBaggage,
				Title:    "Baggage Policy",
				Text:     "Each passenger is allowed 1 carry-on bag (22x14x9 inches) and 1 personal item. Checked bags cost $30 for the first bag, $40 for the second.",
				Priority: 30,
			},
			{
				Topic:    TopicPets,
				Title:    "Pet Travel",
				Text:     "Small cats and dogs may travel in the cabin in an approved carrier that fits under the seat for a $125 fee each way. Trained service animals fly free.",
				Priority: 20,
			},
			{
				Topic:    TopicChildren,
				Title:    "Children and Infants",
				Text:     "Infants under 2 may travel on an adult's lap, one per adult, and need their own ticket. Children 2 and older need a purchased seat. FAA-approved car seats are allowed.",
				Priority: 20,
			},
			{
				Topic:    TopicInsurance,
				Title:    "Travel Insurance",
				Text:     "Trip protection costs $29-89 per person and covers trip cancellation, interruption, delays over 6 hours, baggage loss and emergency medical care. Buy within 24 hours of booking for full coverage.",
				Priority: 20,
			},
			{
				Topic:    TopicGeneral,
				Title:    "Travel Information",
				Text:     "Bookings can be cancelled up to 24 hours before departure for a full refund, changed up to 2 hours before departure, and every passenger gets 1 carry-on bag plus 1 personal item.",
				Priority: 10,
			},
		},
		SeatUpgrades: map[string][]Offer{
			domain.ClassEconomy: {
				{Title: "Premium Economy - Extra legroom", PriceCents: 5000},
				{Title: "Business Class - Full service", PriceCents: 20000},
			},
			domain.ClassPremiumEconomy: {
				{Title: "Business Class - Full service", PriceCents: 15000},
			},
		},
		Services: []Offer{
			{Title: "Priority Boarding", PriceCents: 2500},
			{Title: "Extra Baggage", PriceCents: 4000},
			{Title: "Travel Insurance", PriceCents: 3500},
			{Title: "Airport Lounge Access", PriceCents: 6000},
			{Title: "In-flight WiFi", PriceCents: 1500},
		},
		UpgradePriority: 20,
		ServicePriority: 10,
	}
}

// LoadTable reads a policy table from YAML. Sections the file leaves out keep
// their defaults.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policies: %w", err)
	}
	var loaded Table
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}

	t := DefaultTable()
	for _, p := range loaded.Policies {
		if p.Topic == "" || p.Text == "" {
			return nil, fmt.Errorf("parse policies: policy %q needs a topic and text", p.Title)
		}
		t.upsert(p)
	}
	if loaded.SeatUpgrades != nil {
		t.SeatUpgrades = loaded.SeatUpgrades
	}
	if loaded.Services != nil {
		t.Services = loaded.Services
	}
	if loaded.UpgradePriority != 0 {
		t.UpgradePriority = loaded.UpgradePriority
	}
	if loaded.ServicePriority != 0 {
		t.ServicePriority = loaded.ServicePriority
	}
	return t, nil
}

func (t *Table) upsert(p Policy) {
	for i := range t.Policies {
		if t.Policies[i].Topic == p.Topic {
			t.Policies[i] = p
			return
		}
	}
	t.Policies = append(t.Policies, p)
}
