package recommend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisor_Recommend(t *testing.T) {
	a := NewAdvisor(nil)
	economy := &domain.ExternalBooking{BookingID: "BK001", Seat: "12A"}
	premium := &domain.ExternalBooking{BookingID: "BK002", Seat: "8B"}
	business := &domain.ExternalBooking{BookingID: "BK003", Seat: "5C"}

	testCases := []struct {
		name    string
		intent  domain.Intent
		outcome Outcome
		titles  []string
	}{
		{
			name:    "cancellation policy for cancel intent",
			intent:  domain.IntentCancelBooking,
			outcome: Outcome{Flow: domain.FlowCancellation},
			titles:  []string{"Cancellation Policy"},
		},
		{
			name:    "flow supplies the topic when the intent has none",
			intent:  domain.IntentConfirm,
			outcome: Outcome{Flow: domain.FlowDateChange},
			titles:  []string{"Change Policy"},
		},
		{
			name:    "status check on economy seat",
			intent:  domain.IntentCheckStatus,
			outcome: Outcome{Booking: economy},
			titles: []string{
				"Premium Economy - Extra legroom",
				"Business Class - Full service",
				"Priority Boarding",
				"Extra Baggage",
			},
		},
		{
			name:    "status check on premium economy seat",
			intent:  domain.IntentCheckStatus,
			outcome: Outcome{Booking: premium},
			titles:  []string{"Business Class - Full service", "Priority Boarding", "Extra Baggage"},
		},
		{
			name:    "business seat has nothing to upgrade to",
			intent:  domain.IntentUpgradeSeat,
			outcome: Outcome{Flow: domain.FlowSeatUpgrade, Booking: business},
			titles:  nil,
		},
		{
			name:    "completed booking gets offers",
			intent:  domain.IntentConfirm,
			outcome: Outcome{Flow: domain.FlowBooking, Completed: true, Booking: economy},
			titles: []string{
				"Premium Economy - Extra legroom",
				"Business Class - Full service",
				"Priority Boarding",
				"Extra Baggage",
			},
		},
		{
			name:    "greeting has no recommendations",
			intent:  domain.IntentGreeting,
			outcome: Outcome{},
			titles:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := a.Recommend(tc.intent, nil, tc.outcome)
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tc.titles, titles)
		})
	}
}

func TestAdvisor_OrderedByPriorityPolicyFirst(t *testing.T) {
	table := DefaultTable()
	table.UpgradePriority = 30
	a := NewAdvisor(table)

	got := a.Recommend(domain.IntentCancelBooking, nil, Outcome{
		Booking: &domain.ExternalBooking{BookingID: "BK001", Seat: "20A"},
	})
	require.Len(t, got, 1, "cancel intent does not upsell")
	assert.Equal(t, domain.RecommendationPolicy, got[0].Kind)

	got = a.Recommend(domain.IntentChangeDate, nil, Outcome{})
	require.Len(t, got, 1)
	assert.Equal(t, domain.RecommendationPolicy, got[0].Kind)

	sorted := []domain.Recommendation{
		{Kind: domain.RecommendationUpsell, Title: "u1", Priority: 30},
		{Kind: domain.RecommendationPolicy, Title: "p1", Priority: 30},
		{Kind: domain.RecommendationUpsell, Title: "u0", Priority: 40},
		{Kind: domain.RecommendationUpsell, Title: "u2", Priority: 30},
	}
	sortRecommendations(sorted)
	var titles []string
	for _, r := range sorted {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"u0", "p1", "u1", "u2"}, titles)
}

func TestAdvisor_SeatEntityOverridesBookingSeat(t *testing.T) {
	a := NewAdvisor(nil)
	got := a.Recommend(domain.IntentUpgradeSeat,
		[]domain.Entity{{Type: domain.EntitySeat, Value: "3A"}},
		Outcome{Booking: &domain.ExternalBooking{BookingID: "BK001", Seat: "12A"}})
	assert.Empty(t, got)
}

func TestAdvisor_DisclosureAndAnswer(t *testing.T) {
	a := NewAdvisor(nil)

	text, ok := a.Disclosure(domain.FlowCancellation)
	assert.True(t, ok)
	assert.Contains(t, text, "full refund")

	_, ok = a.Disclosure(domain.FlowBooking)
	assert.False(t, ok)

	p, ok := a.Answer(domain.IntentBaggageInfo)
	assert.True(t, ok)
	assert.Equal(t, TopicBaggage, p.Topic)

	_, ok = a.Answer(domain.IntentBookFlight)
	assert.False(t, ok)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$75", FormatCents(7500))
	assert.Equal(t, "$12.50", FormatCents(1250))
	assert.Equal(t, "$0", FormatCents(0))
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	content := `
policies:
  - topic: baggage
    title: Bags
    text: One bag only.
    priority: 50
  - topic: wifi
    title: WiFi
    text: Free on all flights.
services:
  - title: Meal
    price_cents: 1200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)

	p, ok := table.Policy(TopicBaggage)
	require.True(t, ok)
	assert.Equal(t, "One bag only.", p.Text)
	assert.Equal(t, 50, p.Priority)

	_, ok = table.Policy("wifi")
	assert.True(t, ok)

	_, ok = table.Policy(TopicCancellation)
	assert.True(t, ok, "defaults are kept")

	assert.Equal(t, []Offer{{Title: "Meal", PriceCents: 1200}}, table.Services)
	assert.NotEmpty(t, table.SeatUpgrades[domain.ClassEconomy])
}

func TestLoadTable_Errors(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  - title: no topic\n"), 0o600))
	_, err = LoadTable(path)
	assert.Error(t, err)
}
