package nlu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Domenick1991/airbot/internal/domain"
)

type candidate struct {
	domain.Entity
	priority int
}

func (c candidate) length() int { return c.End - c.Start }

type entityExtractor func(text string) []candidate

var (
	bookingIDPattern    = regexp.MustCompile(`(?i)\bBK\d{3}\b`)
	flightNumberPattern = regexp.MustCompile(`(?i)\b[A-Z]{2}\d{3,4}\b`)
	seatPattern         = regexp.MustCompile(`(?i)\b\d{1,2}[A-F]\b`)
	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	usDatePattern       = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthFirstPattern   = regexp.MustCompile(`(?i)\b(` + monthAlternation + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dayFirstPattern     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthAlternation + `)\.?,?\s+(\d{4})\b`)
	passengerPattern    = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine)\s+(?:passengers?|people|persons?|adults?|travell?ers?|tickets?)\b`)
	iataPattern         = regexp.MustCompile(`\b[A-Za-z]{3}\b`)
	namePattern         = regexp.MustCompile(`\b(?:for|[Pp]assenger(?:\s+name)?(?:\s+is)?|[Nn]ame\s+is|named|[Tt]raveler(?:\s+is)?)\s+([A-Z][a-z'\-]+(?:\s+[A-Z][a-z'\-]+){0,3})`)
	cityPattern         *regexp.Regexp
)

const monthAlternation = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var numberWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9",
}

// cityCodes maps city names users type to the airport code the backend uses.
var cityCodes = map[string]string{
	"chennai": "MAA", "delhi": "DEL", "mumbai": "BOM", "bangalore": "BLR", "bengaluru": "BLR",
	"coimbatore": "CJB", "kolkata": "CCU", "hyderabad": "HYD", "pune": "PNQ",
	"new york": "JFK", "newyork": "JFK", "las vegas": "LAS", "los angeles": "LAX", "san francisco": "SFO",
	"chicago": "ORD", "miami": "MIA", "boston": "BOS", "seattle": "SEA", "atlanta": "ATL",
	"dallas": "DFW", "houston": "IAH", "washington": "DCA", "philadelphia": "PHL", "phoenix": "PHX",
	"denver": "DEN", "london": "LHR", "paris": "CDG",
}

var knownAirports = map[string]struct{}{}

// notAirports are three-letter words that show up in upper case without
// being airport codes.
var notAirports = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "YES": {}, "NOT": {}, "ANY": {}, "ALL": {}, "CAN": {}, "YOU": {},
	"OUR": {}, "GET": {}, "NEW": {}, "TWO": {}, "ONE": {}, "SIX": {}, "TEN": {}, "NOW": {}, "HOW": {},
	"WHY": {}, "WHO": {}, "BUT": {}, "HER": {}, "HIS": {}, "ARE": {}, "WAS": {}, "OFF": {}, "OUT": {},
	"PLS": {}, "THX": {}, "FLY": {}, "BAG": {}, "PET": {}, "DOG": {}, "CAT": {}, "USD": {},
}

var monthNames = map[string]struct{}{}

func init() {
	names := make([]string, 0, len(cityCodes))
	for name, code := range cityCodes {
		names = append(names, name)
		knownAirports[code] = struct{}{}
	}
	for _, code := range []string{"JFK", "LAX", "ORD", "SFO", "BOS", "MIA", "SEA", "ATL", "DFW", "DEN", "LGA", "EWR"} {
		knownAirports[code] = struct{}{}
	}
	// longest first so "new york" wins over shorter alternatives
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`)
	}
	cityPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)

	for _, m := range []string{"January", "February", "March", "April", "May", "June", "July",
		"August", "September", "October", "November", "December"} {
		monthNames[m] = struct{}{}
		monthNames[m[:3]] = struct{}{}
	}
}

var defaultEntityExtractors = []entityExtractor{
	extractBookingIDs,
	extractDates,
	extractPassengerCounts,
	extractAirports,
	extractFlightNumbers,
	extractSeats,
	extractNames,
}

// ExtractEntities runs every extractor over text and keeps non-overlapping
// matches, preferring longer spans, returned in text order.
func ExtractEntities(text string) []domain.Entity {
	var all []candidate
	for _, extract := range defaultEntityExtractors {
		all = append(all, extract(text)...)
	}
	return resolveOverlaps(all)
}

func resolveOverlaps(all []candidate) []domain.Entity {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].length() != all[j].length() {
			return all[i].length() > all[j].length()
		}
		if all[i].priority != all[j].priority {
			return all[i].priority < all[j].priority
		}
		return all[i].Start < all[j].Start
	})

	kept := make([]candidate, 0, len(all))
	for _, c := range all {
		overlaps := false
		for _, k := range kept {
			if c.Start < k.End && k.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	out := make([]domain.Entity, len(kept))
	for i, k := range kept {
		out[i] = k.Entity
	}
	return out
}

func newCandidate(t domain.EntityType, value, text string, start, end, priority int) candidate {
	return candidate{
		Entity:   domain.Entity{Type: t, Value: value, Raw: text[start:end], Start: start, End: end},
		priority: priority,
	}
}

func extractBookingIDs(text string) []candidate {
	var out []candidate
	for _, loc := range bookingIDPattern.FindAllStringIndex(text, -1) {
		out = append(out, newCandidate(domain.EntityBookingID, strings.ToUpper(text[loc[0]:loc[1]]), text, loc[0], loc[1], 0))
	}
	return out
}

func extractFlightNumbers(text string) []candidate {
	var out []candidate
	for _, loc := range flightNumberPattern.FindAllStringIndex(text, -1) {
		out = append(out, newCandidate(domain.EntityFlightNumber, strings.ToUpper(text[loc[0]:loc[1]]), text, loc[0], loc[1], 4))
	}
	return out
}

func extractSeats(text string) []candidate {
	var out []candidate
	for _, loc := range seatPattern.FindAllStringIndex(text, -1) {
		out = append(out, newCandidate(domain.EntitySeat, strings.ToUpper(text[loc[0]:loc[1]]), text, loc[0], loc[1], 5))
	}
	return out
}

func extractDates(text string) []candidate {
	var out []candidate
	add := func(loc []int, y, m, d string) {
		year, _ := strconv.Atoi(y)
		month, _ := strconv.Atoi(m)
		day, _ := strconv.Atoi(d)
		// the calendar check belongs to slot validation, so impossible
		// days are still reported here
		value := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		out = append(out, newCandidate(domain.EntityDate, value, text, loc[0], loc[1], 1))
	}

	for _, m := range isoDatePattern.FindAllStringSubmatchIndex(text, -1) {
		add(m, text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]])
	}
	for _, m := range usDatePattern.FindAllStringSubmatchIndex(text, -1) {
		add(m, text[m[6]:m[7]], text[m[2]:m[3]], text[m[4]:m[5]])
	}
	for _, m := range monthFirstPattern.FindAllStringSubmatchIndex(text, -1) {
		add(m, text[m[6]:m[7]], monthNumber(text[m[2]:m[3]]), text[m[4]:m[5]])
	}
	for _, m := range dayFirstPattern.FindAllStringSubmatchIndex(text, -1) {
		add(m, text[m[6]:m[7]], monthNumber(text[m[4]:m[5]]), text[m[2]:m[3]])
	}
	return out
}

func monthNumber(name string) string {
	n := months[strings.ToLower(name)[:3]]
	return strconv.Itoa(n)
}

func extractPassengerCounts(text string) []candidate {
	var out []candidate
	for _, m := range passengerPattern.FindAllStringSubmatchIndex(text, -1) {
		n := strings.ToLower(text[m[2]:m[3]])
		if w, ok := numberWords[n]; ok {
			n = w
		}
		if v, err := strconv.Atoi(n); err != nil || v <= 0 {
			continue
		}
		out = append(out, newCandidate(domain.EntityPassengerCount, n, text, m[0], m[1], 2))
	}
	return out
}

func extractAirports(text string) []candidate {
	var out []candidate
	for _, loc := range cityPattern.FindAllStringIndex(text, -1) {
		name := strings.Join(strings.Fields(strings.ToLower(text[loc[0]:loc[1]])), " ")
		code := cityCodes[name]
		out = append(out, newCandidate(airportRole(text, loc[0]), code, text, loc[0], loc[1], 3))
	}
	for _, loc := range iataPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		code := strings.ToUpper(raw)
		role := airportRole(text, loc[0])
		if raw != code {
			// lower-case codes only count right after from/to and when known
			if _, ok := knownAirports[code]; !ok || role == domain.EntityAirport {
				continue
			}
		}
		if _, skip := notAirports[code]; skip {
			continue
		}
		out = append(out, newCandidate(role, code, text, loc[0], loc[1], 3))
	}
	return out
}

// airportRole looks at the word before an airport mention.
func airportRole(text string, start int) domain.EntityType {
	words := strings.Fields(strings.ToLower(text[:start]))
	if len(words) == 0 {
		return domain.EntityAirport
	}
	switch words[len(words)-1] {
	case "from":
		return domain.EntityOrigin
	case "to", "into":
		return domain.EntityDestination
	default:
		return domain.EntityAirport
	}
}

func extractNames(text string) []candidate {
	var out []candidate
	for _, m := range namePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		first := strings.Fields(text[start:end])[0]
		if _, isMonth := monthNames[first]; isMonth {
			continue
		}
		if _, isCity := cityCodes[strings.ToLower(text[start:end])]; isCity {
			continue
		}
		if _, isCity := cityCodes[strings.ToLower(first)]; isCity {
			continue
		}
		out = append(out, newCandidate(domain.EntityPassengerName, text[start:end], text, start, end, 6))
	}
	return out
}
