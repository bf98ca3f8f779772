package dialogue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	bookingIDFormat = regexp.MustCompile(`^BK\d{3}$`)
	airportFormat   = regexp.MustCompile(`^[A-Z]{3}$`)
	nameFormat      = regexp.MustCompile(`^[A-Za-z][A-Za-z\s\-']*$`)
	seatFormat      = regexp.MustCompile(`^\d{1,2}[A-F]$`)
	datePattern     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

var monthAbbrev = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// dateRules are the bounds a travel date must respect.
type dateRules struct {
	today          time.Time
	minYear        int
	maxAdvanceDays int
}

// validateDate accepts a real calendar date in YYYY-MM-DD form that is after
// today, no earlier than minYear and within the booking horizon. It returns
// the date in canonical form or a message explaining the rejection.
func validateDate(value string, rules dateRules) (string, string) {
	value = strings.TrimSpace(value)
	m := datePattern.FindStringSubmatch(value)
	if m == nil {
		return "", "That doesn't look like a date. Please use YYYY-MM-DD (for example 2026-12-25)."
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	if year < rules.minYear {
		return "", fmt.Sprintf("%d is too early. Please choose a date in %d or later.", year, rules.minYear)
	}
	if month < 1 || month > 12 {
		return "", fmt.Sprintf("%d is not a valid month. Months run from 01 to 12.", month)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || d.Month() != time.Month(month) {
		if month == 2 && day == 29 {
			return "", fmt.Sprintf("%d is not a leap year, so February has only 28 days.", year)
		}
		last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
		return "", fmt.Sprintf("%s has only %d days, so day %d doesn't exist.", monthAbbrev[month], last, day)
	}

	canonical := d.Format(time.DateOnly)
	today := startOfDay(rules.today)
	if !d.After(today) {
		return "", fmt.Sprintf("%s is in the past. Today is %s, so please choose a later date.", canonical, today.Format(time.DateOnly))
	}
	if rules.maxAdvanceDays > 0 {
		horizon := today.AddDate(0, 0, rules.maxAdvanceDays)
		if d.After(horizon) {
			return "", fmt.Sprintf("%s is too far ahead. We can only book flights up to %s.", canonical, horizon.Format(time.DateOnly))
		}
	}
	return canonical, ""
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateBookingIDFormat(value string) (string, string) {
	id := strings.ToUpper(strings.TrimSpace(value))
	if !bookingIDFormat.MatchString(id) {
		return "", fmt.Sprintf("%q isn't a booking ID. Booking IDs look like BK001.", value)
	}
	return id, ""
}

func validateAirport(value, other string) (string, string) {
	code := strings.ToUpper(strings.TrimSpace(value))
	if !airportFormat.MatchString(code) {
		return "", fmt.Sprintf("%q isn't an airport I recognise. Please use a city name or a 3-letter code like JFK.", value)
	}
	if code == other {
		return "", fmt.Sprintf("The departure and destination airports can't both be %s.", code)
	}
	return code, ""
}

func validateName(value string) (string, string) {
	name := strings.Join(strings.Fields(value), " ")
	switch {
	case len(name) < 2:
		return "", "That name is too short. Please give the passenger's full name."
	case len(name) > 50:
		return "", "That name is too long. Please keep it under 50 characters."
	case !nameFormat.MatchString(name):
		return "", "Names can only contain letters, spaces, hyphens and apostrophes."
	}
	return name, ""
}

func validateSeat(value string, available []string) (string, string) {
	seat := strings.ToUpper(strings.TrimSpace(value))
	if !seatFormat.MatchString(seat) {
		return "", fmt.Sprintf("%q isn't a seat number. Seats look like 12A.", value)
	}
	for _, s := range available {
		if s == seat {
			return seat, ""
		}
	}
	return "", fmt.Sprintf("Seat %s isn't available. Please pick one of: %s.", seat, strings.Join(available, ", "))
}

// looksLikeName reports whether a whole message could be a bare passenger
// name reply.
func looksLikeName(text string) bool {
	name := strings.Join(strings.Fields(text), " ")
	if len(strings.Fields(name)) > 4 {
		return false
	}
	_, problem := validateName(name)
	return problem == ""
}
