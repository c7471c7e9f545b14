package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// ParseClock parses a 24h "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("availability: malformed time %q", s)
	}
	if !digits(hh) || !digits(mm) {
		return 0, fmt.Errorf("availability: malformed time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return 0, fmt.Errorf("availability: malformed hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return 0, fmt.Errorf("availability: malformed minute in %q", s)
	}
	return h*60 + m, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatClock renders minutes since midnight as "HH:MM". Values outside a
// single day wrap around modulo 24 hours.
func FormatClock(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
