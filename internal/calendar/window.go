// Package calendar builds the scrollable window of days shown by the booking widget.
package calendar

import (
	"fmt"
	"time"
)

// DefaultActiveDays is how far ahead the widget lets a client book.
const DefaultActiveDays = 60

// CalendarDay is one cell of the day strip. Month is zero-based (0 = January).
type CalendarDay struct {
	Day          int    `json:"day"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	WeekdayLabel string `json:"weekday_label"`
	IsPadding    bool   `json:"is_padding"`
}

// Key returns the "YYYY-MM-DD" form used to look up a day schedule.
func (d CalendarDay) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month+1, d.Day)
}

// Same reports whether both values identify the same calendar date.
func (d CalendarDay) Same(other CalendarDay) bool {
	return d.Day == other.Day && d.Month == other.Month && d.Year == other.Year
}

// In returns midnight of the day in loc.
func (d CalendarDay) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, time.Month(d.Month+1), d.Day, 0, 0, 0, 0, loc)
}

// Before reports whether d is strictly earlier than other.
func (d CalendarDay) Before(other CalendarDay) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// ParseKey parses "YYYY-MM-DD" into a CalendarDay without a weekday label.
func ParseKey(key string) (CalendarDay, error) {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return CalendarDay{}, fmt.Errorf("calendar: parse date %q: %w", key, err)
	}
	return CalendarDay{Day: t.Day(), Month: int(t.Month()) - 1, Year: t.Year()}, nil
}

// Generator produces day windows labelled for one locale.
type Generator struct {
	labels *Labels
}

// NewGenerator creates a generator for the given locale tag.
func NewGenerator(locale string) *Generator {
	return &Generator{labels: NewLabels(locale)}
}

// Labels exposes the locale labels used by the generator.
func (g *Generator) Labels() *Labels {
	return g.labels
}

// Generate returns activeDayCount selectable days starting at the given date
// (month is zero-based). When padToWeek is set the window is widened with
// non-selectable days back to the preceding Monday and forward to the
// following Sunday.
func (g *Generator) Generate(startYear, startMonth, startDay, activeDayCount int, padToWeek bool) []CalendarDay {
	if activeDayCount < 0 {
		activeDayCount = 0
	}

	start := time.Date(startYear, time.Month(startMonth+1), startDay, 0, 0, 0, 0, time.UTC)
	days := make([]CalendarDay, 0, activeDayCount+12)

	if padToWeek {
		lead := (int(start.Weekday()) + 6) % 7 // days since Monday
		for i := lead; i > 0; i-- {
			days = append(days, g.day(start.AddDate(0, 0, -i), true))
		}
	}

	year, month, day := startYear, startMonth, startDay
	for generated := 0; generated < activeDayCount; {
		inMonth := daysIn(year, month)
		for ; day <= inMonth && generated < activeDayCount; day++ {
			days = append(days, g.day(time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC), false))
			generated++
		}
		day = 1
		month = (month + 1) % 12
		if month == 0 {
			year++
		}
	}

	if padToWeek {
		last := start.AddDate(0, 0, activeDayCount-1)
		trail := (7 - int(last.Weekday())) % 7 // days until Sunday
		for i := 1; i <= trail; i++ {
			days = append(days, g.day(last.AddDate(0, 0, i), true))
		}
	}

	return days
}

// Window generates a window anchored on the calendar date of now, in now's location.
func (g *Generator) Window(now time.Time, activeDayCount int, padToWeek bool) []CalendarDay {
	return g.Generate(now.Year(), int(now.Month())-1, now.Day(), activeDayCount, padToWeek)
}

// DayOf returns the labelled, selectable CalendarDay for t's calendar date.
func (g *Generator) DayOf(t time.Time) CalendarDay {
	return g.day(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), false)
}

// Label fills in the weekday label of d.
func (g *Generator) Label(d CalendarDay) CalendarDay {
	d.WeekdayLabel = g.labels.Weekday(d.In(time.UTC).Weekday())
	return d
}

func (g *Generator) day(t time.Time, padding bool) CalendarDay {
	return CalendarDay{
		Day:          t.Day(),
		Month:        int(t.Month()) - 1,
		Year:         t.Year(),
		WeekdayLabel: g.labels.Weekday(t.Weekday()),
		IsPadding:    padding,
	}
}

// daysIn returns the number of days in a zero-based month.
func daysIn(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}
