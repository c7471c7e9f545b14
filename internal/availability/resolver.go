// Package availability computes which appointment start times a day offers for
// a service of a given length.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/booking-widget/internal/calendar"
)

// CellStatus marks a schedule cell as bookable or taken.
type CellStatus string

const (
	CellFree CellStatus = "FREE"
	CellBusy CellStatus = "BUSY"
)

// DayStatus marks whether the provider works on a date.
type DayStatus string

const (
	DayWork DayStatus = "WORK"
	DayOff  DayStatus = "OFF"
)

// Bucket boundaries, as minutes since midnight.
const (
	dayStartsAt     = 12 * 60
	eveningStartsAt = 18 * 60
)

// TimeCell is one fixed-interval slot of a provider's day.
type TimeCell struct {
	Time   string     `json:"time"`
	Status CellStatus `json:"status"`
}

// DaySchedule is the per-date cell table for a provider.
type DaySchedule struct {
	Date   string     `json:"date"`
	Status DayStatus  `json:"status"`
	Cells  []TimeCell `json:"cells"`
}

// Buckets groups eligible start times by part of day, each ascending.
type Buckets struct {
	Morning []string `json:"morning"`
	Day     []string `json:"day"`
	Evening []string `json:"evening"`
}

func emptyBuckets() Buckets {
	return Buckets{Morning: []string{}, Day: []string{}, Evening: []string{}}
}

// Empty reports the "no availability" state.
func (b Buckets) Empty() bool {
	return len(b.Morning) == 0 && len(b.Day) == 0 && len(b.Evening) == 0
}

// Len returns the number of eligible start times across all buckets.
func (b Buckets) Len() int {
	return len(b.Morning) + len(b.Day) + len(b.Evening)
}

// Contains reports whether t ("HH:MM") is one of the eligible start times.
func (b Buckets) Contains(t string) bool {
	m, err := ParseClock(t)
	if err != nil {
		return false
	}
	want := FormatClock(m)
	for _, group := range [][]string{b.Morning, b.Day, b.Evening} {
		for _, v := range group {
			if v == want {
				return true
			}
		}
	}
	return false
}

// Resolve returns the start times on schedule at which a service of
// requiredDurationMinutes fits into an unbroken run of free cells spaced
// slotIntervalMinutes apart. When isToday is set, start times earlier than
// nowMinutesOfDay are dropped. A nil or non-working schedule yields empty
// buckets. Cells with malformed times are ignored.
func Resolve(schedule *DaySchedule, requiredDurationMinutes, slotIntervalMinutes int, isToday bool, nowMinutesOfDay int) Buckets {
	out := emptyBuckets()
	if schedule == nil || schedule.Status != DayWork || slotIntervalMinutes <= 0 {
		return out
	}

	free := make(map[int]struct{}, len(schedule.Cells))
	for _, cell := range schedule.Cells {
		if cell.Status != CellFree {
			continue
		}
		m, err := ParseClock(cell.Time)
		if err != nil {
			continue
		}
		free[m] = struct{}{}
	}

	slots := (requiredDurationMinutes + slotIntervalMinutes - 1) / slotIntervalMinutes
	if slots < 1 {
		slots = 1
	}

	starts := make([]int, 0, len(free))
	for start := range free {
		if isToday && start < nowMinutesOfDay {
			continue
		}
		if fits(free, start, slots, slotIntervalMinutes) {
			starts = append(starts, start)
		}
	}
	sort.Ints(starts)

	for _, start := range starts {
		label := FormatClock(start)
		switch {
		case start < dayStartsAt:
			out.Morning = append(out.Morning, label)
		case start < eveningStartsAt:
			out.Day = append(out.Day, label)
		default:
			out.Evening = append(out.Evening, label)
		}
	}
	return out
}

func fits(free map[int]struct{}, start, slots, interval int) bool {
	for j := 0; j < slots; j++ {
		if _, ok := free[start+j*interval]; !ok {
			return false
		}
	}
	return true
}

// Lookup fetches the schedule for a "YYYY-MM-DD" date. A nil schedule with a
// nil error means nothing is scheduled that day.
type Lookup interface {
	DaySchedule(ctx context.Context, date string) (*DaySchedule, error)
}

// ResolveForDay looks up day's schedule and resolves it against now. Days
// before now's calendar date have no availability. now should already be in
// the widget's time zone.
func ResolveForDay(ctx context.Context, schedules Lookup, day calendar.CalendarDay, now time.Time, requiredDurationMinutes, slotIntervalMinutes int) (Buckets, error) {
	today := calendar.CalendarDay{Day: now.Day(), Month: int(now.Month()) - 1, Year: now.Year()}
	if day.Before(today) {
		return emptyBuckets(), nil
	}

	schedule, err := schedules.DaySchedule(ctx, day.Key())
	if err != nil {
		return Buckets{}, fmt.Errorf("availability: lookup %s: %w", day.Key(), err)
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	return Resolve(schedule, requiredDurationMinutes, slotIntervalMinutes, day.Same(today), nowMinutes), nil
}
