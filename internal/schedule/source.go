// Package schedule loads per-provider day schedules from Postgres, Redis or
// seed files.
package schedule

import (
	"context"

	"github.com/wolfman30/booking-widget/internal/availability"
)

// Source fetches a provider's schedule for a "YYYY-MM-DD" date. A nil
// schedule with a nil error means the provider does not work that day.
type Source interface {
	DaySchedule(ctx context.Context, providerID, date string) (*availability.DaySchedule, error)
}

// Bind narrows a Source to one provider.
func Bind(src Source, providerID string) availability.Lookup {
	return providerLookup{src: src, providerID: providerID}
}

type providerLookup struct {
	src        Source
	providerID string
}

func (l providerLookup) DaySchedule(ctx context.Context, date string) (*availability.DaySchedule, error) {
	return l.src.DaySchedule(ctx, l.providerID, date)
}
