package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/booking-widget/internal/calendar"
)

// Snapshot is the serialisable view of a session, including derived values.
type Snapshot struct {
	ID              string                `json:"id"`
	CreatedAt       time.Time             `json:"created_at"`
	SelectedDate    *calendar.CalendarDay `json:"selected_date"`
	SelectedTime    *string               `json:"selected_time"`
	EndTime         *string               `json:"end_time"`
	Services        []ServiceItem         `json:"services"`
	DurationMinutes int                   `json:"duration_minutes"`
	TotalPrice      decimal.Decimal       `json:"total_price"`
	Provider        Provider              `json:"provider"`
	Venue           Venue                 `json:"venue"`
	Client          Client                `json:"client"`
	RemindMinutes   int                   `json:"remind_minutes"`
	Submissible     bool                  `json:"submissible"`
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:              s.id,
		CreatedAt:       s.createdAt,
		Services:        s.Services(),
		DurationMinutes: s.DurationMinutes(),
		TotalPrice:      s.TotalPrice(),
		Provider:        s.provider,
		Venue:           s.venue,
		Client:          s.client,
		RemindMinutes:   s.remind,
		Submissible:     s.IsSubmissible(),
	}
	if snap.Services == nil {
		snap.Services = []ServiceItem{}
	}
	if d, ok := s.SelectedDate(); ok {
		snap.SelectedDate = &d
	}
	if t, ok := s.SelectedTime(); ok {
		snap.SelectedTime = &t
	}
	if end, ok := s.EndTime(); ok {
		snap.EndTime = &end
	}
	return snap
}

// Restore rebuilds a session from a snapshot. Derived fields are recomputed
// and no observers are attached.
func Restore(snap Snapshot) *Session {
	s := &Session{
		id:        snap.ID,
		createdAt: snap.CreatedAt,
		services:  append([]ServiceItem(nil), snap.Services...),
		provider:  snap.Provider,
		venue:     snap.Venue,
		client:    snap.Client,
		remind:    snap.RemindMinutes,
	}
	if snap.SelectedDate != nil {
		d := *snap.SelectedDate
		s.date = &d
	}
	if snap.SelectedTime != nil {
		s.time = *snap.SelectedTime
	}
	return s
}
