// Package session holds the selections a client makes while booking an
// appointment through the widget.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/booking-widget/internal/availability"
	"github.com/wolfman30/booking-widget/internal/calendar"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidService is returned for service items without a positive duration.
	ErrInvalidService = errors.New("session: service duration must be positive")
)

// ServiceItem is one catalog service added to the booking.
type ServiceItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Category        string          `json:"category,omitempty"`
}

// Provider is the specialist performing the services.
type Provider struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Venue is where the appointment takes place.
type Venue struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Event names the mutation that triggered an observer call.
type Event string

const (
	EventDateSelected    Event = "date_selected"
	EventTimeSelected    Event = "time_selected"
	EventTimeCleared     Event = "time_cleared"
	EventServicesChanged Event = "services_changed"
	EventProviderChanged Event = "provider_changed"
	EventVenueChanged    Event = "venue_changed"
	EventClientChanged   Event = "client_changed"
	EventReminderChanged Event = "reminder_changed"
	EventReset           Event = "reset"
)

// Observer is called synchronously after each mutation, once the session is
// consistent again.
type Observer func(s *Session, ev Event)

// Session is a single booking flow. It is not safe for concurrent mutation.
type Session struct {
	id        string
	createdAt time.Time

	date     *calendar.CalendarDay
	time     string
	services []ServiceItem
	provider Provider
	venue    Venue
	client   Client
	remind   int

	observers map[int]Observer
	nextObs   int
}

// New starts an empty session.
func New(id string, now time.Time) *Session {
	return &Session{id: id, createdAt: now.UTC()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the flow started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// SelectedDate returns the chosen day, if any.
func (s *Session) SelectedDate() (calendar.CalendarDay, bool) {
	if s.date == nil {
		return calendar.CalendarDay{}, false
	}
	return *s.date, true
}

// SelectedTime returns the chosen "HH:MM" start time, if any.
func (s *Session) SelectedTime() (string, bool) {
	return s.time, s.time != ""
}

// Services returns a copy of the chosen service items.
func (s *Session) Services() []ServiceItem {
	return append([]ServiceItem(nil), s.services...)
}

// Provider returns the chosen specialist, zero when none is set.
func (s *Session) Provider() Provider { return s.provider }

// Venue returns where the appointment takes place, zero when none is set.
func (s *Session) Venue() Venue { return s.venue }

// Client returns the contact details entered so far.
func (s *Session) Client() Client { return s.client }

// RemindMinutes returns how long before the start the client wants a reminder.
func (s *Session) RemindMinutes() int { return s.remind }

// SelectDate sets the day and always clears the selected time, even when the
// day is unchanged.
func (s *Session) SelectDate(d calendar.CalendarDay) {
	d.IsPadding = false
	s.date = &d
	s.time = ""
	s.notify(EventDateSelected)
}

// SelectTime records a start time. Callers only offer times after a date and
// a service are chosen; the ordering is not enforced here.
func (s *Session) SelectTime(t string) error {
	m, err := availability.ParseClock(t)
	if err != nil {
		return fmt.Errorf("session: select time: %w", err)
	}
	s.time = availability.FormatClock(m)
	s.notify(EventTimeSelected)
	return nil
}

// ClearTime drops the selected time.
func (s *Session) ClearTime() {
	s.time = ""
	s.notify(EventTimeCleared)
}

// SetServices replaces the chosen services. A different total duration makes
// the selected time meaningless, so the time is cleared.
func (s *Session) SetServices(items ...ServiceItem) error {
	for _, item := range items {
		if item.DurationMinutes <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidService, item.ID)
		}
	}
	s.services = append([]ServiceItem(nil), items...)
	s.time = ""
	s.notify(EventServicesChanged)
	return nil
}

// SetService is SetServices for a single item.
func (s *Session) SetService(item ServiceItem) error {
	return s.SetServices(item)
}

// SetProvider sets the specialist. Switching to another specialist clears the
// selected time since it came from a different schedule.
func (s *Session) SetProvider(p Provider) {
	if p.ID != s.provider.ID {
		s.time = ""
	}
	s.provider = p
	s.notify(EventProviderChanged)
}

// SetVenue sets the venue. It does not affect the selected time.
func (s *Session) SetVenue(v Venue) {
	s.venue = v
	s.notify(EventVenueChanged)
}

// SetClient stores the client's contact details verbatim.
func (s *Session) SetClient(c Client) {
	s.client = c
	s.notify(EventClientChanged)
}

// SetRemindMinutes sets the reminder lead time; see ReminderOptions.
func (s *Session) SetRemindMinutes(minutes int) error {
	if !ValidReminder(minutes) {
		return fmt.Errorf("%w: %d", ErrInvalidReminder, minutes)
	}
	s.remind = minutes
	s.notify(EventReminderChanged)
	return nil
}

// Reset clears every selection, keeping the identity and observers.
func (s *Session) Reset() {
	s.date = nil
	s.time = ""
	s.services = nil
	s.provider = Provider{}
	s.venue = Venue{}
	s.client = Client{}
	s.remind = 0
	s.notify(EventReset)
}

// DurationMinutes is the summed duration of the chosen services.
func (s *Session) DurationMinutes() int {
	total := 0
	for _, item := range s.services {
		total += item.DurationMinutes
	}
	return total
}

// TotalPrice is the summed unit price of the chosen services.
func (s *Session) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.services {
		total = total.Add(item.UnitPrice)
	}
	return total
}

// EndTime returns selected time plus duration as "HH:MM". Hours wrap past
// midnight; use EndAt for the absolute instant.
func (s *Session) EndTime() (string, bool) {
	start, ok := s.startMinutes()
	if !ok {
		return "", false
	}
	end := start + s.DurationMinutes()
	return fmt.Sprintf("%02d:%02d", (end/60)%24, end%60), true
}

// CrossesMidnight reports whether the appointment would end on the next day.
func (s *Session) CrossesMidnight() bool {
	start, ok := s.startMinutes()
	return ok && start+s.DurationMinutes() > availability.MinutesPerDay
}

// StartAt returns the appointment start in loc.
func (s *Session) StartAt(loc *time.Location) (time.Time, bool) {
	start, ok := s.startMinutes()
	if !ok || s.date == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	d := s.date
	return time.Date(d.Year, time.Month(d.Month+1), d.Day, start/60, start%60, 0, 0, loc), true
}

// EndAt returns the appointment end in loc, on the next day if it crosses midnight.
func (s *Session) EndAt(loc *time.Location) (time.Time, bool) {
	start, ok := s.StartAt(loc)
	if !ok {
		return time.Time{}, false
	}
	return start.Add(time.Duration(s.DurationMinutes()) * time.Minute), true
}

// ReminderAt returns when the reminder should fire. There is none when the
// client opted out or no start is known.
func (s *Session) ReminderAt(loc *time.Location) (time.Time, bool) {
	if s.remind == 0 {
		return time.Time{}, false
	}
	start, ok := s.StartAt(loc)
	if !ok {
		return time.Time{}, false
	}
	return start.Add(-time.Duration(s.remind) * time.Minute), true
}

// IsSubmissible reports whether every selection needed to book is present.
func (s *Session) IsSubmissible() bool {
	return s.date != nil &&
		s.time != "" &&
		len(s.services) > 0 &&
		s.provider.ID != "" &&
		s.venue.ID != "" &&
		s.client.Complete()
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Session) Subscribe(obs Observer) (unsubscribe func()) {
	if s.observers == nil {
		s.observers = make(map[int]Observer)
	}
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	return func() { delete(s.observers, id) }
}

func (s *Session) startMinutes() (int, bool) {
	if s.time == "" {
		return 0, false
	}
	m, err := availability.ParseClock(s.time)
	if err != nil {
		return 0, false
	}
	return m, true
}

func (s *Session) notify(ev Event) {
	for i := 0; i < s.nextObs; i++ {
		if obs, ok := s.observers[i]; ok {
			obs(s, ev)
		}
	}
}
