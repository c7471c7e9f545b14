package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/booking-widget/internal/availability"
	"github.com/wolfman30/booking-widget/internal/calendar"
	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/internal/notify"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/internal/schedule"
	"github.com/wolfman30/booking-widget/internal/session"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

var tracer = otel.Tracer("booking-widget.internal.booking")

var (
	ErrInvalidDate      = errors.New("booking: invalid date")
	ErrInvalidTime      = errors.New("booking: invalid time")
	ErrPaddingDay       = errors.New("booking: padding days cannot be selected")
	ErrOutsideWindow    = errors.New("booking: date is outside the booking window")
	ErrNoDate           = errors.New("booking: no date selected")
	ErrNoService        = errors.New("booking: no service selected")
	ErrSlotUnavailable  = errors.New("booking: time is not available")
	ErrProviderMismatch = errors.New("booking: services belong to different providers")
	ErrVenueMismatch    = errors.New("booking: provider does not work at this venue")
	// ErrSubmitFailed wraps downstream transport failures.
	ErrSubmitFailed = errors.New("booking: submission failed")
)

// SessionStore persists sessions between requests.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
	Load(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
}

// Auditor records submission attempts.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Publisher fans session snapshots out to live subscribers.
type Publisher interface {
	Publish(snap session.Snapshot)
}

// Layout selects the day cell width used for scroll math.
type Layout string

const (
	LayoutWide    Layout = "wide"
	LayoutCompact Layout = "compact"
)

// DayWidth returns the cell width in pixels. Unknown layouts are wide.
func (l Layout) DayWidth() float64 {
	if l == LayoutCompact {
		return calendar.CompactDayWidth
	}
	return calendar.WideDayWidth
}

// Deps are the collaborators of a Service. Sessions, Catalog, Schedules and
// Submitter are required.
type Deps struct {
	Sessions  SessionStore
	Catalog   catalog.Catalog
	Schedules schedule.Source
	Submitter Submitter
	Audit     Auditor
	Email     notify.EmailSender
	Metrics   *metrics.WidgetMetrics
	Publisher Publisher
	Logger    *logging.Logger
}

// Options tune the booking window.
type Options struct {
	Locale              string
	Location            *time.Location
	ActiveDays          int
	SlotIntervalMinutes int
	Now                 func() time.Time
}

// Service drives a widget session from the first tap to submission.
type Service struct {
	sessions  SessionStore
	catalog   catalog.Catalog
	schedules schedule.Source
	submitter Submitter
	audit     Auditor
	email     notify.EmailSender
	metrics   *metrics.WidgetMetrics
	publisher Publisher
	logger    *logging.Logger

	gen        *calendar.Generator
	loc        *time.Location
	activeDays int
	interval   int
	now        func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Sessions == nil || deps.Catalog == nil || deps.Schedules == nil || deps.Submitter == nil {
		panic("booking: sessions, catalog, schedules and submitter are required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ActiveDays <= 0 {
		opts.ActiveDays = calendar.DefaultActiveDays
	}
	if opts.SlotIntervalMinutes <= 0 {
		opts.SlotIntervalMinutes = 15
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sessions:   deps.Sessions,
		catalog:    deps.Catalog,
		schedules:  deps.Schedules,
		submitter:  deps.Submitter,
		audit:      deps.Audit,
		email:      deps.Email,
		metrics:    deps.Metrics,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
		gen:        calendar.NewGenerator(opts.Locale),
		loc:        opts.Location,
		activeDays: opts.ActiveDays,
		interval:   opts.SlotIntervalMinutes,
		now:        opts.Now,
	}
}

// DayView is a calendar day with its bookability.
type DayView struct {
	calendar.CalendarDay
	Available bool `json:"available"`
}

// CalendarView is the date strip shown at the top of the widget.
type CalendarView struct {
	Locale         string                `json:"locale"`
	DayWidth       float64               `json:"day_width"`
	Days           []DayView             `json:"days"`
	FirstAvailable *calendar.CalendarDay `json:"first_available,omitempty"`
}

// MonthView names the month visible at a scroll offset.
type MonthView struct {
	Month int    `json:"month"`
	Year  int    `json:"year"`
	Label string `json:"label"`
}

// SlotsView is the resolved availability for the session's date.
type SlotsView struct {
	Date            calendar.CalendarDay `json:"date"`
	DurationMinutes int                  `json:"duration_minutes"`
	Slots           availability.Buckets `json:"slots"`
}

// Receipt is returned after a successful submission.
type Receipt struct {
	SessionID    string     `json:"session_id"`
	Submission   Submission `json:"submission"`
	Confirmation string     `json:"confirmation"`
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// Calendar builds the padded window starting today. A day is available when
// it is not in the past and providerID has at least one free cell on it.
func (s *Service) Calendar(ctx context.Context, providerID string, layout Layout) (CalendarView, error) {
	ctx, span := tracer.Start(ctx, "booking.calendar")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", providerID))

	now := s.today()
	today := s.gen.DayOf(now)
	days := s.gen.Window(now, s.activeDays, true)
	lookup := schedule.Bind(s.schedules, providerID)

	view := CalendarView{
		Locale:   s.gen.Labels().Locale(),
		DayWidth: layout.DayWidth(),
		Days:     make([]DayView, 0, len(days)),
	}
	for _, d := range days {
		dv := DayView{CalendarDay: d}
		if !d.IsPadding && !d.Before(today) {
			sch, err := lookup.DaySchedule(ctx, d.Key())
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "schedule lookup failed")
				return CalendarView{}, fmt.Errorf("booking: calendar %s: %w", d.Key(), err)
			}
			dv.Available = hasFreeCell(sch)
		}
		if dv.Available && view.FirstAvailable == nil {
			first := d
			view.FirstAvailable = &first
		}
		view.Days = append(view.Days, dv)
	}
	return view, nil
}

func hasFreeCell(sch *availability.DaySchedule) bool {
	if sch == nil || sch.Status != availability.DayWork {
		return false
	}
	for _, c := range sch.Cells {
		if c.Status == availability.CellFree {
			return true
		}
	}
	return false
}

// MonthAt returns the month shown in the header when the strip is scrolled
// to offsetPixels.
func (s *Service) MonthAt(layout Layout, offsetPixels float64) MonthView {
	days := s.gen.Window(s.today(), s.activeDays, true)
	month, year := calendar.MonthForScrollOffset(days, layout.DayWidth(), offsetPixels)
	return MonthView{Month: month, Year: year, Label: s.gen.Labels().Month(month)}
}

// Start opens a new session.
func (s *Service) Start(ctx context.Context) (session.Snapshot, error) {
	sess := session.New(uuid.NewString(), s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return session.Snapshot{}, fmt.Errorf("booking: start session: %w", err)
	}
	s.metrics.ObserveMutation("start")
	s.logger.WithSession(sess.ID()).Info("booking session started")
	return sess.Snapshot(), nil
}

// Get returns the current state of a session.
func (s *Service) Get(ctx context.Context, id string) (session.Snapshot, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Discard drops a session.
func (s *Service) Discard(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// mutate loads the session, applies fn and persists the result. When fn
// fails nothing is saved.
func (s *Service) mutate(ctx context.Context, id string, fn func(ctx context.Context, sess *session.Session) error) (session.Snapshot, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return session.Snapshot{}, err
	}
	unsubscribe := sess.Subscribe(func(_ *session.Session, ev session.Event) {
		s.metrics.ObserveMutation(string(ev))
	})
	defer unsubscribe()

	if err := fn(ctx, sess); err != nil {
		return session.Snapshot{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return session.Snapshot{}, fmt.Errorf("booking: save session: %w", err)
	}
	snap := sess.Snapshot()
	if s.publisher != nil {
		s.publisher.Publish(snap)
	}
	return snap, nil
}

// SelectServices replaces the chosen services. All of them must belong to
// one provider, who becomes the session's specialist. A venue the provider
// does not serve is dropped.
func (s *Service) SelectServices(ctx context.Context, id string, serviceIDs []string) (session.Snapshot, error) {
	if len(serviceIDs) == 0 {
		return session.Snapshot{}, ErrNoService
	}
	items := make([]session.ServiceItem, 0, len(serviceIDs))
	providerID := ""
	for _, sid := range serviceIDs {
		svc, err := s.catalog.GetService(ctx, sid)
		if err != nil {
			return session.Snapshot{}, fmt.Errorf("booking: service %s: %w", sid, err)
		}
		if providerID == "" {
			providerID = svc.ProviderID
		} else if svc.ProviderID != providerID {
			return session.Snapshot{}, ErrProviderMismatch
		}
		items = append(items, session.ServiceItem{
			ID:              svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			UnitPrice:       svc.UnitPrice,
			Category:        svc.Category,
		})
	}
	prov, err := s.catalog.GetProvider(ctx, providerID)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("booking: provider %s: %w", providerID, err)
	}

	return s.mutate(ctx, id, func(_ context.Context, sess *session.Session) error {
		if err := sess.SetServices(items...); err != nil {
			return err
		}
		sess.SetProvider(session.Provider{ID: prov.ID, Name: prov.Name, Category: prov.Category})
		if v := sess.Venue(); v.ID != "" && !prov.ServesAt(v.ID) {
			sess.SetVenue(session.Venue{})
		}
		return nil
	})
}

// SelectVenue sets where the appointment takes place.
func (s *Service) SelectVenue(ctx context.Context, id, venueID string) (session.Snapshot, error) {
	venue, err := s.catalog.GetVenue(ctx, venueID)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("booking: venue %s: %w", venueID, err)
	}
	return s.mutate(ctx, id, func(ctx context.Context, sess *session.Session) error {
		if pid := sess.Provider().ID; pid != "" {
			prov, err := s.catalog.GetProvider(ctx, pid)
			if err != nil {
				return fmt.Errorf("booking: provider %s: %w", pid, err)
			}
			if !prov.ServesAt(venue.ID) {
				return ErrVenueMismatch
			}
		}
		sess.SetVenue(session.Venue{ID: venue.ID, Name: venue.Name, Address: venue.Address})
		return nil
	})
}

// SelectDate picks a "YYYY-MM-DD" day from the current window. Padding days
// and days outside the window are rejected.
func (s *Service) SelectDate(ctx context.Context, id, key string) (session.Snapshot, error) {
	want, err := calendar.ParseKey(key)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	day, err := s.windowDay(want)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.mutate(ctx, id, func(_ context.Context, sess *session.Session) error {
		sess.SelectDate(day)
		return nil
	})
}

func (s *Service) windowDay(want calendar.CalendarDay) (calendar.CalendarDay, error) {
	for _, d := range s.gen.Window(s.today(), s.activeDays, true) {
		if !d.Same(want) {
			continue
		}
		if d.IsPadding {
			return calendar.CalendarDay{}, ErrPaddingDay
		}
		return d, nil
	}
	return calendar.CalendarDay{}, ErrOutsideWindow
}

// Slots resolves the free start times for the session's date and services.
func (s *Service) Slots(ctx context.Context, id string) (SlotsView, error) {
	ctx, span := tracer.Start(ctx, "booking.slots")
	defer span.End()

	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return SlotsView{}, err
	}
	buckets, err := s.resolve(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return SlotsView{}, err
	}
	day, _ := sess.SelectedDate()
	span.SetAttributes(attribute.String("date", day.Key()), attribute.Int("slots", buckets.Len()))
	return SlotsView{Date: day, DurationMinutes: sess.DurationMinutes(), Slots: buckets}, nil
}

func (s *Service) resolve(ctx context.Context, sess *session.Session) (availability.Buckets, error) {
	day, ok := sess.SelectedDate()
	if !ok {
		return availability.Buckets{}, ErrNoDate
	}
	dur := sess.DurationMinutes()
	if dur <= 0 {
		return availability.Buckets{}, ErrNoService
	}
	lookup := schedule.Bind(s.schedules, sess.Provider().ID)
	buckets, err := availability.ResolveForDay(ctx, lookup, day, s.today(), dur, s.interval)
	if err != nil {
		s.metrics.ObserveResolution(-1)
		return availability.Buckets{}, fmt.Errorf("booking: resolve slots: %w", err)
	}
	s.metrics.ObserveResolution(buckets.Len())
	return buckets, nil
}

// SelectTime sets the start time. It must be one of the currently resolved
// slots and the appointment must end on the same day.
func (s *Service) SelectTime(ctx context.Context, id, hhmm string) (session.Snapshot, error) {
	start, err := availability.ParseClock(hhmm)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	normalized := availability.FormatClock(start)

	return s.mutate(ctx, id, func(ctx context.Context, sess *session.Session) error {
		buckets, err := s.resolve(ctx, sess)
		if err != nil {
			return err
		}
		if start+sess.DurationMinutes() > availability.MinutesPerDay {
			return ErrEndsNextDay
		}
		if !buckets.Contains(normalized) {
			return ErrSlotUnavailable
		}
		return sess.SelectTime(normalized)
	})
}

// SetClient stores the client's contact details.
func (s *Service) SetClient(ctx context.Context, id string, c session.Client) (session.Snapshot, error) {
	return s.mutate(ctx, id, func(_ context.Context, sess *session.Session) error {
		sess.SetClient(c)
		return nil
	})
}

// SetReminder sets the reminder lead time in minutes.
func (s *Service) SetReminder(ctx context.Context, id string, minutes int) (session.Snapshot, error) {
	return s.mutate(ctx, id, func(_ context.Context, sess *session.Session) error {
		return sess.SetRemindMinutes(minutes)
	})
}

// Submit hands the completed session to the booking system. On failure the
// session is left as it was; on success it is reset for the next booking.
func (s *Service) Submit(ctx context.Context, id string, userID int64) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", id), attribute.String("transport", s.submitter.Name()))

	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	log := s.logger.WithSession(id)

	sub, err := BuildSubmission(sess, userID, s.loc)
	if err != nil {
		s.metrics.ObserveSubmission("rejected")
		return Receipt{}, err
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return Receipt{}, fmt.Errorf("booking: marshal submission: %w", err)
	}

	started := time.Now()
	err = s.submitter.Submit(ctx, sub)
	s.metrics.ObserveSubmitLatency(s.submitter.Name(), time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		s.metrics.ObserveSubmission("failed")
		s.record(ctx, AuditEvent{SessionID: id, Status: AuditFailed, Transport: s.submitter.Name(), Payload: payload, Error: err.Error()})
		log.Error("booking submission failed", "error", err, "transport", s.submitter.Name())
		return Receipt{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	s.record(ctx, AuditEvent{SessionID: id, Status: AuditSubmitted, Transport: s.submitter.Name(), Payload: payload})
	s.metrics.ObserveSubmission("submitted")

	appt := s.appointment(sess)
	receipt := Receipt{SessionID: id, Submission: sub, Confirmation: notify.ConfirmationText(appt)}
	s.sendConfirmation(ctx, log, appt)
	log.Info("booking submitted", "time", sub.Time, "specialist", sub.Specialist, "transport", s.submitter.Name())

	unsubscribe := sess.Subscribe(func(_ *session.Session, ev session.Event) {
		s.metrics.ObserveMutation(string(ev))
	})
	sess.Reset()
	unsubscribe()
	if err := s.sessions.Save(ctx, sess); err != nil {
		log.Error("failed to reset session after submit", "error", err)
	} else if s.publisher != nil {
		s.publisher.Publish(sess.Snapshot())
	}
	return receipt, nil
}

func (s *Service) record(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Error("failed to record booking audit event", "error", err, "session_id", event.SessionID)
	}
}

func (s *Service) appointment(sess *session.Session) notify.Appointment {
	start, _ := sess.StartAt(s.loc)
	services := sess.Services()
	names := make([]string, 0, len(services))
	for _, item := range services {
		names = append(names, item.Name)
	}
	client := sess.Client()
	return notify.Appointment{
		SessionID:      sess.ID(),
		ClientName:     client.FullName(),
		ClientEmail:    client.Email,
		Specialist:     sess.Provider().Name,
		Specialisation: sess.Provider().Category,
		StartsAt:       start,
		VenueName:      sess.Venue().Name,
		VenueAddress:   sess.Venue().Address,
		Services:       names,
		Total:          sess.TotalPrice().StringFixed(2),
	}
}

func (s *Service) sendConfirmation(ctx context.Context, log *logging.Logger, appt notify.Appointment) {
	if s.email == nil || appt.ClientEmail == "" {
		return
	}
	msg, err := notify.ConfirmationEmail(appt)
	if err != nil {
		log.Error("failed to render confirmation email", "error", err)
		return
	}
	if err := s.email.Send(ctx, msg); err != nil {
		log.Warn("failed to send confirmation email", "error", err)
	}
}
