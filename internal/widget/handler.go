// Package widget serves the booking widget's HTTP and websocket API.
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/internal/http/middleware"
	"github.com/wolfman30/booking-widget/internal/session"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// Engine is the booking flow the handler exposes. *booking.Service implements it.
type Engine interface {
	Calendar(ctx context.Context, providerID string, layout booking.Layout) (booking.CalendarView, error)
	MonthAt(layout booking.Layout, offsetPixels float64) booking.MonthView
	Start(ctx context.Context) (session.Snapshot, error)
	Get(ctx context.Context, id string) (session.Snapshot, error)
	Discard(ctx context.Context, id string) error
	SelectServices(ctx context.Context, id string, serviceIDs []string) (session.Snapshot, error)
	SelectVenue(ctx context.Context, id, venueID string) (session.Snapshot, error)
	SelectDate(ctx context.Context, id, key string) (session.Snapshot, error)
	SelectTime(ctx context.Context, id, hhmm string) (session.Snapshot, error)
	SetClient(ctx context.Context, id string, c session.Client) (session.Snapshot, error)
	SetReminder(ctx context.Context, id string, minutes int) (session.Snapshot, error)
	Slots(ctx context.Context, id string) (booking.SlotsView, error)
	Submit(ctx context.Context, id string, userID int64) (booking.Receipt, error)
}

// Handler serves /widget routes.
type Handler struct {
	engine  Engine
	catalog catalog.Catalog
	hub     *Hub
	limiter *middleware.RateLimiter
	logger  *logging.Logger
}

func NewHandler(engine Engine, cat catalog.Catalog, hub *Hub, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Handler{engine: engine, catalog: cat, hub: hub, logger: logger}
}

// WithRateLimiter throttles session creation and submission per client IP.
func (h *Handler) WithRateLimiter(rl *middleware.RateLimiter) *Handler {
	h.limiter = rl
	return h
}

// Routes returns the widget router, to be mounted under /widget.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	limited := middleware.RateLimit(h.limiter, middleware.ClientIP)

	r.Get("/calendar", h.getCalendar)
	r.Get("/services", h.listServices)
	r.Get("/venues", h.listVenues)

	r.Route("/sessions", func(r chi.Router) {
		r.With(limited).Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Put("/service", h.putService)
			r.Put("/venue", h.putVenue)
			r.Put("/date", h.putDate)
			r.Put("/time", h.putTime)
			r.Put("/client", h.putClient)
			r.Put("/reminder", h.putReminder)
			r.Get("/slots", h.getSlots)
			r.Get("/month", h.getMonth)
			r.With(limited).Post("/submit", h.submit)
			r.Get("/stream", h.stream)
		})
	})
	return r
}

func (h *Handler) getCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providerID := q.Get("provider")
	if id := q.Get("session"); id != "" && providerID == "" {
		snap, err := h.engine.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		providerID = snap.Provider.ID
	}
	view, err := h.engine.Calendar(r.Context(), providerID, booking.Layout(q.Get("layout")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	services, err := h.catalog.ListServices(r.Context(), q.Get("provider"), q.Get("category"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if services == nil {
		services = []catalog.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (h *Handler) listVenues(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("provider is required"))
		return
	}
	p, err := h.catalog.GetProvider(r.Context(), providerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	venues, err := h.catalog.ListVenues(r.Context(), p.VenueIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if venues == nil {
		venues = []catalog.Venue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Start(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceID  string   `json:"service_id"`
		ServiceIDs []string `json:"service_ids"`
	}
	if !decode(w, r, &req) {
		return
	}
	ids := req.ServiceIDs
	if req.ServiceID != "" {
		ids = append([]string{req.ServiceID}, ids...)
	}
	h.respond(w)(h.engine.SelectServices(r.Context(), chi.URLParam(r, "id"), ids))
}

func (h *Handler) putVenue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VenueID string `json:"venue_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w)(h.engine.SelectVenue(r.Context(), chi.URLParam(r, "id"), req.VenueID))
}

func (h *Handler) putDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w)(h.engine.SelectDate(r.Context(), chi.URLParam(r, "id"), req.Date))
}

func (h *Handler) putTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time string `json:"time"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w)(h.engine.SelectTime(r.Context(), chi.URLParam(r, "id"), req.Time))
}

func (h *Handler) putClient(w http.ResponseWriter, r *http.Request) {
	var c session.Client
	if !decode(w, r, &c) {
		return
	}
	h.respond(w)(h.engine.SetClient(r.Context(), chi.URLParam(r, "id"), c))
}

func (h *Handler) putReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w)(h.engine.SetReminder(r.Context(), chi.URLParam(r, "id"), req.Minutes))
}

func (h *Handler) getSlots(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.Slots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) getMonth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.Get(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	q := r.URL.Query()
	offset := 0.0
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("offset must be a number"))
			return
		}
		offset = v
	}
	writeJSON(w, http.StatusOK, h.engine.MonthAt(booking.Layout(q.Get("layout")), offset))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	receipt, err := h.engine.Submit(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) respond(w http.ResponseWriter) func(session.Snapshot, error) {
	return func(snap session.Snapshot, err error) {
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidTime),
		errors.Is(err, session.ErrInvalidReminder),
		errors.Is(err, session.ErrInvalidService):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNoDate),
		errors.Is(err, booking.ErrNoService),
		errors.Is(err, booking.ErrSlotUnavailable):
		return http.StatusConflict
	case errors.Is(err, booking.ErrPaddingDay),
		errors.Is(err, booking.ErrOutsideWindow),
		errors.Is(err, booking.ErrProviderMismatch),
		errors.Is(err, booking.ErrVenueMismatch),
		errors.Is(err, booking.ErrEndsNextDay),
		errors.Is(err, booking.ErrIncomplete):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrSubmitFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("widget request failed", "error", err)
		writeJSON(w, status, errorBody("internal error"))
		return
	case http.StatusBadGateway:
		writeJSON(w, status, errorBody(booking.ErrSubmitFailed.Error()))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
