package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/booking-widget/internal/availability"
	"github.com/wolfman30/booking-widget/internal/booking"
	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/internal/observability/metrics"
	"github.com/wolfman30/booking-widget/internal/schedule"
	"github.com/wolfman30/booking-widget/internal/session"
)

type stubSubmitter struct {
	fail error
	got  []booking.Submission
}

func (s *stubSubmitter) Name() string { return "stub" }

func (s *stubSubmitter) Submit(_ context.Context, sub booking.Submission) error {
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, sub)
	return nil
}

type testEnv struct {
	server    *httptest.Server
	hub       *Hub
	submitter *stubSubmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cat := catalog.NewMemoryCatalog(
		[]catalog.Service{
			{ID: "svc-1", Name: "Consultation", DurationMinutes: 30, UnitPrice: decimal.NewFromInt(1500), Category: "Therapy", ProviderID: "doc-1"},
			{ID: "svc-2", Name: "Ultrasound", DurationMinutes: 15, UnitPrice: decimal.NewFromInt(990), Category: "Diagnostics", ProviderID: "doc-1"},
		},
		[]catalog.Provider{{ID: "doc-1", Name: "Ivanova A.", Category: "Therapist", VenueIDs: []string{"v-1"}}},
		[]catalog.Venue{{ID: "v-1", Name: "Central clinic", Address: "Lenina 1"}},
	)

	src := schedule.NewMemorySource()
	var cells []availability.TimeCell
	for _, tm := range []string{"09:00", "09:15", "09:30", "09:45", "12:00", "12:15", "12:30"} {
		cells = append(cells, availability.TimeCell{Time: tm, Status: availability.CellFree})
	}
	src.Put("doc-1", availability.DaySchedule{Date: "2026-10-21", Status: availability.DayWork, Cells: cells})

	env := &testEnv{hub: NewHub(), submitter: &stubSubmitter{}}
	svc := booking.NewService(booking.Deps{
		Sessions:  session.NewStore(rdb, time.Hour),
		Catalog:   cat,
		Schedules: src,
		Submitter: env.submitter,
		Metrics:   metrics.NewWidgetMetrics(prometheus.NewRegistry()),
		Publisher: env.hub,
	}, booking.Options{
		Locale:   "ru",
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2026, 10, 21, 8, 0, 0, 0, time.UTC) },
	})

	env.server = httptest.NewServer(NewHandler(svc, cat, env.hub, nil).Routes())
	t.Cleanup(func() {
		env.server.Close()
		rdb.Close()
		mr.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)
	base := "/sessions/" + id

	status, body := env.do(t, http.MethodGet, "/calendar?provider=doc-1&layout=compact", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 54.0, body["day_width"])
	first := body["first_available"].(map[string]any)
	assert.Equal(t, 21.0, first["day"])

	status, _ = env.do(t, http.MethodPut, base+"/service", `{"service_ids":["svc-1","svc-2"]}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, base+"/slots", "")
	assert.Equal(t, http.StatusConflict, status, "no date yet")

	status, _ = env.do(t, http.MethodPut, base+"/date", `{"date":"2026-10-19"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "padding day")
	status, _ = env.do(t, http.MethodPut, base+"/date", `{"date":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, body = env.do(t, http.MethodPut, base+"/date", `{"date":"2026-10-21"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "СР", body["selected_date"].(map[string]any)["weekday_label"])

	status, body = env.do(t, http.MethodGet, base+"/slots", "")
	require.Equal(t, http.StatusOK, status)
	slots := body["slots"].(map[string]any)
	assert.Equal(t, []any{"09:00", "09:15"}, slots["morning"])
	assert.Equal(t, []any{"12:00"}, slots["day"])
	assert.Equal(t, []any{}, slots["evening"])

	status, _ = env.do(t, http.MethodPut, base+"/time", `{"time":"09:30"}`)
	assert.Equal(t, http.StatusConflict, status)
	status, body = env.do(t, http.MethodPut, base+"/time", `{"time":"12:00"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "12:45", body["end_time"])

	status, _ = env.do(t, http.MethodPut, base+"/venue", `{"venue_id":"v-1"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPut, base+"/client", `{"name":"Anna","phone":"+79000000000"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPut, base+"/reminder", `{"minutes":45}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, body = env.do(t, http.MethodPut, base+"/reminder", `{"minutes":60}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["submissible"])

	status, body = env.do(t, http.MethodPost, base+"/submit", `{"user_id":7}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Contains(t, body["confirmation"], "Вы успешно записаны к Ivanova A. (Therapist)")
	require.Len(t, env.submitter.got, 1)
	assert.Equal(t, int64(7), env.submitter.got[0].UserID)
	assert.Equal(t, "2026-10-21 12:00", env.submitter.got[0].Time)

	status, body = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["selected_date"], "session resets after submit")
}

func TestSubmitErrors(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	status, _ := env.do(t, http.MethodPost, "/sessions/"+id+"/submit", `{"user_id":7}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	base := "/sessions/" + id
	env.do(t, http.MethodPut, base+"/service", `{"service_id":"svc-1"}`)
	env.do(t, http.MethodPut, base+"/venue", `{"venue_id":"v-1"}`)
	env.do(t, http.MethodPut, base+"/date", `{"date":"2026-10-21"}`)
	env.do(t, http.MethodPut, base+"/time", `{"time":"09:00"}`)
	env.do(t, http.MethodPut, base+"/client", `{"name":"Anna","phone":"+79000000000"}`)

	env.submitter.fail = errors.New("connection refused")
	status, body := env.do(t, http.MethodPost, base+"/submit", `{"user_id":7}`)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, booking.ErrSubmitFailed.Error(), body["error"])

	status, body = env.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "09:00", body["selected_time"])
}

func TestSessionLookupsAndCatalog(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodGet, "/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodPut, "/sessions/missing/date", `{"date":"2026-10-21"}`)
	assert.Equal(t, http.StatusNotFound, status)

	id := env.newSession(t)
	status, _ = env.do(t, http.MethodPut, "/sessions/"+id+"/service", `{"service_ids":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := env.do(t, http.MethodGet, "/sessions/"+id+"/month?offset=0&layout=wide", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Октябрь", body["label"])
	status, _ = env.do(t, http.MethodGet, "/sessions/"+id+"/month?offset=left", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/services?provider=doc-1&category=Therapy", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["services"], 1)

	status, body = env.do(t, http.MethodGet, "/venues?provider=doc-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["venues"], 1)
	status, _ = env.do(t, http.MethodGet, "/venues", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func dialStream(t *testing.T, env *testEnv, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/sessions/" + id + "/stream"
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	return conn
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	id := env.newSession(t)

	conn := dialStream(t, env, id)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "snapshot", msg.Type)
	require.NotNil(t, msg.Session)
	assert.Equal(t, id, msg.Session.ID)

	status, _ := env.do(t, http.MethodPut, "/sessions/"+id+"/date", `{"date":"2026-10-22"}`)
	require.Equal(t, http.StatusOK, status)

	msg = StreamMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "snapshot", msg.Type)
	require.NotNil(t, msg.Session.SelectedDate)
	assert.Equal(t, "2026-10-22", msg.Session.SelectedDate.Key())

	require.NoError(t, websocket.JSON.Send(conn, map[string]string{"type": "ping"}))
	msg = StreamMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "pong", msg.Type)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return env.hub.Subscribers(id) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "missing")
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var msg StreamMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "not found")
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("s-1")
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(session.Snapshot{ID: "s-1"})
	}
	hub.Publish(session.Snapshot{ID: "other"})
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, 1, hub.Subscribers("s-1"))

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers("s-1"))
	hub.Publish(session.Snapshot{ID: "s-1"})
}
