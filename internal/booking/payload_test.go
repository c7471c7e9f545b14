package booking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-widget/internal/calendar"
	"github.com/wolfman30/booking-widget/internal/session"
)

func completeSession(t *testing.T, start string, durations ...int) *session.Session {
	t.Helper()
	s := session.New("sess-1", testNow)
	items := make([]session.ServiceItem, 0, len(durations))
	for i, d := range durations {
		items = append(items, session.ServiceItem{ID: string(rune('a' + i)), Name: "svc", DurationMinutes: d, UnitPrice: decimal.NewFromInt(100)})
	}
	require.NoError(t, s.SetServices(items...))
	s.SetProvider(session.Provider{ID: "doc-1", Name: "Ivanova A.", Category: "Therapist"})
	s.SetVenue(session.Venue{ID: "v-1", Name: "Central clinic", Address: "Lenina 1"})
	s.SelectDate(calendar.CalendarDay{Day: 21, Month: 9, Year: 2026})
	require.NoError(t, s.SelectTime(start))
	s.SetClient(session.Client{Name: "Anna", Phone: "+79000000000"})
	return s
}

func TestBuildSubmission(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	s := completeSession(t, "09:15", 30, 15)

	sub, err := BuildSubmission(s, 7, msk)
	require.NoError(t, err)

	assert.Equal(t, "2026-10-21 09:15", sub.Time)
	assert.Equal(t, time.Date(2026, 10, 21, 6, 15, 0, 0, time.UTC), sub.StartsAt)
	assert.Equal(t, time.Date(2026, 10, 21, 7, 0, 0, 0, time.UTC), sub.EndsAt)
	assert.Equal(t, []string{"a", "b"}, sub.ServiceIDs)
	assert.Equal(t, "200.00", sub.TotalPrice)

	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, float64(7), wire["userId"])
	assert.Equal(t, "2026-10-21 09:15", wire["time"])
	assert.Equal(t, "Central clinic", wire["institutionName"])
	assert.Equal(t, "Lenina 1", wire["institutionAddress"])
	assert.Equal(t, "Ivanova A.", wire["specialist"])
	assert.Equal(t, "Therapist", wire["specialisation"])
}

func TestBuildSubmission_Rejects(t *testing.T) {
	_, err := BuildSubmission(nil, 1, nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	s := completeSession(t, "09:15", 30)
	s.SetClient(session.Client{Name: "Anna"})
	_, err = BuildSubmission(s, 1, nil)
	assert.ErrorIs(t, err, ErrIncomplete)

	late := completeSession(t, "23:30", 30, 15)
	_, err = BuildSubmission(late, 1, nil)
	assert.ErrorIs(t, err, ErrEndsNextDay)

	// Ending exactly at midnight is still the same day.
	edge := completeSession(t, "23:15", 30, 15)
	_, err = BuildSubmission(edge, 1, nil)
	assert.NoError(t, err)
}
