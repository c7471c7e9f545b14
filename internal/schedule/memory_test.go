package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-widget/internal/availability"
)

const sharedSeed = `[
  {"date": "2026-10-19", "status": "WORK", "recordingCells": [
    {"time": "09:00", "status": "FREE"},
    {"time": "09:15", "status": "FREE"},
    {"time": "09:30", "status": "BUSY"}
  ]},
  {"date": "2026-10-20", "status": "OFF", "recordingCells": []}
]`

func TestLoadJSON_SharedArray(t *testing.T) {
	src, err := LoadJSON(strings.NewReader(sharedSeed))
	require.NoError(t, err)
	ctx := context.Background()

	day, err := Bind(src, "any-doctor").DaySchedule(ctx, "2026-10-19")
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, availability.DayWork, day.Status)
	assert.Len(t, day.Cells, 3)

	buckets := availability.Resolve(day, 30, 15, false, 0)
	assert.Equal(t, []string{"09:00"}, buckets.Morning)

	off, err := src.DaySchedule(ctx, "doc-1", "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, availability.DayOff, off.Status)

	missing, err := src.DaySchedule(ctx, "doc-1", "2026-10-21")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoadJSON_PerProvider(t *testing.T) {
	seed := `{
	  "doc-1": [{"date": "2026-10-19", "status": "WORK", "recordingCells": [{"time": "10:00", "status": "FREE"}]}],
	  "*":     [{"date": "2026-10-19", "status": "OFF", "recordingCells": []}]
	}`
	src, err := LoadJSON(strings.NewReader(seed))
	require.NoError(t, err)
	ctx := context.Background()

	own, err := src.DaySchedule(ctx, "doc-1", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, availability.DayWork, own.Status)

	fallback, err := src.DaySchedule(ctx, "doc-2", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, availability.DayOff, fallback.Status)
}

func TestLoadJSON_Invalid(t *testing.T) {
	_, err := LoadJSON(strings.NewReader(`"nope"`))
	assert.Error(t, err)
}

func TestMemorySource_ReturnsCopies(t *testing.T) {
	src := seeded()
	ctx := context.Background()

	day, err := src.DaySchedule(ctx, "doc-1", "2026-10-19")
	require.NoError(t, err)
	day.Cells[0].Status = availability.CellBusy

	again, err := src.DaySchedule(ctx, "doc-1", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, availability.CellFree, again.Cells[0].Status)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "time.json")
	require.NoError(t, os.WriteFile(path, []byte(sharedSeed), 0o600))

	src, err := LoadFile(path)
	require.NoError(t, err)
	day, err := src.DaySchedule(context.Background(), "x", "2026-10-19")
	require.NoError(t, err)
	assert.NotNil(t, day)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMemorySource_Days(t *testing.T) {
	src, err := LoadJSON(strings.NewReader(sharedSeed))
	require.NoError(t, err)

	days := src.Days(AnyProvider)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-10-19", days[0].Date)
	assert.Equal(t, "2026-10-20", days[1].Date)

	assert.Empty(t, src.Days("doc-1"))
}
