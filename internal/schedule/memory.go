package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/wolfman30/booking-widget/internal/availability"
)

// AnyProvider keys schedules shared by every provider.
const AnyProvider = "*"

// MemorySource serves schedules held in memory, typically loaded from a seed file.
type MemorySource struct {
	mu   sync.RWMutex
	days map[string]map[string]availability.DaySchedule
}

func NewMemorySource() *MemorySource {
	return &MemorySource{days: make(map[string]map[string]availability.DaySchedule)}
}

// Put stores a schedule, replacing any previous one for the same date.
func (m *MemorySource) Put(providerID string, day availability.DaySchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate, ok := m.days[providerID]
	if !ok {
		byDate = make(map[string]availability.DaySchedule)
		m.days[providerID] = byDate
	}
	day.Cells = append([]availability.TimeCell(nil), day.Cells...)
	byDate[day.Date] = day
}

// DaySchedule implements Source, falling back to AnyProvider.
func (m *MemorySource) DaySchedule(_ context.Context, providerID, date string) (*availability.DaySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range []string{providerID, AnyProvider} {
		if day, ok := m.days[id][date]; ok {
			day.Cells = append([]availability.TimeCell(nil), day.Cells...)
			return &day, nil
		}
	}
	return nil, nil
}

// Days returns the schedules stored for providerID, ordered by date. Shared
// AnyProvider days are not included unless providerID is AnyProvider.
func (m *MemorySource) Days(providerID string) []availability.DaySchedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]availability.DaySchedule, 0, len(m.days[providerID]))
	for _, day := range m.days[providerID] {
		day.Cells = append([]availability.TimeCell(nil), day.Cells...)
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

type seedCell struct {
	Time   string `json:"time"`
	Status string `json:"status"`
}

type seedDay struct {
	Date           string     `json:"date"`
	Status         string     `json:"status"`
	RecordingCells []seedCell `json:"recordingCells"`
}

// LoadJSON reads seed schedules. The document is either an array of days,
// shared by all providers, or an object mapping provider ids to arrays:
//
//	[{"date":"2026-10-19","status":"WORK","recordingCells":[{"time":"09:00","status":"FREE"}]}]
func LoadJSON(r io.Reader) (*MemorySource, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schedule: read seed: %w", err)
	}

	byProvider := map[string][]seedDay{}
	var shared []seedDay
	if err := json.Unmarshal(raw, &shared); err == nil {
		byProvider[AnyProvider] = shared
	} else if err := json.Unmarshal(raw, &byProvider); err != nil {
		return nil, fmt.Errorf("schedule: decode seed: %w", err)
	}

	src := NewMemorySource()
	for providerID, days := range byProvider {
		for _, d := range days {
			day := availability.DaySchedule{
				Date:   d.Date,
				Status: availability.DayStatus(d.Status),
				Cells:  make([]availability.TimeCell, 0, len(d.RecordingCells)),
			}
			for _, c := range d.RecordingCells {
				day.Cells = append(day.Cells, availability.TimeCell{Time: c.Time, Status: availability.CellStatus(c.Status)})
			}
			src.Put(providerID, day)
		}
	}
	return src, nil
}

// LoadFile is LoadJSON over a file path.
func LoadFile(path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: open seed: %w", err)
	}
	defer f.Close()
	return LoadJSON(f)
}
