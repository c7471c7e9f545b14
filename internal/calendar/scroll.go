package calendar

// Per-day widths of the day strip, in CSS pixels.
const (
	WideDayWidth    = 45.5
	CompactDayWidth = 54.0
)

type monthSpan struct {
	month, year int
	end         float64 // cumulative right edge in pixels
}

// ScrollIndex maps a horizontal scroll offset of the day strip to the month
// shown in the header.
type ScrollIndex struct {
	spans []monthSpan
}

// NewScrollIndex builds cumulative per-month widths for a generated window.
// Leading padding counts towards the first active month and trailing padding
// towards the last one.
func NewScrollIndex(days []CalendarDay, dayWidth float64) *ScrollIndex {
	idx := &ScrollIndex{}
	if len(days) == 0 || dayWidth <= 0 {
		return idx
	}

	first, last := -1, -1
	for i, d := range days {
		if d.IsPadding {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		first, last = 0, len(days)-1
	}

	var acc float64
	for i, d := range days {
		owner := d
		switch {
		case i < first:
			owner = days[first]
		case i > last:
			owner = days[last]
		}
		acc += dayWidth
		n := len(idx.spans)
		if n > 0 && idx.spans[n-1].month == owner.Month && idx.spans[n-1].year == owner.Year {
			idx.spans[n-1].end = acc
			continue
		}
		idx.spans = append(idx.spans, monthSpan{month: owner.Month, year: owner.Year, end: acc})
	}
	return idx
}

// MonthFor returns the zero-based month and year visible at offsetPixels.
// Negative offsets clamp to the start and offsets past the end resolve to the
// last month. An empty index returns (0, 0).
func (s *ScrollIndex) MonthFor(offsetPixels float64) (month, year int) {
	if s == nil || len(s.spans) == 0 {
		return 0, 0
	}
	if offsetPixels < 0 {
		offsetPixels = 0
	}
	for _, span := range s.spans {
		if offsetPixels < span.end {
			return span.month, span.year
		}
	}
	tail := s.spans[len(s.spans)-1]
	return tail.month, tail.year
}

// MonthForScrollOffset is a one-shot helper over NewScrollIndex.
func MonthForScrollOffset(days []CalendarDay, dayWidth, offsetPixels float64) (month, year int) {
	return NewScrollIndex(days, dayWidth).MonthFor(offsetPixels)
}
