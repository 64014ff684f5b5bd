package schedule

import (
	"sort"
	"time"

	"plancal/internal/civil"
)

const (
	// DefaultWindowDays is the rolling range shown by default: the current
	// week plus four more.
	DefaultWindowDays = 35
)

// Window is a run of consecutive days starting at Start.
type Window struct {
	Start civil.Date
	Days  int
}

// NewWindow returns the window of days days beginning on the weekStart
// day on or before today.
func NewWindow(today civil.Date, weekStart time.Weekday, days int) Window {
	if days <= 0 {
		days = DefaultWindowDays
	}
	return Window{Start: today.StartOfWeek(weekStart), Days: days}
}

// End returns the last day inside the window.
func (w Window) End() civil.Date {
	return w.Start.AddDays(w.Days - 1)
}

// Contains reports whether d lies inside the window.
func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End())
}

// Dates lists every day of the window in order.
func (w Window) Dates() []civil.Date {
	out := make([]civil.Date, 0, w.Days)
	for i := 0; i < w.Days; i++ {
		out = append(out, w.Start.AddDays(i))
	}
	return out
}

// unionDates returns the window days plus extra, deduplicated and sorted.
func unionDates(w Window, extra map[civil.Date]*dayBucket) []civil.Date {
	seen := make(map[civil.Date]struct{}, w.Days+len(extra))
	out := make([]civil.Date, 0, w.Days+len(extra))
	for _, d := range w.Dates() {
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for d := range extra {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
