package schedule

import (
	"sort"

	"plancal/internal/civil"
)

// DaySummary totals one day of assembled events.
type DaySummary struct {
	Date         civil.Date
	PlannedHours float64 // task allocations and recurring occurrences
	LoggedHours  float64 // time entries
	CallMinutes  int
	Events       int // everything except the lunch block
}

// Summarize groups events by the day they were assembled for and returns
// one summary per day, ascending. Days with only a lunch block are
// included with zero totals.
func Summarize(events []Event) []DaySummary {
	byDay := make(map[civil.Date]*DaySummary)
	for _, ev := range events {
		s, ok := byDay[ev.Date]
		if !ok {
			s = &DaySummary{Date: ev.Date}
			byDay[ev.Date] = s
		}
		switch ev.Category() {
		case CategoryLunch:
			continue
		case CategoryTask, CategoryRecurring:
			s.PlannedHours += ev.Duration().Hours()
		case CategoryTimeEntry:
			s.LoggedHours += ev.Duration().Hours()
		case CategoryCall:
			s.CallMinutes += int(ev.Duration().Minutes())
		}
		s.Events++
	}

	out := make([]DaySummary, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
