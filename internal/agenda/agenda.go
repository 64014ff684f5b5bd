// Package agenda prints assembled calendars to a terminal.
package agenda

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"plancal/internal/civil"
	"plancal/internal/schedule"
)

// Printer writes day-by-day agendas.
type Printer struct {
	Out io.Writer

	// ShowIDs adds the event id column.
	ShowIDs bool

	// Today is highlighted when set.
	Today civil.Date

	// Window, when set, marks days that were only pulled in by a record
	// dated outside it.
	Window schedule.Window
}

// New returns a Printer writing to color.Output.
func New() *Printer {
	return &Printer{Out: color.Output}
}

var categoryColor = map[schedule.Category]*color.Color{
	schedule.CategoryTask:      color.New(color.FgHiBlue),
	schedule.CategoryRecurring: color.New(color.FgBlue),
	schedule.CategoryTimeEntry: color.New(color.FgGreen),
	schedule.CategoryCall:      color.New(color.FgHiYellow),
	schedule.CategoryLunch:     color.New(color.Faint),
}

// Agenda prints every day in days with its events. Days without events are
// printed with a "none" line so gaps stay visible.
func (p *Printer) Agenda(days []civil.Date, events []schedule.Event) {
	byDay := make(map[civil.Date][]schedule.Event, len(days))
	for _, ev := range events {
		byDay[ev.Date] = append(byDay[ev.Date], ev)
	}
	for _, d := range days {
		p.Day(d, byDay[d])
	}
}

// Day prints one day's heading followed by its events.
func (p *Printer) Day(d civil.Date, events []schedule.Event) {
	title := color.New(color.Bold, color.Underline)
	if d == p.Today {
		title = color.New(color.Bold, color.Underline, color.FgHiWhite)
	}
	faint := color.New(color.Faint)

	_, _ = title.Fprintf(p.Out, "%s %s", d.Weekday().String()[:3], d)
	if p.Window.Days > 0 && !p.Window.Contains(d) {
		_, _ = faint.Fprint(p.Out, " (outside window)")
	}
	switch n := countWithoutLunch(events); n {
	case 1:
		_, _ = faint.Fprintln(p.Out, " - 1 event")
	default:
		_, _ = faint.Fprintf(p.Out, " - %d events\n", n)
	}

	if len(events) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprint(p.Out, "  none\n\n")
		return
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	for _, ev := range events {
		c, ok := categoryColor[ev.Category()]
		if !ok {
			c = color.New()
		}
		row := []interface{}{
			" " + timeRange(ev),
			c.Sprint(string(ev.Category())),
			ev.Title,
			detail(ev),
		}
		if p.ShowIDs {
			row = append([]interface{}{color.New(color.FgHiYellow, color.Faint).Sprint(ev.ID)}, row...)
		}
		tbl.AddRow(row...)
	}
	_, _ = fmt.Fprintln(p.Out, tbl)
	_, _ = fmt.Fprintln(p.Out)
}

// Summary prints one row per day with planned, logged and call totals.
func (p *Printer) Summary(days []schedule.DaySummary) {
	_, _ = color.New(color.Bold, color.Underline).Fprintln(p.Out, "Summary")

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("DATE", "PLANNED", "LOGGED", "CALLS", "EVENTS")
	var planned, logged float64
	var calls, count int
	for _, s := range days {
		tbl.AddRow(s.Date.String(), hours(s.PlannedHours), hours(s.LoggedHours), fmt.Sprintf("%dm", s.CallMinutes), s.Events)
		planned += s.PlannedHours
		logged += s.LoggedHours
		calls += s.CallMinutes
		count += s.Events
	}
	tbl.AddRow("total", hours(planned), hours(logged), fmt.Sprintf("%dm", calls), count)
	_, _ = fmt.Fprintln(p.Out, tbl)
}

func timeRange(ev schedule.Event) string {
	r := ev.Start.Format("15:04") + "-" + ev.End.Format("15:04")
	if civil.DateOf(ev.End) != civil.DateOf(ev.Start) {
		r += "+1"
	}
	return r
}

func detail(ev schedule.Event) string {
	switch r := ev.Resource.(type) {
	case schedule.TaskResource:
		return hours(r.AllocatedHours) + " planned"
	case schedule.RecurringResource:
		return hours(r.AllocatedHours) + " planned"
	case schedule.TimeEntryResource:
		if r.Packed {
			return hours(r.Hours) + " logged (packed)"
		}
		return hours(r.Hours) + " logged"
	case schedule.CallResource:
		return strings.Join(r.Participants, ", ")
	}
	return ""
}

func hours(h float64) string {
	return fmt.Sprintf("%gh", h)
}

func countWithoutLunch(events []schedule.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Category() != schedule.CategoryLunch {
			n++
		}
	}
	return n
}
