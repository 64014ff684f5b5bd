package schedule

import (
	"fmt"
	"time"

	"plancal/internal/civil"
	"plancal/internal/model"
)

var (
	defaultWorkStart = civil.NewClock(9, 0)
	defaultCallStart = civil.NewClock(9, 0)
	defaultLunchTime = civil.NewClock(12, 0)
)

const (
	// DefaultCallMinutes is used for calls logged without a usable duration.
	DefaultCallMinutes = 30

	// DefaultLunchMinutes replaces a lunch duration longer than a day.
	DefaultLunchMinutes = 60
)

// blockMinutes returns minutes when it is a usable block length, def
// otherwise. Anything longer than a day is treated as a typo.
func blockMinutes(minutes, def int) int {
	if minutes <= 0 || minutes > civil.MinutesPerDay {
		return def
	}
	return minutes
}

// WorkStartTimes maps a weekday to the "HH:MM" the working day starts at.
// Days missing from the map start at 09:00.
type WorkStartTimes map[time.Weekday]string

// Input is everything the assembler reads. None of it is modified.
type Input struct {
	Allocations []model.TaskAllocation
	Occurrences []model.RecurringOccurrence
	TimeEntries []model.TimeEntry
	Calls       []model.CallRecord
	Lunch       model.LunchConfig
	WorkStart   WorkStartTimes
}

// AssembleConfig controls the window and timezone of an assembly.
type AssembleConfig struct {
	// Today anchors the default window. It must be set by the caller; the
	// assembler never reads the wall clock.
	Today civil.Date

	// WeekStart is the first day of the window's first week.
	WeekStart time.Weekday

	// WindowDays is the length of the default window. Zero means
	// DefaultWindowDays.
	WindowDays int

	// Location is the zone event timestamps are built in. Nil means
	// time.Local.
	Location *time.Location
}

// Result is the output of Assemble.
type Result struct {
	Events []Event

	// Window is the default rolling window; Days is the window plus every
	// date some record forced in, ascending.
	Window Window
	Days   []civil.Date

	// Skipped counts records that produced no event: unreadable dates and
	// allocations or occurrences without a usable start/end.
	Skipped int
}

type dayBucket struct {
	allocations []model.TaskAllocation
	occurrences []model.RecurringOccurrence
	entries     []model.TimeEntry
	calls       []model.CallRecord
}

// Assemble turns the input records into calendar events for every day of
// the window plus every day that carries at least one record. For each day
// it emits, in order, the lunch block, calls, task allocations, recurring
// occurrences and time entries. Time entries without explicit times are
// packed after the latest allocation of the day, or from the day's work
// start if that is later.
//
// Assemble never fails. Records with unreadable dates or times degrade to
// no event (allocations, occurrences) or sequential placement (time
// entries).
func Assemble(in Input, cfg AssembleConfig) Result {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	res := Result{Window: NewWindow(cfg.Today, cfg.WeekStart, cfg.WindowDays)}

	buckets := make(map[civil.Date]*dayBucket)
	bucket := func(raw string) *dayBucket {
		d, err := civil.ParseDate(raw)
		if err != nil {
			res.Skipped++
			return nil
		}
		b, ok := buckets[d]
		if !ok {
			b = &dayBucket{}
			buckets[d] = b
		}
		return b
	}

	for _, a := range in.Allocations {
		if b := bucket(a.AllocationDate); b != nil {
			b.allocations = append(b.allocations, a)
		}
	}
	for _, o := range in.Occurrences {
		if b := bucket(o.OccurrenceDate); b != nil {
			b.occurrences = append(b.occurrences, o)
		}
	}
	for _, e := range in.TimeEntries {
		if b := bucket(e.WorkDate); b != nil {
			b.entries = append(b.entries, e)
		}
	}
	for _, c := range in.Calls {
		if b := bucket(c.CallDate); b != nil {
			b.calls = append(b.calls, c)
		}
	}

	res.Days = unionDates(res.Window, buckets)

	lunchStart, lunchOK := lunchClock(in.Lunch)
	for _, d := range res.Days {
		if lunchOK {
			res.Events = append(res.Events, lunchEvent(d, lunchStart, in.Lunch.DurationMinutes, loc))
		}
		b, ok := buckets[d]
		if !ok {
			continue
		}
		var skipped int
		res.Events, skipped = appendDay(res.Events, d, b, in.WorkStart, loc)
		res.Skipped += skipped
	}

	return res
}

func appendDay(out []Event, d civil.Date, b *dayBucket, workStart WorkStartTimes, loc *time.Location) ([]Event, int) {
	skipped := 0

	for _, c := range b.calls {
		out = append(out, callEvent(d, c, loc))
	}

	pointer := workStartFor(workStart, d.Weekday())
	for _, a := range b.allocations {
		start, end, ok := fixedRange(a.StartTime, a.EndTime)
		if !ok {
			skipped++
			continue
		}
		out = append(out, Event{
			ID:    fmt.Sprintf("task-%d", a.ID),
			Title: allocationTitle(a),
			Date:  d,
			Start: d.At(start, loc),
			End:   d.At(end, loc),
			Resource: TaskResource{
				AllocationID:   a.ID,
				TaskID:         a.TaskID,
				TaskName:       a.TaskName,
				ProjectID:      a.ProjectID,
				ProjectName:    a.ProjectName,
				AllocatedHours: a.AllocatedHours,
			},
		})
		if end > pointer {
			pointer = end
		}
	}

	for _, o := range b.occurrences {
		start, end, ok := fixedRange(o.StartTime, o.EndTime)
		if !ok {
			skipped++
			continue
		}
		title := o.Title
		if title == "" {
			title = "Recurring allocation"
		}
		out = append(out, Event{
			ID:    fmt.Sprintf("recurring-%d-%s", o.RecurringAllocationID, d),
			Title: title,
			Date:  d,
			Start: d.At(start, loc),
			End:   d.At(end, loc),
			Resource: RecurringResource{
				OccurrenceID:          o.ID,
				RecurringAllocationID: o.RecurringAllocationID,
				AllocatedHours:        o.AllocatedHours,
			},
		})
	}

	packer := NewPacker(d, pointer, loc)
	for _, e := range b.entries {
		ev := Event{
			ID:    fmt.Sprintf("timeEntry-%d", e.ID),
			Title: entryTitle(e),
			Date:  d,
		}
		res := TimeEntryResource{EntryID: e.ID, TaskID: e.TaskID}
		if start, end, ok := fixedRange(e.StartTime, e.EndTime); ok {
			ev.Start, ev.End = d.At(start, loc), d.At(end, loc)
			res.Hours = civil.HoursBetween(start, end)
		} else {
			res.Hours = ParseHours(e.Hours)
			res.Packed = true
			ev.Start, ev.End = packer.Place(res.Hours)
		}
		ev.Resource = res
		out = append(out, ev)
	}

	return out, skipped
}

func lunchClock(l model.LunchConfig) (civil.Clock, bool) {
	if l.DurationMinutes <= 0 {
		return 0, false
	}
	c, err := civil.ParseClock(l.LunchTime)
	if err != nil {
		c = defaultLunchTime
	}
	return c, true
}

func lunchEvent(d civil.Date, start civil.Clock, minutes int, loc *time.Location) Event {
	s := d.At(start, loc)
	return Event{
		ID:       "lunch-" + d.String(),
		Title:    "Lunch",
		Date:     d,
		Start:    s,
		End:      s.Add(time.Duration(blockMinutes(minutes, DefaultLunchMinutes)) * time.Minute),
		Resource: LunchResource{},
	}
}

func callEvent(d civil.Date, c model.CallRecord, loc *time.Location) Event {
	start, err := civil.ParseClock(c.StartTime)
	if err != nil {
		start = defaultCallStart
	}
	minutes := blockMinutes(c.DurationMinutes, DefaultCallMinutes)
	s := d.At(start, loc)
	return Event{
		ID:    fmt.Sprintf("call-%d", c.ID),
		Title: callTitle(c),
		Date:  d,
		Start: s,
		End:   s.Add(time.Duration(minutes) * time.Minute),
		Resource: CallResource{
			CallID:       c.ID,
			CallType:     c.CallType,
			Subject:      c.Subject,
			Participants: c.Participants,
		},
	}
}

// fixedRange parses an explicit start/end pair. It fails when either side
// is missing or unreadable, or when end is not after start.
func fixedRange(startRaw, endRaw string) (civil.Clock, civil.Clock, bool) {
	if startRaw == "" || endRaw == "" {
		return 0, 0, false
	}
	start, err := civil.ParseClock(startRaw)
	if err != nil {
		return 0, 0, false
	}
	end, err := civil.ParseClock(endRaw)
	if err != nil {
		return 0, 0, false
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end, true
}

func workStartFor(ws WorkStartTimes, day time.Weekday) civil.Clock {
	raw, ok := ws[day]
	if !ok {
		return defaultWorkStart
	}
	c, err := civil.ParseClock(raw)
	if err != nil {
		return defaultWorkStart
	}
	return c
}

func allocationTitle(a model.TaskAllocation) string {
	name := a.TaskName
	if name == "" {
		name = fmt.Sprintf("Task #%d", a.TaskID)
	}
	if a.ProjectName == "" {
		return name
	}
	return name + " (" + a.ProjectName + ")"
}

func entryTitle(e model.TimeEntry) string {
	switch {
	case e.TaskName != "":
		return e.TaskName
	case e.Description != "":
		return e.Description
	}
	return fmt.Sprintf("Task #%d", e.TaskID)
}

func callTitle(c model.CallRecord) string {
	kind := c.CallType
	if kind == "" {
		kind = "Call"
	}
	if c.Subject == "" {
		return kind
	}
	return kind + ": " + c.Subject
}
