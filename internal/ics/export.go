package ics

import (
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"plancal/internal/schedule"
)

// uidNamespace scopes the name-based UUIDs of exported events.
var uidNamespace = uuid.MustParse("6f1c1d0e-5b7a-4c53-9d8e-2a6b0f3e9c41")

// ExportConfig controls Export.
type ExportConfig struct {
	// Name becomes X-WR-CALNAME.
	Name string

	// Stamp is written as DTSTAMP on every event. Zero means time.Now.
	Stamp time.Time

	// IncludeLunch adds the daily lunch blocks; they are left out by
	// default since every subscriber has their own.
	IncludeLunch bool
}

// Export serializes events as an iCalendar (RFC 5545) document. Event UIDs
// are derived from event ids, so a subscriber sees the same event updated
// in place across exports instead of duplicates.
func Export(events []schedule.Event, cfg ExportConfig) string {
	stamp := cfg.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//plancal//calendar export//EN")
	if cfg.Name != "" {
		cal.SetXWRCalName(cfg.Name)
	}

	for _, ev := range events {
		if ev.Category() == schedule.CategoryLunch && !cfg.IncludeLunch {
			continue
		}
		ve := cal.AddEvent(EventUID(ev))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		ve.SetSummary(ev.Title)
		if desc := describe(ev); desc != "" {
			ve.SetDescription(desc)
		}
		ve.AddProperty(ical.ComponentPropertyCategories, string(ev.Category()))
	}

	return cal.Serialize()
}

// WriteFile exports events to path.
func WriteFile(path string, events []schedule.Event, cfg ExportConfig) error {
	if err := os.WriteFile(path, []byte(Export(events, cfg)), 0o644); err != nil {
		return fmt.Errorf("ics: write %s: %w", path, err)
	}
	return nil
}

// EventUID returns the iCalendar UID used for ev.
func EventUID(ev schedule.Event) string {
	return uuid.NewSHA1(uidNamespace, []byte(ev.ID)).String() + "@plancal"
}

func describe(ev schedule.Event) string {
	switch r := ev.Resource.(type) {
	case schedule.TaskResource:
		if r.ProjectName == "" {
			return fmt.Sprintf("Allocated %gh", r.AllocatedHours)
		}
		return fmt.Sprintf("Project: %s\nAllocated %gh", r.ProjectName, r.AllocatedHours)
	case schedule.TimeEntryResource:
		if r.Packed {
			return fmt.Sprintf("Logged %gh (no recorded start time)", r.Hours)
		}
		return fmt.Sprintf("Logged %gh", r.Hours)
	case schedule.CallResource:
		if len(r.Participants) == 0 {
			return r.CallType
		}
		return r.CallType + " with " + strings.Join(r.Participants, ", ")
	case schedule.RecurringResource:
		return fmt.Sprintf("Recurring allocation #%d", r.RecurringAllocationID)
	}
	return ""
}
