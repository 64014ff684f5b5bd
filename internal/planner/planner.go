// Package planner turns a loaded snapshot and the user's configuration into
// an assembled calendar.
package planner

import (
	"plancal/internal/civil"
	"plancal/internal/config"
	"plancal/internal/dataset"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/recurring"
	"plancal/internal/schedule"
)

// Plan is one assembled calendar together with what went into it.
type Plan struct {
	schedule.Result

	Today       civil.Date
	Expanded    int     // occurrences generated from recurring rules
	InvalidRule []int64 // rules that could not be expanded
}

// Build assembles the calendar for today. Recurring rules are expanded over
// the rolling window and merged with the occurrences already present in the
// snapshot; an occurrence the snapshot already has for a rule and day wins
// over the generated one.
func Build(snap *dataset.Snapshot, cfg *config.Config, today civil.Date) Plan {
	if snap == nil {
		snap = &dataset.Snapshot{}
	}
	window := schedule.NewWindow(today, cfg.FirstWeekday(), cfg.WindowDays())

	occurrences := snap.RecurringOccurrences
	plan := Plan{Today: today}
	if len(snap.RecurringAllocations) > 0 {
		res, err := recurring.Expand(snap.RecurringAllocations, recurring.ExpandConfig{
			From: window.Start,
			To:   window.End(),
		})
		if err != nil {
			appLog.Error("planner: recurring expansion failed", err, "today", today.String())
		} else {
			generated := withoutKnown(res.Occurrences, snap.RecurringOccurrences)
			plan.Expanded = len(generated)
			plan.InvalidRule = res.InvalidRules
			occurrences = append(append([]model.RecurringOccurrence(nil), occurrences...), generated...)
		}
	}

	plan.Result = schedule.Assemble(schedule.Input{
		Allocations: snap.TaskAllocations,
		Occurrences: occurrences,
		TimeEntries: snap.TimeEntries,
		Calls:       snap.CallRecords,
		Lunch:       cfg.Lunch,
		WorkStart:   cfg.WorkStartTimes(),
	}, schedule.AssembleConfig{
		Today:      today,
		WeekStart:  cfg.FirstWeekday(),
		WindowDays: cfg.WindowDays(),
		Location:   cfg.Location(),
	})

	appLog.Debug("planner: calendar built",
		"today", today.String(),
		"events", len(plan.Events),
		"days", len(plan.Days),
		"expanded", plan.Expanded,
		"skipped", plan.Skipped,
	)
	return plan
}

type ruleDay struct {
	rule int64
	date string
}

func withoutKnown(generated, known []model.RecurringOccurrence) []model.RecurringOccurrence {
	if len(known) == 0 {
		return generated
	}
	seen := make(map[ruleDay]bool, len(known))
	for _, o := range known {
		if d, err := civil.ParseDate(o.OccurrenceDate); err == nil {
			seen[ruleDay{o.RecurringAllocationID, d.String()}] = true
		}
	}
	out := generated[:0:0]
	for _, o := range generated {
		if !seen[ruleDay{o.RecurringAllocationID, o.OccurrenceDate}] {
			out = append(out, o)
		}
	}
	return out
}
