package planner

import (
	"testing"
	"time"

	"plancal/internal/civil"
	"plancal/internal/config"
	"plancal/internal/dataset"
	"plancal/internal/model"
	"plancal/internal/schedule"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.WeekStart = "monday"
	cfg.WindowWeeks = 1
	cfg.Lunch.DurationMinutes = 0
	cfg.Normalize()
	return cfg
}

func TestBuildMergesRecurring(t *testing.T) {
	snap := &dataset.Snapshot{
		RecurringAllocations: []model.RecurringAllocation{{
			ID: 7, Title: "Ops rota", RRule: "FREQ=WEEKLY;BYDAY=MO,WE",
			StartDate: "2024-06-03", StartTime: "10:00", EndTime: "11:00", AllocatedHours: 1,
		}},
		RecurringOccurrences: []model.RecurringOccurrence{{
			ID: 99, RecurringAllocationID: 7, Title: "Ops rota (moved)",
			OccurrenceDate: "2024-06-05", StartTime: "15:00", EndTime: "16:00", AllocatedHours: 1,
		}},
	}
	today := civil.Date{Year: 2024, Month: time.June, Day: 4}

	plan := Build(snap, testConfig(), today)

	if plan.Window.Start != (civil.Date{Year: 2024, Month: time.June, Day: 3}) || len(plan.Days) != 7 {
		t.Fatalf("window = %+v, days = %d", plan.Window, len(plan.Days))
	}
	if plan.Expanded != 1 {
		t.Errorf("expanded = %d, want 1 (Wednesday already in snapshot)", plan.Expanded)
	}

	var recurringEvents []schedule.Event
	for _, ev := range plan.Events {
		if ev.Category() == schedule.CategoryRecurring {
			recurringEvents = append(recurringEvents, ev)
		}
	}
	if len(recurringEvents) != 2 {
		t.Fatalf("recurring events = %d, want 2", len(recurringEvents))
	}
	wed := recurringEvents[1]
	if wed.Title != "Ops rota (moved)" || wed.Start.Hour() != 15 {
		t.Errorf("snapshot occurrence should win, got %q at %v", wed.Title, wed.Start)
	}
	if res := recurringEvents[0].Resource.(schedule.RecurringResource); res.OccurrenceID != 0 || res.RecurringAllocationID != 7 {
		t.Errorf("generated resource = %+v", res)
	}
}

func TestBuildReportsInvalidRules(t *testing.T) {
	snap := &dataset.Snapshot{
		RecurringAllocations: []model.RecurringAllocation{{ID: 3, RRule: "FREQ=SOMETIMES", StartDate: "2024-06-03"}},
	}
	plan := Build(snap, testConfig(), civil.Date{Year: 2024, Month: time.June, Day: 3})
	if len(plan.InvalidRule) != 1 || plan.InvalidRule[0] != 3 {
		t.Errorf("invalid rules = %v", plan.InvalidRule)
	}
	if len(plan.Events) != 0 {
		t.Errorf("events = %d, want 0", len(plan.Events))
	}
}

func TestBuildNilSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Lunch.DurationMinutes = 30
	plan := Build(nil, cfg, civil.Date{Year: 2024, Month: time.June, Day: 3})
	if len(plan.Events) != 7 {
		t.Errorf("events = %d, want one lunch per day", len(plan.Events))
	}
}
