package agenda

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"plancal/internal/civil"
	"plancal/internal/model"
	"plancal/internal/schedule"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleResult() schedule.Result {
	monday := civil.Date{Year: 2024, Month: time.June, Day: 3}
	return schedule.Assemble(schedule.Input{
		Allocations: []model.TaskAllocation{{ID: 1, TaskName: "Build", ProjectName: "Apollo", AllocationDate: "2024-06-03", StartTime: "09:00", EndTime: "11:00", AllocatedHours: 2}},
		TimeEntries: []model.TimeEntry{{ID: 2, TaskName: "Review", WorkDate: "2024-06-03", Hours: "1.5"}},
		Calls:       []model.CallRecord{{ID: 3, CallDate: "2024-06-03", StartTime: "14:00", DurationMinutes: 30, CallType: "Phone", Subject: "Kickoff", Participants: []string{"Ana", "Bo"}}},
	}, schedule.AssembleConfig{Today: monday, WeekStart: time.Monday, WindowDays: 2, Location: time.UTC})
}

func TestAgenda(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	p := &Printer{Out: &buf, ShowIDs: true}
	p.Agenda(res.Days, res.Events)
	out := buf.String()

	for _, want := range []string{
		"Mon 2024-06-03 - 3 events",
		"09:00-11:00",
		"Build (Apollo)",
		"2h planned",
		"11:00-12:30",
		"1.5h logged (packed)",
		"Phone: Kickoff",
		"Ana, Bo",
		"task-1",
		"Tue 2024-06-04 - 0 events",
		"none",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("agenda missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("escape codes written with NoColor set")
	}
}

func TestAgendaSingleEvent(t *testing.T) {
	var buf bytes.Buffer
	d := civil.Date{Year: 2024, Month: time.June, Day: 5}
	ev := schedule.Event{
		ID:       "call-9",
		Title:    "Call: Sync",
		Date:     d,
		Start:    d.At(civil.NewClock(23, 30), time.UTC),
		End:      d.AddDays(1).At(civil.NewClock(0, 30), time.UTC),
		Resource: schedule.CallResource{CallID: 9},
	}
	(&Printer{Out: &buf}).Day(d, []schedule.Event{ev})
	out := buf.String()
	if !strings.Contains(out, " - 1 event\n") || !strings.Contains(out, "23:30-00:30+1") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "call-9") {
		t.Error("ids printed without ShowIDs")
	}
}

func TestSummary(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	(&Printer{Out: &buf}).Summary(schedule.Summarize(res.Events))
	out := buf.String()
	for _, want := range []string{"PLANNED", "2024-06-03", "30m", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestAgendaMarksDaysOutsideWindow(t *testing.T) {
	monday := civil.Date{Year: 2024, Month: time.June, Day: 3}
	res := schedule.Assemble(schedule.Input{
		TimeEntries: []model.TimeEntry{{ID: 7, TaskName: "Backfill", WorkDate: "2024-05-20", Hours: "1"}},
	}, schedule.AssembleConfig{Today: monday, WeekStart: time.Monday, WindowDays: 2, Location: time.UTC})

	var buf bytes.Buffer
	(&Printer{Out: &buf, Window: res.Window}).Agenda(res.Days, res.Events)
	out := buf.String()

	if !strings.Contains(out, "Mon 2024-05-20 (outside window) - 1 event") {
		t.Errorf("forced-in day not marked:\n%s", out)
	}
	if strings.Contains(out, "2024-06-03 (outside window)") {
		t.Errorf("window day marked as outside:\n%s", out)
	}
}
