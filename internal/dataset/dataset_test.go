package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"plancal/internal/model"
)

const sample = `
task_allocations:
  - id: 1
    task_id: 10
    task_name: Design review
    project_id: 3
    project_name: Apollo
    allocation_date: "2024-06-03"
    allocated_hours: 2
    start_time: "12:00"
    end_time: "14:00"
recurring_allocations:
  - id: 5
    title: Standup
    rrule: FREQ=WEEKLY;BYDAY=MO,WE,FR
    start_date: "2024-01-01"
    start_time: "09:00"
    end_time: "09:15"
time_entries:
  - id: 100
    task_id: 10
    task_name: Design review
    work_date: "2024-06-03T00:00:00Z"
    hours: 1.5
  - id: 101
    task_id: 11
    work_date: "2024-06-03"
    hours: "2"
    start_time: "15:00"
    end_time: "17:00"
call_records:
  - id: 7
    call_date: "2024-06-03"
    start_time: "10:00"
    duration_minutes: 45
    call_type: Phone
    participants: [ana, bo]
    subject: Kickoff
`

type fakeCalls struct {
	calls []model.CallRecord
	err   error
}

func (f fakeCalls) Calls(context.Context) ([]model.CallRecord, error) {
	return f.calls, f.err
}

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.TaskAllocations) != 1 || s.TaskAllocations[0].ProjectName != "Apollo" {
		t.Errorf("allocations = %+v", s.TaskAllocations)
	}
	if len(s.TimeEntries) != 2 || s.TimeEntries[0].Hours != "1.5" || s.TimeEntries[1].Hours != "2" {
		t.Errorf("entries = %+v", s.TimeEntries)
	}
	if s.TimeEntries[0].WorkDate != "2024-06-03T00:00:00Z" {
		t.Errorf("work date = %q", s.TimeEntries[0].WorkDate)
	}
	if len(s.CallRecords) != 1 || len(s.CallRecords[0].Participants) != 2 {
		t.Errorf("calls = %+v", s.CallRecords)
	}
	if len(s.RecurringAllocations) != 1 || s.RecurringAllocations[0].RRule != "FREQ=WEEKLY;BYDAY=MO,WE,FR" {
		t.Errorf("rules = %+v", s.RecurringAllocations)
	}
}

func TestParseJSON(t *testing.T) {
	s, err := Parse([]byte(`{"time_entries": [{"id": 1, "work_date": "2024-06-03", "hours": 2}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.TimeEntries) != 1 || s.TimeEntries[0].Hours != "2" {
		t.Errorf("entries = %+v", s.TimeEntries)
	}
}

func TestStoreReload(t *testing.T) {
	path := writeSnapshot(t, sample)
	extra := model.CallRecord{ID: 900, CallDate: "2024-06-04", Subject: "from feed"}
	st := NewStore(path, fakeCalls{calls: []model.CallRecord{extra}})

	if _, _, err := st.Snapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Snapshot before load err = %v", err)
	}
	if err := st.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap, v, err := st.Snapshot()
	if err != nil || v != 1 {
		t.Fatalf("Snapshot = %v, %v", v, err)
	}
	if len(snap.CallRecords) != 2 || snap.CallRecords[1].ID != 900 {
		t.Errorf("calls = %+v", snap.CallRecords)
	}
	if st.LoadedAt().IsZero() {
		t.Error("LoadedAt not set")
	}

	// A broken file keeps the old snapshot.
	if err := os.WriteFile(path, []byte("time_entries: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := st.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	if _, v, _ := st.Snapshot(); v != 1 {
		t.Errorf("version after failed reload = %d", v)
	}
}

func TestStoreReloadToleratesCallSourceError(t *testing.T) {
	st := NewStore(writeSnapshot(t, sample), fakeCalls{err: errors.New("feed down")})
	if err := st.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap, _, _ := st.Snapshot()
	if len(snap.CallRecords) != 1 {
		t.Errorf("calls = %d, want 1", len(snap.CallRecords))
	}
}
