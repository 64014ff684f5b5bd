package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"plancal/internal/config"
	"plancal/internal/dataset"
	"plancal/internal/model"
)

type fakeSource struct {
	mu      sync.Mutex
	snap    *dataset.Snapshot
	version uint64
}

func (f *fakeSource) Snapshot() (*dataset.Snapshot, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil, 0, dataset.ErrNoSnapshot
	}
	return f.snap, f.version, nil
}

func (f *fakeSource) set(s *dataset.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.version++
	f.mu.Unlock()
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.WeekStart = "monday"
	cfg.WindowWeeks = 1
	cfg.Lunch.DurationMinutes = 0
	cfg.Normalize()
	return cfg
}

func sampleSnapshot() *dataset.Snapshot {
	return &dataset.Snapshot{
		TaskAllocations: []model.TaskAllocation{{ID: 1, TaskID: 10, TaskName: "Build", ProjectName: "Apollo", AllocationDate: "2024-06-03", StartTime: "09:00", EndTime: "11:00", AllocatedHours: 2}},
		TimeEntries: []model.TimeEntry{
			{ID: 2, TaskID: 10, TaskName: "Review", WorkDate: "2024-06-03", Hours: "1.5"},
			{ID: 3, TaskID: 10, WorkDate: "2024-06-04", Hours: "2", StartTime: "13:00"},
		},
		CallRecords: []model.CallRecord{{ID: 4, CallDate: "2024-06-04", StartTime: "10:00", DurationMinutes: 30, CallType: "Phone", Subject: "Kickoff"}},
	}
}

func newTestServer(cfg *config.Config, src SnapshotSource) *Server {
	fixed := time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)
	return NewServer(cfg, src, func() time.Time { return fixed })
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestEvents(t *testing.T) {
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(testConfig(), src).Handler()

	rec := get(t, h, "/api/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.WindowStart != "2024-06-03" || resp.WindowEnd != "2024-06-09" || len(resp.Days) != 7 {
		t.Errorf("window = %s..%s (%d days)", resp.WindowStart, resp.WindowEnd, len(resp.Days))
	}
	if resp.Timezone != "UTC" || resp.WeekStart != "monday" || resp.Version != 1 {
		t.Errorf("meta = %+v", resp)
	}
	if len(resp.Events) != 4 {
		t.Fatalf("events = %d, want 4", len(resp.Events))
	}

	byID := make(map[string]eventDTO)
	for _, ev := range resp.Events {
		byID[ev.ID] = ev
	}
	packed := byID["timeEntry-2"]
	if packed.Category != "timeEntry" || !packed.Resource.Packed || packed.Resource.EntryID != 2 {
		t.Errorf("packed entry = %+v", packed)
	}
	if !packed.Start.Equal(time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("packed start = %v", packed.Start)
	}
	if task := byID["task-1"]; task.Title != "Build (Apollo)" || task.Resource.AllocatedHours != 2 {
		t.Errorf("task = %+v", task)
	}
	if call := byID["call-4"]; call.Resource.CallType != "Phone" || call.Date != "2024-06-04" {
		t.Errorf("call = %+v", call)
	}
}

func TestEventsFollowsSnapshotVersion(t *testing.T) {
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(testConfig(), src).Handler()

	if rec := get(t, h, "/api/events?today=2024-06-03"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	src.set(&dataset.Snapshot{})

	var resp eventsResponse
	rec := get(t, h, "/api/events?today=2024-06-03")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Events) != 0 || resp.Version != 2 {
		t.Errorf("after reload: events=%d version=%d", len(resp.Events), resp.Version)
	}
}

func TestEventsErrors(t *testing.T) {
	h := newTestServer(testConfig(), &fakeSource{}).Handler()
	if rec := get(t, h, "/api/events"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no snapshot: status = %d", rec.Code)
	}

	src := &fakeSource{}
	src.set(sampleSnapshot())
	h = newTestServer(testConfig(), src).Handler()
	if rec := get(t, h, "/api/events?today=June"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad today: status = %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(testConfig(), src).Handler()

	rec := get(t, h, "/api/summary?today=2024-06-03")
	var sums []summaryDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &sums); err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("summaries = %+v", sums)
	}
	if sums[0].Date != "2024-06-03" || sums[0].PlannedHours != 2 || sums[0].LoggedHours != 1.5 {
		t.Errorf("monday = %+v", sums[0])
	}
	if sums[1].CallMinutes != 30 || sums[1].LoggedHours != 2 {
		t.Errorf("tuesday = %+v", sums[1])
	}
}

func TestSlot(t *testing.T) {
	h := newTestServer(testConfig(), &fakeSource{}).Handler()

	rec := get(t, h, "/api/slot?start=2024-06-03T10:00:00Z&end=2024-06-03T11:30:00Z&taskId=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp slotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.WorkDate != "2024-06-03" || resp.StartTime != "10:00" || resp.EndTime != "11:30" || resp.Hours != 1.5 {
		t.Errorf("draft = %+v", resp)
	}
	if resp.TimeEntry.TaskID != 10 || resp.Call.DurationMinutes != 90 {
		t.Errorf("requests = %+v / %+v", resp.TimeEntry, resp.Call)
	}

	rec = get(t, h, "/api/slot?start=2024-06-03T10:00:00Z&end=2024-06-03T11:30:00Z&task_id=10")
	resp = slotResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TimeEntry.TaskID != 0 {
		t.Errorf("snake_case task_id accepted: %+v", resp.TimeEntry)
	}

	if rec := get(t, h, "/api/slot?start=later"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad start: status = %d", rec.Code)
	}
}

func TestTimeEntry(t *testing.T) {
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(testConfig(), src).Handler()

	rec := get(t, h, "/api/time-entries/3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp timeEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Entry.ID != 3 || resp.Draft.EndTime != "15:00" || resp.Draft.Hours != 2 {
		t.Errorf("entry = %+v", resp)
	}

	if rec := get(t, h, "/api/time-entries/99"); rec.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/time-entries/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", rec.Code)
	}
}

func TestCalendar(t *testing.T) {
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(testConfig(), src).Handler()

	rec := get(t, h, "/calendar.ics?today=2024-06-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	if n := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); n != 4 {
		t.Errorf("vevents = %d, want 4", n)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	src := &fakeSource{}
	src.set(sampleSnapshot())
	h := newTestServer(cfg, src).Handler()

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/events"); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d", rec.Code)
	}

	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid credentials: status = %d", rec.Code)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") || secureCompare("abc", "abd") || secureCompare("abc", "ab") {
		t.Error("secureCompare mismatch")
	}
}
