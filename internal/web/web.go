package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"plancal/internal/civil"
	"plancal/internal/config"
	"plancal/internal/dataset"
	"plancal/internal/ics"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/planner"
	"plancal/internal/schedule"
)

// SnapshotSource is what the server reads records from; *dataset.Store
// satisfies it.
type SnapshotSource interface {
	Snapshot() (*dataset.Snapshot, uint64, error)
}

// Server provides the read-only calendar API.
type Server struct {
	cfg  *config.Config
	data SnapshotSource
	now  func() time.Time
	mux  *http.ServeMux

	// Assembled plans are cached per (today, snapshot version) so that
	// the events, summary and calendar endpoints share one assembly.
	planMu    sync.Mutex
	planCache map[planKey]*cachedPlan
}

type planKey struct {
	today   civil.Date
	version uint64
}

type cachedPlan struct {
	plan      planner.Plan
	updatedAt time.Time
}

const planCacheTTL = 30 * time.Second

// NewServer constructs a new Server. now may be nil, meaning time.Now.
func NewServer(cfg *config.Config, data SnapshotSource, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:       cfg,
		data:      data,
		now:       now,
		mux:       http.NewServeMux(),
		planCache: make(map[planKey]*cachedPlan),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="plancal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/slot", s.handleSlot)
	s.mux.HandleFunc("GET /api/time-entries/{id}", s.handleTimeEntry)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events      []eventDTO `json:"events"`
	WindowStart string     `json:"windowStart"`
	WindowEnd   string     `json:"windowEnd"`
	Days        []string   `json:"days"`
	Timezone    string     `json:"timezone"`
	WeekStart   string     `json:"weekStart"`
	Skipped     int        `json:"skipped"`
	Version     uint64     `json:"version"`
}

// eventDTO is a JSON-friendly view of schedule.Event.
type eventDTO struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Date     string      `json:"date"`
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Category string      `json:"category"`
	Resource resourceDTO `json:"resource"`
}

// resourceDTO flattens the category-specific payloads; only the fields of
// the event's category are set.
type resourceDTO struct {
	AllocationID          int64    `json:"allocationId,omitempty"`
	TaskID                int64    `json:"taskId,omitempty"`
	TaskName              string   `json:"taskName,omitempty"`
	ProjectID             int64    `json:"projectId,omitempty"`
	ProjectName           string   `json:"projectName,omitempty"`
	AllocatedHours        float64  `json:"allocatedHours,omitempty"`
	EntryID               int64    `json:"entryId,omitempty"`
	Hours                 float64  `json:"hours,omitempty"`
	Packed                bool     `json:"packed,omitempty"`
	CallID                int64    `json:"callId,omitempty"`
	CallType              string   `json:"callType,omitempty"`
	Subject               string   `json:"subject,omitempty"`
	Participants          []string `json:"participants,omitempty"`
	OccurrenceID          int64    `json:"occurrenceId,omitempty"`
	RecurringAllocationID int64    `json:"recurringAllocationId,omitempty"`
}

func toDTO(ev schedule.Event) eventDTO {
	dto := eventDTO{
		ID:       ev.ID,
		Title:    ev.Title,
		Date:     ev.Date.String(),
		Start:    ev.Start,
		End:      ev.End,
		Category: string(ev.Category()),
	}
	switch r := ev.Resource.(type) {
	case schedule.TaskResource:
		dto.Resource = resourceDTO{
			AllocationID:   r.AllocationID,
			TaskID:         r.TaskID,
			TaskName:       r.TaskName,
			ProjectID:      r.ProjectID,
			ProjectName:    r.ProjectName,
			AllocatedHours: r.AllocatedHours,
		}
	case schedule.TimeEntryResource:
		dto.Resource = resourceDTO{EntryID: r.EntryID, TaskID: r.TaskID, Hours: r.Hours, Packed: r.Packed}
	case schedule.CallResource:
		dto.Resource = resourceDTO{CallID: r.CallID, CallType: r.CallType, Subject: r.Subject, Participants: r.Participants}
	case schedule.RecurringResource:
		dto.Resource = resourceDTO{
			OccurrenceID:          r.OccurrenceID,
			RecurringAllocationID: r.RecurringAllocationID,
			AllocatedHours:        r.AllocatedHours,
		}
	}
	return dto
}

// handleEvents returns the assembled calendar.
//
// GET /api/events?today=2024-06-03
//   - today: anchor of the rolling window (default: today in the configured zone)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	plan, version, ok := s.planFor(w, r)
	if !ok {
		return
	}

	dtos := make([]eventDTO, 0, len(plan.Events))
	for _, ev := range plan.Events {
		dtos = append(dtos, toDTO(ev))
	}
	days := make([]string, 0, len(plan.Days))
	for _, d := range plan.Days {
		days = append(days, d.String())
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events:      dtos,
		WindowStart: plan.Window.Start.String(),
		WindowEnd:   plan.Window.End().String(),
		Days:        days,
		Timezone:    s.cfg.Location().String(),
		WeekStart:   s.cfg.WeekStart,
		Skipped:     plan.Skipped,
		Version:     version,
	})
}

type summaryDTO struct {
	Date         string  `json:"date"`
	PlannedHours float64 `json:"plannedHours"`
	LoggedHours  float64 `json:"loggedHours"`
	CallMinutes  int     `json:"callMinutes"`
	Events       int     `json:"events"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	plan, _, ok := s.planFor(w, r)
	if !ok {
		return
	}
	sums := schedule.Summarize(plan.Events)
	out := make([]summaryDTO, 0, len(sums))
	for _, d := range sums {
		out = append(out, summaryDTO{
			Date:         d.Date.String(),
			PlannedHours: d.PlannedHours,
			LoggedHours:  d.LoggedHours,
			CallMinutes:  d.CallMinutes,
			Events:       d.Events,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	plan, _, ok := s.planFor(w, r)
	if !ok {
		return
	}
	body := ics.Export(plan.Events, ics.ExportConfig{Name: "plancal", Stamp: s.now()})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

type slotResponse struct {
	WorkDate  string                           `json:"workDate"`
	StartTime string                           `json:"startTime"`
	EndTime   string                           `json:"endTime"`
	Hours     float64                          `json:"hours"`
	TimeEntry schedule.CreateTimeEntryRequest  `json:"timeEntry"`
	Call      schedule.CreateCallRecordRequest `json:"callRecord"`
}

// handleSlot derives the quick-entry drafts for a selected slot.
//
// GET /api/slot?start=2024-06-03T10:00:00Z&end=2024-06-03T11:30:00Z&taskId=42
//   - taskId: task the time-entry draft is filed against (optional)
func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an RFC3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an RFC3339 timestamp")
		return
	}

	loc := s.cfg.Location()
	d := schedule.DraftFromSlot(schedule.Slot{Start: start.In(loc), End: end.In(loc)})
	writeJSON(w, http.StatusOK, slotResponse{
		WorkDate:  d.WorkDate.String(),
		StartTime: d.StartTime.String(),
		EndTime:   d.EndTime.String(),
		Hours:     d.Hours,
		TimeEntry: d.TimeEntryRequest(parseInt64Default(q.Get("taskId"), 0), ""),
		Call:      d.CallRecordRequest("Call", "", nil),
	})
}

type timeEntryResponse struct {
	Entry model.TimeEntry     `json:"entry"`
	Draft schedule.EntryDraft `json:"draft"`
}

// handleTimeEntry returns the stored entry behind a timeEntry event along
// with the derived edit-form fields.
func (s *Server) handleTimeEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	snap, _, err := s.data.Snapshot()
	if err != nil {
		s.writeSnapshotError(w, err)
		return
	}
	entry, err := schedule.FindEntry(snap.TimeEntries, id)
	if errors.Is(err, schedule.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "time entry not found")
		return
	}
	writeJSON(w, http.StatusOK, timeEntryResponse{Entry: entry, Draft: schedule.EditDraft(entry)})
}

// planFor resolves ?today= and returns the (possibly cached) plan for it.
// On failure the error response has already been written.
func (s *Server) planFor(w http.ResponseWriter, r *http.Request) (planner.Plan, uint64, bool) {
	today := civil.DateOf(s.now().In(s.cfg.Location()))
	if raw := r.URL.Query().Get("today"); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return planner.Plan{}, 0, false
		}
		today = d
	}

	snap, version, err := s.data.Snapshot()
	if err != nil {
		s.writeSnapshotError(w, err)
		return planner.Plan{}, 0, false
	}

	key := planKey{today: today, version: version}
	now := s.now()

	s.planMu.Lock()
	defer s.planMu.Unlock()
	if c, ok := s.planCache[key]; ok && now.Sub(c.updatedAt) < planCacheTTL {
		return c.plan, version, true
	}

	plan := planner.Build(snap, s.cfg, today)
	appLog.Info("api plan assembled",
		"today", today.String(),
		"version", version,
		"events", len(plan.Events),
		"skipped", plan.Skipped,
	)

	// Entries for older versions are never read again.
	for k := range s.planCache {
		if k.version != version || now.Sub(s.planCache[k].updatedAt) >= planCacheTTL {
			delete(s.planCache, k)
		}
	}
	s.planCache[key] = &cachedPlan{plan: plan, updatedAt: now}
	return plan, version, true
}

func (s *Server) writeSnapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, dataset.ErrNoSnapshot) {
		writeError(w, http.StatusServiceUnavailable, "no data loaded yet")
		return
	}
	appLog.Error("api: snapshot unavailable", err)
	writeError(w, http.StatusInternalServerError, "failed to read data")
}

func parseInt64Default(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
