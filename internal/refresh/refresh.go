package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "plancal/internal/log"
)

// Reloader is anything that can pull a fresh copy of its data.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Scheduler reloads a target on a cron schedule. Runs never overlap: a
// tick that fires while the previous reload is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	target  Reloader
	timeout time.Duration

	mu       sync.Mutex
	running  bool
	runs     int
	failures int
}

// New validates spec (standard 5-field cron syntax or a descriptor such
// as "@every 5m") and returns a stopped Scheduler. Each reload gets
// timeout; zero means one minute.
func New(spec string, target Reloader, timeout time.Duration) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(),
		spec:    spec,
		target:  target,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return nil, fmt.Errorf("refresh: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing on the schedule in the background.
func (s *Scheduler) Start() {
	appLog.Info("refresh scheduler started", "schedule", s.spec)
	s.cron.Start()
}

// Stop stops the schedule and waits for a running reload to finish or for
// ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("refresh scheduler stop timed out", "schedule", s.spec)
	}
}

// RunNow performs one reload immediately unless one is already running.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		appLog.Debug("refresh skipped; previous run still active", "schedule", s.spec)
		return
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	err := s.target.Reload(ctx)
	cancel()

	s.mu.Lock()
	s.running = false
	s.runs++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		appLog.Error("scheduled refresh failed", err, "schedule", s.spec)
	}
}

// Stats reports how many reloads ran and how many of them failed.
func (s *Scheduler) Stats() (runs, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.failures
}
