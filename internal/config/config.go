package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// FeedConfig describes an iCalendar feed whose events are shown as calls
// (for example a meeting-room or softphone call log).
type FeedConfig struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	CallType string `yaml:"call_type" json:"call_type"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are placed in. "Local" uses the
	// host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday" and sets where the
	// rolling window begins.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// WindowWeeks is the length of the rolling window in weeks.
	WindowWeeks int `yaml:"window_weeks" json:"window_weeks"`

	// DataPath points at the YAML/JSON snapshot of tasks, entries and calls.
	DataPath string `yaml:"data_path" json:"data_path"`

	// RefreshCron is a standard 5-field cron spec for reloading DataPath.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Lunch model.LunchConfig `yaml:"lunch" json:"lunch"`

	// WorkStart maps lowercase weekday names to "HH:MM".
	WorkStart map[string]string `yaml:"work_start" json:"work_start"`

	CallFeeds []FeedConfig `yaml:"call_feeds" json:"call_feeds"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Local",
		WeekStart:   "sunday",
		WindowWeeks: 5,
		DataPath:    "/var/lib/plancal/data.yaml",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		Lunch:       model.LunchConfig{LunchTime: "12:00", DurationMinutes: 60},
		WorkStart: map[string]string{
			"monday":    "09:00",
			"tuesday":   "09:00",
			"wednesday": "09:00",
			"thursday":  "09:00",
			"friday":    "09:00",
		},
		CallFeeds: []FeedConfig{},
	}
}

// Normalize fills in missing or invalid values so that partially written
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	switch c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart)); c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = "sunday"
	}
	if c.WindowWeeks <= 0 {
		c.WindowWeeks = 5
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = "info"
	}
	if c.Lunch.DurationMinutes < 0 {
		c.Lunch.DurationMinutes = 0
	}
	if c.Lunch.LunchTime == "" {
		c.Lunch.LunchTime = "12:00"
	}
	if c.WorkStart == nil {
		c.WorkStart = DefaultConfig().WorkStart
	}
	normalized := make(map[string]string, len(c.WorkStart))
	for day, hhmm := range c.WorkStart {
		normalized[strings.ToLower(strings.TrimSpace(day))] = hhmm
	}
	c.WorkStart = normalized
	if c.CallFeeds == nil {
		c.CallFeeds = []FeedConfig{}
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// FirstWeekday returns the weekday the rolling window starts on.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// WindowDays returns the rolling window length in days.
func (c *Config) WindowDays() int {
	if c.WindowWeeks <= 0 {
		return 35
	}
	return c.WindowWeeks * 7
}

// WorkStartTimes converts WorkStart to weekday keys. Unknown day names are
// ignored.
func (c *Config) WorkStartTimes() map[time.Weekday]string {
	out := make(map[time.Weekday]string, len(c.WorkStart))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if hhmm, ok := c.WorkStart[strings.ToLower(wd.String())]; ok {
			out[wd] = hhmm
		}
	}
	return out
}

// Load loads configuration from the given YAML path. A missing file is
// created with the defaults (0600) and the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// First run: write the defaults so there is a file to edit.
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			// Even if the save fails the defaults are usable; the caller decides.
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from the defaults so omitted sections keep them, but let a
	// work_start block replace the default week instead of merging into it.
	cfg := DefaultConfig()
	cfg.WorkStart = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Write to a temp file in the same directory, then rename over path so
	// readers never see a half-written config.
	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	// No-op once the rename has succeeded.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// The config may hold basic auth credentials.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
