package civil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidClock is returned when a string cannot be read as a time of day.
var ErrInvalidClock = errors.New("civil: invalid time of day")

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// Clock is a time of day with minute resolution, stored as minutes since
// midnight in [0, MinutesPerDay).
type Clock int

// NewClock builds a Clock from an hour and minute. Out-of-range values wrap
// around the day.
func NewClock(hour, minute int) Clock {
	return wrap(hour*60 + minute)
}

// ParseClock reads "HH:MM" or "HH:MM:SS". Seconds are accepted for
// compatibility with SQL TIME columns and are truncated.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	return Clock(h*60 + m), nil
}

// MustParseClock is like ParseClock but panics on malformed input. It is
// meant for constants and tests.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int { return int(c) }

// String formats c as zero-padded HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText implements encoding.TextMarshaler.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// HoursBetween returns the length of [start, end] in hours. An end before
// the start yields 0, never a negative value.
func HoursBetween(start, end Clock) float64 {
	diff := end.Minutes() - start.Minutes()
	if diff < 0 {
		return 0
	}
	return float64(diff) / 60
}

// EndFromStartAndHours adds hours to start and wraps past midnight. The
// caller is not told about the wrap.
func EndFromStartAndHours(start Clock, hours float64) Clock {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return start
	}
	return wrap(start.Minutes() + int(math.Round(math.Mod(hours*60, MinutesPerDay))))
}

func wrap(minutes int) Clock {
	m := minutes % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return Clock(m)
}
