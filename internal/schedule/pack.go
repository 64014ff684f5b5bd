package schedule

import (
	"math"
	"strconv"
	"strings"
	"time"

	"plancal/internal/civil"
)

const (
	// DefaultEntryHours is the duration used for a time entry whose hours
	// cannot be read as a positive number of at most MaxEntryHours.
	DefaultEntryHours = 1.0

	// MaxEntryHours is the longest single time entry that is taken at face
	// value.
	MaxEntryHours = 24.0
)

// Packer places time entries that have no recorded start/end one after
// another on a single day. Entries are placed in the order Place is called.
type Packer struct {
	cursor time.Time
}

// NewPacker returns a Packer whose cursor sits at pointer on day in loc.
func NewPacker(day civil.Date, pointer civil.Clock, loc *time.Location) *Packer {
	return &Packer{cursor: day.At(pointer, loc)}
}

// Place returns [start, end) for an entry of the given length and moves
// the cursor to end. Lengths are rounded to whole minutes, never below one.
// A block that runs past midnight is not clipped; its end, and the cursor,
// simply move into the next day.
func (p *Packer) Place(hours float64) (start, end time.Time) {
	start = p.cursor
	end = start.Add(time.Duration(entryMinutes(hours)) * time.Minute)
	p.cursor = end
	return start, end
}

func entryMinutes(hours float64) int {
	if !validHours(hours) {
		hours = DefaultEntryHours
	}
	m := int(math.Round(hours * 60))
	if m < 1 {
		m = 1
	}
	return m
}

// Cursor returns where the next entry would start.
func (p *Packer) Cursor() time.Time {
	return p.cursor
}

// ParseHours reads an hours value the way the time-tracking service writes
// it ("2", "1.5", " 0.25 "). Anything that is not a positive finite number
// up to MaxEntryHours yields DefaultEntryHours.
func ParseHours(s string) float64 {
	h, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !validHours(h) {
		return DefaultEntryHours
	}
	return h
}

func validHours(h float64) bool {
	return h > 0 && h <= MaxEntryHours && !math.IsNaN(h)
}
