package schedule

import (
	"errors"
	"math"
	"time"

	"plancal/internal/civil"
	"plancal/internal/model"
)

// ErrEntryNotFound is returned by EntryForEvent when the event does not
// point at any of the given time entries.
var ErrEntryNotFound = errors.New("schedule: time entry not found")

// HoursBetween is civil.HoursBetween over "HH:MM" strings. Unreadable
// input yields 0.
func HoursBetween(startHHMM, endHHMM string) float64 {
	start, err := civil.ParseClock(startHHMM)
	if err != nil {
		return 0
	}
	end, err := civil.ParseClock(endHHMM)
	if err != nil {
		return 0
	}
	return civil.HoursBetween(start, end)
}

// EndFromStartAndHours is civil.EndFromStartAndHours over "HH:MM" strings.
// An unreadable start yields "".
func EndFromStartAndHours(startHHMM string, hours float64) string {
	start, err := civil.ParseClock(startHHMM)
	if err != nil {
		return ""
	}
	return civil.EndFromStartAndHours(start, hours).String()
}

// Slot is an empty region of the grid the user clicked or dragged over.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Draft holds the fields a quick-entry form is pre-filled with.
type Draft struct {
	WorkDate  civil.Date
	StartTime civil.Clock
	EndTime   civil.Clock
	Hours     float64
}

// DraftFromSlot derives date, times and hours from a slot. A drag that ends
// exactly at the following midnight runs to the end of its start day. Any
// other slot that yields no positive length on its start day (a whole-day
// click in month view, or one that ends past midnight) becomes a one-hour
// draft.
func DraftFromSlot(s Slot) Draft {
	start := civil.NewClock(s.Start.Hour(), s.Start.Minute())
	end := civil.NewClock(s.End.Hour(), s.End.Minute())
	d := Draft{
		WorkDate:  civil.DateOf(s.Start),
		StartTime: start,
		EndTime:   end,
		Hours:     civil.HoursBetween(start, end),
	}
	if start != 0 && endsAtNextMidnight(s.End, d.WorkDate) {
		d.Hours = float64(civil.MinutesPerDay-start.Minutes()) / 60
		return d
	}
	if d.Hours == 0 || civil.DateOf(s.End) != d.WorkDate {
		d.Hours = DefaultEntryHours
		d.EndTime = civil.EndFromStartAndHours(start, d.Hours)
	}
	return d
}

func endsAtNextMidnight(end time.Time, day civil.Date) bool {
	return civil.DateOf(end) == day.AddDays(1) &&
		end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0
}

// CreateTimeEntryRequest is the body of POST /time-entries.
type CreateTimeEntryRequest struct {
	TaskID      int64   `json:"taskId"`
	WorkDate    string  `json:"workDate"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
}

// CreateCallRecordRequest is the body of POST /call-records.
type CreateCallRecordRequest struct {
	CallDate        string   `json:"callDate"`
	StartTime       string   `json:"startTime"`
	DurationMinutes int      `json:"durationMinutes"`
	CallType        string   `json:"callType"`
	Subject         string   `json:"subject"`
	Participants    []string `json:"participants,omitempty"`
}

// TimeEntryRequest builds the create request for a time entry on taskID.
func (d Draft) TimeEntryRequest(taskID int64, description string) CreateTimeEntryRequest {
	return CreateTimeEntryRequest{
		TaskID:      taskID,
		WorkDate:    d.WorkDate.String(),
		StartTime:   d.StartTime.String(),
		EndTime:     d.EndTime.String(),
		Hours:       d.Hours,
		Description: description,
	}
}

// CallRecordRequest builds the create request for a call in the slot.
func (d Draft) CallRecordRequest(callType, subject string, participants []string) CreateCallRecordRequest {
	minutes := int(math.Round(d.Hours * 60))
	if minutes <= 0 {
		minutes = DefaultCallMinutes
	}
	return CreateCallRecordRequest{
		CallDate:        d.WorkDate.String(),
		StartTime:       d.StartTime.String(),
		DurationMinutes: minutes,
		CallType:        callType,
		Subject:         subject,
		Participants:    participants,
	}
}

// EntryForEvent returns the time entry a clicked event was built from.
func EntryForEvent(entries []model.TimeEntry, ev Event) (model.TimeEntry, error) {
	res, ok := ev.Resource.(TimeEntryResource)
	if !ok {
		return model.TimeEntry{}, ErrEntryNotFound
	}
	return FindEntry(entries, res.EntryID)
}

// FindEntry returns the first entry with the given id.
func FindEntry(entries []model.TimeEntry, id int64) (model.TimeEntry, error) {
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.TimeEntry{}, ErrEntryNotFound
}

// EntryDraft is the derived state of the edit-entry form.
type EntryDraft struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Hours     float64 `json:"hours"`
}

// EditDraft fills in whichever of end time or hours can be derived from
// the others: with both times known the hours follow from them, with only
// a start the end follows from the hours.
func EditDraft(e model.TimeEntry) EntryDraft {
	d := EntryDraft{StartTime: e.StartTime, EndTime: e.EndTime, Hours: ParseHours(e.Hours)}
	start, startErr := civil.ParseClock(e.StartTime)
	end, endErr := civil.ParseClock(e.EndTime)
	switch {
	case startErr == nil && endErr == nil:
		d.Hours = civil.HoursBetween(start, end)
	case startErr == nil:
		d.EndTime = civil.EndFromStartAndHours(start, d.Hours).String()
	}
	return d
}
