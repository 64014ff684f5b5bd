package model

// Records in this package are plain data owned by the rest of the
// application (the task, time-tracking and call-log services). Dates and
// times are kept as the strings those services hand out so that a single
// malformed value degrades one record instead of failing a whole load;
// internal/schedule parses them with the civil package.

// TaskAllocation is a planned block of hours for a task on one day.
type TaskAllocation struct {
	ID             int64   `yaml:"id" json:"id"`
	TaskID         int64   `yaml:"task_id" json:"taskId"`
	TaskName       string  `yaml:"task_name" json:"taskName"`
	ProjectID      int64   `yaml:"project_id" json:"projectId"`
	ProjectName    string  `yaml:"project_name" json:"projectName"`
	AllocationDate string  `yaml:"allocation_date" json:"allocationDate"`
	AllocatedHours float64 `yaml:"allocated_hours" json:"allocatedHours"`
	StartTime      string  `yaml:"start_time" json:"startTime"`
	EndTime        string  `yaml:"end_time" json:"endTime"`
}

// RecurringOccurrence is one expanded instance of a recurring allocation.
// Occurrences produced by internal/recurring have ID 0.
type RecurringOccurrence struct {
	ID                    int64   `yaml:"id" json:"id"`
	RecurringAllocationID int64   `yaml:"recurring_allocation_id" json:"recurringAllocationId"`
	Title                 string  `yaml:"title" json:"title"`
	OccurrenceDate        string  `yaml:"occurrence_date" json:"occurrenceDate"`
	StartTime             string  `yaml:"start_time" json:"startTime"`
	EndTime               string  `yaml:"end_time" json:"endTime"`
	AllocatedHours        float64 `yaml:"allocated_hours" json:"allocatedHours"`
}

// RecurringAllocation is the rule a RecurringOccurrence is expanded from.
type RecurringAllocation struct {
	ID             int64    `yaml:"id" json:"id"`
	Title          string   `yaml:"title" json:"title"`
	RRule          string   `yaml:"rrule" json:"rrule"`
	StartDate      string   `yaml:"start_date" json:"startDate"`
	StartTime      string   `yaml:"start_time" json:"startTime"`
	EndTime        string   `yaml:"end_time" json:"endTime"`
	AllocatedHours float64  `yaml:"allocated_hours" json:"allocatedHours"`
	ExDates        []string `yaml:"exdates,omitempty" json:"exdates,omitempty"`
}

// TimeEntry is hours logged against a task. StartTime and EndTime are
// optional; entries without them are packed after the day's allocations.
type TimeEntry struct {
	ID          int64  `yaml:"id" json:"id"`
	TaskID      int64  `yaml:"task_id" json:"taskId"`
	TaskName    string `yaml:"task_name" json:"taskName"`
	WorkDate    string `yaml:"work_date" json:"workDate"`
	Hours       string `yaml:"hours" json:"hours"`
	StartTime   string `yaml:"start_time,omitempty" json:"startTime,omitempty"`
	EndTime     string `yaml:"end_time,omitempty" json:"endTime,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// CallRecord is a logged phone or video call.
type CallRecord struct {
	ID              int64    `yaml:"id" json:"id"`
	CallDate        string   `yaml:"call_date" json:"callDate"`
	StartTime       string   `yaml:"start_time" json:"startTime"`
	DurationMinutes int      `yaml:"duration_minutes" json:"durationMinutes"`
	CallType        string   `yaml:"call_type" json:"callType"`
	Participants    []string `yaml:"participants" json:"participants"`
	Subject         string   `yaml:"subject" json:"subject"`
}

// LunchConfig is the user's daily lunch block. A zero duration disables it.
type LunchConfig struct {
	LunchTime       string `yaml:"time" json:"lunchTime"`
	DurationMinutes int    `yaml:"duration_minutes" json:"lunchDurationMinutes"`
}
