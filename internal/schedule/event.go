package schedule

import (
	"time"

	"plancal/internal/civil"
)

// Category tags what kind of record an Event was built from.
type Category string

const (
	CategoryTask      Category = "task"
	CategoryTimeEntry Category = "timeEntry"
	CategoryCall      Category = "call"
	CategoryLunch     Category = "lunch"
	CategoryRecurring Category = "recurring"
)

// Resource is the category-specific payload of an Event. The set of
// implementations is closed: TaskResource, TimeEntryResource, CallResource,
// LunchResource and RecurringResource.
type Resource interface {
	Category() Category
	isResource()
}

// TaskResource identifies the task allocation behind a task event.
type TaskResource struct {
	AllocationID   int64
	TaskID         int64
	TaskName       string
	ProjectID      int64
	ProjectName    string
	AllocatedHours float64
}

// TimeEntryResource identifies the time entry behind a timeEntry event.
// Packed is true when the entry had no explicit times and was placed by the
// sequential packer.
type TimeEntryResource struct {
	EntryID int64
	TaskID  int64
	Hours   float64
	Packed  bool
}

// CallResource carries the call details shown on a call event.
type CallResource struct {
	CallID       int64
	CallType     string
	Subject      string
	Participants []string
}

// LunchResource is the (empty) payload of the daily lunch block.
type LunchResource struct{}

// RecurringResource identifies the recurring rule an occurrence came from.
type RecurringResource struct {
	OccurrenceID          int64
	RecurringAllocationID int64
	AllocatedHours        float64
}

func (TaskResource) Category() Category      { return CategoryTask }
func (TimeEntryResource) Category() Category { return CategoryTimeEntry }
func (CallResource) Category() Category      { return CategoryCall }
func (LunchResource) Category() Category     { return CategoryLunch }
func (RecurringResource) Category() Category { return CategoryRecurring }

func (TaskResource) isResource()      {}
func (TimeEntryResource) isResource() {}
func (CallResource) isResource()      {}
func (LunchResource) isResource()     {}
func (RecurringResource) isResource() {}

// Event is one block on the calendar grid. Date is the day the block was
// assembled for; End may fall on a later day when a packed entry runs past
// midnight.
type Event struct {
	ID       string
	Title    string
	Date     civil.Date
	Start    time.Time
	End      time.Time
	Resource Resource
}

// Category returns the category of the event's resource.
func (e Event) Category() Category {
	if e.Resource == nil {
		return ""
	}
	return e.Resource.Category()
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}
