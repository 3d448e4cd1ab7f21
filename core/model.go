package core

import "time"

// Role is a user's relationship to an event. A (user, event) pair holds
// exactly one role at a time; HOST is assigned at event creation and is
// not revocable through the attendance flow.
type Role string

const (
	RoleNone     Role = "none"
	RoleHost     Role = "host"
	RoleAttendee Role = "attendee"
)

type Event struct {
	Id          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Attendance is the host/attendee relation of a single event as read
// from the store. The sets are the source of truth for role derivation.
type Attendance struct {
	HostIds     map[string]struct{}
	AttendeeIds map[string]struct{}
}

func (a Attendance) RoleOf(userId string) Role {
	// HOST wins if a user somehow appears in both relations.
	if _, ok := a.HostIds[userId]; ok {
		return RoleHost
	}

	if _, ok := a.AttendeeIds[userId]; ok {
		return RoleAttendee
	}

	return RoleNone
}

// ReminderSpec is a user-chosen (date, time-of-day) pair for one event.
// Date and TimeOfDay are combined into a single trigger instant only at
// scheduling time, on the local clock.
type ReminderSpec struct {
	Id        string    `json:"id"`
	EventId   string    `json:"event_id"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"time_of_day"`
}

// TriggerAt combines the spec's date with its time-of-day, zeroing
// seconds and below.
func (s ReminderSpec) TriggerAt() time.Time {
	return time.Date(
		s.Date.Year(), s.Date.Month(), s.Date.Day(),
		s.TimeOfDay.Hour(), s.TimeOfDay.Minute(), 0, 0,
		time.Local,
	)
}

// ScheduledReminder is the result of handing a spec to the notification
// service: the service's job handle plus the trigger instant used. The
// service is the durable owner once scheduled.
type ScheduledReminder struct {
	JobHandle string    `json:"job_handle"`
	TriggerAt time.Time `json:"trigger_at"`
}

type NotificationContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
