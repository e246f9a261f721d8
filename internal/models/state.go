package models

import "time"

// TaskKind identifies the multi-step intent a conversation is in.
type TaskKind string

const (
	// TaskNone means no task is active.
	TaskNone TaskKind = ""
	// TaskReminderCreate walks the user through duration and description selection.
	TaskReminderCreate TaskKind = "reminder-create"
	// TaskReminderDelete waits for the user to pick a reminder to delete.
	TaskReminderDelete TaskKind = "reminder-delete"
	// TaskDemoButton waits for the user to pick a sample message type.
	TaskDemoButton TaskKind = "button"
)

// Reminder limits.
const (
	// MaxReminders is the maximum number of reminders a conversation can hold.
	MaxReminders = 10
	// MinReminderLength is the minimum description length in characters.
	MinReminderLength = 4
	// MaxReminderLength is the maximum description length in characters.
	MaxReminderLength = 200
)

// Task is the active task descriptor of a conversation. The zero value means none.
type Task struct {
	Kind     TaskKind `json:"task,omitempty"`
	Step     int      `json:"step,omitempty"`
	Duration string   `json:"time,omitempty"` // duration code chosen at step 1 of reminder creation
}

// IsNone reports whether no task is active.
func (t Task) IsNone() bool {
	return t.Kind == TaskNone
}

// Reminder is a message the user asked to receive later.
type Reminder struct {
	ID          string    `json:"id"`
	Duration    string    `json:"time"`
	FireAt      time.Time `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
