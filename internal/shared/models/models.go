package models

import "time"

// ReminderStatus is server-controlled; the client never sets it directly.
type ReminderStatus string

const (
	StatusScheduled ReminderStatus = "scheduled"
	StatusCompleted ReminderStatus = "completed"
	StatusFailed    ReminderStatus = "failed"
)

// Valid reports whether s is one of the known status values.
func (s ReminderStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Reminder is the server-owned record for one scheduled phone call.
// ScheduledTime is a wall-clock timestamp without offset; together with
// Timezone (an IANA identifier) it resolves to one absolute instant.
type Reminder struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	PhoneNumber   string         `json:"phone_number"`
	ScheduledTime string         `json:"scheduled_time"`
	Timezone      string         `json:"timezone"`
	Status        ReminderStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateReminderRequest carries the writable fields for POST /reminders.
// The server assigns id, status and timestamps.
type CreateReminderRequest struct {
	Title         string `json:"title"`
	Message       string `json:"message"`
	PhoneNumber   string `json:"phone_number"`
	ScheduledTime string `json:"scheduled_time"`
	Timezone      string `json:"timezone"`
}

// UpdateReminderRequest is a partial update; nil fields are left unchanged.
type UpdateReminderRequest struct {
	Title         *string `json:"title,omitempty"`
	Message       *string `json:"message,omitempty"`
	PhoneNumber   *string `json:"phone_number,omitempty"`
	ScheduledTime *string `json:"scheduled_time,omitempty"`
	Timezone      *string `json:"timezone,omitempty"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// PushTypeReminderUpdate is the only actionable push event type; anything
// else arriving on the live channel is ignored.
const PushTypeReminderUpdate = "reminder_update"

// PushMessage is an inbound frame on the live update channel.
type PushMessage struct {
	Type string        `json:"type"`
	Data ReminderEvent `json:"data"`
}

// ReminderEvent identifies the reminder whose status changed server-side.
type ReminderEvent struct {
	ID     string         `json:"id"`
	Status ReminderStatus `json:"status"`
}
