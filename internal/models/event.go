package models

import "time"

// UserEvent is an unmapped feed event kept on the record in feed order.
type UserEvent struct {
	Timestamp   string `json:"timestamp" firestore:"timestamp"`
	Description string `json:"description" firestore:"description"`
}

// RawEventRow is one data line of the event feed, values as read.
type RawEventRow struct {
	Email       string `json:"email"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Change event types published after successful store writes.
const (
	ChangeUserCreated      = "user.created"
	ChangeUserUpdated      = "user.updated"
	ChangeUserAdminGranted = "user.admin_granted"
)

// Change sources.
const (
	SourceIdentitySync = "identity_sync"
	SourceEventFeed    = "event_feed"
)

// ChangeEvent is the message published when a UserRecord changes.
type ChangeEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	Email      string    `json:"email"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}
