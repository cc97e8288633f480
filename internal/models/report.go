package models

import "time"

// RecordError describes one record that could not be reconciled.
type RecordError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SyncReport summarizes one identity sync run.
type SyncReport struct {
	RunID        string        `json:"run_id"`
	Fetched      int           `json:"fetched"`
	GroupMembers int           `json:"group_members"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	Errors       []RecordError `json:"errors,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// FeedReport summarizes one event feed reconciliation.
type FeedReport struct {
	RunID       string        `json:"run_id"`
	Source      string        `json:"source,omitempty"`
	Rows        int           `json:"rows"`
	Applied     int           `json:"applied"`
	Unchanged   int           `json:"unchanged"`
	Dropped     int           `json:"dropped"`
	UnknownUser int           `json:"unknown_user"`
	Failed      int           `json:"failed"`
	Errors      []RecordError `json:"errors,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	// Replayed is set when the report comes from an earlier run on the same link.
	Replayed bool `json:"replayed"`
}
