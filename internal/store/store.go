package store

import (
	"context"
	"errors"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// ErrNotFound is returned by GetUser when no record exists for the email.
var ErrNotFound = errors.New("user not found")

// ScanFilter narrows ScanUsers.
type ScanFilter struct {
	AdminOnly bool
}

// UserStore persists UserRecords keyed by email.
//
// PutUser is a full-record upsert: the last writer for an email wins.
// Callers that read, modify and write back accept the race between the
// read and the write.
type UserStore interface {
	GetUser(ctx context.Context, email string) (models.UserRecord, error)
	PutUser(ctx context.Context, rec models.UserRecord) error
	ScanUsers(ctx context.Context, filter ScanFilter) ([]models.UserRecord, error)
	Ping(ctx context.Context) error
}
