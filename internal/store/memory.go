package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// MemoryStore keeps records in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.UserRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.UserRecord)}
}

// GetUser returns a copy of the record or ErrNotFound.
func (s *MemoryStore) GetUser(ctx context.Context, email string) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[email]
	if !ok {
		return models.UserRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// PutUser stores a copy of rec.
func (s *MemoryStore) PutUser(ctx context.Context, rec models.UserRecord) error {
	if rec.Email == "" {
		return errors.New("email required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[rec.Email] = rec.Clone()
	return nil
}

// ScanUsers returns matching records ordered by email.
func (s *MemoryStore) ScanUsers(ctx context.Context, filter ScanFilter) ([]models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		if filter.AdminOnly && !rec.Admin {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Ping only fails when ctx is done.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
