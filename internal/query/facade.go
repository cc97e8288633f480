// Package query answers read requests over the user store.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/cache"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
	"github.com/PratikDhanave/identity-sync-service/internal/store"
)

// Facade serves point lookups and scans through the cache, and the stale
// password audit straight from the store.
type Facade struct {
	store   store.UserStore
	aside   *cache.Aside
	userTTL time.Duration
	scanTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewFacade builds the read side. userTTL and scanTTL bound how stale cached reads may be.
func NewFacade(st store.UserStore, aside *cache.Aside, userTTL, scanTTL time.Duration, logger *slog.Logger) *Facade {
	return &Facade{
		store:   st,
		aside:   aside,
		userTTL: userTTL,
		scanTTL: scanTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// GetByEmail returns one record. Absence is reported as not_found;
// backend errors as persistence_failure.
func (f *Facade) GetByEmail(ctx context.Context, email string) (models.UserRecord, error) {
	const op = "query.GetByEmail"
	email = strings.TrimSpace(email)
	if email == "" {
		return models.UserRecord{}, apperr.InvalidInput(op, "email required")
	}

	return cache.Fetch(ctx, f.aside, cache.FamilyUser, cache.UserKey(email), f.userTTL,
		func(ctx context.Context) (models.UserRecord, error) {
			rec, err := f.store.GetUser(ctx, email)
			if errors.Is(err, store.ErrNotFound) {
				return models.UserRecord{}, apperr.NotFound(op, "user "+email+" not found")
			}
			if err != nil {
				return models.UserRecord{}, apperr.PersistenceFailure(op, err)
			}
			return rec, nil
		})
}

// ScanAll returns every record ordered by email.
func (f *Facade) ScanAll(ctx context.Context) ([]models.UserRecord, error) {
	const op = "query.ScanAll"

	return cache.Fetch(ctx, f.aside, cache.FamilyScan, cache.ScanKey, f.scanTTL,
		func(ctx context.Context) ([]models.UserRecord, error) {
			recs, err := f.store.ScanUsers(ctx, store.ScanFilter{})
			if err != nil {
				return nil, apperr.ScanFailure(op, err)
			}
			if recs == nil {
				recs = []models.UserRecord{}
			}
			return recs, nil
		})
}

// StaleAdminPasswords lists admins whose passwordChanged is older than
// thresholdDays. Admins with an empty or unparseable passwordChanged are
// left out. This audit view is never cached.
func (f *Facade) StaleAdminPasswords(ctx context.Context, thresholdDays int) ([]models.UserRecord, error) {
	const op = "query.StaleAdminPasswords"
	if thresholdDays < 0 {
		return nil, apperr.InvalidInput(op, "threshold days must not be negative")
	}

	admins, err := f.store.ScanUsers(ctx, store.ScanFilter{AdminOnly: true})
	if err != nil {
		return nil, apperr.ScanFailure(op, err)
	}

	cutoff := f.now().UTC().Add(-time.Duration(thresholdDays) * 24 * time.Hour)
	stale := []models.UserRecord{}
	for _, rec := range admins {
		if !rec.Admin {
			continue
		}
		changed, err := ParseTimestamp(rec.PasswordChanged)
		if err != nil {
			if rec.PasswordChanged != "" {
				f.logger.WarnContext(ctx, "unparseable passwordChanged",
					slog.String("email", rec.Email),
					slog.String("value", rec.PasswordChanged),
				)
			}
			continue
		}
		if changed.Before(cutoff) {
			stale = append(stale, rec)
		}
	}
	return stale, nil
}

// ParseTimestamp reads an ISO 8601 timestamp with optional fractional
// seconds. A timestamp without a zone is taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
