// Package reconcile merges IdP records and event feed rows into the user store.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/cache"
	"github.com/PratikDhanave/identity-sync-service/internal/messaging"
	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
	"github.com/PratikDhanave/identity-sync-service/internal/store"
)

// TimestampLayout is how feed timestamps are written to records.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Reconciler applies upserts to the store one record at a time. A failing
// record is logged and counted; it never aborts the batch.
//
// Each record is read, merged and written back without a conditional
// write: two runs touching the same email concurrently resolve as last
// writer wins.
type Reconciler struct {
	store     store.UserStore
	aside     *cache.Aside
	publisher messaging.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	userTTL   time.Duration
	now       func() time.Time
}

// NewReconciler builds a Reconciler. userTTL applies to the per-email cache
// entries refreshed after each write.
func NewReconciler(
	st store.UserStore,
	aside *cache.Aside,
	pub messaging.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	userTTL time.Duration,
) *Reconciler {
	return &Reconciler{
		store:     st,
		aside:     aside,
		publisher: pub,
		logger:    logger,
		metrics:   m,
		userTTL:   userTTL,
		now:       time.Now,
	}
}

// UpsertFromIdentitySource merges projected IdP users into the store.
//
// Existing records take lastLogin, passwordChanged and statusChanged from
// the projection only when it carries a value, and are promoted to admin
// when the projection says so. Admin is never cleared. New records get
// every projected field, "" for missing ones.
func (r *Reconciler) UpsertFromIdentitySource(ctx context.Context, projected map[string]models.ProjectedFields) models.SyncReport {
	var report models.SyncReport

	ids := make([]string, 0, len(projected))
	for id := range projected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	wrote := false
	for _, id := range ids {
		fields := projected[id]
		email := strings.TrimSpace(fields.String(models.FieldEmail))
		if email == "" {
			report.Skipped++
			report.Errors = append(report.Errors, models.RecordError{Key: id, Error: "missing email"})
			r.logger.WarnContext(ctx, "sync record skipped",
				slog.String("op", "reconcile.UpsertFromIdentitySource"),
				slog.String("id", id),
				slog.String("error", "missing email"),
			)
			continue
		}

		outcome, err := r.upsertOne(ctx, id, email, fields)
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, models.RecordError{Key: email, Error: err.Error()})
			r.logger.WarnContext(ctx, "sync record failed",
				slog.String("op", "reconcile.UpsertFromIdentitySource"),
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		case outcome == models.ChangeUserCreated:
			report.Inserted++
			wrote = true
		case outcome == "":
			report.Unchanged++
		default:
			report.Updated++
			wrote = true
		}
	}

	if wrote {
		r.aside.Invalidate(ctx, cache.ScanKey)
	}

	r.metrics.SyncRecord("inserted", report.Inserted)
	r.metrics.SyncRecord("updated", report.Updated)
	r.metrics.SyncRecord("unchanged", report.Unchanged)
	r.metrics.SyncRecord("skipped", report.Skipped)
	r.metrics.SyncRecord("failed", report.Failed)
	return report
}

// upsertOne returns the change type written, or "" when nothing changed.
func (r *Reconciler) upsertOne(ctx context.Context, id, email string, fields models.ProjectedFields) (string, error) {
	const op = "reconcile.upsert"
	incomingAdmin, _ := fields.Admin()

	existing, err := r.store.GetUser(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		recID := fields.String(models.FieldID)
		if recID == "" {
			recID = id
		}
		rec := models.UserRecord{
			Email:           email,
			ID:              recID,
			Name:            fields.String(models.FieldName),
			Admin:           incomingAdmin,
			LastLogin:       r.timestamp(ctx, email, fields, models.FieldLastLogin),
			PasswordChanged: r.timestamp(ctx, email, fields, models.FieldPasswordChanged),
			StatusChanged:   r.timestamp(ctx, email, fields, models.FieldStatusChanged),
			UserEvents:      []models.UserEvent{},
		}
		if err := r.write(ctx, op, rec, models.ChangeUserCreated, models.SourceIdentitySync); err != nil {
			return "", err
		}
		return models.ChangeUserCreated, nil
	}
	if err != nil {
		return "", apperr.PersistenceFailure(op, err)
	}

	rec := existing.Clone()
	rec.LastLogin = pick(r.timestamp(ctx, email, fields, models.FieldLastLogin), existing.LastLogin)
	rec.PasswordChanged = pick(r.timestamp(ctx, email, fields, models.FieldPasswordChanged), existing.PasswordChanged)
	rec.StatusChanged = pick(r.timestamp(ctx, email, fields, models.FieldStatusChanged), existing.StatusChanged)

	change := models.ChangeUserUpdated
	if incomingAdmin && !existing.Admin {
		rec.Admin = true
		change = models.ChangeUserAdminGranted
	}

	if rec.LastLogin == existing.LastLogin &&
		rec.PasswordChanged == existing.PasswordChanged &&
		rec.StatusChanged == existing.StatusChanged &&
		rec.Admin == existing.Admin {
		return "", nil
	}

	if err := r.write(ctx, op, rec, change, models.SourceIdentitySync); err != nil {
		return "", err
	}
	return change, nil
}

// timestamp returns the projected ISO 8601 value of field, or "" when it
// is absent or does not parse.
func (r *Reconciler) timestamp(ctx context.Context, email string, fields models.ProjectedFields, field string) string {
	v := strings.TrimSpace(fields.String(field))
	if v == "" {
		return ""
	}
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		r.logger.WarnContext(ctx, "ignoring unparseable timestamp",
			slog.String("email", email),
			slog.String("field", field),
			slog.String("value", v),
		)
		return ""
	}
	return v
}

func pick(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

// ReconcileFromEventFeed applies feed rows in order, persisting after each
// row. Rows with a missing field or a non-integer timestamp are dropped;
// rows for unknown emails never create records.
func (r *Reconciler) ReconcileFromEventFeed(ctx context.Context, rows []models.RawEventRow) models.FeedReport {
	report := models.FeedReport{Rows: len(rows)}
	wrote := false

	for i, row := range rows {
		email := strings.TrimSpace(row.Email)
		ts := strings.TrimSpace(row.Timestamp)
		desc := strings.TrimSpace(row.Description)

		if email == "" || ts == "" || desc == "" {
			report.Dropped++
			r.logger.DebugContext(ctx, "feed row dropped", slog.Int("row", i+1), slog.String("reason", "missing field"))
			continue
		}
		iso, ok := unixToISO(ts)
		if !ok {
			report.Dropped++
			r.logger.DebugContext(ctx, "feed row dropped", slog.Int("row", i+1), slog.String("reason", "invalid timestamp"))
			continue
		}

		applied, err := r.applyRow(ctx, email, iso, Classify(desc))
		switch {
		case errors.Is(err, store.ErrNotFound):
			report.UnknownUser++
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, models.RecordError{Key: email, Error: err.Error()})
			r.logger.WarnContext(ctx, "feed row failed",
				slog.String("op", "reconcile.ReconcileFromEventFeed"),
				slog.Int("row", i+1),
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		case applied:
			report.Applied++
			wrote = true
		default:
			report.Unchanged++
		}
	}

	if wrote {
		r.aside.Invalidate(ctx, cache.ScanKey)
	}

	r.metrics.FeedRows("applied", report.Applied)
	r.metrics.FeedRows("unchanged", report.Unchanged)
	r.metrics.FeedRows("dropped", report.Dropped)
	r.metrics.FeedRows("unknown_user", report.UnknownUser)
	r.metrics.FeedRows("failed", report.Failed)
	return report
}

// unixToISO converts unix seconds to TimestampLayout. Values that are not
// integers, or whose year falls outside 1..9999, are rejected since they
// cannot be written as four-digit ISO 8601 years.
func unixToISO(secs string) (string, bool) {
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return "", false
	}
	t := time.Unix(n, 0).UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return "", false
	}
	return t.Format(TimestampLayout), true
}

// applyRow reports whether the row changed the record. A missing record
// surfaces as store.ErrNotFound.
func (r *Reconciler) applyRow(ctx context.Context, email, iso string, ev Event) (bool, error) {
	const op = "reconcile.applyRow"

	rec, err := r.store.GetUser(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err != nil {
		return false, apperr.PersistenceFailure(op, err)
	}

	change := models.ChangeUserUpdated
	switch ev.Kind {
	case EventLogin:
		if rec.LastLogin == iso {
			return false, nil
		}
		rec.LastLogin = iso
	case EventPasswordChange:
		if rec.PasswordChanged == iso {
			return false, nil
		}
		rec.PasswordChanged = iso
	case EventAdminGrant:
		if rec.Admin {
			return false, nil
		}
		rec.Admin = true
		change = models.ChangeUserAdminGranted
	default:
		ue := models.UserEvent{Timestamp: iso, Description: ev.Description}
		if rec.HasEvent(ue) {
			return false, nil
		}
		rec.UserEvents = append(rec.UserEvents, ue)
	}

	if err := r.write(ctx, op, rec, change, models.SourceEventFeed); err != nil {
		return false, err
	}
	return true, nil
}

// write persists rec, then refreshes its cache entry and announces the
// change. Only the store write can fail the call.
func (r *Reconciler) write(ctx context.Context, op string, rec models.UserRecord, change, source string) error {
	if err := r.store.PutUser(ctx, rec); err != nil {
		return apperr.PersistenceFailure(op, err)
	}

	r.aside.Store(ctx, cache.UserKey(rec.Email), rec, r.userTTL)

	ev := models.ChangeEvent{
		EventID:    uuid.NewString(),
		Type:       change,
		Email:      rec.Email,
		Source:     source,
		OccurredAt: r.now().UTC(),
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "change event not published",
			slog.String("email", rec.Email),
			slog.String("type", change),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
