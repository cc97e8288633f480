package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/cache"
	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
	"github.com/PratikDhanave/identity-sync-service/internal/projection"
)

// IdentitySource is the IdP read API the syncer depends on.
type IdentitySource interface {
	FetchAllUsers(ctx context.Context) ([]models.RawUser, error)
	FetchGroupMembers(ctx context.Context, groupID string) ([]models.RawUser, error)
}

// Syncer runs a full identity sync: fetch, project, mark admins, upsert.
type Syncer struct {
	source       IdentitySource
	projector    *projection.Projector
	reconciler   *Reconciler
	aside        *cache.Aside
	adminGroupID string
	upstreamTTL  time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewSyncer builds a Syncer that treats members of adminGroupID as admins
// and caches IdP responses for upstreamTTL.
func NewSyncer(
	source IdentitySource,
	projector *projection.Projector,
	reconciler *Reconciler,
	aside *cache.Aside,
	adminGroupID string,
	upstreamTTL time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Syncer {
	return &Syncer{
		source:       source,
		projector:    projector,
		reconciler:   reconciler,
		aside:        aside,
		adminGroupID: adminGroupID,
		upstreamTTL:  upstreamTTL,
		logger:       logger,
		metrics:      m,
	}
}

// Sync fetches all users and the admin group concurrently. An empty or
// failed user fetch fails the run with fetch_failure. A failed group fetch
// only leaves the member list empty, which can promote nobody and demote
// nobody.
func (s *Syncer) Sync(ctx context.Context) (models.SyncReport, error) {
	const op = "reconcile.Sync"
	started := time.Now().UTC()
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID))

	var users, members []models.RawUser
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = cache.Fetch(gctx, s.aside, cache.FamilyIdP, cache.IdPUsersKey, s.upstreamTTL,
			func(ctx context.Context) ([]models.RawUser, error) {
				u, err := s.source.FetchAllUsers(ctx)
				if err != nil {
					return nil, err
				}
				if len(u) == 0 {
					return nil, apperr.New(apperr.KindFetchFailure, op, "identity provider returned no users")
				}
				return u, nil
			})
		return err
	})
	g.Go(func() error {
		m, err := cache.Fetch(gctx, s.aside, cache.FamilyIdP, cache.IdPGroupKey(s.adminGroupID), s.upstreamTTL, func(ctx context.Context) ([]models.RawUser, error) {
			return s.source.FetchGroupMembers(ctx, s.adminGroupID)
		})
		if err != nil {
			logger.WarnContext(ctx, "admin group fetch failed, continuing without members",
				slog.String("group_id", s.adminGroupID),
				slog.String("error", err.Error()),
			)
			m = []models.RawUser{}
		}
		members = m
		return nil
	})

	if err := g.Wait(); err != nil {
		report := models.SyncReport{RunID: runID, StartedAt: started, FinishedAt: time.Now().UTC()}
		s.metrics.ObserveRun("sync", err, report.FinishedAt.Sub(started))
		logger.ErrorContext(ctx, "sync failed", slog.String("error", err.Error()))
		return report, err
	}

	projected := s.projector.Project(users, models.SyncFieldSet)
	projection.MarkAdmins(members, projected)

	report := s.reconciler.UpsertFromIdentitySource(ctx, projected)
	report.RunID = runID
	report.Fetched = len(users)
	report.GroupMembers = len(members)
	report.StartedAt = started
	report.FinishedAt = time.Now().UTC()

	s.metrics.ObserveRun("sync", nil, report.FinishedAt.Sub(started))
	logger.InfoContext(ctx, "sync complete",
		slog.Int("fetched", report.Fetched),
		slog.Int("inserted", report.Inserted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
