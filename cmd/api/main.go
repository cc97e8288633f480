package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/PratikDhanave/identity-sync-service/internal/cache"
	"github.com/PratikDhanave/identity-sync-service/internal/config"
	"github.com/PratikDhanave/identity-sync-service/internal/feed"
	"github.com/PratikDhanave/identity-sync-service/internal/handlers"
	"github.com/PratikDhanave/identity-sync-service/internal/httpclient"
	"github.com/PratikDhanave/identity-sync-service/internal/httpserver"
	"github.com/PratikDhanave/identity-sync-service/internal/idp"
	"github.com/PratikDhanave/identity-sync-service/internal/logging"
	"github.com/PratikDhanave/identity-sync-service/internal/messaging"
	"github.com/PratikDhanave/identity-sync-service/internal/metrics"
	"github.com/PratikDhanave/identity-sync-service/internal/projection"
	"github.com/PratikDhanave/identity-sync-service/internal/query"
	"github.com/PratikDhanave/identity-sync-service/internal/reconcile"
	"github.com/PratikDhanave/identity-sync-service/internal/store"
)

// main boots the service: config → logger → store → cache → sync pipeline → HTTP server.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// CONFIG_PATH is optional; environment variables override the file.
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.NewLogger(cfg.App.Name, cfg.App.Environment, cfg.Log.Level)
	m := metrics.New(cfg.App.Name)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer closeStore()

	c, closeCache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer closeCache()
	aside := cache.NewAside(c, logger, m)

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("publishing change events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	var objects feed.ObjectReader
	if cfg.Feed.GCSEnabled {
		gcs, err := feed.NewGCSSource(ctx)
		if err != nil {
			return fmt.Errorf("gcs: %w", err)
		}
		defer gcs.Close()
		objects = gcs
	}

	idpClient := idp.NewClient(idp.Config{
		BaseURL:    cfg.IdP.BaseURL,
		APIToken:   cfg.IdP.APIToken,
		AuthScheme: cfg.IdP.AuthScheme,
		PageLimit:  cfg.IdP.PageLimit,
	}, httpclient.New(cfg.IdP.Timeout), logger)

	reconciler := reconcile.NewReconciler(st, aside, publisher, logger, m, cfg.Cache.UserTTL)
	syncer := reconcile.NewSyncer(
		idpClient,
		projection.New(projection.DefaultRules),
		reconciler,
		aside,
		cfg.IdP.AdminGroupID,
		cfg.Cache.UpstreamTTL,
		logger,
		m,
	)
	fetcher := feed.NewFetcher(httpclient.New(cfg.Feed.Timeout), objects, cfg.Feed.MaxBytes)
	ingestor := reconcile.NewFeedIngestor(fetcher, reconciler, aside, cfg.Cache.FeedTTL, logger, m)
	facade := query.NewFacade(st, aside, cfg.Cache.UserTTL, cfg.Cache.ScanTTL, logger)

	router := httpserver.NewRouter(httpserver.Deps{
		Logger:            logger,
		Metrics:           m,
		Queries:           facade,
		Syncer:            syncer,
		Feeds:             ingestor,
		Ready:             map[string]handlers.Pinger{"store": st, "cache": aside},
		StalePasswordDays: cfg.Policy.StalePasswordDays,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("service configured",
		"datastore", string(cfg.DataStore),
		"cache", string(cfg.Cache.Backend),
		"idp", cfg.IdP.BaseURL,
	)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// openStore connects the configured backend and returns its closer.
func openStore(ctx context.Context, cfg config.Config) (store.UserStore, func(), error) {
	switch cfg.DataStore {
	case config.DataStorePostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		// Ensure required tables/indexes exist so `docker compose up --build` is enough.
		if cfg.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return pg, pg.Close, nil

	case config.DataStoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		fs := store.NewFirestoreStore(client, cfg.Firestore.Collection)
		return fs, func() { _ = fs.Close() }, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

func openCache(cfg config.Config) (cache.Cache, func(), error) {
	if cfg.Cache.Backend == config.CacheRedis {
		rc, err := cache.NewRedisCacheFromURL(cfg.Cache.RedisURL, cache.WithKeyPrefix(cfg.Cache.KeyPrefix))
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	}
	return cache.NewMemoryCache(), func() {}, nil
}
