package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/cache"
	"github.com/spec-kit/ticket-desk/internal/config"
	"github.com/spec-kit/ticket-desk/internal/observability"
	"github.com/spec-kit/ticket-desk/internal/persistence"
	"github.com/spec-kit/ticket-desk/internal/projection"
	"github.com/spec-kit/ticket-desk/internal/remote"
	"github.com/spec-kit/ticket-desk/internal/repository"
	"github.com/spec-kit/ticket-desk/internal/service"
	"github.com/spec-kit/ticket-desk/internal/translate"
)

// desk holds the components every command shares.
type desk struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics

	postgres *persistence.Postgres
	redis    *persistence.Redis

	activity repository.ActivityRepository

	directory  *repository.Directory
	translator translate.Translator
	remote     *remote.Client
	cache      *cache.Store
	snapshots  *service.SnapshotService
	mutations  *service.MutationService
	identities *service.IdentityService
	projector  *projection.Projector
}

func loadDesk(ctx context.Context) (*desk, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	d, err := newDesk(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return d, nil
}

func newDesk(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*desk, error) {
	policy, err := projection.ParseMatchPolicy(cfg.Desk.MatchPolicy)
	if err != nil {
		return nil, err
	}
	directory, err := repository.LoadDirectory(cfg.Desk.DirectoryFile)
	if err != nil {
		return nil, fmt.Errorf("load identity directory: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	d := &desk{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		metrics:    metrics,
		directory:  directory,
		translator: translate.New(translate.Taxonomy(cfg.Sync.Taxonomy)),
		cache:      cache.New(),
	}

	prefs, err := d.openPreferences(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.remote = remote.NewClient(cfg.Remote, remote.WithLogger(logger.Named("remote")))
	d.snapshots = service.NewSnapshotService(service.SnapshotDependencies{
		Remote:     d.remote,
		Cache:      d.cache,
		Translator: d.translator,
		Resolver:   directory,
		PageSize:   cfg.Remote.PageSize,
		Debounce:   cfg.Sync.Debounce(),
		Logger:     logger.Named("snapshots"),
		Metrics:    metrics,
	})
	d.mutations = service.NewMutationService(service.MutationDependencies{
		Remote:     d.remote,
		Cache:      d.cache,
		Snapshots:  d.snapshots,
		Translator: d.translator,
		Resolver:   directory,
		Logger:     logger.Named("mutations"),
		Metrics:    metrics,
	})
	d.identities, err = service.NewIdentityService(service.IdentityDependencies{
		Directory:    directory,
		Preferences:  prefs,
		Key:          cfg.Desk.PreferenceKey,
		DefaultID:    cfg.Desk.DefaultIdentity,
		PrivilegedID: cfg.Desk.PrivilegedIdentity,
		Logger:       logger.Named("identity"),
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.identities.Restore(ctx)
	d.projector = projection.NewProjector(d.translator.Statuses(), cfg.Desk.PrivilegedIdentity, policy)
	return d, nil
}

func (d *desk) openPreferences(ctx context.Context) (repository.PreferenceRepository, error) {
	switch d.cfg.Desk.PreferenceBackend {
	case config.PreferenceRedis:
		d.redis = persistence.NewRedis(ctx, d.cfg.Redis, d.logger)
		d.activity = repository.NewMemoryActivityRepository(service.DefaultActivityLimit)
		return repository.NewRedisPreferenceRepository(d.redis.Client), nil
	case config.PreferencePostgres:
		pg, err := persistence.NewPostgres(ctx, d.cfg.Postgres, d.logger)
		if err != nil {
			return nil, err
		}
		d.postgres = pg
		if d.cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, d.logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		d.activity = repository.NewPostgresActivityRepository(pg.PoolHandle(), service.DefaultActivityLimit)
		return repository.NewPostgresPreferenceRepository(pg.PoolHandle()), nil
	default:
		d.activity = repository.NewMemoryActivityRepository(service.DefaultActivityLimit)
		return repository.NewMemoryPreferenceRepository(), nil
	}
}

// Close releases every resource the desk opened.
func (d *desk) Close() {
	if d.snapshots != nil {
		d.snapshots.Close()
	}
	d.cache.Close()
	d.redis.Close()
	d.postgres.Close()
	_ = d.logger.Sync()
}
