package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mes-backend/internal/data/db"
	"github.com/yungbote/mes-backend/internal/data/repos"
	"github.com/yungbote/mes-backend/internal/http"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *db.Service
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	otelShutdown func(context.Context) error
}

// New loads config and opens every dependency. Schema migration is a
// separate step (Migrate) so read-only commands never alter the database.
func New(ctx context.Context) (*App, error) {
	bootLog, err := logger.New("development")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	bootLog.Info("Loading configuration...")
	cfg, err := LoadConfig(bootLog)
	if err != nil {
		bootLog.Sync()
		return nil, err
	}

	log := bootLog
	if cfg.LogMode != "development" {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		bootLog.Sync()
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log, cfg.MetricsEnabled)

	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}

	reposet := repos.New(dbs.DB(), log)
	clients := wireClients(log, cfg)
	serviceset := wireServices(dbs.DB(), log, cfg, reposet, clients, metrics)
	handlerset := wireHandlers(log, dbs, serviceset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           dbs,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		Server:       http.NewServer(wireRouterConfig(log, cfg, metrics, handlerset)),
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Migrate() error {
	if a == nil || a.DB == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Running migrations...")
	if err := db.AutoMigrateAll(a.DB.DB()); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Run serves HTTP and, when enabled, the expiry sweep until ctx is cancelled
// or either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Serve(gctx, a.Cfg.HTTPAddr)
	})
	if a.Cfg.SweepEnabled && a.Services.Sweeper != nil {
		g.Go(func() error {
			return a.Services.Sweeper.Run(gctx)
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
