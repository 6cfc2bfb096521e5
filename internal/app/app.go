package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ejwhite7/zendesk-academy/internal/data/db"
	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Set
	Services Services
	Metrics  *observability.Metrics

	dbService    *db.Service
	redis        *goredis.Client
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// OpenDB connects using cfg and optionally migrates. Used by New and the migrate command.
func OpenDB(cfg Config, log *logger.Logger, migrate bool) (*db.Service, error) {
	svc, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if migrate {
		if err := svc.AutoMigrateAll(); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return svc, nil
}

// New wires every component. Missing LLM credentials fail here, before any
// request is served.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	shutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(cfg.MetricsEnabled)

	dbService, err := OpenDB(cfg, log, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}
	theDB := dbService.DB()

	reposet := wireRepos(theDB, log)

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		return nil, err
	}

	serviceset := wireServices(theDB, log, cfg, reposet, clients)
	handlerset := wireHandlers(log, serviceset, dbService)
	router := wireRouter(log, cfg, metrics, handlerset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    dbService,
		redis:        clients.Redis,
		otelShutdown: shutdown,
	}, nil
}

// Start launches the background worker pool, the sync scheduler and the
// queue sampler. It is a no-op when already started.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	}
	if a.Services.Scheduler != nil {
		a.Services.Scheduler.Start(ctx)
	}
	a.Metrics.StartQueueSampler(ctx, a.DB, a.Log, 0)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Wait()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	a.Log.Sync()
}
