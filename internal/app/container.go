package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/config"
	"curation-grid/internal/database"
	"curation-grid/internal/database/migration"
	dbpostgres "curation-grid/internal/database/postgres"
	"curation-grid/internal/delivery/http/handler"
	"curation-grid/internal/delivery/http/middleware"
	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
	"curation-grid/internal/infrastructure/cache"
	"curation-grid/internal/infrastructure/feedapi"
	"curation-grid/internal/infrastructure/persistence/postgres"
	"curation-grid/internal/pkg/jwt"
	"curation-grid/internal/pkg/logger"
	"curation-grid/internal/session"
	"curation-grid/internal/ws"
)

type Container struct {
	Config config.Config
	Logger *zap.Logger

	DB       database.DB
	Cache    *cache.Redis
	Feed     feed.API
	Sessions *session.Registry
	Hub      *ws.Hub
	JWT      jwt.Service

	Health *handler.HealthHandler
	Grid   *handler.GridHandler
	Auth   *middleware.AuthMiddleware
}

func NewContainer(cfg config.Config) (*Container, error) {
	log, err := logger.New(cfg.App.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With(zap.String("app", cfg.App.AppName))

	c := &Container{Config: cfg, Logger: log}

	api, err := c.feedAPI()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Cache = cache.NewRedis(cfg.Redis, cfg.Feed.CacheTTL, log)
	c.Feed = feed.NewCached(api, c.Cache, cfg.Feed.CacheTTL, log)

	c.Sessions = session.NewRegistry(c.Feed, GridOptions(cfg.Grid), cfg.Session.IdleTimeout, cfg.Session.ReapSpec, log)
	if err := c.Sessions.Start(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("start session reaper: %w", err)
	}

	c.Hub = ws.NewHub(log)
	go c.Hub.Run()
	stream := ws.NewHandler(c.Hub, ws.NewBridge(c.Hub, log), log)

	c.JWT = jwt.NewHMACService(cfg.Auth.AccessSecret, cfg.Auth.AccessTTL)
	c.Auth = middleware.NewAuthMiddleware(c.JWT)
	c.Grid = handler.NewGridHandler(c.Sessions, stream)
	c.Health = handler.NewHealthHandler(c.healthChecks())

	return c, nil
}

func (c *Container) feedAPI() (feed.API, error) {
	cfg := c.Config
	switch cfg.Feed.Driver {
	case config.FeedDriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		db, err := dbpostgres.Connect(ctx, cfg.Database, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		c.DB = db
		if cfg.Database.AutoMigrate {
			r := migration.Runner{Logger: c.Logger}
			if err := r.Run(ctx, db.SQLDB()); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return postgres.NewFeedRepository(db, c.Logger), nil
	default:
		client, err := feedapi.New(cfg.Feed.BaseURL, cfg.Feed.APIToken, cfg.Feed.Timeout, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("init feed client: %w", err)
		}
		return client, nil
	}
}

func (c *Container) healthChecks() map[string]handler.Check {
	checks := map[string]handler.Check{}
	if c.Cache.Available() {
		checks["redis"] = c.Cache.Ping
	}
	if c.DB != nil {
		checks["database"] = c.DB.Ping
	}
	return checks
}

// GridOptions maps the grid section of the configuration onto controller
// options.
func GridOptions(cfg config.GridConfig) grid.Options {
	return grid.Options{
		PageSize:        cfg.PageSize,
		CuratedPageSize: cfg.CuratedPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		RetryDelay:      cfg.RetryDelay,
		Lookahead:       cfg.Lookahead,
		Window: grid.WindowOptions{
			EstimatedRowHeight: cfg.RowHeight,
			Overscan:           cfg.Overscan,
			MeasureThreshold:   cfg.MeasureThreshold,
		},
	}
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Hub != nil {
		c.Hub.Stop()
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}
