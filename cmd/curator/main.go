package main

import (
	"context"
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"curation-grid/internal/app"
	"curation-grid/internal/config"
	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
	"curation-grid/internal/infrastructure/cache"
	"curation-grid/internal/infrastructure/feedapi"
	"curation-grid/internal/pkg/logger"
	"curation-grid/internal/tui"
)

func main() {
	curated := flag.Bool("curated", false, "start in the curated view")
	search := flag.String("search", "", "initial search term")
	logFile := flag.String("log", "", "write logs to this file; discarded when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// the program owns the terminal
	zl := zap.NewNop()
	if *logFile != "" {
		zl, err = logger.New("production", cfg.LogLevel, *logFile)
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer func() { _ = zl.Sync() }()
	}

	client, err := feedapi.New(cfg.Feed.BaseURL, cfg.Feed.APIToken, cfg.Feed.Timeout, zl)
	if err != nil {
		log.Fatalf("init feed client: %v", err)
	}
	redis := cache.NewRedis(cfg.Redis, cfg.Feed.CacheTTL, zl)
	defer func() { _ = redis.Close() }()

	ctl := grid.New(feed.NewCached(client, redis, cfg.Feed.CacheTTL, zl), tui.Options(app.GridOptions(cfg.Grid)), zl)
	defer ctl.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ctl.Init(ctx); err != nil {
		log.Fatalf("init grid: %v", err)
	}
	if *curated {
		_ = ctl.SetViewMode(grid.ViewCurated)
	}
	if *search != "" {
		_ = ctl.CommitSearch(*search)
	}

	m := tui.New(ctl)
	defer m.Close()
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}
