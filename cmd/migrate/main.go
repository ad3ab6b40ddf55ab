package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/config"
	"curation-grid/internal/database/migration"
	dbpostgres "curation-grid/internal/database/postgres"
	"curation-grid/internal/database/seeder"
	"curation-grid/internal/pkg/logger"
)

func main() {
	dir := flag.String("dir", "", "directory of V<n>__name.sql files; the embedded schema when empty")
	seed := flag.Bool("seed", false, "insert sample communities and postings after migrating")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.App.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := dbpostgres.Connect(ctx, cfg.Database, zl)
	if err != nil {
		zl.Fatal("connect database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	r := migration.Runner{Logger: zl}
	if d := strings.TrimSpace(*dir); d != "" {
		r.Source = os.DirFS(d)
	}
	if err := r.Run(ctx, db.SQLDB()); err != nil {
		zl.Fatal("migration failed", zap.Error(err))
	}
	zl.Info("migrations up to date")

	if *seed {
		if err := (seeder.Runner{Seeders: seeder.Defaults(), Logger: zl}).Run(ctx, db); err != nil {
			zl.Fatal("seed failed", zap.Error(err))
		}
	}
}
