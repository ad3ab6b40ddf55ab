package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"curation-grid/internal/config"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer(threshold time.Duration, clock *time.Time) (*queryTracer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	tr := newQueryTracer(zap.New(core), threshold)
	tr.now = func() time.Time { return *clock }
	return tr, logs
}

func TestQueryTracer_SlowAndFailed(t *testing.T) {
	clock := time.Unix(0, 0)
	tr, logs := newObservedTracer(100*time.Millisecond, &clock)

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT   1\n FROM job_postings"})
	clock = clock.Add(20 * time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 0 {
		t.Fatalf("expected fast query not logged, got %d entries", logs.Len())
	}

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT   1\n FROM job_postings"})
	clock = clock.Add(150 * time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	entries := logs.TakeAll()
	if len(entries) != 1 || entries[0].Message != "slow query" {
		t.Fatalf("expected one slow query entry, got %+v", entries)
	}
	if got := entries[0].ContextMap()["sql"]; got != "SELECT 1 FROM job_postings" {
		t.Fatalf("expected compacted sql, got %v", got)
	}

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE curated_jobs"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("deadlock detected")})
	entries = logs.TakeAll()
	if len(entries) != 1 || entries[0].Message != "query failed" {
		t.Fatalf("expected one failure entry, got %+v", entries)
	}
}

func TestQueryTracer_IgnoresNoRows(t *testing.T) {
	clock := time.Unix(0, 0)
	tr, logs := newObservedTracer(0, &clock)

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT id FROM curated_jobs"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{Err: errors.New("no start recorded")})
	if logs.Len() != 0 {
		t.Fatalf("expected nothing logged, got %+v", logs.All())
	}
}

func TestDSN(t *testing.T) {
	got := DSN(testDatabaseConfig())
	want := "host=db port=5432 user=curator password=s3cret dbname=curation sslmode=disable"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		DBHost:     " db ",
		DBPort:     "5432",
		DBName:     "curation",
		DBUser:     "curator",
		DBPassword: "s3cret",
		DBSSLMode:  "disable",
	}
}
