package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// queryTracer logs failed statements and statements slower than threshold.
type queryTracer struct {
	logger    *zap.Logger
	threshold time.Duration
	now       func() time.Time
}

type traceKey struct{}

type traceStart struct {
	sql string
	at  time.Time
}

func newQueryTracer(logger *zap.Logger, threshold time.Duration) *queryTracer {
	return &queryTracer{logger: logger.Named("pg"), threshold: threshold, now: time.Now}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{sql: data.SQL, at: t.now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := t.now().Sub(st.at)

	switch {
	case data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) && !errors.Is(data.Err, context.Canceled):
		t.logger.Warn("query failed", zap.String("sql", compactSQL(st.sql)), zap.Duration("elapsed", elapsed), zap.Error(data.Err))
	case t.threshold > 0 && elapsed >= t.threshold:
		t.logger.Warn("slow query", zap.String("sql", compactSQL(st.sql)), zap.Duration("elapsed", elapsed))
	}
}

func compactSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 240 {
		return s[:240] + "..."
	}
	return s
}
