// Package session keeps one grid controller per curator for the dashboard
// API and disposes the ones nobody has touched for a while.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
)

var (
	ErrInvalidCurator = errors.New("invalid curator id")
	ErrClosed         = errors.New("session registry closed")
)

type entry struct {
	id       uuid.UUID
	ctl      *grid.Controller
	lastSeen time.Time

	once    sync.Once
	initErr error
}

// Info describes a live session.
type Info struct {
	ID       uuid.UUID `json:"id"`
	Curator  string    `json:"curator"`
	LastSeen time.Time `json:"last_seen"`
}

type Registry struct {
	api    feed.API
	opts   grid.Options
	idle   time.Duration
	spec   string
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	closed   bool
	sessions map[string]*entry
	cron     *cron.Cron
}

func NewRegistry(api feed.API, opts grid.Options, idle time.Duration, reapSpec string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(reapSpec) == "" {
		reapSpec = "@every 1m"
	}
	return &Registry{
		api:      api,
		opts:     opts,
		idle:     idle,
		spec:     reapSpec,
		logger:   logger.Named("session"),
		now:      time.Now,
		sessions: map[string]*entry{},
	}
}

// Get returns the curator's controller, creating and initialising it on
// first use. Concurrent first calls share one controller.
func (r *Registry) Get(ctx context.Context, curator string) (*grid.Controller, error) {
	curator = strings.TrimSpace(curator)
	if curator == "" {
		return nil, ErrInvalidCurator
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := r.sessions[curator]
	if !ok {
		e = &entry{id: uuid.New(), ctl: grid.New(r.api, r.opts, r.logger.With(zap.String("curator", curator)))}
		r.sessions[curator] = e
		r.logger.Info("session opened", zap.String("curator", curator), zap.String("session_id", e.id.String()))
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.once.Do(func() {
		e.initErr = e.ctl.Init(ctx)
	})
	if e.initErr != nil {
		r.drop(curator, e)
		return nil, fmt.Errorf("init session: %w", e.initErr)
	}
	return e.ctl, nil
}

// Touch marks the curator's session as used without creating one.
func (r *Registry) Touch(curator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[curator]; ok {
		e.lastSeen = r.now()
	}
}

// Release disposes the curator's controller.
func (r *Registry) Release(curator string) bool {
	r.mu.Lock()
	e, ok := r.sessions[curator]
	if ok {
		delete(r.sessions, curator)
	}
	r.mu.Unlock()
	if ok {
		e.ctl.Dispose()
		r.logger.Info("session released", zap.String("curator", curator))
	}
	return ok
}

func (r *Registry) drop(curator string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.sessions[curator]; ok && cur == e {
		delete(r.sessions, curator)
	}
	r.mu.Unlock()
	e.ctl.Dispose()
}

// Reap disposes every session idle for longer than the idle timeout and
// returns how many it removed. A zero timeout disables reaping.
func (r *Registry) Reap() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []*entry
	for curator, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(r.sessions, curator)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.ctl.Dispose()
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions reaped", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Sessions lists live sessions.
func (r *Registry) Sessions() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.sessions))
	for curator, e := range r.sessions {
		out = append(out, Info{ID: e.id, Curator: curator, LastSeen: e.lastSeen})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start schedules the reaper.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}
	c := cron.New(cron.WithLogger(cron.DefaultLogger))
	if _, err := c.AddFunc(r.spec, func() { r.Reap() }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	c.Start()
	r.cron = c
	r.logger.Info("session reaper started", zap.String("spec", r.spec), zap.Duration("idle_timeout", r.idle))
	return nil
}

// Close stops the reaper and disposes every session. Later Gets fail with
// ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	c := r.cron
	r.cron = nil
	all := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, e := range all {
		e.ctl.Dispose()
	}
	r.logger.Info("session registry closed", zap.Int("disposed", len(all)))
}
