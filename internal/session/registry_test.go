package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
)

type stubAPI struct {
	feed.API
	communityCalls atomic.Int32
}

func (s *stubAPI) ListCommunities(context.Context) ([]feed.Community, error) {
	s.communityCalls.Add(1)
	return []feed.Community{{ID: 1, CommunityName: "Tech Brew"}}, nil
}

func (s *stubAPI) ListJobs(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
	return feed.JobPage{Items: []feed.RawJob{{ID: 1, Company: "Acme"}}}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, api feed.API, idle time.Duration) (*Registry, *clock) {
	t.Helper()
	r := NewRegistry(api, grid.Options{}, idle, "", nil)
	clk := &clock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	r.now = clk.Now
	t.Cleanup(r.Close)
	return r, clk
}

func TestGet_ReusesControllerPerCurator(t *testing.T) {
	api := &stubAPI{}
	r, _ := newTestRegistry(t, api, time.Minute)

	a, err := r.Get(context.Background(), "curator-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := r.Get(context.Background(), "curator-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a != b {
		t.Fatalf("expected the same controller for the same curator")
	}
	c, _ := r.Get(context.Background(), "curator-2")
	if c == a {
		t.Fatalf("expected a separate controller per curator")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
	if got := api.communityCalls.Load(); got != 2 {
		t.Fatalf("expected one Init per controller, got %d", got)
	}
}

func TestGet_ConcurrentFirstUseSharesController(t *testing.T) {
	r, _ := newTestRegistry(t, &stubAPI{}, time.Minute)

	var wg sync.WaitGroup
	out := make([]*grid.Controller, 8)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], _ = r.Get(context.Background(), "curator-1")
		}(i)
	}
	wg.Wait()
	for _, c := range out {
		if c == nil || c != out[0] {
			t.Fatalf("expected every caller to get the same controller")
		}
	}
}

func TestGet_RejectsEmptyCurator(t *testing.T) {
	r, _ := newTestRegistry(t, &stubAPI{}, time.Minute)
	if _, err := r.Get(context.Background(), "  "); !errors.Is(err, ErrInvalidCurator) {
		t.Fatalf("expected ErrInvalidCurator, got %v", err)
	}
}

func TestReap_DisposesIdleSessions(t *testing.T) {
	r, clk := newTestRegistry(t, &stubAPI{}, 10*time.Minute)

	idle, _ := r.Get(context.Background(), "idle")
	clk.Advance(6 * time.Minute)
	if _, err := r.Get(context.Background(), "active"); err != nil {
		t.Fatalf("get: %v", err)
	}
	clk.Advance(6 * time.Minute)
	r.Touch("active")

	if n := r.Reap(); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if _, err := idle.Snapshot(); !errors.Is(err, grid.ErrDisposed) {
		t.Fatalf("expected reaped controller to be disposed, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected active session kept, got %d", r.Len())
	}
}

func TestReleaseAndClose(t *testing.T) {
	r, _ := newTestRegistry(t, &stubAPI{}, time.Minute)
	ctl, _ := r.Get(context.Background(), "curator-1")

	if !r.Release("curator-1") || r.Release("curator-1") {
		t.Fatalf("expected release to succeed exactly once")
	}
	if _, err := ctl.Snapshot(); !errors.Is(err, grid.ErrDisposed) {
		t.Fatalf("expected released controller to be disposed, got %v", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Close()
	if _, err := r.Get(context.Background(), "curator-1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
