// Package grid is the windowed grid engine behind the curation dashboard. A
// Controller owns the rows of the current page, the single inline edit
// session, optimistic mutations with rollback, pagination and search, and
// the switch between the all-jobs and curated views.
//
// All state lives behind one mutex. Backend calls run on goroutines and
// re-enter through that mutex when they complete, so every state transition
// is atomic with respect to every other.
package grid

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
)

type Options struct {
	PageSize        int
	CuratedPageSize int
	MaxPageSize     int
	// RetryDelay is the pause before the single retry of a page load that
	// failed with a 5xx status.
	RetryDelay time.Duration
	// Lookahead is how many pages past the current one are assumed to exist
	// while the backend reports more results.
	Lookahead     int
	NoticeHistory int
	Window        WindowOptions
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = 50
	}
	if o.CuratedPageSize <= 0 {
		o.CuratedPageSize = 100
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 500
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Lookahead <= 0 {
		o.Lookahead = 1
	}
	if o.NoticeHistory <= 0 {
		o.NoticeHistory = 20
	}
	o.Window = o.Window.withDefaults()
	return o
}

type Controller struct {
	api    feed.API
	opts   Options
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	disposed    bool
	initialized bool

	store     *RowStore
	edit      editManager
	pending   map[uuid.UUID]*PendingMutation
	selection map[job.ID]struct{}
	window    *Window

	query        QueryState
	shown        QueryState
	searchDraft  string
	estimate     Estimate
	maxKnownPage int
	shownBounds  pageBounds // bounds of the resident page
	loading      bool
	transition   bool
	fetchSeq     uint64
	fetching     bool
	fetchQuery   QueryState

	communities []job.Community
	notices     []Notice

	subs    map[int]func(Event)
	nextSub int
	outbox  []Event
}

func New(api feed.API, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	q := QueryState{Page: 1, PageSize: opts.PageSize, Mode: ViewAll}
	return &Controller{
		api:          api,
		opts:         opts,
		logger:       logger.Named("grid"),
		ctx:          ctx,
		cancel:       cancel,
		store:        NewRowStore(),
		pending:      map[uuid.UUID]*PendingMutation{},
		selection:    map[job.ID]struct{}{},
		window:       NewWindow(opts.Window),
		query:        q,
		shown:        q,
		maxKnownPage: 1,
		shownBounds:  pageBounds{maxKnownPage: 1},
		subs:         map[int]func(Event){},
	}
}

// Init loads the community catalogue and starts loading the first page. A
// catalogue failure is reported as a notice and leaves the list empty.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.mu.Unlock()

	communities, err := c.api.ListCommunities(ctx)

	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.disposed {
		return ErrDisposed
	}
	if err != nil {
		c.logger.Warn("load communities failed", zap.Error(err))
		c.noticeLocked(NoticeError, "Failed to load communities")
	} else {
		c.communities = make([]job.Community, 0, len(communities))
		for _, cm := range communities {
			c.communities = append(c.communities, job.Community{ID: cm.ID, Name: cm.CommunityName})
		}
	}
	c.fetchLocked(c.query)
	return nil
}

// Dispose cancels outstanding calls, waits for their goroutines and drops all
// state. Every later call returns ErrDisposed.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.cancel()
	c.store = NewRowStore()
	c.pending = map[uuid.UUID]*PendingMutation{}
	c.selection = map[job.ID]struct{}{}
	c.edit.reset()
	c.subs = map[int]func(Event){}
	c.outbox = nil
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Debug("controller disposed")
}

// Wait blocks until every backend call started so far, and any reload those
// calls triggered, has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Subscribe registers fn for controller events. Events are delivered after
// the lock is released, on the goroutine that caused them.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) emitLocked(ev Event) {
	c.outbox = append(c.outbox, ev)
}

func (c *Controller) unlockAndFlush() {
	events := c.outbox
	c.outbox = nil
	var subs []func(Event)
	if len(events) > 0 {
		subs = make([]func(Event), 0, len(c.subs))
		for _, fn := range c.subs {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// lock acquires the controller and reports ErrDisposed after Dispose.
func (c *Controller) lock() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	return nil
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Query        QueryState      `json:"query"`
	Shown        QueryState      `json:"shown"`
	SearchDraft  string          `json:"search_draft"`
	Estimate     Estimate        `json:"estimate"`
	MaxKnownPage int             `json:"max_known_page"`
	Loading      bool            `json:"loading"`
	Transition   bool            `json:"transitioning"`
	RowCount     int             `json:"row_count"`
	Selection    []job.ID        `json:"selection"`
	Edit         *EditSession    `json:"edit,omitempty"`
	Pending      int             `json:"pending_mutations"`
	Communities  []job.Community `json:"communities"`
	Notices      []Notice        `json:"notices"`
}

func (c *Controller) Snapshot() (Snapshot, error) {
	if err := c.lock(); err != nil {
		return Snapshot{}, err
	}
	defer c.mu.Unlock()

	s := Snapshot{
		Query:        c.query,
		Shown:        c.shown,
		SearchDraft:  c.searchDraft,
		Estimate:     c.estimate,
		MaxKnownPage: c.maxKnownPage,
		Transition:   c.transition,
		RowCount:     c.store.Len(),
		Selection:    c.selectionLocked(),
		Pending:      len(c.pending),
		Communities:  append([]job.Community(nil), c.communities...),
		Notices:      append([]Notice(nil), c.notices...),
	}
	// the skeleton is suppressed while a view switch keeps old rows up
	s.Loading = c.loading && !c.transition
	if es, ok := c.edit.active(); ok {
		s.Edit = &es
	}
	return s, nil
}

// Record returns a copy of the resident record with the given id.
func (c *Controller) Record(id job.ID) (job.Record, error) {
	if err := c.lock(); err != nil {
		return job.Record{}, err
	}
	defer c.mu.Unlock()
	r, ok := c.store.Get(id)
	if !ok {
		return job.Record{}, ErrRecordNotFound
	}
	return r, nil
}

// Rows returns copies of all resident records in display order.
func (c *Controller) Rows() ([]job.Record, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.store.Slice(0, c.store.Len()), nil
}

// CopyText returns the one-line summary of a resident job.
func (c *Controller) CopyText(id job.ID) (string, error) {
	r, err := c.Record(id)
	if err != nil {
		return "", err
	}
	return r.CopyText(), nil
}

func (c *Controller) Communities() ([]job.Community, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return append([]job.Community(nil), c.communities...), nil
}
