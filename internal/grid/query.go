package grid

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"curation-grid/internal/domain/job"
)

type ViewMode string

const (
	ViewAll     ViewMode = "all"
	ViewCurated ViewMode = "curated"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewAll:
		return ViewAll, nil
	case ViewCurated:
		return ViewCurated, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidViewMode, s)
}

// QueryState identifies one page of one source. Two equal values always
// describe the same request.
type QueryState struct {
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	Search     string   `json:"search"`
	Mode       ViewMode `json:"view_mode"`
	FeedSource string   `json:"feed_source,omitempty"`
}

// Estimate is the inferred size of the result set. The backend never returns
// a count, so unless Exact is set Rows is only a lower bound.
type Estimate struct {
	rows  int
	pages int
	exact bool
}

func (e Estimate) Rows() int   { return e.rows }
func (e Estimate) Pages() int  { return e.pages }
func (e Estimate) Exact() bool { return e.exact }

func (e Estimate) String() string {
	if e.exact {
		return fmt.Sprintf("%d", e.rows)
	}
	return fmt.Sprintf("%d+", e.rows)
}

func (e Estimate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Rows  int  `json:"rows"`
		Pages int  `json:"pages"`
		Exact bool `json:"exact"`
	}{e.rows, e.pages, e.exact})
}

// estimateFrom infers bounds from one page of results.
func estimateFrom(q QueryState, items int, hasMore bool, lookahead int) Estimate {
	rows := (q.Page-1)*q.PageSize + items
	if hasMore {
		return Estimate{rows: rows, pages: q.Page + lookahead}
	}
	pages := (rows + q.PageSize - 1) / q.PageSize
	if pages < 1 {
		pages = 1
	}
	return Estimate{rows: rows, pages: pages, exact: true}
}

func normalizeSearchTerm(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SetSearchDraft updates the keystroke buffer. It never fetches.
func (c *Controller) SetSearchDraft(text string) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	c.searchDraft = text
	return nil
}

// CommitSearch applies a search term: page 1, empty selection, refetch.
func (c *Controller) CommitSearch(text string) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	c.searchDraft = text
	q := c.query
	q.Search = normalizeSearchTerm(text)
	q.Page = 1
	c.resetBoundsLocked()
	c.clearSelectionLocked()
	c.requestLocked(q)
	return nil
}

// GoToPage moves to page n, clamped to [1, last known page].
func (c *Controller) GoToPage(n int) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	if n < 1 {
		n = 1
	}
	if n > c.maxKnownPage {
		n = c.maxKnownPage
	}
	q := c.query
	q.Page = n
	c.requestLocked(q)
	return nil
}

// SetPageSize changes the page size, clamped to [1, MaxPageSize], and goes
// back to page 1.
func (c *Controller) SetPageSize(n int) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	if n < 1 {
		n = 1
	}
	if n > c.opts.MaxPageSize {
		n = c.opts.MaxPageSize
	}
	q := c.query
	q.PageSize = n
	q.Page = 1
	c.resetBoundsLocked()
	c.requestLocked(q)
	return nil
}

// SetFeedSource narrows the all-jobs view to one feed partner. An empty name
// removes the filter.
func (c *Controller) SetFeedSource(name string) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	q := c.query
	q.FeedSource = strings.TrimSpace(name)
	q.Page = 1
	c.resetBoundsLocked()
	c.clearSelectionLocked()
	c.requestLocked(q)
	return nil
}

// Reload refetches the current query.
func (c *Controller) Reload() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	c.reloadLocked()
	return nil
}

func (c *Controller) resetBoundsLocked() {
	c.maxKnownPage = 1
	c.estimate = Estimate{}
}

func (c *Controller) requestLocked(q QueryState) {
	c.query = q
	c.emitLocked(Event{Kind: EventQuery})
	c.fetchLocked(q)
}

func (c *Controller) reloadLocked() {
	c.fetchLocked(c.query)
}

// ToggleSelection checks or unchecks a resident record.
func (c *Controller) ToggleSelection(id job.ID) (bool, error) {
	if err := c.lock(); err != nil {
		return false, err
	}
	defer c.unlockAndFlush()

	if !c.store.Has(id) {
		return false, ErrRecordNotFound
	}
	_, selected := c.selection[id]
	if selected {
		delete(c.selection, id)
	} else {
		c.selection[id] = struct{}{}
	}
	selected = !selected
	c.emitLocked(Event{Kind: EventSelection})
	return selected, nil
}

// SelectAll checks every resident record.
func (c *Controller) SelectAll() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	for _, id := range c.store.IDs() {
		c.selection[id] = struct{}{}
	}
	c.emitLocked(Event{Kind: EventSelection})
	return nil
}

func (c *Controller) ClearSelection() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	c.clearSelectionLocked()
	return nil
}

func (c *Controller) Selection() ([]job.ID, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.selectionLocked(), nil
}

func (c *Controller) clearSelectionLocked() {
	if len(c.selection) == 0 {
		return
	}
	c.selection = map[job.ID]struct{}{}
	c.emitLocked(Event{Kind: EventSelection})
}

func (c *Controller) selectionLocked() []job.ID {
	out := make([]job.ID, 0, len(c.selection))
	for id := range c.selection {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
