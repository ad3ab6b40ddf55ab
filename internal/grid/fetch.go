package grid

import (
	"context"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
)

type pageResult struct {
	records []job.Record
	hasMore bool
}

type pageBounds struct {
	estimate     Estimate
	maxKnownPage int
}

// fetchLocked starts loading q unless an identical load is already in
// flight. Only the response to the newest request is applied, and only while
// q is still the requested query.
func (c *Controller) fetchLocked(q QueryState) {
	if c.fetching && c.fetchQuery == q {
		c.logger.Debug("identical fetch in flight, skipping", zap.Int("page", q.Page), zap.String("mode", string(q.Mode)))
		return
	}
	c.fetchSeq++
	seq := c.fetchSeq
	c.fetching = true
	c.fetchQuery = q
	c.loading = true

	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.loadWithRetry(ctx, q)

		c.mu.Lock()
		defer c.unlockAndFlush()
		c.applyFetchLocked(seq, q, res, err)
	}()
}

func (c *Controller) applyFetchLocked(seq uint64, q QueryState, res pageResult, err error) {
	if c.disposed {
		return
	}
	if seq != c.fetchSeq || q != c.query {
		c.logger.Debug("discarding stale page",
			zap.Uint64("seq", seq),
			zap.Uint64("latest_seq", c.fetchSeq),
			zap.Int("page", q.Page),
		)
		return
	}
	c.fetching = false
	c.loading = false

	if err != nil {
		c.logger.Warn("page load failed",
			zap.Int("page", q.Page),
			zap.String("mode", string(q.Mode)),
			zap.String("search", q.Search),
			zap.Error(err),
		)
		c.transition = false
		c.query = c.shown
		c.estimate = c.shownBounds.estimate
		c.maxKnownPage = c.shownBounds.maxKnownPage
		c.noticeLocked(NoticeError, "Failed to load jobs")
		c.emitLocked(Event{Kind: EventQuery})
		return
	}

	c.replaceAllLocked(res.records)
	c.shown = q
	c.transition = false
	c.estimate = estimateFrom(q, len(res.records), res.hasMore, c.opts.Lookahead)
	if res.hasMore {
		c.maxKnownPage = max(c.maxKnownPage, c.estimate.Pages())
	} else {
		c.maxKnownPage = c.estimate.Pages()
	}
	c.shownBounds = pageBounds{estimate: c.estimate, maxKnownPage: c.maxKnownPage}
	c.emitLocked(Event{Kind: EventQuery})
	c.emitLocked(Event{Kind: EventRows})
}

// replaceAllLocked swaps the rows and drops every piece of state that
// referred to ids that are gone.
func (c *Controller) replaceAllLocked(records []job.Record) {
	c.store.ReplaceAll(records)
	c.window.Reset()

	if s, ok := c.edit.active(); ok && !c.store.Has(s.TargetID) {
		c.edit.reset()
		c.emitLocked(Event{Kind: EventEdit})
	}
	c.dropPendingLocked()
	for id := range c.selection {
		if !c.store.Has(id) {
			delete(c.selection, id)
		}
	}
}

func (c *Controller) loadWithRetry(ctx context.Context, q QueryState) (pageResult, error) {
	res, err := c.loadPage(ctx, q)
	if err == nil || !feed.IsServerError(err) {
		return res, err
	}
	c.logger.Info("page load failed with server error, retrying once",
		zap.Duration("delay", c.opts.RetryDelay),
		zap.Error(err),
	)

	t := time.NewTimer(c.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return pageResult{}, ctx.Err()
	case <-t.C:
	}
	return c.loadPage(ctx, q)
}

func (c *Controller) loadPage(ctx context.Context, q QueryState) (pageResult, error) {
	switch q.Mode {
	case ViewCurated:
		page, err := c.api.ListCuratedJobs(ctx, q.Page, q.Search, q.PageSize)
		if err != nil {
			return pageResult{}, err
		}
		records := make([]job.Record, 0, len(page.Items))
		for _, raw := range page.Items {
			records = append(records, NormalizeCurated(raw))
		}
		// Older backends omit has_more for curated lists; a full page means
		// there may be another.
		more := page.HasMore || len(page.Items) >= q.PageSize
		return pageResult{records: records, hasMore: more}, nil
	default:
		page, err := c.api.ListJobs(ctx, q.Page, q.PageSize, q.Search, feed.Filters{FeedSource: q.FeedSource})
		if err != nil {
			return pageResult{}, err
		}
		records := make([]job.Record, 0, len(page.Items))
		for _, raw := range page.Items {
			records = append(records, NormalizeJob(raw))
		}
		return pageResult{records: records, hasMore: page.HasMore}, nil
	}
}
