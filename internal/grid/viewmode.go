package grid

import (
	"go.uber.org/zap"
)

// SetViewMode switches between the all-jobs and curated sources. The rows of
// the previous mode stay resident until the new page arrives and replaces
// them in one step.
func (c *Controller) SetViewMode(mode ViewMode) error {
	if mode != ViewAll && mode != ViewCurated {
		return ErrInvalidViewMode
	}
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	if mode == c.query.Mode {
		return nil
	}
	c.logger.Debug("switching view", zap.String("from", string(c.query.Mode)), zap.String("to", string(mode)))

	c.transition = true
	c.clearSelectionLocked()
	q := c.query
	q.Mode = mode
	q.Page = 1
	q.PageSize = c.defaultPageSize(mode)
	if mode == ViewCurated {
		q.FeedSource = ""
	}
	c.resetBoundsLocked()
	c.requestLocked(q)
	return nil
}

func (c *Controller) defaultPageSize(mode ViewMode) int {
	if mode == ViewCurated {
		return c.opts.CuratedPageSize
	}
	return c.opts.PageSize
}

// ViewMode reports the mode of the rows currently resident.
func (c *Controller) ViewMode() (ViewMode, error) {
	if err := c.lock(); err != nil {
		return "", err
	}
	defer c.mu.Unlock()
	return c.shown.Mode, nil
}
