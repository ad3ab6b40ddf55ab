package grid

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"curation-grid/internal/domain/job"
)

type MutationKind string

const (
	MutationEdit            MutationKind = "edit"
	MutationPriority        MutationKind = "priority"
	MutationRemoveCuration  MutationKind = "remove_curation"
	MutationRemoveCommunity MutationKind = "remove_community"
	MutationCurate          MutationKind = "curate"
)

type aspectKind int

const (
	aspectOverride aspectKind = iota
	aspectPriority
	aspectCommunities
	aspectPresence
)

// aspect names one piece of a record a mutation touches. Rollback restores
// only the aspects a mutation recorded, so mutations on other aspects of the
// same record are left alone.
type aspect struct {
	id    job.ID
	kind  aspectKind
	field job.Field
}

type snapshot struct {
	override    string
	hasOverride bool
	membership  *job.Membership
	record      job.Record
	index       int
}

// PendingMutation is the pre-apply state of everything a mutation touched.
type PendingMutation struct {
	ID        uuid.UUID
	Kind      MutationKind
	Targets   []job.ID
	StartedAt time.Time

	aspects   []aspect
	snapshots map[aspect]snapshot
	reload    bool
}

func (p *PendingMutation) touches(id job.ID) bool {
	for _, t := range p.Targets {
		if t == id {
			return true
		}
	}
	return false
}

// mutation describes one optimistic operation.
type mutation struct {
	kind    MutationKind
	targets []job.ID
	aspects []aspect
	apply   func(s *RowStore)
	// call performs the backend request. The returned func, if any, merges
	// authoritative values into the store under the controller lock.
	call func(ctx context.Context) (func(s *RowStore), error)
	// reloadOnFailure replaces point rollback with a page reload.
	reloadOnFailure bool
	success         string
	failure         string
}

func (c *Controller) takeSnapshot(a aspect) (snapshot, bool) {
	r, ok := c.store.byID[a.id]
	if !ok {
		return snapshot{}, false
	}
	switch a.kind {
	case aspectOverride:
		v, has := r.Overrides[a.field]
		return snapshot{override: v, hasOverride: has}, true
	case aspectPriority, aspectCommunities:
		return snapshot{membership: r.Membership.Clone()}, true
	default:
		return snapshot{record: r.Clone(), index: c.store.Index(a.id)}, true
	}
}

// runLocked executes the apply step synchronously and dispatches the call.
// The caller holds c.mu.
func (c *Controller) runLocked(m mutation) (uuid.UUID, error) {
	for _, id := range m.targets {
		if !c.store.Has(id) {
			c.staleLocked(id)
			return uuid.Nil, ErrRecordNotFound
		}
	}

	p := &PendingMutation{
		ID:        uuid.New(),
		Kind:      m.kind,
		Targets:   append([]job.ID(nil), m.targets...),
		StartedAt: time.Now(),
		aspects:   m.aspects,
		snapshots: make(map[aspect]snapshot, len(m.aspects)),
		reload:    m.reloadOnFailure,
	}
	for _, a := range m.aspects {
		s, _ := c.takeSnapshot(a)
		p.snapshots[a] = s
	}

	m.apply(c.store)
	c.pending[p.ID] = p
	c.emitLocked(Event{Kind: EventRows})

	c.logger.Debug("mutation applied",
		zap.String("mutation_id", p.ID.String()),
		zap.String("kind", string(p.Kind)),
		zap.Int("targets", len(p.Targets)),
	)

	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		merge, err := m.call(ctx)

		c.mu.Lock()
		defer c.unlockAndFlush()
		c.completeLocked(p, m, merge, err)
	}()

	return p.ID, nil
}

func (c *Controller) completeLocked(p *PendingMutation, m mutation, merge func(*RowStore), err error) {
	if c.disposed {
		return
	}
	_, tracked := c.pending[p.ID]
	delete(c.pending, p.ID)

	if err == nil {
		if tracked && merge != nil {
			merge(c.store)
		}
		c.logger.Debug("mutation confirmed", zap.String("mutation_id", p.ID.String()), zap.String("kind", string(p.Kind)))
		if m.success != "" {
			c.noticeLocked(NoticeSuccess, m.success)
		}
		c.emitLocked(Event{Kind: EventRows})
		return
	}

	c.logger.Warn("mutation failed",
		zap.String("mutation_id", p.ID.String()),
		zap.String("kind", string(p.Kind)),
		zap.Error(err),
	)
	c.noticeLocked(NoticeError, m.failure)

	if !tracked {
		// The rows this mutation touched were replaced while it was in
		// flight; the replacement came from the server.
		return
	}
	if p.reload || !c.rollbackLocked(p) {
		c.reloadLocked()
	}
	c.emitLocked(Event{Kind: EventRows})
}

// rollbackLocked restores every recorded aspect. It reports false when a
// target is no longer resident and the caller must reload instead.
func (c *Controller) rollbackLocked(p *PendingMutation) bool {
	ok := true
	for _, a := range p.aspects {
		if a.kind != aspectPresence {
			continue
		}
		s := p.snapshots[a]
		if c.store.Has(a.id) {
			continue
		}
		if err := c.store.Insert(s.index, s.record); err != nil {
			ok = false
			continue
		}
		c.window.RowInserted(c.store.Index(a.id))
	}
	for _, a := range p.aspects {
		s := p.snapshots[a]
		switch a.kind {
		case aspectOverride:
			err := c.store.Update(a.id, func(r *job.Record) {
				if r.Overrides == nil {
					r.Overrides = map[job.Field]string{}
				}
				if s.hasOverride {
					r.Overrides[a.field] = s.override
				} else {
					delete(r.Overrides, a.field)
				}
			})
			if err != nil {
				ok = false
			}
		case aspectPriority:
			err := c.store.Update(a.id, func(r *job.Record) {
				if r.Membership == nil || s.membership == nil {
					return
				}
				r.Membership.Priority = s.membership.Priority
				r.Membership.PriorityReason = s.membership.PriorityReason
			})
			if err != nil {
				ok = false
			}
		case aspectCommunities:
			err := c.store.Update(a.id, func(r *job.Record) {
				// A membership created or dropped by the mutation comes back
				// whole; otherwise only the community set is restored.
				if r.Membership == nil || s.membership == nil {
					r.Membership = s.membership.Clone()
					return
				}
				r.Membership.CommunityIDs = slices.Clone(s.membership.CommunityIDs)
			})
			if err != nil {
				ok = false
			}
		}
	}
	return ok
}

func (c *Controller) busyLocked(id job.ID) bool {
	for _, p := range c.pending {
		if p.touches(id) {
			return true
		}
	}
	return false
}

// dropPendingLocked forgets mutations whose targets left the store.
func (c *Controller) dropPendingLocked() {
	for pid, p := range c.pending {
		for _, id := range p.Targets {
			if !c.store.Has(id) {
				delete(c.pending, pid)
				break
			}
		}
	}
}

func (c *Controller) staleLocked(id job.ID) {
	c.logger.Info("mutation target not resident, reloading", zap.Int64("job_id", int64(id)))
	c.noticeLocked(NoticeError, msgStale)
	c.reloadLocked()
}
