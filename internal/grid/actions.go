package grid

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
)

// maxBulkCalls bounds concurrent backend calls of one bulk curate.
const maxBulkCalls = 4

var overrideWireKeys = map[job.Field]string{
	job.FieldCompany:        feed.WireCustomCompany,
	job.FieldLocation:       feed.WireCustomLocation,
	job.FieldEmploymentType: feed.WireCustomEmploymentType,
	job.FieldRemote:         feed.WireCustomIsRemote,
}

// StartEdit opens the inline editor on one cell. It leaves the state
// untouched and returns an error when another edit is open, when a mutation
// on the record is still in flight, or when a curator-only field is edited on
// a job that is not curated; the last case also posts a guidance notice.
func (c *Controller) StartEdit(id job.ID, field job.Field, current string) error {
	if !job.IsEditable(field) {
		return fmt.Errorf("%w: %s", ErrFieldNotEditable, field)
	}
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()

	if _, open := c.edit.active(); open {
		return ErrEditInProgress
	}
	r, ok := c.store.Get(id)
	if !ok {
		return ErrRecordNotFound
	}
	if c.busyLocked(id) {
		return ErrRecordBusy
	}
	if job.RequiresCuration(field) && !r.Curated() {
		c.noticeLocked(NoticeGuidance, msgCurationRequired)
		return ErrCurationRequired
	}
	if err := c.edit.begin(id, field, current); err != nil {
		return err
	}
	c.emitLocked(Event{Kind: EventEdit})
	return nil
}

func (c *Controller) UpdateDraft(value string) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	if err := c.edit.updateDraft(value); err != nil {
		return err
	}
	c.emitLocked(Event{Kind: EventEdit})
	return nil
}

// CommitEdit applies the draft optimistically and persists it. It returns as
// soon as the change is applied; the outcome arrives later as a notice and,
// on failure, as a rollback. Empty or unchanged drafts are sent as is.
func (c *Controller) CommitEdit() (uuid.UUID, error) {
	if err := c.lock(); err != nil {
		return uuid.Nil, err
	}
	defer c.unlockAndFlush()

	var (
		mid    uuid.UUID
		runErr error
	)
	err := c.edit.commit(func(s EditSession) {
		mid, runErr = c.runLocked(c.editMutation(s))
	})
	if err != nil {
		return uuid.Nil, err
	}
	c.emitLocked(Event{Kind: EventEdit})
	return mid, runErr
}

func (c *Controller) CancelEdit() error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.unlockAndFlush()
	if err := c.edit.cancel(); err != nil {
		return err
	}
	c.emitLocked(Event{Kind: EventEdit})
	return nil
}

// ActiveEdit reports the open edit session, if any.
func (c *Controller) ActiveEdit() (EditSession, bool, error) {
	if err := c.lock(); err != nil {
		return EditSession{}, false, err
	}
	defer c.mu.Unlock()
	s, ok := c.edit.active()
	return s, ok, nil
}

// editMutation routes the title through the formatted-title endpoint and
// every other field through a single overrides patch.
func (c *Controller) editMutation(s EditSession) mutation {
	id, field, draft := s.TargetID, s.Field, s.Draft

	var call func(ctx context.Context) (feed.RawJob, error)
	if field == job.FieldTitle {
		call = func(ctx context.Context) (feed.RawJob, error) {
			return c.api.UpdateJobField(ctx, int64(id), feed.WireFormattedTitle, draft)
		}
	} else {
		patch := feed.OverridesPatch{overrideWireKeys[field]: draft}
		call = func(ctx context.Context) (feed.RawJob, error) {
			return c.api.UpdateJobOverrides(ctx, int64(id), patch)
		}
	}

	return mutation{
		kind:    MutationEdit,
		targets: []job.ID{id},
		aspects: []aspect{{id: id, kind: aspectOverride, field: field}},
		apply: func(st *RowStore) {
			_ = st.Patch(id, field, draft)
		},
		call: func(ctx context.Context) (func(*RowStore), error) {
			raw, err := call(ctx)
			if err != nil {
				return nil, err
			}
			return mergeSourceFields(id, raw), nil
		},
		success: "Saved",
		failure: "Failed to save " + string(field),
	}
}

// mergeSourceFields copies the source values of a returned posting into the
// record. Overrides and membership stay as applied locally.
func mergeSourceFields(id job.ID, raw feed.RawJob) func(*RowStore) {
	if raw.ID == 0 || job.ID(raw.ID) != id {
		return nil
	}
	fresh := NormalizeJob(raw)
	return func(st *RowStore) {
		_ = st.Update(id, func(r *job.Record) {
			for f, v := range fresh.Fields {
				r.Fields[f] = v
			}
		})
	}
}

// TogglePriority flips the priority flag of a curated job.
func (c *Controller) TogglePriority(id job.ID) (uuid.UUID, error) {
	if err := c.lock(); err != nil {
		return uuid.Nil, err
	}
	defer c.unlockAndFlush()

	r, ok := c.store.Get(id)
	if !ok {
		c.staleLocked(id)
		return uuid.Nil, ErrRecordNotFound
	}
	if !r.Curated() {
		c.noticeLocked(NoticeGuidance, msgNotCurated)
		return uuid.Nil, ErrNotCurated
	}
	next := !r.Membership.Priority
	reason := ""
	if next {
		reason = priorityReason
	}
	req := feed.PriorityRequest{JobID: int64(id), CommunityIDs: []int64{}, IsPriority: next, PriorityReason: reason}

	success := "Priority removed"
	if next {
		success = "Marked as priority"
	}
	return c.runLocked(mutation{
		kind:    MutationPriority,
		targets: []job.ID{id},
		aspects: []aspect{{id: id, kind: aspectPriority}},
		apply: func(st *RowStore) {
			_ = st.Update(id, func(r *job.Record) {
				r.Membership.Priority = next
				r.Membership.PriorityReason = reason
			})
		},
		call: func(ctx context.Context) (func(*RowStore), error) {
			return nil, c.api.SetJobPriority(ctx, req)
		},
		success: success,
		failure: "Failed to update priority",
	})
}

// RemoveFromCuration drops a job from every community. In the curated view
// the row leaves the page; in the all-jobs view it loses its membership.
func (c *Controller) RemoveFromCuration(id job.ID) (uuid.UUID, error) {
	if err := c.lock(); err != nil {
		return uuid.Nil, err
	}
	defer c.unlockAndFlush()

	r, ok := c.store.Get(id)
	if !ok {
		c.staleLocked(id)
		return uuid.Nil, ErrRecordNotFound
	}
	if !r.Curated() {
		return uuid.Nil, ErrNotCurated
	}

	m := mutation{
		kind:    MutationRemoveCuration,
		targets: []job.ID{id},
		call: func(ctx context.Context) (func(*RowStore), error) {
			return nil, c.api.RemoveJobFromCuration(ctx, int64(id))
		},
		success: "Removed from curation",
		failure: "Failed to remove job from curation",
	}
	if c.shown.Mode == ViewCurated {
		m.aspects = []aspect{{id: id, kind: aspectPresence}}
		m.apply = func(st *RowStore) {
			if _, idx, ok := st.Remove(id); ok {
				c.window.RowRemoved(idx)
			}
		}
		delete(c.selection, id)
	} else {
		m.aspects = []aspect{{id: id, kind: aspectCommunities}, {id: id, kind: aspectPriority}}
		m.apply = func(st *RowStore) {
			_ = st.Update(id, func(r *job.Record) { r.Membership = nil })
		}
	}
	return c.runLocked(m)
}

// RemoveFromCommunity detaches a job from one community. Removing the last
// community is refused up front; the job has to be removed from curation
// instead. A failure reloads the page because the remaining membership is
// not known locally.
func (c *Controller) RemoveFromCommunity(id job.ID, communityID int64) (uuid.UUID, error) {
	if err := c.lock(); err != nil {
		return uuid.Nil, err
	}
	defer c.unlockAndFlush()

	r, ok := c.store.Get(id)
	if !ok {
		c.staleLocked(id)
		return uuid.Nil, ErrRecordNotFound
	}
	if !r.Membership.HasCommunity(communityID) {
		return uuid.Nil, ErrNotInCommunity
	}
	if len(r.Membership.CommunityIDs) <= 1 {
		c.noticeLocked(NoticeGuidance, msgLastCommunity)
		return uuid.Nil, ErrLastCommunity
	}

	return c.runLocked(mutation{
		kind:    MutationRemoveCommunity,
		targets: []job.ID{id},
		aspects: []aspect{{id: id, kind: aspectCommunities}},
		apply: func(st *RowStore) {
			_ = st.Update(id, func(r *job.Record) { r.Membership.RemoveCommunity(communityID) })
		},
		call: func(ctx context.Context) (func(*RowStore), error) {
			return nil, c.api.RemoveJobFromCommunity(ctx, int64(id), communityID)
		},
		reloadOnFailure: true,
		success:         "Removed from community",
		failure:         "Failed to remove job from community",
	})
}

// CurateSelected adds every selected job to the given communities with one
// backend call per job. The selection is cleared on dispatch. If any call
// fails the whole batch is rolled back.
func (c *Controller) CurateSelected(communityIDs []int64, notes string) (uuid.UUID, error) {
	ids := slices.Clone(communityIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return uuid.Nil, ErrNoCommunities
	}

	if err := c.lock(); err != nil {
		return uuid.Nil, err
	}
	defer c.unlockAndFlush()

	targets := c.selectionLocked()
	if len(targets) == 0 {
		return uuid.Nil, ErrEmptySelection
	}

	reqs := make([]feed.PriorityRequest, 0, len(targets))
	aspects := make([]aspect, 0, len(targets))
	for _, id := range targets {
		priority, reason := false, ""
		if r, ok := c.store.Get(id); ok && r.Curated() {
			priority, reason = r.Membership.Priority, r.Membership.PriorityReason
		}
		reqs = append(reqs, feed.PriorityRequest{
			JobID:          int64(id),
			CommunityIDs:   ids,
			IsPriority:     priority,
			PriorityReason: reason,
			Notes:          notes,
		})
		aspects = append(aspects, aspect{id: id, kind: aspectCommunities})
	}

	c.clearSelectionLocked()

	return c.runLocked(mutation{
		kind:    MutationCurate,
		targets: targets,
		aspects: aspects,
		apply: func(st *RowStore) {
			for _, id := range targets {
				_ = st.Update(id, func(r *job.Record) {
					if r.Membership == nil {
						r.Membership = &job.Membership{Status: job.StatusUserAdded}
					}
					r.Membership.AddCommunities(ids...)
				})
			}
		},
		call: func(ctx context.Context) (func(*RowStore), error) {
			var g errgroup.Group
			g.SetLimit(maxBulkCalls)
			for _, req := range reqs {
				g.Go(func() error {
					return c.api.SetJobPriority(ctx, req)
				})
			}
			return nil, g.Wait()
		},
		success: fmt.Sprintf("Added %d job(s) to curation", len(targets)),
		failure: "Failed to add jobs to curation",
	})
}
