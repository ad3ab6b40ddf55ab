package grid

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/feed"
)

type overridesCall struct {
	id    int64
	patch feed.OverridesPatch
}

type fieldCall struct {
	id           int64
	field, value string
}

type fakeAPI struct {
	mu sync.Mutex

	listJobs        func(ctx context.Context, page, pageSize int, search string, filters feed.Filters) (feed.JobPage, error)
	listCurated     func(ctx context.Context, page int, search string, pageSize int) (feed.CuratedPage, error)
	updateField     func(ctx context.Context, id int64, field, value string) (feed.RawJob, error)
	updateOverrides func(ctx context.Context, id int64, patch feed.OverridesPatch) (feed.RawJob, error)
	setPriority     func(ctx context.Context, req feed.PriorityRequest) error
	removeCuration  func(ctx context.Context, id int64) error
	removeCommunity func(ctx context.Context, id, communityID int64) error
	communities     []feed.Community
	communitiesErr  error

	listJobsCalls    int
	listCuratedCalls int
	fieldCalls       []fieldCall
	overrideCalls    []overridesCall
	priorityCalls    []feed.PriorityRequest
	removeCalls      []int64
	communityCalls   [][2]int64
}

func (f *fakeAPI) ListJobs(ctx context.Context, page, pageSize int, search string, filters feed.Filters) (feed.JobPage, error) {
	f.mu.Lock()
	f.listJobsCalls++
	fn := f.listJobs
	f.mu.Unlock()
	if fn == nil {
		return feed.JobPage{}, nil
	}
	return fn(ctx, page, pageSize, search, filters)
}

func (f *fakeAPI) ListCuratedJobs(ctx context.Context, page int, search string, pageSize int) (feed.CuratedPage, error) {
	f.mu.Lock()
	f.listCuratedCalls++
	fn := f.listCurated
	f.mu.Unlock()
	if fn == nil {
		return feed.CuratedPage{}, nil
	}
	return fn(ctx, page, search, pageSize)
}

func (f *fakeAPI) UpdateJobField(ctx context.Context, id int64, field, value string) (feed.RawJob, error) {
	f.mu.Lock()
	f.fieldCalls = append(f.fieldCalls, fieldCall{id: id, field: field, value: value})
	fn := f.updateField
	f.mu.Unlock()
	if fn == nil {
		return feed.RawJob{}, nil
	}
	return fn(ctx, id, field, value)
}

func (f *fakeAPI) UpdateJobOverrides(ctx context.Context, id int64, patch feed.OverridesPatch) (feed.RawJob, error) {
	f.mu.Lock()
	f.overrideCalls = append(f.overrideCalls, overridesCall{id: id, patch: patch})
	fn := f.updateOverrides
	f.mu.Unlock()
	if fn == nil {
		return feed.RawJob{}, nil
	}
	return fn(ctx, id, patch)
}

func (f *fakeAPI) SetJobPriority(ctx context.Context, req feed.PriorityRequest) error {
	f.mu.Lock()
	f.priorityCalls = append(f.priorityCalls, req)
	fn := f.setPriority
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, req)
}

func (f *fakeAPI) RemoveJobFromCuration(ctx context.Context, id int64) error {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, id)
	fn := f.removeCuration
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, id)
}

func (f *fakeAPI) RemoveJobFromCommunity(ctx context.Context, id, communityID int64) error {
	f.mu.Lock()
	f.communityCalls = append(f.communityCalls, [2]int64{id, communityID})
	fn := f.removeCommunity
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, id, communityID)
}

func (f *fakeAPI) ListCommunities(ctx context.Context) ([]feed.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.communities, f.communitiesErr
}

func (f *fakeAPI) jobsCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listJobsCalls
}

func (f *fakeAPI) priorityRequests() []feed.PriorityRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]feed.PriorityRequest(nil), f.priorityCalls...)
}

func rawJob(id int64, company string) feed.RawJob {
	return feed.RawJob{ID: id, Company: company, Title: "Engineer"}
}

func curatedRawJob(id int64, company string, communities ...int64) feed.RawJob {
	refs := make([]feed.CommunityRef, 0, len(communities))
	for _, c := range communities {
		refs = append(refs, feed.CommunityRef{ID: c})
	}
	r := rawJob(id, company)
	r.Curation = &feed.RawCuration{ID: id * 10, CommunityIDs: refs, Status: "approved"}
	return r
}

func staticJobs(items ...feed.RawJob) func(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
	return func(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
		return feed.JobPage{Items: items}, nil
	}
}

func newTestController(t *testing.T, api *fakeAPI, opts Options) *Controller {
	t.Helper()
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	c := New(api, opts, zap.NewNop())
	t.Cleanup(c.Dispose)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	c.Wait()
	return c
}

func hasNotice(t *testing.T, c *Controller, kind NoticeKind) bool {
	t.Helper()
	notices, err := c.Notices()
	if err != nil {
		t.Fatalf("notices: %v", err)
	}
	for _, n := range notices {
		if n.Kind == kind {
			return true
		}
	}
	return false
}
