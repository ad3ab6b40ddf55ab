package feedapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"curation-grid/internal/feed"
)

type recorded struct {
	path string
	auth string
	body map[string]any
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &rec.body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", "token-1", time.Second, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, &calls
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New("  ", "", 0, nil); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func TestListJobs_DecodesEnvelope(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"id":1,"company":"Acme","title":"Engineer","location":[],"custom_location":"Remote"}],"curPage":1,"nextPage":2}`)
	})

	page, err := c.ListJobs(context.Background(), 1, 50, " eng ", feed.Filters{FeedSource: "Appcast"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !page.HasMore || len(page.Items) != 1 || page.Items[0].CustomLocation.Text != "Remote" {
		t.Fatalf("unexpected page %+v", page)
	}

	got := (*calls)[0]
	if got.path != pathListJobs {
		t.Fatalf("unexpected path %s", got.path)
	}
	if got.auth != "Bearer token-1" {
		t.Fatalf("expected bearer token, got %q", got.auth)
	}
	if got.body["search"] != "eng" || got.body["per_page"].(float64) != 50 {
		t.Fatalf("unexpected body %+v", got.body)
	}
	filters, _ := got.body["filters"].(map[string]any)
	if filters["feed_source"] != "Appcast" {
		t.Fatalf("expected feed_source filter, got %+v", got.body["filters"])
	}
}

func TestListCuratedJobs_BareArrayAndLastPage(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":5,"job_posting_id":50,"community_ids":[1,2],"is_source_deleted":true,"cached_job_title":"Frozen"}]`)
	})

	page, err := c.ListCuratedJobs(context.Background(), 1, "", 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.HasMore || len(page.Items) != 1 || page.Items[0].JobPostingID != 50 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestDo_ServerErrorIsStatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ListJobs(context.Background(), 1, 50, "", feed.Filters{})
	if !feed.IsServerError(err) {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestUpdateJobOverrides_StructuredLocation(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":9,"company":"Acme"}`)
	})

	raw, err := c.UpdateJobOverrides(context.Background(), 9, feed.OverridesPatch{
		feed.WireCustomLocation: "Austin, TX, United States",
		feed.WireCustomCompany:  "Acme Corp",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if raw.ID != 9 {
		t.Fatalf("expected returned job, got %+v", raw)
	}

	body := (*calls)[0].body
	if body["job_posting_id"].(float64) != 9 || body[feed.WireCustomCompany] != "Acme Corp" {
		t.Fatalf("unexpected body %+v", body)
	}
	locs, _ := body[feed.WireCustomLocation].([]any)
	if len(locs) != 1 {
		t.Fatalf("expected structured location, got %+v", body[feed.WireCustomLocation])
	}
	loc := locs[0].(map[string]any)
	if loc["city"] != "Austin" || loc["state"] != "TX" || loc["country"] != "United States" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestUpdateJobField_FormattedTitle(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	if _, err := c.UpdateJobField(context.Background(), 3, feed.WireFormattedTitle, "Staff Engineer"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	got := (*calls)[0]
	if got.path != pathUpdateDetails || got.body["job_id"].(float64) != 3 || got.body["formatted_title"] != "Staff Engineer" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSetJobPriority_SendsEmptyCommunityList(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err := c.SetJobPriority(context.Background(), feed.PriorityRequest{JobID: 4, IsPriority: true, PriorityReason: "Marked as priority by user"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ids, ok := (*calls)[0].body["community_ids"].([]any)
	if !ok || len(ids) != 0 {
		t.Fatalf("expected empty community_ids array, got %+v", (*calls)[0].body["community_ids"])
	}
}

func TestRemoveCalls(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := c.RemoveJobFromCuration(context.Background(), 11); err != nil {
		t.Fatalf("remove job: %v", err)
	}
	if err := c.RemoveJobFromCommunity(context.Background(), 11, 3); err != nil {
		t.Fatalf("remove from community: %v", err)
	}
	if (*calls)[0].path != pathRemoveJob || (*calls)[1].path != pathRemoveJobFromCommunity {
		t.Fatalf("unexpected paths %+v", *calls)
	}
	if (*calls)[1].body["community_id"].(float64) != 3 {
		t.Fatalf("unexpected body %+v", (*calls)[1].body)
	}
}

func TestListCommunities(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = io.WriteString(w, `[{"id":1,"community_name":"Tech Brew"}]`)
	})

	out, err := c.ListCommunities(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 1 || out[0].CommunityName != "Tech Brew" || (*calls)[0].path != pathCommunities {
		t.Fatalf("unexpected communities %+v", out)
	}
}
