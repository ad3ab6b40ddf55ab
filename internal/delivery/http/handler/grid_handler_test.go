package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"curation-grid/internal/delivery/http/handler"
	"curation-grid/internal/delivery/http/middleware"
	"curation-grid/internal/delivery/http/routes"
	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
	"curation-grid/internal/pkg/jwt"
)

type stubAPI struct {
	feed.API
}

func (stubAPI) ListCommunities(context.Context) ([]feed.Community, error) {
	return []feed.Community{{ID: 1, CommunityName: "Tech Brew"}, {ID: 2, CommunityName: "Retail Brew"}}, nil
}

func (stubAPI) ListJobs(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
	return feed.JobPage{Items: []feed.RawJob{
		{ID: 1, Company: "Acme", Title: "Engineer"},
		{ID: 2, Company: "Globex", Title: "Designer", Curation: &feed.RawCuration{
			ID:           20,
			Status:       "approved",
			CommunityIDs: []feed.CommunityRef{{ID: 1}},
		}},
	}}, nil
}

func (stubAPI) UpdateJobOverrides(_ context.Context, id int64, _ feed.OverridesPatch) (feed.RawJob, error) {
	return feed.RawJob{ID: id, Company: "Acme", Title: "Engineer"}, nil
}

type fakeSessions struct {
	ctl      *grid.Controller
	released bool
}

func (f *fakeSessions) Get(context.Context, string) (*grid.Controller, error) {
	return f.ctl, nil
}

func (f *fakeSessions) Release(string) bool {
	f.released = true
	return true
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app   *fiber.App
	token string
	ctl   *grid.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctl := grid.New(stubAPI{}, grid.Options{}, nil)
	t.Cleanup(ctl.Dispose)
	if err := ctl.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctl.Wait()

	jwtSvc := jwt.NewHMACService("test-secret", time.Hour)
	token, err := jwtSvc.GenerateAccessToken(uuid.New(), "Ashley")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	app := fiber.New()
	app.Use(middleware.NewErrorMiddleware(nil).Middleware())
	health := handler.NewHealthHandler(map[string]handler.Check{
		"feed": func(context.Context) error { return nil },
	})
	gridHandler := handler.NewGridHandler(&fakeSessions{ctl: ctl}, nil)
	routes.NewRegistry(health, gridHandler, middleware.NewAuthMiddleware(jwtSvc)).Register(app)

	return &testServer{app: app, token: token, ctl: ctl}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestGrid_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	status, env := s.do(t, http.MethodGet, "/api/v1/grid/state", "")
	if status != fiber.StatusUnauthorized || env.Status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %+v", status, env)
	}
}

func TestGrid_State(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodGet, "/api/v1/grid/state", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var snap struct {
		RowCount    int `json:"row_count"`
		Communities []struct {
			Name string `json:"name"`
		} `json:"communities"`
	}
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.RowCount != 2 || len(snap.Communities) != 2 {
		t.Fatalf("unexpected snapshot %s", env.Data)
	}
}

func TestGrid_Rows(t *testing.T) {
	s := newTestServer(t)
	status, env := s.do(t, http.MethodGet, "/api/v1/grid/rows?scroll_top=0&height=440", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var list struct {
		Total int `json:"total"`
		Rows  []struct {
			Job struct {
				ID      int64             `json:"id"`
				Values  map[string]string `json:"values"`
				Curated bool              `json:"curated"`
			} `json:"job"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if list.Total != 2 || len(list.Rows) != 2 || list.Rows[0].Job.Values["company"] != "Acme" || !list.Rows[1].Job.Curated {
		t.Fatalf("unexpected render %s", env.Data)
	}

	status, _ = s.do(t, http.MethodGet, "/api/v1/grid/rows?height=abc", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for bad height, got %d", status)
	}
}

func TestGrid_EditLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/api/v1/grid/edit", `{"job_id":1,"field":"company","current":"Acme"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}
	status, _ = s.do(t, http.MethodPost, "/api/v1/grid/edit", `{"job_id":2,"field":"title","current":"Designer"}`)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409 for a second edit, got %d", status)
	}
	status, _ = s.do(t, http.MethodPut, "/api/v1/grid/edit/draft", `{"value":"Acme Corp"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 on draft, got %d", status)
	}
	status, env := s.do(t, http.MethodPost, "/api/v1/grid/edit/commit", "")
	if status != fiber.StatusAccepted {
		t.Fatalf("expected 202 on commit, got %d", status)
	}
	var out map[string]string
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := uuid.Parse(out["mutation_id"]); err != nil {
		t.Fatalf("expected mutation id, got %q", out["mutation_id"])
	}

	s.ctl.Wait()
	rec, err := s.ctl.Record(1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Overrides["company"] != "Acme Corp" {
		t.Fatalf("expected override kept after success, got %+v", rec.Overrides)
	}
}

func TestGrid_ErrorMapping(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown field", http.MethodPost, "/api/v1/grid/edit", `{"job_id":1,"field":"nope"}`, fiber.StatusBadRequest},
		{"curator-only field", http.MethodPost, "/api/v1/grid/edit", `{"job_id":1,"field":"is_remote"}`, fiber.StatusUnprocessableEntity},
		{"bad view mode", http.MethodPut, "/api/v1/grid/view", `{"mode":"bogus"}`, fiber.StatusBadRequest},
		{"priority on uncurated", http.MethodPost, "/api/v1/grid/jobs/1/priority", "", fiber.StatusUnprocessableEntity},
		{"last community", http.MethodDelete, "/api/v1/grid/jobs/2/communities/1", "", fiber.StatusUnprocessableEntity},
		{"job not resident", http.MethodDelete, "/api/v1/grid/jobs/99/curation", "", fiber.StatusConflict},
		{"bad job id", http.MethodPost, "/api/v1/grid/jobs/x/priority", "", fiber.StatusBadRequest},
		{"curate empty selection", http.MethodPost, "/api/v1/grid/curate", `{"community_ids":[1]}`, fiber.StatusBadRequest},
		{"no draft open", http.MethodPut, "/api/v1/grid/edit/draft", `{"value":"x"}`, fiber.StatusConflict},
		{"stream disabled", http.MethodGet, "/api/v1/grid/ws", "", fiber.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		status, env := s.do(t, tc.method, tc.path, tc.body)
		if status != tc.want || env.Status != tc.want {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.want, status, env.Message)
		}
	}
}

func TestGrid_SelectionAndCopy(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/grid/selection/1/toggle", "")
	if status != fiber.StatusOK || !strings.Contains(string(env.Data), `"selected":true`) {
		t.Fatalf("unexpected toggle response %d %s", status, env.Data)
	}
	status, env = s.do(t, http.MethodGet, "/api/v1/grid/jobs/1/copy", "")
	if status != fiber.StatusOK || !strings.Contains(string(env.Data), "Engineer at Acme") {
		t.Fatalf("unexpected copy response %d %s", status, env.Data)
	}
	status, _ = s.do(t, http.MethodDelete, "/api/v1/grid/selection", "")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	sel, err := s.ctl.Selection()
	if err != nil || len(sel) != 0 {
		t.Fatalf("expected empty selection, got %v %v", sel, err)
	}
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	handler.NewHealthHandler(map[string]handler.Check{
		"feed":  func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(env.Data), "connection refused") {
		t.Fatalf("expected failing check in data, got %s", env.Data)
	}
}
