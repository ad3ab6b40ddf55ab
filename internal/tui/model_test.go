package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
)

type stubAPI struct {
	feed.API

	mu         sync.Mutex
	titles     map[int64]string
	priorities []feed.PriorityRequest
}

func (s *stubAPI) ListCommunities(context.Context) ([]feed.Community, error) {
	return []feed.Community{{ID: 1, CommunityName: "Tech Brew"}, {ID: 2, CommunityName: "Retail Brew"}}, nil
}

func (s *stubAPI) ListJobs(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
	return feed.JobPage{Items: []feed.RawJob{
		{ID: 1, Company: "Acme", Title: "Engineer"},
		{ID: 2, Company: "Globex", Title: "Designer"},
	}}, nil
}

func (s *stubAPI) UpdateJobField(_ context.Context, id int64, _, value string) (feed.RawJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.titles == nil {
		s.titles = map[int64]string{}
	}
	s.titles[id] = value
	return feed.RawJob{}, nil
}

func (s *stubAPI) SetJobPriority(_ context.Context, req feed.PriorityRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities = append(s.priorities, req)
	return nil
}

func newTestModel(t *testing.T) (Model, *grid.Controller, *stubAPI) {
	t.Helper()
	api := &stubAPI{}
	ctl := grid.New(api, Options(grid.Options{}), nil)
	t.Cleanup(ctl.Dispose)
	if err := ctl.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctl.Wait()

	m := New(ctl)
	t.Cleanup(m.Close)
	m.copy = func(string) tea.Cmd { return nil }
	return m, ctl, api
}

func press(m Model, msgs ...tea.KeyMsg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_NavigateAndSelect(t *testing.T) {
	m, ctl, _ := newTestModel(t)

	m = press(m, runes("j"), tea.KeyMsg{Type: tea.KeySpace})
	if m.cursor != 1 {
		t.Fatalf("expected cursor on row 1, got %d", m.cursor)
	}
	sel, err := ctl.Selection()
	if err != nil || len(sel) != 1 || sel[0] != 2 {
		t.Fatalf("expected job 2 selected, got %v %v", sel, err)
	}

	// the cursor stops at the last row
	m = press(m, runes("j"), runes("j"))
	if m.cursor != 1 {
		t.Fatalf("expected cursor clamped to 1, got %d", m.cursor)
	}
	if !strings.Contains(m.View(), "1 selected") {
		t.Fatalf("expected selection count in title:\n%s", m.View())
	}
}

func TestModel_EditTitle(t *testing.T) {
	m, ctl, api := newTestModel(t)

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != inputEdit {
		t.Fatalf("expected edit prompt, got mode %d", m.mode)
	}
	m = press(m, runes(" II"))
	edit, open, err := ctl.ActiveEdit()
	if err != nil || !open || edit.Draft != "Engineer II" {
		t.Fatalf("expected draft to follow input, got %+v %v %v", edit, open, err)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != inputNone || m.err != nil {
		t.Fatalf("expected prompt closed without error, got mode %d err %v", m.mode, m.err)
	}
	ctl.Wait()

	rec, err := ctl.Record(1)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Display(job.FieldTitle) != "Engineer II" {
		t.Fatalf("expected edited title, got %q", rec.Display(job.FieldTitle))
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.titles[1] != "Engineer II" {
		t.Fatalf("expected title sent to backend, got %v", api.titles)
	}
}

func TestModel_EditCancel(t *testing.T) {
	m, ctl, _ := newTestModel(t)

	m = press(m, runes("l"), runes("e"), runes("X"), tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != inputNone {
		t.Fatalf("expected prompt closed, got %d", m.mode)
	}
	if _, open, _ := ctl.ActiveEdit(); open {
		t.Fatal("expected edit cancelled")
	}
	rec, _ := ctl.Record(1)
	if rec.Display(job.FieldCompany) != "Acme" {
		t.Fatalf("expected company unchanged, got %q", rec.Display(job.FieldCompany))
	}
}

func TestModel_CuratorOnlyFieldShowsError(t *testing.T) {
	m, _, _ := newTestModel(t)

	// move to the remote column of an uncurated job
	m = press(m, runes("l"), runes("l"), runes("l"), runes("l"), runes("e"))
	if m.mode != inputNone || !errors.Is(m.err, grid.ErrCurationRequired) {
		t.Fatalf("expected curation required error, got mode %d err %v", m.mode, m.err)
	}
}

func TestModel_CurateSelected(t *testing.T) {
	m, ctl, api := newTestModel(t)

	m = press(m, runes("c"))
	if !errors.Is(m.err, grid.ErrEmptySelection) {
		t.Fatalf("expected empty selection error, got %v", m.err)
	}

	m = press(m, tea.KeyMsg{Type: tea.KeySpace}, runes("c"), runes("tech brew"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.err != nil {
		t.Fatalf("curate: %v", m.err)
	}
	ctl.Wait()

	rec, _ := ctl.Record(1)
	if !rec.Membership.HasCommunity(1) {
		t.Fatalf("expected job 1 in community 1, got %+v", rec.Membership)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.priorities) != 1 || api.priorities[0].JobID != 1 {
		t.Fatalf("expected one curate call, got %+v", api.priorities)
	}
}

func TestModel_NoticeUpdatesStatus(t *testing.T) {
	m, _, _ := newTestModel(t)

	next, cmd := m.Update(eventMsg{Kind: grid.EventNotice, Notice: &grid.Notice{Message: "Saved"}})
	m = next.(Model)
	if m.status != "Saved" || cmd == nil {
		t.Fatalf("expected status and a new wait, got %q %v", m.status, cmd)
	}
}

func TestParseCommunities(t *testing.T) {
	known := []job.Community{{ID: 1, Name: "Tech Brew"}, {ID: 2, Name: "Retail Brew"}}

	ids, err := parseCommunities("2, tech brew", known)
	if err != nil || len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
		t.Fatalf("unexpected ids %v %v", ids, err)
	}
	if _, err := parseCommunities("Marketing Brew", known); err == nil {
		t.Fatal("expected error for unknown community")
	}
	if _, err := parseCommunities(" , ", known); !errors.Is(err, grid.ErrNoCommunities) {
		t.Fatalf("expected ErrNoCommunities, got %v", err)
	}
}
