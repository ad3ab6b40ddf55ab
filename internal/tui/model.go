// Package tui is a terminal front end for one curator's grid controller.
package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/grid"
)

type column struct {
	field job.Field
	title string
	width int
}

var columns = []column{
	{job.FieldTitle, "Title", 30},
	{job.FieldCompany, "Company", 18},
	{job.FieldLocation, "Location", 20},
	{job.FieldEmploymentType, "Type", 12},
	{job.FieldRemote, "Remote", 8},
	{job.FieldSalary, "Salary", 18},
	{job.FieldPostedAt, "Posted", 11},
	{job.FieldFeedSource, "Source", 14},
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputEdit
	inputCurate
)

// chrome is the number of lines around the rows: title, header, prompt and
// status.
const chrome = 4

type eventMsg grid.Event

// Options adapts controller options to a terminal where every row is one
// line tall.
func Options(base grid.Options) grid.Options {
	base.Window.EstimatedRowHeight = 1
	base.Window.Overscan = 0
	return base
}

type Model struct {
	ctl    *grid.Controller
	events chan grid.Event
	unsub  func()

	help  help.Model
	input textinput.Model
	mode  inputMode

	cursor    int
	col       int
	scrollTop int
	width     int
	height    int

	snap   grid.Snapshot
	list   grid.RenderList
	status string
	err    error

	copy func(string) tea.Cmd
}

// New subscribes to ctl. Call Close when the program exits.
func New(ctl *grid.Controller) Model {
	events := make(chan grid.Event, 64)
	unsub := ctl.Subscribe(func(ev grid.Event) {
		// drop when behind; the next refresh reads the whole state
		select {
		case events <- ev:
		default:
		}
	})

	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 60
	ti.Prompt = ""
	ti.TextStyle = lipgloss.NewStyle().Foreground(textStrong)
	ti.PlaceholderStyle = dimStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(highlight)

	m := Model{
		ctl:    ctl,
		events: events,
		unsub:  unsub,
		help:   help.New(),
		input:  ti,
		width:  120,
		height: 30,
		copy:   copyToClipboard,
	}
	m.refresh()
	return m
}

func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

func waitForEvent(ch <-chan grid.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		seq := osc52.New(text)
		if os.Getenv("TMUX") != "" {
			seq = seq.Tmux()
		}
		_, _ = seq.WriteTo(os.Stderr)
		return nil
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		if msg.Height > 0 {
			m.height = msg.Height
		}
		m.help.Width = m.width
		m.refresh()
		return m, nil
	case eventMsg:
		if msg.Notice != nil {
			m.status = msg.Notice.Message
		}
		m.refresh()
		return m, waitForEvent(m.events)
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.err = nil

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		m.cursor--
	case key.Matches(msg, keys.Down):
		m.cursor++
	case key.Matches(msg, keys.Left):
		m.col = (m.col + len(columns) - 1) % len(columns)
	case key.Matches(msg, keys.Right):
		m.col = (m.col + 1) % len(columns)
	case key.Matches(msg, keys.PrevPage):
		if m.snap.Query.Page > 1 {
			m.err = m.ctl.GoToPage(m.snap.Query.Page - 1)
			m.cursor = 0
		}
	case key.Matches(msg, keys.NextPage):
		if m.snap.Query.Page < m.snap.MaxKnownPage {
			m.err = m.ctl.GoToPage(m.snap.Query.Page + 1)
			m.cursor = 0
		}
	case key.Matches(msg, keys.Search):
		m.input.Placeholder = "title or company"
		m.input.SetValue(m.snap.SearchDraft)
		m.input.CursorEnd()
		m.mode = inputSearch
		cmd = m.input.Focus()
	case key.Matches(msg, keys.Edit):
		rec, ok := m.current()
		if !ok {
			break
		}
		f := columns[m.col].field
		current := rec.Display(f)
		if err := m.ctl.StartEdit(rec.ID, f, current); err != nil {
			m.err = err
			break
		}
		m.input.Placeholder = ""
		m.input.SetValue(current)
		m.input.CursorEnd()
		m.mode = inputEdit
		cmd = m.input.Focus()
	case key.Matches(msg, keys.Toggle):
		if rec, ok := m.current(); ok {
			_, m.err = m.ctl.ToggleSelection(rec.ID)
		}
	case key.Matches(msg, keys.SelectAll):
		m.err = m.ctl.SelectAll()
	case key.Matches(msg, keys.ClearSelection):
		m.err = m.ctl.ClearSelection()
	case key.Matches(msg, keys.Curate):
		if len(m.snap.Selection) == 0 {
			m.err = grid.ErrEmptySelection
			break
		}
		m.input.Placeholder = communityHint(m.snap.Communities)
		m.input.SetValue("")
		m.mode = inputCurate
		cmd = m.input.Focus()
	case key.Matches(msg, keys.Priority):
		if rec, ok := m.current(); ok {
			_, m.err = m.ctl.TogglePriority(rec.ID)
		}
	case key.Matches(msg, keys.Remove):
		if rec, ok := m.current(); ok {
			_, m.err = m.ctl.RemoveFromCuration(rec.ID)
		}
	case key.Matches(msg, keys.ViewMode):
		next := grid.ViewCurated
		if m.snap.Query.Mode == grid.ViewCurated {
			next = grid.ViewAll
		}
		m.err = m.ctl.SetViewMode(next)
		m.cursor = 0
	case key.Matches(msg, keys.Reload):
		m.err = m.ctl.Reload()
	case key.Matches(msg, keys.Copy):
		rec, ok := m.current()
		if !ok {
			break
		}
		text, err := m.ctl.CopyText(rec.ID)
		if err != nil {
			m.err = err
			break
		}
		m.status = "Copied: " + text
		cmd = m.copy(text)
	case key.Matches(msg, keys.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.refresh()
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch {
	case key.Matches(msg, inputKeys.Cancel):
		if m.mode == inputEdit {
			m.err = m.ctl.CancelEdit()
		}
		m.blur()
	case key.Matches(msg, inputKeys.Submit):
		value := m.input.Value()
		switch m.mode {
		case inputSearch:
			m.err = m.ctl.CommitSearch(value)
			m.cursor = 0
		case inputEdit:
			_, m.err = m.ctl.CommitEdit()
		case inputCurate:
			ids, err := parseCommunities(value, m.snap.Communities)
			if err != nil {
				m.err = err
				return m, nil
			}
			_, m.err = m.ctl.CurateSelected(ids, "")
		}
		m.blur()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		switch m.mode {
		case inputSearch:
			m.err = m.ctl.SetSearchDraft(m.input.Value())
		case inputEdit:
			m.err = m.ctl.UpdateDraft(m.input.Value())
		}
		m.refresh()
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m *Model) blur() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) bodyHeight() int {
	h := m.height - chrome - lipgloss.Height(m.help.View(keys))
	if h < 1 {
		return 1
	}
	return h
}

// refresh re-reads the controller and keeps the cursor row in view.
func (m *Model) refresh() {
	snap, err := m.ctl.Snapshot()
	if err != nil {
		m.err = err
		return
	}
	m.snap = snap

	if m.cursor >= snap.RowCount {
		m.cursor = snap.RowCount - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	body := m.bodyHeight()
	if m.cursor < m.scrollTop {
		m.scrollTop = m.cursor
	}
	if m.cursor >= m.scrollTop+body {
		m.scrollTop = m.cursor - body + 1
	}
	if maxTop := snap.RowCount - body; m.scrollTop > maxTop {
		m.scrollTop = max(maxTop, 0)
	}

	list, err := m.ctl.Render(grid.Viewport{ScrollTop: float64(m.scrollTop), Height: float64(body)})
	if err != nil {
		m.err = err
		return
	}
	m.list = list
}

func (m Model) current() (job.Record, bool) {
	for _, rv := range m.list.Rows {
		if rv.Index == m.cursor {
			return rv.Record, true
		}
	}
	return job.Record{}, false
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.titleLine())
	b.WriteByte('\n')

	header := make([]string, 0, len(columns))
	for _, c := range columns {
		header = append(header, fit(c.title, c.width))
	}
	b.WriteString(headerStyle.Render("    " + strings.Join(header, " ")))
	b.WriteByte('\n')

	body := m.bodyHeight()
	shown := 0
	for _, rv := range m.list.Rows {
		if rv.Index < m.scrollTop || rv.Index >= m.scrollTop+body {
			continue
		}
		b.WriteString(m.rowLine(rv))
		b.WriteByte('\n')
		shown++
	}
	if shown == 0 {
		msg := "No jobs"
		if m.snap.Loading {
			msg = "Loading…"
		}
		b.WriteString(dimStyle.Render(msg))
		b.WriteByte('\n')
		shown++
	}
	for ; shown < body; shown++ {
		b.WriteByte('\n')
	}

	b.WriteString(m.promptLine())
	b.WriteByte('\n')
	b.WriteString(m.statusLine())
	b.WriteByte('\n')
	b.WriteString(m.help.View(keys))
	return b.String()
}

func (m Model) titleLine() string {
	q := m.snap.Query
	parts := []string{
		fmt.Sprintf("%s jobs", q.Mode),
		fmt.Sprintf("page %d of %d", q.Page, m.snap.MaxKnownPage),
		fmt.Sprintf("%s rows", m.snap.Estimate),
	}
	if q.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", q.Search))
	}
	if q.FeedSource != "" {
		parts = append(parts, "source "+q.FeedSource)
	}
	if n := len(m.snap.Selection); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if m.snap.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%d saving", m.snap.Pending))
	}
	if m.snap.Loading {
		parts = append(parts, "loading…")
	}
	return titleStyle.Render("Curation") + dimStyle.Render("  "+strings.Join(parts, " · "))
}

func (m Model) rowLine(rv grid.RowView) string {
	rec := rv.Record
	onCursor := rv.Index == m.cursor

	mark := " "
	if rv.Selected {
		mark = selectedStyle.Render("●")
	}
	state := " "
	switch {
	case rv.Busy:
		state = busyStyle.Render("…")
	case rec.Membership != nil && rec.Membership.Priority:
		state = "★"
	case rec.Curated():
		state = "✓"
	}

	cells := make([]string, 0, len(columns))
	for i, c := range columns {
		v := rec.Display(c.field)
		if rv.Editing && m.snap.Edit != nil && m.snap.Edit.Field == c.field {
			v = m.snap.Edit.Draft
		}
		cell := fit(v, c.width)
		switch {
		case onCursor && i == m.col:
			cell = cellStyle.Render(cell)
		case onCursor:
			cell = cursorStyle.Render(cell)
		case rv.Busy:
			cell = busyStyle.Render(cell)
		}
		cells = append(cells, cell)
	}
	return mark + state + "  " + strings.Join(cells, " ")
}

func (m Model) promptLine() string {
	switch m.mode {
	case inputSearch:
		return promptStyle.Render("search: ") + m.input.View()
	case inputEdit:
		return promptStyle.Render(columns[m.col].title+": ") + m.input.View()
	case inputCurate:
		return promptStyle.Render("communities: ") + m.input.View()
	}
	return ""
}

func (m Model) statusLine() string {
	if m.err != nil {
		return errorStyle.Render(m.err.Error())
	}
	return statusStyle.Render(m.status)
}

func fit(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func communityHint(cs []job.Community) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, fmt.Sprintf("%d %s", c.ID, c.Name))
	}
	return strings.Join(parts, ", ")
}

// parseCommunities reads a comma separated list of community ids or names.
func parseCommunities(s string, known []job.Community) ([]int64, error) {
	var ids []int64
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		found := false
		for _, c := range known {
			if strings.EqualFold(c.Name, tok) {
				ids = append(ids, c.ID)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown community %q", tok)
		}
	}
	if len(ids) == 0 {
		return nil, grid.ErrNoCommunities
	}
	return ids, nil
}
