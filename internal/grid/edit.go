package grid

import (
	"curation-grid/internal/domain/job"
)

type EditState int

const (
	EditIdle EditState = iota
	EditEditing
	EditCommitting
	EditCancelled
)

func (s EditState) String() string {
	switch s {
	case EditEditing:
		return "editing"
	case EditCommitting:
		return "committing"
	case EditCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

type EditSession struct {
	TargetID job.ID    `json:"target_id"`
	Field    job.Field `json:"field"`
	Draft    string    `json:"draft"`
	Original string    `json:"original"`
}

// editManager is the single-session state machine. Committing and Cancelled
// are transient: both settle back to Idle before the controller lock is
// released.
type editManager struct {
	state   EditState
	session *EditSession
}

func (m *editManager) active() (EditSession, bool) {
	if m.state != EditEditing || m.session == nil {
		return EditSession{}, false
	}
	return *m.session, true
}

func (m *editManager) begin(id job.ID, field job.Field, current string) error {
	if m.state != EditIdle {
		return ErrEditInProgress
	}
	m.state = EditEditing
	m.session = &EditSession{TargetID: id, Field: field, Draft: current, Original: current}
	return nil
}

func (m *editManager) updateDraft(v string) error {
	if m.state != EditEditing {
		return ErrNoActiveEdit
	}
	m.session.Draft = v
	return nil
}

// commit hands the session to the caller and returns to Idle.
func (m *editManager) commit(dispatch func(EditSession)) error {
	if m.state != EditEditing {
		return ErrNoActiveEdit
	}
	m.state = EditCommitting
	s := *m.session
	dispatch(s)
	m.reset()
	return nil
}

func (m *editManager) cancel() error {
	if m.state != EditEditing {
		return ErrNoActiveEdit
	}
	m.state = EditCancelled
	m.reset()
	return nil
}

func (m *editManager) targets(id job.ID) bool {
	return m.session != nil && m.session.TargetID == id
}

func (m *editManager) reset() {
	m.state = EditIdle
	m.session = nil
}
