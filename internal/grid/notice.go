package grid

import (
	"time"

	"github.com/google/uuid"
)

type NoticeKind string

const (
	NoticeSuccess  NoticeKind = "success"
	NoticeError    NoticeKind = "error"
	NoticeGuidance NoticeKind = "guidance"
)

// Notice is a transient user-facing message.
type Notice struct {
	ID      uuid.UUID  `json:"id"`
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

type EventKind string

const (
	EventRows      EventKind = "rows"
	EventQuery     EventKind = "query"
	EventEdit      EventKind = "edit"
	EventSelection EventKind = "selection"
	EventNotice    EventKind = "notice"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Notice *Notice   `json:"notice,omitempty"`
}

func (c *Controller) noticeLocked(kind NoticeKind, msg string) {
	if msg == "" {
		return
	}
	n := Notice{ID: uuid.New(), Kind: kind, Message: msg, At: time.Now()}
	c.notices = append(c.notices, n)
	if over := len(c.notices) - c.opts.NoticeHistory; over > 0 {
		c.notices = append(c.notices[:0:0], c.notices[over:]...)
	}
	c.emitLocked(Event{Kind: EventNotice, Notice: &n})
}

// Notices returns the recent notice history, oldest first.
func (c *Controller) Notices() ([]Notice, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return append([]Notice(nil), c.notices...), nil
}
