package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/grid"
)

// Message is what a dashboard socket receives for every controller event.
// State is omitted for notice events and once the controller is disposed.
type Message struct {
	Type      grid.EventKind `json:"type"`
	Notice    *grid.Notice   `json:"notice,omitempty"`
	State     *grid.Snapshot `json:"state,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type attachment struct {
	ctl   *grid.Controller
	unsub func()
}

// Bridge forwards controller events to the hub topic of their curator.
type Bridge struct {
	hub    *Hub
	logger *zap.Logger

	mu       sync.Mutex
	attached map[string]attachment
}

func NewBridge(hub *Hub, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{hub: hub, logger: logger.Named("ws_bridge"), attached: map[string]attachment{}}
}

// Attach subscribes to ctl on behalf of curator. Attaching the same
// controller again is a no-op; a new controller for the same curator
// replaces the old subscription.
func (b *Bridge) Attach(curator string, ctl *grid.Controller) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.attached[curator]; ok {
		if cur.ctl == ctl {
			return
		}
		cur.unsub()
	}
	unsub := ctl.Subscribe(func(ev grid.Event) {
		b.forward(curator, ctl, ev)
	})
	b.attached[curator] = attachment{ctl: ctl, unsub: unsub}
}

// Detach drops the subscription for curator, if any.
func (b *Bridge) Detach(curator string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.attached[curator]; ok {
		cur.unsub()
		delete(b.attached, curator)
	}
}

func (b *Bridge) forward(curator string, ctl *grid.Controller, ev grid.Event) {
	if b.hub.ClientCount(curator) == 0 {
		return
	}
	msg := Message{Type: ev.Kind, Notice: ev.Notice, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if ev.Kind != grid.EventNotice {
		if snap, err := ctl.Snapshot(); err == nil {
			msg.State = &snap
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("encode event failed", zap.Error(err))
		return
	}
	b.hub.Broadcast(curator, payload)
}
