package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"curation-grid/internal/feed"
	"curation-grid/internal/grid"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no message received")
		return nil
	}
}

func TestHub_BroadcastIsScopedToTopic(t *testing.T) {
	h := newTestHub(t)
	a := NewClient(h, nil, "curator-a")
	b := NewClient(h, nil, "curator-b")
	h.Register(a)
	h.Register(b)
	waitFor(t, func() bool { return h.ClientCount("curator-a") == 1 && h.ClientCount("curator-b") == 1 })

	h.Broadcast("curator-a", []byte("hello"))
	if got := string(receive(t, a)); got != "hello" {
		t.Fatalf("unexpected message %q", got)
	}
	select {
	case msg := <-b.send:
		t.Fatalf("unexpected message for other topic: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := newTestHub(t)
	c := NewClient(h, nil, "curator-a")
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount("curator-a") == 1 })

	h.Unregister(c)
	waitFor(t, func() bool { return h.ClientCount("curator-a") == 0 })
	if _, ok := <-c.send; ok {
		t.Fatalf("expected send channel to be closed")
	}
}

type stubAPI struct {
	feed.API
}

func (stubAPI) ListCommunities(context.Context) ([]feed.Community, error) {
	return nil, nil
}

func (stubAPI) ListJobs(context.Context, int, int, string, feed.Filters) (feed.JobPage, error) {
	return feed.JobPage{Items: []feed.RawJob{{ID: 1, Company: "Acme"}, {ID: 2, Company: "Globex"}}}, nil
}

func TestBridge_ForwardsControllerEvents(t *testing.T) {
	h := newTestHub(t)
	c := NewClient(h, nil, "curator-a")
	h.Register(c)
	waitFor(t, func() bool { return h.ClientCount("curator-a") == 1 })

	ctl := grid.New(stubAPI{}, grid.Options{}, nil)
	t.Cleanup(ctl.Dispose)
	if err := ctl.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctl.Wait()

	br := NewBridge(h, nil)
	br.Attach("curator-a", ctl)
	br.Attach("curator-a", ctl)

	if _, err := ctl.ToggleSelection(1); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(receive(t, c), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != grid.EventSelection || msg.State == nil || len(msg.State.Selection) != 1 {
		t.Fatalf("unexpected message %+v", msg)
	}

	br.Detach("curator-a")
	if _, err := ctl.ToggleSelection(2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	select {
	case extra := <-c.send:
		t.Fatalf("unexpected message after detach: %s", extra)
	case <-time.After(50 * time.Millisecond):
	}
}
