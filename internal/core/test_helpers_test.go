package core

import (
	"context"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent fails if any event of kind is already queued on ch.
// The hub enqueues synchronously, so queued events are all there is.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func attach(h *Hub, id string) *Client {
	c := NewClient(id, 64)
	h.Attach(c)
	return c
}

func join(t *testing.T, h *Hub, c *Client, user, key string) {
	t.Helper()

	err := h.Handle(context.Background(), c, &Command{
		Kind:   CommandJoin,
		Sender: Identity{Username: user, PublicKey: key},
	})
	if err != nil {
		t.Fatalf("join %s: %v", user, err)
	}
}

func usernames(ids []Identity) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Username)
	}
	return out
}
