package app

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// dialWhenReady retries until the server accepts the upgrade.
func dialWhenReady(ctx context.Context, t *testing.T, url string) *websocket.Conn {
	t.Helper()

	for {
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err == nil {
			return conn
		}
		select {
		case <-ctx.Done():
			t.Fatalf("dial %s: %v", url, err)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = freeAddr(t)
	cfg.PresenceDBPath = filepath.Join(t.TempDir(), "presence.db")
	cfg.ShutdownTimeout = 2 * time.Second
	logger := zerolog.Nop()

	application, err := New(&cfg, &logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDial()

	conn := dialWhenReady(dialCtx, t, "ws://"+cfg.Addr+"/ws")
	defer conn.CloseNow()

	payload, err := json.Marshal(proto.JoinData{User: "alice", PublicKey: "pkA"})
	if err != nil {
		t.Fatalf("marshal join: %v", err)
	}
	if err := wsjson.Write(dialCtx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: payload}); err != nil {
		t.Fatalf("send join: %v", err)
	}

	var out struct {
		Type  string `json:"type"`
		Event string `json:"event"`
	}
	if err := wsjson.Read(dialCtx, conn, &out); err != nil {
		t.Fatalf("read roster: %v", err)
	}
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventRoster {
		t.Fatalf("expected roster first, got %s/%s", out.Type, out.Event)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop after cancel")
	}

	reopened, err := sqlite.New(cfg.PresenceDBPath)
	if err != nil {
		t.Fatalf("reopen presence db: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.ListPresence(context.Background(), 10)
	if err != nil {
		t.Fatalf("list presence: %v", err)
	}
	actions := make(map[store.PresenceAction]bool)
	for _, ev := range events {
		if ev.Username == "alice" {
			actions[ev.Action] = true
		}
	}
	if !actions[store.PresenceJoin] || !actions[store.PresenceLeave] {
		t.Fatalf("expected join and leave for alice, got %+v", events)
	}
}
