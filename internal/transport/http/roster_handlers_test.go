package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestGetRoster(t *testing.T) {
	ts := startTestServer(t, config.Default(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(ctx, t)
	send(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{User: "alice", PublicKey: "pkA"})
	readUntil(ctx, t, conn, proto.OutboundTypeEvent, proto.EventRoster)

	resp, err := ts.Client().Get(ts.URL + "/api/roster")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var roster proto.EventRosterData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roster))
	require.Len(t, roster.Users, 1)
	assert.Equal(t, "alice", roster.Users[0].Username)
	assert.Equal(t, "pkA", roster.Users[0].PublicKey)
	assert.NotEmpty(t, roster.Users[0].ConnectionID)
}

func TestListPresenceDisabled(t *testing.T) {
	ts := startTestServer(t, config.Default(), nil)

	resp, err := ts.Client().Get(ts.URL + "/api/presence")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPresence(t *testing.T) {
	testStore := createTestStore(t)
	ts := startTestServer(t, config.Default(), testStore)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := ts.dial(ctx, t)
	send(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{User: "alice"})
	readUntil(ctx, t, conn, proto.OutboundTypeEvent, proto.EventRoster)

	// The audit write happens after delivery, so wait for it to land.
	waitFor(t, func() bool {
		events, err := testStore.ListPresence(ctx, 10)
		return err == nil && len(events) == 1
	})

	resp, err := ts.Client().Get(ts.URL + "/api/presence?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var events []PresenceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Username)
	assert.Equal(t, "join", events[0].Action)

	bad, err := ts.Client().Get(ts.URL + "/api/presence?limit=abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	hub := core.NewHub(core.Options{Metrics: core.NewMetrics(reg)})
	cfg := config.Default()
	disabledLogger := zerolog.Nop()

	server := NewServer(hub, nil, reg, &cfg, &disabledLogger)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	server.Handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "wirechat_connections_active")
}
