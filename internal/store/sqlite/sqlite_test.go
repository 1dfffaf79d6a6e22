package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListPresence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	seed := []store.PresenceEvent{
		{ConnectionID: "c1", Username: "alice", HasPublicKey: true, Action: store.PresenceJoin, CreatedAt: base},
		{ConnectionID: "c2", Username: "bob", Action: store.PresenceJoin, CreatedAt: base.Add(time.Second)},
		{ConnectionID: "c2", Username: "bob", Action: store.PresenceLeave, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range seed {
		require.NoError(t, s.RecordPresence(ctx, &seed[i]))
		assert.NotZero(t, seed[i].ID)
	}

	events, err := s.ListPresence(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first.
	assert.Equal(t, store.PresenceLeave, events[0].Action)
	assert.Equal(t, "bob", events[0].Username)
	assert.Equal(t, "alice", events[2].Username)
	assert.True(t, events[2].HasPublicKey)
	assert.True(t, events[2].CreatedAt.Equal(base), "created_at round trip: %v", events[2].CreatedAt)
}

func TestListPresenceLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, s.RecordPresence(ctx, &store.PresenceEvent{
			ConnectionID: "c",
			Username:     "u",
			Action:       store.PresenceJoin,
		}))
	}

	events, err := s.ListPresence(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestNewIsIdempotentOnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordPresence(context.Background(), &store.PresenceEvent{
		ConnectionID: "c1",
		Username:     "alice",
		Action:       store.PresenceJoin,
	}))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.ListPresence(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
