package store

import (
	"context"
	"time"
)

// PresenceAction is the kind of roster transition recorded in the audit log.
type PresenceAction string

const (
	PresenceJoin      PresenceAction = "join"
	PresenceLeave     PresenceAction = "leave"
	PresenceDisplaced PresenceAction = "displaced"
)

// PresenceEvent is one roster transition. Message content is never stored.
type PresenceEvent struct {
	ID           int64
	ConnectionID string
	Username     string
	HasPublicKey bool
	Action       PresenceAction
	CreatedAt    time.Time
}

// PresenceStore records and lists roster transitions.
type PresenceStore interface {
	// RecordPresence appends an event. ID and CreatedAt are filled in when zero.
	RecordPresence(ctx context.Context, event *PresenceEvent) error

	// ListPresence returns up to limit events, newest first.
	ListPresence(ctx context.Context, limit int) ([]PresenceEvent, error)
}

// Store combines all storage interfaces.
type Store interface {
	PresenceStore

	// Close closes the underlying database connection.
	Close() error
}
