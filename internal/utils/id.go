package utils

import "github.com/google/uuid"

// NewConnectionID returns a fresh connection handle. Handles are never reused,
// so a reconnecting client always gets a brand-new identity record.
func NewConnectionID() string {
	return uuid.NewString()
}
