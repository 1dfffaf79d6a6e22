package core

import "time"

// Message is a broadcast chat message as relayed to every connection.
type Message struct {
	From      Identity
	Text      string
	CreatedAt time.Time
}

// PrivateMessage is an end-to-end encrypted message routed to one connection.
// The hub never inspects the envelope beyond its framing.
type PrivateMessage struct {
	From      Identity
	To        string
	Envelope  Envelope
	CreatedAt time.Time
}
