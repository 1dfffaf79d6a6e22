package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoster delivers the full roster to a client that just joined.
	EventRoster EventKind = iota
	// EventUserJoined notifies every connection about a join.
	EventUserJoined
	// EventUserLeft notifies every connection that a joined user disconnected.
	EventUserLeft
	// EventMessage relays a broadcast chat message.
	EventMessage
	// EventPrivateMessage delivers an encrypted message to its one recipient.
	EventPrivateMessage
	// EventDisplaced tells a connection its username was taken over by a newer join.
	EventDisplaced
	// EventError reports a domain error to the originating client only.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRoster:
		return "roster"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventMessage:
		return "message"
	case EventPrivateMessage:
		return "private_message"
	case EventDisplaced:
		return "displaced"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	User    Identity       // joined/left/displaced user
	Roster  []Identity     // For EventRoster
	Message Message        // For EventMessage
	Private PrivateMessage // For EventPrivateMessage
	Error   *CoreError
}
