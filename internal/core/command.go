package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin announces the connection's identity and requests the roster.
	CommandJoin CommandKind = iota
	// CommandBroadcast relays a plaintext message to every connection.
	CommandBroadcast
	// CommandPrivateSend routes an encrypted envelope to one username.
	CommandPrivateSend
)

// Command represents an action requested by a client.
// Sender is the identity the client declares; its Handle is ignored and
// always taken from the connection.
type Command struct {
	Kind    CommandKind
	Sender  Identity
	Text    string
	To      string
	Payload string // "iv:ciphertext" for CommandPrivateSend
}

func (k CommandKind) String() string {
	switch k {
	case CommandJoin:
		return "join"
	case CommandBroadcast:
		return "broadcast"
	case CommandPrivateSend:
		return "private_send"
	default:
		return "unknown"
	}
}
