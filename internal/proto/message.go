package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin    = "join"
	InboundTypeMsg     = "msg"
	InboundTypePrivate = "private"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoster         = "roster"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventMessage        = "message"
	EventPrivateMessage = "private_message"
	EventDisplaced      = "displaced"
)

// JoinData announces the client's identity.
type JoinData struct {
	User      string `json:"user"`
	PublicKey string `json:"public_key,omitempty"`
	Protocol  int    `json:"protocol,omitempty"`
}

// MsgData is a broadcast chat message. User is the declared sender; when
// empty the connection's joined identity is used.
type MsgData struct {
	User      string `json:"user,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	Text      string `json:"text"`
}

// PrivateData is an end-to-end encrypted message for one user. Either
// Envelope ("iv:ciphertext") or the IV and Ciphertext pair must be set.
type PrivateData struct {
	User       string `json:"user,omitempty"`
	To         string `json:"to"`
	Envelope   string `json:"envelope,omitempty"`
	IV         string `json:"iv,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserInfo is one roster entry.
type UserInfo struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	PublicKey    string `json:"public_key,omitempty"`
}

// EventRosterData is the full roster, in join order.
type EventRosterData struct {
	Users []UserInfo `json:"users"`
}

// EventMessageData is a relayed broadcast message.
type EventMessageData struct {
	User UserInfo `json:"user"`
	Text string   `json:"text"`
	TS   int64    `json:"ts"`
}

// EventPrivateMessageData is a relayed encrypted message.
type EventPrivateMessageData struct {
	User       UserInfo `json:"user"`
	Envelope   string   `json:"envelope"`
	IV         string   `json:"iv"`
	Ciphertext string   `json:"ciphertext"`
	TS         int64    `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
