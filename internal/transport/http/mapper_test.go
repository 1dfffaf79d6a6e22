package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return proto.Inbound{Type: typ, Data: payload}
}

func TestInboundToCommandJoin(t *testing.T) {
	cmd, perr := inboundToCommand(inbound(t, proto.InboundTypeJoin, proto.JoinData{User: " alice ", PublicKey: "pk"}))
	require.Nil(t, perr)
	assert.Equal(t, core.CommandJoin, cmd.Kind)
	assert.Equal(t, "alice", cmd.Sender.Username)
	assert.Equal(t, "pk", cmd.Sender.PublicKey)
}

func TestInboundToCommandPrivate(t *testing.T) {
	cmd, perr := inboundToCommand(inbound(t, proto.InboundTypePrivate, proto.PrivateData{To: "bob", Envelope: "iv:ct"}))
	require.Nil(t, perr)
	assert.Equal(t, core.CommandPrivateSend, cmd.Kind)
	assert.Equal(t, "iv:ct", cmd.Payload)

	cmd, perr = inboundToCommand(inbound(t, proto.InboundTypePrivate, proto.PrivateData{To: "bob", IV: "iv", Ciphertext: "ct"}))
	require.Nil(t, perr)
	assert.Equal(t, "iv:ct", cmd.Payload)

	// Framing is validated by the hub, not here.
	cmd, perr = inboundToCommand(inbound(t, proto.InboundTypePrivate, proto.PrivateData{To: "bob", Envelope: "onlyonefield"}))
	require.Nil(t, perr)
	assert.Equal(t, "onlyonefield", cmd.Payload)

	_, perr = inboundToCommand(inbound(t, proto.InboundTypePrivate, proto.PrivateData{Envelope: "iv:ct"}))
	require.NotNil(t, perr)
	assert.Equal(t, core.ErrCodeBadRequest, perr.Code)
}

func TestInboundToCommandRejects(t *testing.T) {
	cases := []struct {
		name string
		in   proto.Inbound
		code string
	}{
		{"empty text", inbound(t, proto.InboundTypeMsg, proto.MsgData{Text: "  "}), core.ErrCodeBadRequest},
		{"wrong payload shape", proto.Inbound{Type: proto.InboundTypeJoin, Data: json.RawMessage(`[1,2]`)}, core.ErrCodeBadRequest},
		{"future protocol", inbound(t, proto.InboundTypeJoin, proto.JoinData{User: "a", Protocol: 99}), core.ErrCodeUnsupportedVersion},
		{"long username", inbound(t, proto.InboundTypeJoin, proto.JoinData{User: string(make([]byte, 65))}), core.ErrCodeBadRequest},
		{"unknown type", proto.Inbound{Type: "nope"}, core.ErrCodeInvalidMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, perr := inboundToCommand(tc.in)
			assert.Nil(t, cmd)
			require.NotNil(t, perr)
			assert.Equal(t, tc.code, perr.Code)
		})
	}
}

func TestOutboundFromPrivateEvent(t *testing.T) {
	env, err := core.ParseEnvelope("aXY=:Y3Q=")
	require.NoError(t, err)

	out := outboundFromEvent(&core.Event{
		Kind: core.EventPrivateMessage,
		Private: core.PrivateMessage{
			From:      core.Identity{Handle: "h", Username: "bob", PublicKey: "pkB"},
			To:        "alice",
			Envelope:  env,
			CreatedAt: time.Unix(1700000000, 0),
		},
	})

	assert.Equal(t, proto.OutboundTypeEvent, out.Type)
	assert.Equal(t, proto.EventPrivateMessage, out.Event)
	data, ok := out.Data.(proto.EventPrivateMessageData)
	require.True(t, ok)
	assert.Equal(t, "aXY=:Y3Q=", data.Envelope)
	assert.Equal(t, "bob", data.User.Username)
	assert.Equal(t, int64(1700000000), data.TS)
}
