package http

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const maxUsernameLen = 64

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand validates a frame at the gateway boundary. A non-nil
// *proto.Error is reported to the caller only; nothing reaches the hub.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, badRequest("invalid join payload")
		}
		if join.Protocol != 0 && join.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{Code: core.ErrCodeUnsupportedVersion, Msg: "unsupported protocol version"}
		}
		user := strings.TrimSpace(join.User)
		if user == "" {
			return nil, badRequest("user is required")
		}
		if utf8.RuneCountInString(user) > maxUsernameLen {
			return nil, badRequest("user is too long")
		}
		return &core.Command{
			Kind:   core.CommandJoin,
			Sender: core.Identity{Username: user, PublicKey: join.PublicKey},
		}, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, badRequest("invalid msg payload")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("text is required")
		}
		return &core.Command{
			Kind:   core.CommandBroadcast,
			Sender: core.Identity{Username: strings.TrimSpace(msg.User), PublicKey: msg.PublicKey},
			Text:   msg.Text,
		}, nil
	case proto.InboundTypePrivate:
		var pm proto.PrivateData
		if err := json.Unmarshal(inbound.Data, &pm); err != nil {
			return nil, badRequest("invalid private payload")
		}
		to := strings.TrimSpace(pm.To)
		if to == "" {
			return nil, badRequest("to is required")
		}
		payload := pm.Envelope
		if payload == "" && (pm.IV != "" || pm.Ciphertext != "") {
			payload = pm.IV + ":" + pm.Ciphertext
		}
		return &core.Command{
			Kind:    core.CommandPrivateSend,
			Sender:  core.Identity{Username: strings.TrimSpace(pm.User)},
			To:      to,
			Payload: payload,
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func userInfo(id core.Identity) proto.UserInfo {
	return proto.UserInfo{
		ConnectionID: id.Handle,
		Username:     id.Username,
		PublicKey:    id.PublicKey,
	}
}

func rosterData(ids []core.Identity) proto.EventRosterData {
	users := make([]proto.UserInfo, 0, len(ids))
	for _, id := range ids {
		users = append(users, userInfo(id))
	}
	return proto.EventRosterData{Users: users}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoster:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoster,
			Data:  rosterData(event.Roster),
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  userInfo(event.User),
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  userInfo(event.User),
		}
	case core.EventDisplaced:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventDisplaced,
			Data:  userInfo(event.User),
		}
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data: proto.EventMessageData{
				User: userInfo(event.Message.From),
				Text: event.Message.Text,
				TS:   event.Message.CreatedAt.Unix(),
			},
		}
	case core.EventPrivateMessage:
		pm := event.Private
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateMessage,
			Data: proto.EventPrivateMessageData{
				User:       userInfo(pm.From),
				Envelope:   pm.Envelope.String(),
				IV:         pm.Envelope.IV,
				Ciphertext: pm.Envelope.Ciphertext,
				TS:         pm.CreatedAt.Unix(),
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
