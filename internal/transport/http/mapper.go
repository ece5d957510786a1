package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// inboundToMessage decodes one client frame. A non-nil *proto.Error is answered to the
// sender only and never ends the connection.
func inboundToMessage(data []byte, now time.Time) (core.Message, *proto.Error) {
	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil {
		return core.Message{}, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed JSON envelope"}
	}

	switch inbound.Type {
	case proto.InboundTypeMessage:
		msg, err := proto.ParseMessage(inbound.Data)
		if err != nil {
			if errors.Is(err, proto.ErrInvalidMessage) {
				return core.Message{}, &proto.Error{
					Code: proto.ErrCodeInvalidMessage,
					Msg:  "Invalid message format. Required fields: userId, role, text",
				}
			}
			return core.Message{}, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed message payload"}
		}
		if msg.TS == "" {
			msg.TS = proto.Timestamp(now)
		}
		return core.Message{
			UserID: msg.UserID,
			Role:   msg.Role,
			Text:   msg.Text,
			TS:     msg.TS,
		}, nil
	default:
		return core.Message{}, &proto.Error{Code: proto.ErrCodeUnknownType, Msg: "unknown message type"}
	}
}

func outboundFromMessage(msg core.Message) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeMessage,
		Data: proto.Message{
			UserID: msg.UserID,
			Role:   msg.Role,
			Text:   msg.Text,
			TS:     msg.TS,
			Seq:    msg.Seq,
		},
	}
}

func outboundError(e *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: e}
}

func outboundConnected(sessionID string) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeConnected,
		Data: proto.ConnectedData{Status: proto.ConnectedStatus, Session: sessionID},
	}
}
