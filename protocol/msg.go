// Package protocol defines the JSON message envelope and payloads exchanged
// between quadspace servers and clients over WebSocket connections.
package protocol

import (
	stdjson "encoding/json"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// MsgType identifies a message's payload.
type MsgType string

const (
	MsgTypeError MsgType = "error"

	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"
	MsgTypeSyncClock    MsgType = "sync_clock"

	MsgTypeSessionJoinRequest   MsgType = "session_join_request"
	MsgTypeSessionJoinResponse  MsgType = "session_join_response"
	MsgTypeSessionLeaveRequest  MsgType = "session_leave_request"
	MsgTypeSessionLeaveResponse MsgType = "session_leave_response"
	MsgTypeParticipantJoined    MsgType = "participant_joined"
	MsgTypeParticipantLeft      MsgType = "participant_left"

	MsgTypeThingUpsertRequest  MsgType = "thing_upsert_request"
	MsgTypeThingUpsertResponse MsgType = "thing_upsert_response"
	MsgTypeThingRemoveRequest  MsgType = "thing_remove_request"
	MsgTypeThingRemoveResponse MsgType = "thing_remove_response"

	MsgTypeGridShiftRequest  MsgType = "grid_shift_request"
	MsgTypeGridShiftResponse MsgType = "grid_shift_response"
	MsgTypeGridResetRequest  MsgType = "grid_reset_request"
	MsgTypeGridResetResponse MsgType = "grid_reset_response"
	MsgTypeStripUpdate       MsgType = "strip_update"

	MsgTypeMembershipGetRequest  MsgType = "membership_get_request"
	MsgTypeMembershipGetResponse MsgType = "membership_get_response"
	MsgTypeDebugInfoRequest      MsgType = "debug_info_request"
	MsgTypeDebugInfoResponse     MsgType = "debug_info_response"
)

// Error types tagged on failed requests.
const (
	ErrTypeBadRequest           = "bad_request"
	ErrTypeSessionNotJoined     = "session_not_joined"
	ErrTypeSessionNotFound      = "session_not_found"
	ErrTypeSessionAlreadyJoined = "session_already_joined"
	ErrTypeThingNotFound        = "thing_not_found"
)

// Msg is the wire envelope. Data holds the payload, still encoded, so the
// envelope can be routed without decoding the body.
type Msg struct {
	Type MsgType            `json:"type"`
	Data stdjson.RawMessage `json:"data,omitempty"`
}

// DataTo decodes the payload into the given value.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message payload failed").
			WithType(ErrTypeBadRequest).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return string(m.Type)
}

// MsgFrom wraps a payload into an envelope.
func MsgFrom(t MsgType, payload any) (Msg, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Msg{}, errors.New("encoding message payload failed").
			WithTag("msg_type", t).
			Wrap(err)
	}
	return Msg{Type: t, Data: data}, nil
}

// Sender sends a message and reports the encoded size.
type Sender func(Msg) (int, error)

// Receiver blocks until a message arrives and reports its encoded size.
type Receiver func() (Msg, int, error)

// ResponseSender is handed to message handlers to answer or notify the
// connected client.
type ResponseSender interface {
	// Send encodes the payload and queues it for delivery.
	Send(t MsgType, payload any)

	// SendMsg queues an already encoded message for delivery.
	SendMsg(msg Msg)
}

// NewSender returns a Sender writing JSON frames to the connection.
func NewSender(conn *websocket.Conn) Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}
		if err := websocket.Message.Send(conn, string(b)); err != nil {
			return 0, errors.New("sending message failed").
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}
		return len(b), nil
	}
}

// NewReceiver returns a Receiver reading JSON frames from the connection.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var b []byte
		if err := websocket.Message.Receive(conn, &b); err != nil {
			return Msg{}, 0, errors.New("receiving message failed").Wrap(err)
		}

		var msg Msg
		if err := json.Unmarshal(b, &msg); err != nil {
			return Msg{}, len(b), errors.New("decoding message failed").
				WithType(ErrTypeBadRequest).
				Wrap(err)
		}
		return msg, len(b), nil
	}
}
