// Package protocol defines the real-time event surface shared by the relay and
// its clients: event names, payload shapes and the JSON frame envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"coartistry-backend/internal/drawing"
)

// Event 실시간 이벤트 이름
type Event string

const (
	EventSession            Event = "session"
	EventJoinRoom           Event = "join-room"
	EventLeaveRoom          Event = "leave-room"
	EventUserJoined         Event = "user-joined"
	EventUserLeft           Event = "user-left"
	EventRoomFull           Event = "room-full"
	EventRoomError          Event = "room-error"
	EventRemotePath         Event = "remote-path"
	EventFloodFill          Event = "flood-fill"
	EventColorChange        Event = "color-change"
	EventColorUpdated       Event = "color-updated"
	EventCanvasStateUpdate  Event = "canvas-state-update"
	EventRequestCanvasState Event = "request-canvas-state"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is one text frame: {"event": "...", "data": ...}.
// Data stays raw so the relay can forward it without decoding.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event with data marshalled as JSON.
func Encode(event Event, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// EncodeRaw builds a frame around an already-encoded payload.
func EncodeRaw(event Event, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode parses a frame. Frames without an event name are malformed.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedFrame, e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedFrame, e.Event, err)
	}
	return nil
}

// RoomScope is the part every room-scoped payload shares.
type RoomScope struct {
	RoomID string `json:"roomId"`
}

// SessionInfo is sent once after the handshake.
type SessionInfo struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// JoinRoom 방 입장 요청
type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
}

// LeaveRoom 방 퇴장 요청
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// Member is one live participant as seen by the other participants.
type Member struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// Membership is the payload of user-joined and user-left.
type Membership struct {
	SocketID    string   `json:"socketId"`
	Username    string   `json:"username"`
	UsersInRoom []Member `json:"usersInRoom"`
}

// Notice is the payload of room-full and room-error.
type Notice struct {
	Message string `json:"message"`
}

// FloodFill is a seed-only fill intent; X and Y are normalized to [0,1].
type FloodFill struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FillColor string  `json:"fillColor"`
	RoomID    string  `json:"roomId"`
}

// ColorChange 색상 변경 요청
type ColorChange struct {
	Color  string `json:"color"`
	RoomID string `json:"roomId"`
}

// CanvasState carries a whole operation log.
type CanvasState struct {
	RoomID string              `json:"roomId"`
	Paths  []drawing.Operation `json:"paths"`
}

// CanvasStateRequest solicits the log of the other member. RequesterID is
// filled in by the relay.
type CanvasStateRequest struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId,omitempty"`
}
