package gateway

import (
	"encoding/json"

	"github.com/kunpitech/quizbuzz/internal/room"
)

// MessageType tags frames on the websocket in both directions.
type MessageType string

const (
	// Server → client
	MessageTypeWaiting  MessageType = "Waiting"
	MessageTypeAssigned MessageType = "Assigned"
	MessageTypeView     MessageType = "View"
	MessageTypeError    MessageType = "Error"

	// Client → server
	MessageTypeSubmit MessageType = "Submit"
	MessageTypeLeave  MessageType = "Leave"
)

// Message is the envelope for every websocket frame.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AssignedPayload announces the room a player was matched into.
type AssignedPayload struct {
	RoomID string `json:"room_id"`
}

// SubmitPayload carries a player's answer for the active question.
type SubmitPayload struct {
	Option string `json:"option"`
}

// ErrorPayload carries a non-fatal error indicator for the client to
// render; the session stays open.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newMessage(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: t, Data: data})
}

func viewMessage(v room.View) ([]byte, error) {
	return newMessage(MessageTypeView, v)
}

func decodeMessage(raw []byte, msg *Message) error {
	return json.Unmarshal(raw, msg)
}
