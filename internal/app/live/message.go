package live

import (
	"encoding/json"
	"time"
)

// MessageType names a frame on the live session socket.
type MessageType string

const (
	// client -> server
	TypeStart   MessageType = "START"
	TypeStop    MessageType = "STOP"
	TypeAnalyze MessageType = "ANALYZE"
	TypeClone   MessageType = "CLONE"
	TypeReset   MessageType = "RESET"

	// server -> client
	TypeState MessageType = "STATE"
	TypeError MessageType = "ERROR"
)

// Message is an outbound text frame.
type Message struct {
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewMessage stamps a frame with the current time in milliseconds.
func NewMessage(t MessageType, payload any) Message {
	return Message{Type: t, Payload: payload, Timestamp: time.Now().UnixMilli()}
}

type inboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartPayload carries the device's microphone permission answer.
type StartPayload struct {
	PermissionGranted bool   `json:"permissionGranted"`
	Format            string `json:"format,omitempty"`
}

// ClonePayload names the voice being cloned. Empty fields take the service defaults.
type ClonePayload struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ErrorPayload is the body of an ERROR frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
