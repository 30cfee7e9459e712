package models

import (
	"encoding/json"
	"time"
)

// Message is a persisted chat message between two participants.
type Message struct {
	ID         string    `json:"id"` // ULID
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event names exchanged over the socket.
const (
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Envelope wraps every frame sent or received over a socket session.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ReceiveEvent is pushed to every live session of the sender and the receiver.
type ReceiveEvent struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	MessageID  string    `json:"messageId"`
}

// NewReceiveEvent builds the outbound event for a persisted message.
func NewReceiveEvent(msg *Message) ReceiveEvent {
	return ReceiveEvent{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       msg.Body,
		Timestamp:  msg.Timestamp,
		MessageID:  msg.ID,
	}
}

// ErrorEvent reports a rejected inbound frame back to the session that sent it.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeEvent serializes data inside an Envelope named event.
func EncodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
