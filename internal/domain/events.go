package domain

import "time"

type EventType string

const (
	EventTypeMessageReceived  EventType = "message.received"
	EventTypeMessageSent      EventType = "message.sent"
	EventTypeMessageRead      EventType = "message.read"
	EventTypeChatUpdated      EventType = "chat.updated"
	EventTypeConnectionStatus EventType = "connection.status"
	EventTypePairingQR        EventType = "pairing.qr"
	EventTypePairingCode      EventType = "pairing.code"
)

// Event is an ephemeral bus record. Events are never persisted; durability
// belongs to the repository.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

type MessageReceivedEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageReceivedEvent) Type() EventType      { return EventTypeMessageReceived }
func (e MessageReceivedEvent) Timestamp() time.Time { return e.EventTime }

type MessageSentEvent struct {
	Message   *Message
	EventTime time.Time
}

func (e MessageSentEvent) Type() EventType      { return EventTypeMessageSent }
func (e MessageSentEvent) Timestamp() time.Time { return e.EventTime }

type MessageReadEvent struct {
	ChatJID    JID
	MessageIDs []string
	EventTime  time.Time
}

func (e MessageReadEvent) Type() EventType      { return EventTypeMessageRead }
func (e MessageReadEvent) Timestamp() time.Time { return e.EventTime }

type ChatUpdatedEvent struct {
	Chat      *Chat
	EventTime time.Time
}

func (e ChatUpdatedEvent) Type() EventType      { return EventTypeChatUpdated }
func (e ChatUpdatedEvent) Timestamp() time.Time { return e.EventTime }

type ConnectionStatusEvent struct {
	Connected bool
	Reason    string
	EventTime time.Time
}

func (e ConnectionStatusEvent) Type() EventType      { return EventTypeConnectionStatus }
func (e ConnectionStatusEvent) Timestamp() time.Time { return e.EventTime }

type PairingQREvent struct {
	Code      string
	EventTime time.Time
}

func (e PairingQREvent) Type() EventType      { return EventTypePairingQR }
func (e PairingQREvent) Timestamp() time.Time { return e.EventTime }

type PairingCodeEvent struct {
	Code      string
	EventTime time.Time
}

func (e PairingCodeEvent) Type() EventType      { return EventTypePairingCode }
func (e PairingCodeEvent) Timestamp() time.Time { return e.EventTime }
