package domain

import "time"

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeSticker  MessageType = "sticker"
	MessageTypeReaction MessageType = "reaction"
	MessageTypeLocation MessageType = "location"
	MessageTypeContact  MessageType = "contact"
)

// MaxTimestampSkew bounds how far into the future a sender clock may run
// before ingest clamps the timestamp to local now.
const MaxTimestampSkew = 60 * time.Second

// Message is one stored message. The ID is assigned by the WhatsApp library
// and is the deduplication key; rows are immutable after insert except for
// IsRead (false -> true).
type Message struct {
	ID              string
	ChatJID         JID
	SenderJID       JID
	Type            MessageType
	Text            string
	Caption         string
	MediaURL        string
	MediaMimeType   string
	MediaFileName   string
	MediaFileSize   int64
	Timestamp       time.Time
	IsFromMe        bool
	IsRead          bool
	QuotedMessageID string
	Reaction        *Reaction
	Location        *Location
	ContactCard     *ContactCard
}

type Reaction struct {
	TargetMessageID string
	Emoji           string
	SenderJID       JID
	Timestamp       time.Time
}

type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

type ContactCard struct {
	Name        string
	PhoneNumber string
	VCard       string
}

// Validate checks the structural invariants that must hold before a message
// is persisted. Timestamp skew is not an error; callers clamp it.
func (m *Message) Validate() error {
	if m.ID == "" {
		return Errorf(KindInvalidArgument, "message has no id")
	}
	if m.ChatJID.IsEmpty() {
		return Errorf(KindInvalidArgument, "message %s has no chat JID", m.ID)
	}
	if m.MediaFileSize < 0 {
		return Errorf(KindInvalidArgument, "message %s has negative media size", m.ID)
	}
	if m.Type == MessageTypeReaction {
		if m.Reaction == nil {
			return Errorf(KindInvalidArgument, "reaction message %s has no reaction payload", m.ID)
		}
		if m.Reaction.TargetMessageID == m.ID {
			return Errorf(KindInvalidArgument, "reaction message %s targets itself", m.ID)
		}
	}
	return nil
}

// ClampTimestamp pulls a future-dated timestamp back to now when it exceeds
// the allowed sender-clock skew.
func (m *Message) ClampTimestamp(now time.Time) {
	if m.Timestamp.After(now.Add(MaxTimestampSkew)) {
		m.Timestamp = now
	}
}

// Preview returns the text used for a chat's last-message summary.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Caption != "" {
		return m.Caption
	}
	return "[" + string(m.Type) + "]"
}

func NewTextMessage(id string, chatJID, senderJID JID, text string, timestamp time.Time, isFromMe bool) *Message {
	return &Message{
		ID:        id,
		ChatJID:   chatJID,
		SenderJID: senderJID,
		Type:      MessageTypeText,
		Text:      text,
		Timestamp: timestamp,
		IsFromMe:  isFromMe,
		// A message we sent has by definition been seen by us.
		IsRead: isFromMe,
	}
}

func NewReactionMessage(id string, chatJID, senderJID JID, targetID, emoji string, timestamp time.Time, isFromMe bool) *Message {
	return &Message{
		ID:        id,
		ChatJID:   chatJID,
		SenderJID: senderJID,
		Type:      MessageTypeReaction,
		Timestamp: timestamp,
		IsFromMe:  isFromMe,
		IsRead:    isFromMe,
		Reaction: &Reaction{
			TargetMessageID: targetID,
			Emoji:           emoji,
			SenderJID:       senderJID,
			Timestamp:       timestamp,
		},
	}
}
