package rpc

import (
	"time"

	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/service"
)

// Wire types for the Bridge service. The RPC surface speaks JSON framed by
// gRPC; these structs are the schema.

type Empty struct{}

type StatusResponse struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"logged_in"`
	OwnJID    string `json:"own_jid,omitempty"`
}

type PairQRRequest struct{}

type PairingUpdate struct {
	Code    string `json:"code,omitempty"`
	Success bool   `json:"success,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PairWithCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type PairWithCodeResponse struct {
	Code string `json:"code"`
}

type ListChatsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type ListChatsResponse struct {
	Chats []Chat `json:"chats"`
}

type GetMessagesRequest struct {
	ChatJID string `json:"chat_jid"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

type GetMessagesSinceRequest struct {
	ChatJID string `json:"chat_jid"`
	// SinceUnixMs is milliseconds since the epoch, UTC.
	SinceUnixMs int64 `json:"since_unix_ms"`
	Limit       int   `json:"limit,omitempty"`
}

type GetMessagesResponse struct {
	Messages []Message `json:"messages"`
}

type SearchMessagesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type SendMessageRequest struct {
	ChatJID string `json:"chat_jid"`
	Text    string `json:"text"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type SendReactionRequest struct {
	ChatJID   string `json:"chat_jid"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type MarkReadRequest struct {
	ChatJID    string   `json:"chat_jid"`
	MessageIDs []string `json:"message_ids"`
}

type DownloadMediaRequest struct {
	MessageID string `json:"message_id"`
}

type DownloadMediaResponse struct {
	Path string `json:"path"`
}

type SubscribeEventsRequest struct {
	// EventTypes filters the stream; empty means every event.
	EventTypes []string `json:"event_types,omitempty"`
}

// EventEnvelope is one streamed bus event. Exactly the fields relevant to
// the event type are set.
type EventEnvelope struct {
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Message    *Message  `json:"message,omitempty"`
	ChatJID    string    `json:"chat_jid,omitempty"`
	MessageIDs []string  `json:"message_ids,omitempty"`
	Connected  *bool     `json:"connected,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Code       string    `json:"code,omitempty"`
}

type Chat struct {
	JID               string    `json:"jid"`
	Type              string    `json:"type"`
	Name              string    `json:"name"`
	LastMessageTime   time.Time `json:"last_message_time"`
	LastMessageText   string    `json:"last_message_text,omitempty"`
	LastMessageSender string    `json:"last_message_sender,omitempty"`
	UnreadCount       int       `json:"unread_count"`
	Participants      []string  `json:"participants,omitempty"`
}

type Message struct {
	ID              string    `json:"id"`
	ChatJID         string    `json:"chat_jid"`
	SenderJID       string    `json:"sender_jid"`
	Type            string    `json:"type"`
	Text            string    `json:"text,omitempty"`
	Caption         string    `json:"caption,omitempty"`
	MediaURL        string    `json:"media_url,omitempty"`
	MediaMimeType   string    `json:"media_mime_type,omitempty"`
	MediaFileName   string    `json:"media_file_name,omitempty"`
	MediaFileSize   int64     `json:"media_file_size,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	IsFromMe        bool      `json:"is_from_me"`
	IsRead          bool      `json:"is_read"`
	QuotedMessageID string    `json:"quoted_message_id,omitempty"`
	ReactionTarget  string    `json:"reaction_target,omitempty"`
	ReactionEmoji   string    `json:"reaction_emoji,omitempty"`
}

func chatFromDomain(c *domain.Chat) Chat {
	out := Chat{
		JID:               c.JID.String(),
		Type:              string(c.Type),
		Name:              c.Name,
		LastMessageTime:   c.LastMessageTime,
		LastMessageText:   c.LastMessageText,
		LastMessageSender: c.LastMessageSender,
		UnreadCount:       c.UnreadCount,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, p.String())
	}
	return out
}

func messageFromDomain(m *domain.Message) Message {
	out := Message{
		ID:              m.ID,
		ChatJID:         m.ChatJID.String(),
		SenderJID:       m.SenderJID.String(),
		Type:            string(m.Type),
		Text:            m.Text,
		Caption:         m.Caption,
		MediaURL:        m.MediaURL,
		MediaMimeType:   m.MediaMimeType,
		MediaFileName:   m.MediaFileName,
		MediaFileSize:   m.MediaFileSize,
		Timestamp:       m.Timestamp,
		IsFromMe:        m.IsFromMe,
		IsRead:          m.IsRead,
		QuotedMessageID: m.QuotedMessageID,
	}
	if m.Reaction != nil {
		out.ReactionTarget = m.Reaction.TargetMessageID
		out.ReactionEmoji = m.Reaction.Emoji
	}
	return out
}

func chatsFromDomain(chats []*domain.Chat) []Chat {
	out := make([]Chat, len(chats))
	for i, c := range chats {
		out[i] = chatFromDomain(c)
	}
	return out
}

func messagesFromDomain(msgs []*domain.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = messageFromDomain(m)
	}
	return out
}

func envelopeFromEvent(evt domain.Event) EventEnvelope {
	env := EventEnvelope{Type: string(evt.Type()), Timestamp: evt.Timestamp()}
	switch e := evt.(type) {
	case domain.MessageReceivedEvent:
		msg := messageFromDomain(e.Message)
		env.Message = &msg
	case domain.MessageSentEvent:
		msg := messageFromDomain(e.Message)
		env.Message = &msg
	case domain.MessageReadEvent:
		env.ChatJID = e.ChatJID.String()
		env.MessageIDs = e.MessageIDs
	case domain.ChatUpdatedEvent:
		if e.Chat != nil {
			env.ChatJID = e.Chat.JID.String()
		}
	case domain.ConnectionStatusEvent:
		connected := e.Connected
		env.Connected = &connected
		env.Reason = e.Reason
	case domain.PairingQREvent:
		env.Code = e.Code
	case domain.PairingCodeEvent:
		env.Code = e.Code
	}
	return env
}

func pairingUpdateFromService(u service.PairingUpdate) PairingUpdate {
	out := PairingUpdate{Code: u.Code, Success: u.Success, Timeout: u.Timeout}
	if u.Err != nil {
		out.Error = u.Err.Error()
	}
	return out
}
