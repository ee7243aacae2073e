package cli

import (
	"time"

	"github.com/wirebird/wabridge/internal/domain"
)

// Request is one line of headless input.
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response is one line of headless output. Exactly one of Data and Error is
// set.
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event is a bus event rendered for headless consumers.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type ChatInfo struct {
	JID             string    `json:"jid"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

type MessageInfo struct {
	ID        string    `json:"id"`
	ChatJID   string    `json:"chat_jid"`
	SenderJID string    `json:"sender_jid"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsFromMe  bool      `json:"is_from_me"`
	IsRead    bool      `json:"is_read"`
}

type ConnectionStatus struct {
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"logged_in"`
	OwnJID    string `json:"own_jid,omitempty"`
}

type PairingInfo struct {
	Code    string `json:"code,omitempty"`
	QRCode  string `json:"qr_code,omitempty"`
	Success bool   `json:"success,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
	Error   string `json:"error,omitempty"`
}

func chatInfo(chat *domain.Chat) ChatInfo {
	return ChatInfo{
		JID:             chat.JID.String(),
		Name:            chat.Name,
		Type:            string(chat.Type),
		UnreadCount:     chat.UnreadCount,
		LastMessageText: chat.LastMessageText,
		LastMessageTime: chat.LastMessageTime,
	}
}

func messageInfo(msg *domain.Message) MessageInfo {
	return MessageInfo{
		ID:        msg.ID,
		ChatJID:   msg.ChatJID.String(),
		SenderJID: msg.SenderJID.String(),
		Type:      string(msg.Type),
		Text:      msg.Text,
		Caption:   msg.Caption,
		MediaURL:  msg.MediaURL,
		Timestamp: msg.Timestamp,
		IsFromMe:  msg.IsFromMe,
		IsRead:    msg.IsRead,
	}
}

func messageInfos(msgs []*domain.Message) []MessageInfo {
	out := make([]MessageInfo, len(msgs))
	for i, m := range msgs {
		out[i] = messageInfo(m)
	}
	return out
}
