package domain

import "time"

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Chat is a materialized conversation summary. UnreadCount and the
// LastMessage* fields are aggregates over the chat's stored messages; the
// repository keeps them consistent, the rows stay authoritative.
type Chat struct {
	JID               JID
	Type              ChatType
	Name              string
	LastMessageTime   time.Time
	LastMessageText   string
	LastMessageSender string
	UnreadCount       int
	IsMuted           bool
	IsArchived        bool
	IsPinned          bool
	Participants      []JID
}

func NewPrivateChat(jid JID, name string) *Chat {
	return &Chat{
		JID:  jid,
		Type: ChatTypePrivate,
		Name: name,
	}
}

// NewGroupChat builds a group summary. The paired device's own JID always
// belongs to the participant set.
func NewGroupChat(jid JID, name string, participants []JID) *Chat {
	return &Chat{
		JID:          jid,
		Type:         ChatTypeGroup,
		Name:         name,
		Participants: participants,
	}
}

// HasParticipant reports membership by canonical JID text.
func (c *Chat) HasParticipant(jid JID) bool {
	for _, p := range c.Participants {
		if p.User == jid.User && p.Server == jid.Server {
			return true
		}
	}
	return false
}
