package repository

import (
	"context"
	"time"

	"github.com/wirebird/wabridge/internal/domain"
)

// MessageRepository is the persistence contract for messages. All write
// methods run as single statements; a concurrent reader never observes a
// half-applied update.
type MessageRepository interface {
	// Create fails with a DuplicateID (internal kind) error when the id
	// already exists.
	Create(ctx context.Context, msg *domain.Message) error
	// CreateOrIgnore skips duplicates and reports whether a row was
	// actually inserted. This is the ingest hot path: the library may
	// redeliver the same id across reconnects.
	CreateOrIgnore(ctx context.Context, msg *domain.Message) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// GetByChatJID returns messages descending by timestamp, ties broken
	// by id ascending.
	GetByChatJID(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error)
	// GetByChatJIDSince returns messages after since, ascending.
	GetByChatJIDSince(ctx context.Context, chatJID domain.JID, since time.Time, limit int) ([]*domain.Message, error)
	UpdateReadStatus(ctx context.Context, ids []string, isRead bool) error
	UpdateMediaURL(ctx context.Context, id, mediaURL string) error
	// CountUnread counts rows with is_from_me = false and is_read = false;
	// this count is the authoritative unread value for a chat.
	CountUnread(ctx context.Context, chatJID domain.JID) (int64, error)
	// Search matches text and caption as literal substrings; wildcard
	// metacharacters in query are escaped.
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	// DeleteReactions removes stored reaction rows for (chat, target,
	// sender); used to replace or clear a reaction.
	DeleteReactions(ctx context.Context, chatJID domain.JID, targetMessageID string, senderJID domain.JID) error
	DeleteByChatJID(ctx context.Context, chatJID domain.JID) error
}

// ChatRepository is the persistence contract for chat summaries.
type ChatRepository interface {
	Upsert(ctx context.Context, chat *domain.Chat) error
	GetByJID(ctx context.Context, jid domain.JID) (*domain.Chat, error)
	GetAll(ctx context.Context, limit, offset int) ([]*domain.Chat, error)
	// UpdateLastMessage only advances the summary; a timestamp older than
	// the stored one leaves the row untouched.
	UpdateLastMessage(ctx context.Context, jid domain.JID, text, sender string, timestamp time.Time) error
	UpdateUnreadCount(ctx context.Context, jid domain.JID, count int) error
	// IncrementUnreadCount is an atomic in-database increment; never a
	// client-side read-modify-write.
	IncrementUnreadCount(ctx context.Context, jid domain.JID) error
	SetFlags(ctx context.Context, jid domain.JID, muted, archived, pinned bool) error
	Delete(ctx context.Context, jid domain.JID) error
}
