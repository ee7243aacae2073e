package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/logger"
	"github.com/wirebird/wabridge/internal/repository"
)

const (
	defaultChatLimit    = 20
	defaultMessageLimit = 50
	defaultSearchLimit  = 20
)

// MessageService is the read and send facade the transports share. Queries
// go straight to the store; anything touching the wire delegates to the
// session.
type MessageService struct {
	store   *repository.Store
	session *Session
	log     zerolog.Logger
}

func NewMessageService(st *repository.Store, session *Session) *MessageService {
	return &MessageService{
		store:   st,
		session: session,
		log:     logger.Module("messages"),
	}
}

func (m *MessageService) GetChats(ctx context.Context, limit, offset int) ([]*domain.Chat, error) {
	if limit <= 0 {
		limit = defaultChatLimit
	}
	if offset < 0 {
		offset = 0
	}
	return m.store.Chats.GetAll(ctx, limit, offset)
}

func (m *MessageService) GetChat(ctx context.Context, chatJID domain.JID) (*domain.Chat, error) {
	chat, err := m.store.Chats.GetByJID(ctx, chatJID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, domain.Errorf(domain.KindNotFound, "chat %s not found", chatJID)
	}
	return chat, nil
}

func (m *MessageService) GetMessages(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error) {
	if chatJID.IsEmpty() {
		return nil, domain.Errorf(domain.KindInvalidArgument, "chat JID is empty")
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return m.store.Messages.GetByChatJID(ctx, chatJID, limit, offset)
}

func (m *MessageService) GetMessagesSince(ctx context.Context, chatJID domain.JID, since time.Time, limit int) ([]*domain.Message, error) {
	if chatJID.IsEmpty() {
		return nil, domain.Errorf(domain.KindInvalidArgument, "chat JID is empty")
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	return m.store.Messages.GetByChatJIDSince(ctx, chatJID, since, limit)
}

func (m *MessageService) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	msg, err := m.store.Messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.Errorf(domain.KindNotFound, "message %s not found", id)
	}
	return msg, nil
}

func (m *MessageService) SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "search query is empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return m.store.Messages.Search(ctx, query, limit)
}

func (m *MessageService) SendTextMessage(ctx context.Context, chatJID domain.JID, text string) (*domain.Message, error) {
	return m.session.SendTextMessage(ctx, chatJID, text)
}

func (m *MessageService) SendReaction(ctx context.Context, chatJID domain.JID, targetMessageID, emoji string) error {
	return m.session.SendReaction(ctx, chatJID, targetMessageID, emoji)
}

func (m *MessageService) MarkAsRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error {
	return m.session.MarkAsRead(ctx, chatJID, messageIDs)
}
