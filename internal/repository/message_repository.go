package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wirebird/wabridge/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	err := r.db.WithContext(ctx).Create(model).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.WrapErr(domain.KindInternal, "duplicate message id "+msg.ID, err)
	}
	return err
}

func (r *gormMessageRepository) CreateOrIgnore(ctx context.Context, msg *domain.Message) (bool, error) {
	model := MessageDomainToModel(msg)
	// INSERT ... ON CONFLICT DO NOTHING; RowsAffected distinguishes a real
	// insert from a redelivered duplicate.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) GetByChatJID(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("chat_jid = ?", chatJID.String()).
		Order("timestamp DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *gormMessageRepository) GetByChatJIDSince(ctx context.Context, chatJID domain.JID, since time.Time, limit int) ([]*domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("chat_jid = ? AND timestamp > ?", chatJID.String(), since).
		Order("timestamp ASC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *gormMessageRepository) UpdateReadStatus(ctx context.Context, ids []string, isRead bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id IN ?", ids).
		Update("is_read", isRead).Error
}

func (r *gormMessageRepository) UpdateMediaURL(ctx context.Context, id, mediaURL string) error {
	return r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ?", id).
		Update("media_url", mediaURL).Error
}

func (r *gormMessageRepository) CountUnread(ctx context.Context, chatJID domain.JID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("chat_jid = ? AND is_from_me = ? AND is_read = ?", chatJID.String(), false, false).
		Count(&count).Error
	return count, err
}

func (r *gormMessageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	// Escape LIKE metacharacters so "%" and "_" match literally.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	pattern := "%" + escaped + "%"

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("text LIKE ? ESCAPE '\\' OR caption LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("timestamp DESC, id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *gormMessageRepository) DeleteReactions(ctx context.Context, chatJID domain.JID, targetMessageID string, senderJID domain.JID) error {
	return r.db.WithContext(ctx).
		Where("chat_jid = ? AND type = ? AND reaction_target = ? AND sender_jid = ?",
			chatJID.String(), string(domain.MessageTypeReaction), targetMessageID, senderJID.String()).
		Delete(&MessageModel{}).Error
}

func (r *gormMessageRepository) DeleteByChatJID(ctx context.Context, chatJID domain.JID) error {
	return r.db.WithContext(ctx).
		Where("chat_jid = ?", chatJID.String()).
		Delete(&MessageModel{}).Error
}

func modelsToDomain(models []MessageModel) []*domain.Message {
	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages
}
