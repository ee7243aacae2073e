package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store bundles the repositories over one gorm handle so multi-row updates
// (message insert + last-message + unread count) can share a transaction.
type Store struct {
	db       *gorm.DB
	Messages MessageRepository
	Chats    ChatRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		Messages: NewMessageRepository(db),
		Chats:    NewChatRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single database
// transaction. Returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(txdb *gorm.DB) error {
		return fn(NewStore(txdb))
	})
}

// Open opens (or creates) the bridge database, switches it to WAL journaling
// and migrates the messages and chats tables.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// Driver constraint errors become gorm.ErrDuplicatedKey and friends.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets readers proceed while ingest writes.
	db.Exec("PRAGMA journal_mode=WAL")

	if err := db.AutoMigrate(&MessageModel{}, &ChatModel{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}
