// wabridge-seed fills a bridge database with generated chats and messages
// for developing the front ends without a paired device. Existing chats are
// kept; their messages are regenerated and the summaries recomputed.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/repository"
)

var contactNames = []string{
	"Alice Johnson", "Bob Smith", "Charlie Brown", "Diana Prince",
	"Eve Wilson", "Frank Miller", "Grace Lee",
}

var groupNames = []string{"Family Group", "Work Team", "Book Club"}

var sampleTexts = []string{
	"Hey! How are you doing?",
	"Can we meet tomorrow?",
	"Thanks for your help!",
	"That sounds great!",
	"Let me know when you're free",
	"Did you see the latest news?",
	"What time works for you?",
	"I'll send it over shortly",
	"Looking forward to it!",
	"Can you send me that file?",
	"See you at the meeting",
	"Talk to you later!",
}

var ownJID = domain.MustParseJID("15551234567@s.whatsapp.net")

func main() {
	dbPath := "dummy_whatsapp.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	fmt.Printf("Seeding database at %s\n", dbPath)

	if err := run(dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
}

func run(dbPath string) error {
	db, err := repository.Open(dbPath)
	if err != nil {
		return err
	}
	st := repository.NewStore(db)
	ctx := context.Background()

	chats, err := loadOrCreateChats(ctx, st)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, chat := range chats {
		if err := seedChat(ctx, st, rng, chat); err != nil {
			return fmt.Errorf("seed chat %s: %w", chat.JID, err)
		}
	}

	fmt.Printf("Seeded %d chats\n", len(chats))
	return nil
}

func loadOrCreateChats(ctx context.Context, st *repository.Store) ([]*domain.Chat, error) {
	existing, err := st.Chats.GetAll(ctx, 100, 0)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		fmt.Printf("Found %d existing chats, regenerating their messages\n", len(existing))
		return existing, nil
	}

	var chats []*domain.Chat
	for i, name := range contactNames {
		jid := domain.MustParseJID(fmt.Sprintf("1555%06d@s.whatsapp.net", 100000+i))
		chats = append(chats, domain.NewPrivateChat(jid, name))
	}
	for i, name := range groupNames {
		jid := domain.MustParseJID(fmt.Sprintf("120363%08d@g.us", 10000000+i))
		chats = append(chats, domain.NewGroupChat(jid, name, []domain.JID{ownJID}))
	}
	for _, chat := range chats {
		if err := st.Chats.Upsert(ctx, chat); err != nil {
			return nil, err
		}
	}

	// One pinned contact and one muted group so the list views have chat
	// flags to render.
	if err := st.Chats.SetFlags(ctx, chats[0].JID, false, false, true); err != nil {
		return nil, err
	}
	if err := st.Chats.SetFlags(ctx, chats[len(contactNames)].JID, true, false, false); err != nil {
		return nil, err
	}
	return chats, nil
}

// seedChat replaces the chat's messages with a fresh conversation and
// recomputes the summary from the rows, never the other way around.
func seedChat(ctx context.Context, st *repository.Store, rng *rand.Rand, chat *domain.Chat) error {
	if err := st.Messages.DeleteByChatJID(ctx, chat.JID); err != nil {
		return err
	}

	now := time.Now().UTC()
	count := 10 + rng.Intn(6)
	at := now.Add(-time.Duration(1+rng.Intn(3)) * 24 * time.Hour)

	var last *domain.Message
	for i := 0; i < count; i++ {
		at = at.Add(time.Duration(10+rng.Intn(50)) * time.Minute)
		if at.After(now) {
			at = now.Add(-time.Duration(rng.Intn(30)) * time.Minute)
		}

		fromMe := rng.Float32() < 0.4
		sender := ownJID
		if !fromMe {
			if chat.Type == domain.ChatTypePrivate {
				sender = chat.JID
			} else {
				sender = domain.MustParseJID(fmt.Sprintf("1555%06d@s.whatsapp.net", 100000+rng.Intn(100)))
			}
		}

		msg := buildMessage(rng, chat.JID, sender, at, fromMe)
		// Only the tail of the conversation may be unread.
		if !fromMe {
			msg.IsRead = i < count-3 || rng.Float32() < 0.5
		}
		if _, err := st.Messages.CreateOrIgnore(ctx, msg); err != nil {
			return err
		}
		last = msg
	}

	return st.Transaction(ctx, func(tx *repository.Store) error {
		sender := "me"
		if !last.IsFromMe {
			sender = last.SenderJID.User
		}
		if err := tx.Chats.UpdateLastMessage(ctx, chat.JID, last.Preview(), sender, last.Timestamp); err != nil {
			return err
		}
		unread, err := tx.Messages.CountUnread(ctx, chat.JID)
		if err != nil {
			return err
		}
		return tx.Chats.UpdateUnreadCount(ctx, chat.JID, int(unread))
	})
}

func buildMessage(rng *rand.Rand, chatJID, sender domain.JID, at time.Time, fromMe bool) *domain.Message {
	id := fmt.Sprintf("3A%016X", rng.Uint64())
	roll := rng.Float32()

	switch {
	case roll < 0.80:
		return domain.NewTextMessage(id, chatJID, sender, sampleTexts[rng.Intn(len(sampleTexts))], at, fromMe)
	case roll < 0.90:
		return &domain.Message{
			ID: id, ChatJID: chatJID, SenderJID: sender,
			Type:          domain.MessageTypeImage,
			Caption:       "Check this out!",
			MediaMimeType: "image/jpeg",
			MediaFileName: "photo.jpg",
			MediaFileSize: int64(500_000 + rng.Intn(2_000_000)),
			Timestamp:     at, IsFromMe: fromMe, IsRead: fromMe,
		}
	default:
		return &domain.Message{
			ID: id, ChatJID: chatJID, SenderJID: sender,
			Type:          domain.MessageTypeDocument,
			MediaMimeType: "application/pdf",
			MediaFileName: "document.pdf",
			MediaFileSize: int64(100_000 + rng.Intn(5_000_000)),
			Timestamp:     at, IsFromMe: fromMe, IsRead: fromMe,
		}
	}
}
