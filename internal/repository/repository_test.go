package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/wabridge/internal/domain"
)

var (
	chatAlice = domain.MustParseJID("15551230001@s.whatsapp.net")
	chatBob   = domain.MustParseJID("15551230002@s.whatsapp.net")
	groupJID  = domain.MustParseJID("120363000000000001@g.us")
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	return NewStore(db)
}

func textMessage(id string, chat domain.JID, text string, ts time.Time, fromMe bool) *domain.Message {
	sender := chat
	if fromMe {
		sender = domain.MustParseJID("15550000000@s.whatsapp.net")
	}
	return domain.NewTextMessage(id, chat, sender, text, ts, fromMe)
}

func TestCreateOrIgnoreDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	msg := textMessage("M1", chatAlice, "one", time.Now().UTC(), false)

	inserted, err := s.Messages.CreateOrIgnore(ctx, msg)
	require.NoError(t, err)
	assert.True(t, inserted)

	for i := 0; i < 3; i++ {
		inserted, err = s.Messages.CreateOrIgnore(ctx, msg)
		require.NoError(t, err)
		assert.False(t, inserted, "redelivery %d must be ignored", i)
	}

	got, err := s.Messages.GetByChatJID(ctx, chatAlice, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Text)
}

func TestCreateFailsOnDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	msg := textMessage("M1", chatAlice, "one", time.Now().UTC(), false)

	require.NoError(t, s.Messages.Create(ctx, msg))

	err := s.Messages.Create(ctx, msg)
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Contains(t, err.Error(), "duplicate message id M1")
}

func TestGetByChatJIDOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// M2 and M3 share a timestamp; the tie breaks lexicographically by id.
	require.NoError(t, s.Messages.Create(ctx, textMessage("M1", chatAlice, "first", base, false)))
	require.NoError(t, s.Messages.Create(ctx, textMessage("M3", chatAlice, "tie-b", base.Add(time.Minute), false)))
	require.NoError(t, s.Messages.Create(ctx, textMessage("M2", chatAlice, "tie-a", base.Add(time.Minute), false)))

	got, err := s.Messages.GetByChatJID(ctx, chatAlice, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "M2", got[0].ID)
	assert.Equal(t, "M3", got[1].ID)
	assert.Equal(t, "M1", got[2].ID)
}

func TestGetByChatJIDSinceAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		msg := textMessage(fmt.Sprintf("M%d", i), chatAlice, fmt.Sprintf("n%d", i), base.Add(time.Duration(i)*time.Minute), false)
		require.NoError(t, s.Messages.Create(ctx, msg))
	}

	got, err := s.Messages.GetByChatJIDSince(ctx, chatAlice, base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "M2", got[0].ID)
	assert.Equal(t, "M4", got[2].ID)
}

func TestSearchEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Messages.Create(ctx, textMessage("M1", chatAlice, "50% off", now, false)))
	require.NoError(t, s.Messages.Create(ctx, textMessage("M2", chatAlice, "100 off", now.Add(time.Second), false)))
	require.NoError(t, s.Messages.Create(ctx, textMessage("M3", chatAlice, "free_shipping", now.Add(2*time.Second), false)))

	got, err := s.Messages.Search(ctx, "50%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "50% off", got[0].Text)

	got, err = s.Messages.Search(ctx, "free_s", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "free_shipping", got[0].Text)

	// "_" as a wildcard would match "100 off"; as a literal it must not.
	got, err = s.Messages.Search(ctx, "100_off", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchMatchesCaption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := textMessage("M1", chatAlice, "", time.Now().UTC(), false)
	msg.Type = domain.MessageTypeImage
	msg.Caption = "vacation photo"
	require.NoError(t, s.Messages.Create(ctx, msg))

	got, err := s.Messages.Search(ctx, "vacation", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestUpdateReadStatusAndCountUnread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Messages.Create(ctx, textMessage(fmt.Sprintf("M%d", i), chatAlice, "x", now.Add(time.Duration(i)*time.Second), false)))
	}
	require.NoError(t, s.Messages.Create(ctx, textMessage("MINE", chatAlice, "me", now, true)))

	count, err := s.Messages.CountUnread(ctx, chatAlice)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	require.NoError(t, s.Messages.UpdateReadStatus(ctx, []string{"M0", "M2"}, true))

	count, err = s.Messages.CountUnread(ctx, chatAlice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	m0, err := s.Messages.GetByID(ctx, "M0")
	require.NoError(t, err)
	assert.True(t, m0.IsRead)
}

func TestDeleteReactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sender := domain.MustParseJID("15550000000@s.whatsapp.net")

	r1 := domain.NewReactionMessage("R1", chatAlice, sender, "M1", "👍", time.Now().UTC(), true)
	require.NoError(t, s.Messages.Create(ctx, r1))

	require.NoError(t, s.Messages.DeleteReactions(ctx, chatAlice, "M1", sender))

	got, err := s.Messages.GetByID(ctx, "R1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChatUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat := domain.NewPrivateChat(chatAlice, "Alice")
	require.NoError(t, s.Chats.Upsert(ctx, chat))

	chat.Name = "Alice J"
	chat.UnreadCount = 3
	require.NoError(t, s.Chats.Upsert(ctx, chat))

	got, err := s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice J", got.Name)
	assert.Equal(t, 3, got.UnreadCount)

	missing, err := s.Chats.GetByJID(ctx, chatBob)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGroupParticipantsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	own := domain.MustParseJID("15550000000@s.whatsapp.net")

	chat := domain.NewGroupChat(groupJID, "Team", []domain.JID{own, chatAlice})
	require.NoError(t, s.Chats.Upsert(ctx, chat))

	got, err := s.Chats.GetByJID(ctx, groupJID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HasParticipant(own))
	assert.True(t, got.HasParticipant(chatAlice))
	assert.False(t, got.HasParticipant(chatBob))
}

func TestUpdateLastMessageIsMonotone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Chats.Upsert(ctx, domain.NewPrivateChat(chatAlice, "Alice")))
	require.NoError(t, s.Chats.UpdateLastMessage(ctx, chatAlice, "newer", "alice", base.Add(time.Hour)))
	// An older update must not win.
	require.NoError(t, s.Chats.UpdateLastMessage(ctx, chatAlice, "older", "alice", base))

	got, err := s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	assert.Equal(t, "newer", got.LastMessageText)
	assert.True(t, got.LastMessageTime.Equal(base.Add(time.Hour)))
}

func TestSetFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Chats.Upsert(ctx, domain.NewPrivateChat(chatAlice, "Alice")))
	require.NoError(t, s.Chats.SetFlags(ctx, chatAlice, true, false, true))

	got, err := s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsMuted)
	assert.False(t, got.IsArchived)
	assert.True(t, got.IsPinned)

	require.NoError(t, s.Chats.SetFlags(ctx, chatAlice, false, false, false))
	got, err = s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	assert.False(t, got.IsMuted)
	assert.False(t, got.IsPinned)
}

func TestIncrementUnreadCountIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Chats.Upsert(ctx, domain.NewPrivateChat(chatAlice, "Alice")))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Chats.IncrementUnreadCount(ctx, chatAlice))
	}

	got, err := s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	assert.Equal(t, 5, got.UnreadCount)

	require.NoError(t, s.Chats.UpdateUnreadCount(ctx, chatAlice, 0))
	got, err = s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	assert.Zero(t, got.UnreadCount)
}

func TestChatDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Chats.Upsert(ctx, domain.NewPrivateChat(chatAlice, "Alice")))
	require.NoError(t, s.Messages.Create(ctx, textMessage("M1", chatAlice, "x", time.Now().UTC(), false)))

	require.NoError(t, s.Chats.Delete(ctx, chatAlice))

	msg, err := s.Messages.GetByID(ctx, "M1")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestTransactionRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx *Store) error {
		if err := tx.Chats.Upsert(ctx, domain.NewPrivateChat(chatAlice, "Alice")); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	got, err := s.Chats.GetByJID(ctx, chatAlice)
	require.NoError(t, err)
	assert.Nil(t, got)
}
