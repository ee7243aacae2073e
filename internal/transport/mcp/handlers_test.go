package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/service"
)

type fakeSession struct {
	status     service.Status
	connectErr error
	logoutErr  error
}

func (f *fakeSession) Status() service.Status        { return f.status }
func (f *fakeSession) Connect(context.Context) error { return f.connectErr }
func (f *fakeSession) Disconnect()                   {}
func (f *fakeSession) Logout(context.Context) error  { return f.logoutErr }

type fakeMessages struct {
	chats      []*domain.Chat
	messages   []*domain.Message
	sendErr    error
	gotLimit   int
	gotReadIDs []string
	gotEmoji   string
}

func (f *fakeMessages) GetChats(_ context.Context, limit, _ int) ([]*domain.Chat, error) {
	f.gotLimit = limit
	return f.chats, nil
}

func (f *fakeMessages) GetMessages(_ context.Context, _ domain.JID, limit, _ int) ([]*domain.Message, error) {
	f.gotLimit = limit
	return f.messages, nil
}

func (f *fakeMessages) SearchMessages(_ context.Context, _ string, limit int) ([]*domain.Message, error) {
	f.gotLimit = limit
	return f.messages, nil
}

func (f *fakeMessages) SendTextMessage(_ context.Context, chatJID domain.JID, text string) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return domain.NewTextMessage("SRV1", chatJID, chatJID, text, time.Now().UTC(), true), nil
}

func (f *fakeMessages) SendReaction(_ context.Context, _ domain.JID, _, emoji string) error {
	f.gotEmoji = emoji
	return nil
}

func (f *fakeMessages) MarkAsRead(_ context.Context, _ domain.JID, ids []string) error {
	f.gotReadIDs = ids
	return nil
}

func newTestServer(sess SessionAPI, msgs MessageAPI) *Server {
	return NewServer("127.0.0.1:0", sess, msgs)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "content is not text")
	return text.Text
}

func TestListChatsRendersSummary(t *testing.T) {
	alice := domain.NewPrivateChat(domain.MustParseJID("15551230001@s.whatsapp.net"), "Alice")
	alice.UnreadCount = 2
	alice.LastMessageText = "see you tomorrow"
	alice.LastMessageTime = time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)

	msgs := &fakeMessages{chats: []*domain.Chat{alice}}
	s := newTestServer(&fakeSession{}, msgs)

	res, err := s.handleListChats(context.Background(), callRequest(map[string]any{"limit": 5}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Alice")
	assert.Contains(t, text, "Unread: 2")
	assert.Contains(t, text, "see you tomorrow")
	assert.Equal(t, 5, msgs.gotLimit)
}

func TestListChatsClampsLimit(t *testing.T) {
	msgs := &fakeMessages{}
	s := newTestServer(&fakeSession{}, msgs)

	_, err := s.handleListChats(context.Background(), callRequest(map[string]any{"limit": 5000}))
	require.NoError(t, err)
	assert.Equal(t, 100, msgs.gotLimit)

	_, err = s.handleListChats(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, 20, msgs.gotLimit)
}

func TestGetMessagesRequiresChatID(t *testing.T) {
	s := newTestServer(&fakeSession{}, &fakeMessages{})

	res, err := s.handleGetMessages(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetMessages(context.Background(), callRequest(map[string]any{"chat_id": "not a jid"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGetMessagesRendersBodies(t *testing.T) {
	chat := domain.MustParseJID("15551230001@s.whatsapp.net")
	img := domain.NewTextMessage("M2", chat, chat, "", time.Now().UTC(), false)
	img.Type = domain.MessageTypeImage
	img.Caption = "holiday"
	msgs := &fakeMessages{messages: []*domain.Message{
		domain.NewTextMessage("M1", chat, chat, "hello", time.Now().UTC(), false),
		img,
	}}
	s := newTestServer(&fakeSession{}, msgs)

	res, err := s.handleGetMessages(context.Background(), callRequest(map[string]any{"chat_id": chat.String()}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "hello")
	assert.Contains(t, text, "[Image] holiday")
	assert.Contains(t, text, "ID: M1")
}

func TestSendMessageTool(t *testing.T) {
	s := newTestServer(&fakeSession{}, &fakeMessages{})

	res, err := s.handleSendMessage(context.Background(), callRequest(map[string]any{
		"chat_id": "15551230001@s.whatsapp.net",
		"text":    "hi there",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "SRV1")
}

func TestSendMessageToolReportsServiceError(t *testing.T) {
	msgs := &fakeMessages{sendErr: domain.Errorf(domain.KindFailedPrecondition, "not connected to WhatsApp")}
	s := newTestServer(&fakeSession{}, msgs)

	res, err := s.handleSendMessage(context.Background(), callRequest(map[string]any{
		"chat_id": "15551230001@s.whatsapp.net",
		"text":    "hi",
	}))
	require.NoError(t, err, "transport errors surface as tool errors, not go errors")
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not connected")
}

func TestMarkReadSplitsIDs(t *testing.T) {
	msgs := &fakeMessages{}
	s := newTestServer(&fakeSession{}, msgs)

	res, err := s.handleMarkRead(context.Background(), callRequest(map[string]any{
		"chat_id":     "15551230001@s.whatsapp.net",
		"message_ids": "M1, M2 ,M3",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"M1", "M2", "M3"}, msgs.gotReadIDs)
}

func TestSendReactionEmptyEmojiRemoves(t *testing.T) {
	msgs := &fakeMessages{}
	s := newTestServer(&fakeSession{}, msgs)

	res, err := s.handleSendReaction(context.Background(), callRequest(map[string]any{
		"chat_id":    "15551230001@s.whatsapp.net",
		"message_id": "M1",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "removed")
}

func TestConnectionStatusTool(t *testing.T) {
	sess := &fakeSession{status: service.Status{
		State:     service.StateConnected,
		Connected: true,
		LoggedIn:  true,
		OwnJID:    domain.MustParseJID("15550000000@s.whatsapp.net"),
	}}
	s := newTestServer(sess, &fakeMessages{})

	res, err := s.handleConnectionStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "Connected")
	assert.Contains(t, text, "15550000000@s.whatsapp.net")
}

func TestConnectToolRequiresPairing(t *testing.T) {
	s := newTestServer(&fakeSession{status: service.Status{State: service.StateNotRegistered}}, &fakeMessages{})

	res, err := s.handleConnect(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Not paired")
}

func TestServerStartAndShutdown(t *testing.T) {
	s := newTestServer(&fakeSession{}, &fakeMessages{})
	require.NoError(t, s.Start())

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready channel not closed after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
