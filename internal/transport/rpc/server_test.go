package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wirebird/wabridge/internal/bus"
	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/service"
)

type fakeSession struct {
	bus        *bus.Bus
	status     service.Status
	connectErr error
	pairCode   string
	panicOn    string
}

func (f *fakeSession) Status() service.Status { return f.status }

func (f *fakeSession) Connect(context.Context) error {
	if f.panicOn == "connect" {
		panic("boom")
	}
	return f.connectErr
}

func (f *fakeSession) Disconnect() {}

func (f *fakeSession) Logout(context.Context) error { return nil }

func (f *fakeSession) PairQR(context.Context) (<-chan service.PairingUpdate, error) {
	ch := make(chan service.PairingUpdate, 2)
	ch <- service.PairingUpdate{Code: "QR-ONE"}
	ch <- service.PairingUpdate{Success: true}
	close(ch)
	return ch, nil
}

func (f *fakeSession) PairWithCode(_ context.Context, phone string) (string, error) {
	if phone == "" {
		return "", domain.Errorf(domain.KindInvalidArgument, "invalid phone number")
	}
	return f.pairCode, nil
}

func (f *fakeSession) DownloadMedia(_ context.Context, id string) (string, error) {
	return "", domain.Errorf(domain.KindNotFound, "no downloadable payload cached for message %s", id)
}

func (f *fakeSession) Bus() *bus.Bus { return f.bus }

type fakeMessages struct {
	chats    []*domain.Chat
	messages []*domain.Message
	sendErr  error
}

func (f *fakeMessages) GetChats(context.Context, int, int) ([]*domain.Chat, error) {
	return f.chats, nil
}

func (f *fakeMessages) GetMessages(context.Context, domain.JID, int, int) ([]*domain.Message, error) {
	return f.messages, nil
}

func (f *fakeMessages) GetMessagesSince(context.Context, domain.JID, time.Time, int) ([]*domain.Message, error) {
	return f.messages, nil
}

func (f *fakeMessages) SearchMessages(context.Context, string, int) ([]*domain.Message, error) {
	return f.messages, nil
}

func (f *fakeMessages) SendTextMessage(_ context.Context, chatJID domain.JID, text string) (*domain.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return domain.NewTextMessage("SRV1", chatJID, chatJID, text, time.Now().UTC(), true), nil
}

func (f *fakeMessages) SendReaction(context.Context, domain.JID, string, string) error {
	return nil
}

func (f *fakeMessages) MarkAsRead(context.Context, domain.JID, []string) error {
	return nil
}

func newTestConn(t *testing.T, sess SessionAPI, msgs MessageAPI) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(recoveryUnaryInterceptor(testLogger()), loggingUnaryInterceptor(testLogger())),
		grpc.ChainStreamInterceptor(recoveryStreamInterceptor(testLogger()), loggingStreamInterceptor(testLogger())),
	)
	RegisterBridgeServer(srv, NewHandler(sess, msgs))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestStatusRoundTrip(t *testing.T) {
	sess := &fakeSession{
		bus: bus.New(),
		status: service.Status{
			State:     service.StateConnected,
			Connected: true,
			LoggedIn:  true,
			OwnJID:    domain.MustParseJID("15550000000@s.whatsapp.net"),
		},
	}
	conn := newTestConn(t, sess, &fakeMessages{})

	var resp StatusResponse
	err := conn.Invoke(context.Background(), "/wabridge.Bridge/Status", &Empty{}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "connected", resp.State)
	assert.True(t, resp.Connected)
	assert.Equal(t, "15550000000@s.whatsapp.net", resp.OwnJID)
}

func TestListChats(t *testing.T) {
	msgs := &fakeMessages{chats: []*domain.Chat{
		domain.NewPrivateChat(domain.MustParseJID("15551230001@s.whatsapp.net"), "Alice"),
	}}
	conn := newTestConn(t, &fakeSession{bus: bus.New()}, msgs)

	var resp ListChatsResponse
	err := conn.Invoke(context.Background(), "/wabridge.Bridge/ListChats", &ListChatsRequest{Limit: 10}, &resp)
	require.NoError(t, err)
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "Alice", resp.Chats[0].Name)
}

func TestSendMessageRejectsBadJID(t *testing.T) {
	conn := newTestConn(t, &fakeSession{bus: bus.New()}, &fakeMessages{})

	var resp SendMessageResponse
	err := conn.Invoke(context.Background(), "/wabridge.Bridge/SendMessage",
		&SendMessageRequest{ChatJID: "not a jid", Text: "hi"}, &resp)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want codes.Code
	}{
		{domain.KindInvalidArgument, codes.InvalidArgument},
		{domain.KindNotFound, codes.NotFound},
		{domain.KindFailedPrecondition, codes.FailedPrecondition},
		{domain.KindUnavailable, codes.Unavailable},
		{domain.KindInternal, codes.Internal},
	}
	for _, tc := range tests {
		msgs := &fakeMessages{sendErr: domain.Errorf(tc.kind, "nope")}
		conn := newTestConn(t, &fakeSession{bus: bus.New()}, msgs)

		var resp SendMessageResponse
		err := conn.Invoke(context.Background(), "/wabridge.Bridge/SendMessage",
			&SendMessageRequest{ChatJID: "15551230001@s.whatsapp.net", Text: "hi"}, &resp)
		assert.Equal(t, tc.want, status.Code(err), "kind %v", tc.kind)
	}
}

func TestPanicBecomesInternal(t *testing.T) {
	conn := newTestConn(t, &fakeSession{bus: bus.New(), panicOn: "connect"}, &fakeMessages{})

	var resp Empty
	err := conn.Invoke(context.Background(), "/wabridge.Bridge/Connect", &Empty{}, &resp)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSubscribeEventsStreams(t *testing.T) {
	sess := &fakeSession{bus: bus.New()}
	conn := newTestConn(t, sess, &fakeMessages{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	desc := &grpc.StreamDesc{StreamName: "SubscribeEvents", ServerStreams: true}
	stream, err := conn.NewStream(ctx, desc, "/wabridge.Bridge/SubscribeEvents")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&SubscribeEventsRequest{EventTypes: []string{"message.received"}}))
	require.NoError(t, stream.CloseSend())

	// The subscription is installed server-side; wait for it before
	// publishing.
	require.Eventually(t, func() bool {
		return sess.bus.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := domain.NewTextMessage("M1", domain.MustParseJID("15551230001@s.whatsapp.net"),
		domain.MustParseJID("15551230001@s.whatsapp.net"), "hello", time.Now().UTC(), false)
	sess.bus.Publish(domain.MessageReceivedEvent{Message: msg, EventTime: time.Now().UTC()})
	// A filtered-out event must not arrive.
	sess.bus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now().UTC()})

	var env EventEnvelope
	require.NoError(t, stream.RecvMsg(&env))
	assert.Equal(t, "message.received", env.Type)
	require.NotNil(t, env.Message)
	assert.Equal(t, "M1", env.Message.ID)
}

func TestPairQRStreamsUpdates(t *testing.T) {
	conn := newTestConn(t, &fakeSession{bus: bus.New()}, &fakeMessages{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	desc := &grpc.StreamDesc{StreamName: "PairQR", ServerStreams: true}
	stream, err := conn.NewStream(ctx, desc, "/wabridge.Bridge/PairQR")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&PairQRRequest{}))
	require.NoError(t, stream.CloseSend())

	var first PairingUpdate
	require.NoError(t, stream.RecvMsg(&first))
	assert.Equal(t, "QR-ONE", first.Code)

	var second PairingUpdate
	require.NoError(t, stream.RecvMsg(&second))
	assert.True(t, second.Success)
}

func TestServerStartAndShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &fakeSession{bus: bus.New()}, &fakeMessages{})
	require.NoError(t, srv.Start())

	select {
	case <-srv.Ready():
	default:
		t.Fatal("ready channel not closed after Start")
	}
	require.NotNil(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
