package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wirebird/wabridge/internal/bus"
	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/service"
)

// SessionAPI is the slice of the session the transport needs.
type SessionAPI interface {
	Status() service.Status
	Connect(ctx context.Context) error
	Disconnect()
	Logout(ctx context.Context) error
	PairQR(ctx context.Context) (<-chan service.PairingUpdate, error)
	PairWithCode(ctx context.Context, phone string) (string, error)
	DownloadMedia(ctx context.Context, messageID string) (string, error)
	Bus() *bus.Bus
}

// MessageAPI is the slice of the message facade the transport needs.
type MessageAPI interface {
	GetChats(ctx context.Context, limit, offset int) ([]*domain.Chat, error)
	GetMessages(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error)
	GetMessagesSince(ctx context.Context, chatJID domain.JID, since time.Time, limit int) ([]*domain.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	SendTextMessage(ctx context.Context, chatJID domain.JID, text string) (*domain.Message, error)
	SendReaction(ctx context.Context, chatJID domain.JID, targetMessageID, emoji string) error
	MarkAsRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error
}

// Handler implements the Bridge service over the session and message
// facades.
type Handler struct {
	session  SessionAPI
	messages MessageAPI
}

func NewHandler(session SessionAPI, messages MessageAPI) *Handler {
	return &Handler{session: session, messages: messages}
}

// toStatusError maps domain error kinds onto gRPC status codes.
func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindFailedPrecondition:
		code = codes.FailedPrecondition
	case domain.KindUnavailable:
		code = codes.Unavailable
	case domain.KindCanceled:
		code = codes.Canceled
	case domain.KindDeadlineExceeded:
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func parseJID(raw string) (domain.JID, error) {
	jid, err := domain.ParseJID(raw)
	if err != nil {
		return domain.JID{}, toStatusError(err)
	}
	return jid, nil
}

func (h *Handler) Status(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	st := h.session.Status()
	resp := &StatusResponse{
		State:     string(st.State),
		Connected: st.Connected,
		LoggedIn:  st.LoggedIn,
	}
	if !st.OwnJID.IsEmpty() {
		resp.OwnJID = st.OwnJID.String()
	}
	return resp, nil
}

func (h *Handler) Connect(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := h.session.Connect(ctx); err != nil {
		return nil, toStatusError(err)
	}
	return &Empty{}, nil
}

func (h *Handler) Disconnect(ctx context.Context, _ *Empty) (*Empty, error) {
	h.session.Disconnect()
	return &Empty{}, nil
}

func (h *Handler) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := h.session.Logout(ctx); err != nil {
		return nil, toStatusError(err)
	}
	return &Empty{}, nil
}

func (h *Handler) PairQR(_ *PairQRRequest, stream Bridge_PairQRServer) error {
	updates, err := h.session.PairQR(stream.Context())
	if err != nil {
		return toStatusError(err)
	}
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			out := pairingUpdateFromService(update)
			if err := stream.Send(&out); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) PairWithCode(ctx context.Context, req *PairWithCodeRequest) (*PairWithCodeResponse, error) {
	code, err := h.session.PairWithCode(ctx, req.PhoneNumber)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &PairWithCodeResponse{Code: code}, nil
}

func (h *Handler) ListChats(ctx context.Context, req *ListChatsRequest) (*ListChatsResponse, error) {
	chats, err := h.messages.GetChats(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &ListChatsResponse{Chats: chatsFromDomain(chats)}, nil
}

func (h *Handler) GetMessages(ctx context.Context, req *GetMessagesRequest) (*GetMessagesResponse, error) {
	jid, err := parseJID(req.ChatJID)
	if err != nil {
		return nil, err
	}
	msgs, err := h.messages.GetMessages(ctx, jid, req.Limit, req.Offset)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &GetMessagesResponse{Messages: messagesFromDomain(msgs)}, nil
}

func (h *Handler) GetMessagesSince(ctx context.Context, req *GetMessagesSinceRequest) (*GetMessagesResponse, error) {
	jid, err := parseJID(req.ChatJID)
	if err != nil {
		return nil, err
	}
	since := time.UnixMilli(req.SinceUnixMs).UTC()
	msgs, err := h.messages.GetMessagesSince(ctx, jid, since, req.Limit)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &GetMessagesResponse{Messages: messagesFromDomain(msgs)}, nil
}

func (h *Handler) SearchMessages(ctx context.Context, req *SearchMessagesRequest) (*GetMessagesResponse, error) {
	msgs, err := h.messages.SearchMessages(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &GetMessagesResponse{Messages: messagesFromDomain(msgs)}, nil
}

func (h *Handler) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	jid, err := parseJID(req.ChatJID)
	if err != nil {
		return nil, err
	}
	msg, err := h.messages.SendTextMessage(ctx, jid, req.Text)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &SendMessageResponse{Message: messageFromDomain(msg)}, nil
}

func (h *Handler) SendReaction(ctx context.Context, req *SendReactionRequest) (*Empty, error) {
	jid, err := parseJID(req.ChatJID)
	if err != nil {
		return nil, err
	}
	if err := h.messages.SendReaction(ctx, jid, req.MessageID, req.Emoji); err != nil {
		return nil, toStatusError(err)
	}
	return &Empty{}, nil
}

func (h *Handler) MarkRead(ctx context.Context, req *MarkReadRequest) (*Empty, error) {
	jid, err := parseJID(req.ChatJID)
	if err != nil {
		return nil, err
	}
	if err := h.messages.MarkAsRead(ctx, jid, req.MessageIDs); err != nil {
		return nil, toStatusError(err)
	}
	return &Empty{}, nil
}

func (h *Handler) DownloadMedia(ctx context.Context, req *DownloadMediaRequest) (*DownloadMediaResponse, error) {
	path, err := h.session.DownloadMedia(ctx, req.MessageID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return &DownloadMediaResponse{Path: path}, nil
}

func (h *Handler) SubscribeEvents(req *SubscribeEventsRequest, stream Bridge_SubscribeEventsServer) error {
	types := make([]domain.EventType, len(req.EventTypes))
	for i, t := range req.EventTypes {
		types[i] = domain.EventType(t)
	}

	events := h.session.Bus().Subscribe(types)
	defer h.session.Bus().Unsubscribe(events)

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			env := envelopeFromEvent(evt)
			if err := stream.Send(&env); err != nil {
				return err
			}
		}
	}
}
