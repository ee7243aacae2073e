package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wirebird/wabridge/internal/bus"
	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/service"
)

// SessionAPI is the slice of the session the CLI needs.
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

// MessageAPI is the slice of the message facade the CLI needs.
type MessageAPI interface {
	GetChats(ctx context.Context, limit, offset int) ([]*domain.Chat, error)
	GetMessages(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error)
	GetMessagesSince(ctx context.Context, chatJID domain.JID, since time.Time, limit int) ([]*domain.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	SendTextMessage(ctx context.Context, chatJID domain.JID, text string) (*domain.Message, error)
	SendReaction(ctx context.Context, chatJID domain.JID, targetMessageID, emoji string) error
	MarkAsRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error
}

// CommandHandler executes parsed commands against the services. Both the
// interactive and headless front ends sit on top of it.
type CommandHandler struct {
	session  SessionAPI
	messages MessageAPI
}

func NewCommandHandler(session SessionAPI, messages MessageAPI) *CommandHandler {
	return &CommandHandler{session: session, messages: messages}
}

// Command is one parsed slash command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a slash command line, e.g.
// "/send 123@s.whatsapp.net hello".
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}
	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	return &Command{Name: strings.TrimPrefix(parts[0], "/"), Args: parts[1:]}, nil
}

// ErrQuit signals the front end to exit; it is not a failure.
var ErrQuit = fmt.Errorf("quit")

// Execute runs a command and returns its JSON-renderable result.
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "connect", "c":
		return h.cmdConnect(ctx)
	case "disconnect", "d":
		return h.cmdDisconnect()
	case "logout":
		return h.cmdLogout(ctx)
	case "pair-qr", "qr":
		return h.cmdPairQR(ctx)
	case "pair-phone", "phone":
		return h.cmdPairPhone(ctx, cmd.Args)
	case "chats", "ls":
		return h.cmdChats(ctx, cmd.Args)
	case "messages", "msg":
		return h.cmdMessages(ctx, cmd.Args)
	case "send":
		return h.cmdSend(ctx, cmd.Args)
	case "react":
		return h.cmdReact(ctx, cmd.Args)
	case "read":
		return h.cmdRead(ctx, cmd.Args)
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "download", "dl":
		return h.cmdDownload(ctx, cmd.Args)
	case "quit", "exit", "q":
		return nil, ErrQuit
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Connection:
  /status, /s              Show connection status
  /connect, /c             Connect to WhatsApp
  /disconnect, /d          Disconnect from WhatsApp
  /logout                  Logout and remove device pairing

Pairing:
  /pair-qr, /qr            Pair by scanning a QR code
  /pair-phone, /phone <number>  Pair with a phone number (e.g. /phone +1234567890)

Messages:
  /chats, /ls [limit]      List chats (default 20)
  /messages, /msg <jid> [limit]  Show messages from a chat
  /send <jid> <text>       Send a text message
  /react <jid> <msg_id> <emoji>  React to a message ('-' removes)
  /read <jid> <msg_id...>  Mark messages as read
  /search <query> [limit]  Search messages
  /download, /dl <msg_id>  Download media from a message

Other:
  /help, /h                Show this help
  /quit, /exit, /q         Exit`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	st := h.session.Status()
	out := ConnectionStatus{
		State:     string(st.State),
		Connected: st.Connected,
		LoggedIn:  st.LoggedIn,
	}
	if !st.OwnJID.IsEmpty() {
		out.OwnJID = st.OwnJID.String()
	}
	return out, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context) (interface{}, error) {
	if err := h.session.Connect(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Connected to WhatsApp"}, nil
}

func (h *CommandHandler) cmdDisconnect() (interface{}, error) {
	h.session.Disconnect()
	return map[string]string{"message": "Disconnected from WhatsApp"}, nil
}

func (h *CommandHandler) cmdLogout(ctx context.Context) (interface{}, error) {
	if err := h.session.Logout(ctx); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Logged out. Device pairing removed."}, nil
}

// cmdPairQR drains the pairing stream and returns the first code; the
// interactive front end uses PairingUpdates directly to render refreshes.
func (h *CommandHandler) cmdPairQR(ctx context.Context) (interface{}, error) {
	updates, err := h.session.PairQR(ctx)
	if err != nil {
		return nil, err
	}
	for update := range updates {
		switch {
		case update.Code != "":
			return PairingInfo{QRCode: update.Code}, nil
		case update.Success:
			return PairingInfo{Success: true}, nil
		case update.Timeout:
			return nil, fmt.Errorf("pairing timed out")
		case update.Err != nil:
			return nil, update.Err
		}
	}
	return nil, fmt.Errorf("pairing ended without a result")
}

// PairingUpdates exposes the raw pairing stream for front ends that render
// every refreshed code.
func (h *CommandHandler) PairingUpdates(ctx context.Context) (<-chan service.PairingUpdate, error) {
	return h.session.PairQR(ctx)
}

func (h *CommandHandler) cmdPairPhone(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /pair-phone <phone_number>")
	}
	code, err := h.session.PairWithCode(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return PairingInfo{Code: code}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context, args []string) (interface{}, error) {
	limit := optionalLimit(args, 0, 20)
	chats, err := h.messages.GetChats(ctx, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]ChatInfo, len(chats))
	for i, chat := range chats {
		out[i] = chatInfo(chat)
	}
	return map[string]interface{}{"chats": out, "count": len(out)}, nil
}

func (h *CommandHandler) cmdMessages(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /messages <jid> [limit]")
	}
	jid, err := domain.ParseJID(args[0])
	if err != nil {
		return nil, err
	}
	limit := optionalLimit(args, 1, 50)

	messages, err := h.messages.GetMessages(ctx, jid, limit, 0)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"messages": messageInfos(messages), "count": len(messages)}, nil
}

func (h *CommandHandler) cmdSend(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /send <jid> <text>")
	}
	jid, err := domain.ParseJID(args[0])
	if err != nil {
		return nil, err
	}

	msg, err := h.messages.SendTextMessage(ctx, jid, strings.Join(args[1:], " "))
	if err != nil {
		return nil, err
	}
	return messageInfo(msg), nil
}

func (h *CommandHandler) cmdReact(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("usage: /react <jid> <message_id> <emoji>")
	}
	jid, err := domain.ParseJID(args[0])
	if err != nil {
		return nil, err
	}
	messageID := args[1]
	emoji := args[2]
	// "-" clears the reaction; an empty arg would not survive Fields.
	if emoji == "-" {
		emoji = ""
	}

	if err := h.messages.SendReaction(ctx, jid, messageID, emoji); err != nil {
		return nil, err
	}
	return map[string]string{"message": "Reaction sent", "message_id": messageID, "emoji": emoji}, nil
}

func (h *CommandHandler) cmdRead(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /read <jid> <message_id> [message_id...]")
	}
	jid, err := domain.ParseJID(args[0])
	if err != nil {
		return nil, err
	}
	messageIDs := args[1:]

	if err := h.messages.MarkAsRead(ctx, jid, messageIDs); err != nil {
		return nil, err
	}
	return map[string]interface{}{"message": "Messages marked as read", "message_ids": messageIDs}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := strings.Join(args, " ")
	limit := 20
	// A trailing number is a limit, not part of the query.
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		}
	}

	messages, err := h.messages.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"query": query, "messages": messageInfos(messages), "count": len(messages)}, nil
}

func (h *CommandHandler) cmdDownload(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /download <message_id>")
	}
	path, err := h.session.DownloadMedia(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return map[string]string{"message": "Media downloaded", "path": path}, nil
}

// SubscribeEvents adapts the bus to the CLI event shape. An empty filter
// subscribes to the conversational defaults.
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) (<-chan Event, func()) {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageSent,
			domain.EventTypeConnectionStatus,
		}
	}

	domainChan := h.session.Bus().Subscribe(eventTypes)
	out := make(chan Event, bus.DefaultCapacity)

	go func() {
		defer close(out)
		for evt := range domainChan {
			rendered, ok := renderEvent(evt)
			if !ok {
				continue
			}
			select {
			case out <- rendered:
			default:
				// Same drop-on-full contract as the bus itself.
			}
		}
	}()

	cancel := func() { h.session.Bus().Unsubscribe(domainChan) }
	return out, cancel
}

func renderEvent(evt domain.Event) (Event, bool) {
	out := Event{Timestamp: evt.Timestamp()}
	switch e := evt.(type) {
	case domain.MessageReceivedEvent:
		out.Type = "message_received"
		out.Data = messageInfo(e.Message)
	case domain.MessageSentEvent:
		out.Type = "message_sent"
		out.Data = messageInfo(e.Message)
	case domain.MessageReadEvent:
		out.Type = "message_read"
		out.Data = map[string]interface{}{"chat_jid": e.ChatJID.String(), "message_ids": e.MessageIDs}
	case domain.ConnectionStatusEvent:
		out.Type = "connection_status"
		out.Data = map[string]interface{}{"connected": e.Connected, "reason": e.Reason}
	case domain.PairingQREvent:
		out.Type = "pairing_qr"
		out.Data = map[string]string{"code": e.Code}
	case domain.PairingCodeEvent:
		out.Type = "pairing_code"
		out.Data = map[string]string{"code": e.Code}
	default:
		return Event{}, false
	}
	return out, true
}

func optionalLimit(args []string, idx, def int) int {
	if len(args) > idx {
		if l, err := strconv.Atoi(args[idx]); err == nil && l > 0 {
			return l
		}
	}
	return def
}
