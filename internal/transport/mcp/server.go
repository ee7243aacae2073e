package mcp

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/logger"
	"github.com/wirebird/wabridge/internal/service"
)

// SessionAPI is the slice of the session the MCP tools need.
type SessionAPI interface {
	Status() service.Status
	Connect(ctx context.Context) error
	Disconnect()
	Logout(ctx context.Context) error
}

// MessageAPI is the slice of the message facade the MCP tools need.
type MessageAPI interface {
	GetChats(ctx context.Context, limit, offset int) ([]*domain.Chat, error)
	GetMessages(ctx context.Context, chatJID domain.JID, limit, offset int) ([]*domain.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	SendTextMessage(ctx context.Context, chatJID domain.JID, text string) (*domain.Message, error)
	SendReaction(ctx context.Context, chatJID domain.JID, targetMessageID, emoji string) error
	MarkAsRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error
}

// Server exposes the bridge as MCP tools over SSE.
type Server struct {
	addr       string
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	session    SessionAPI
	messages   MessageAPI
	ready      chan struct{}
	log        zerolog.Logger
}

func NewServer(addr string, session SessionAPI, messages MessageAPI) *Server {
	s := &Server{
		addr:     addr,
		session:  session,
		messages: messages,
		ready:    make(chan struct{}),
		log:      logger.Module("mcp"),
	}

	s.mcpServer = server.NewMCPServer(
		"wabridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_list_chats",
			mcp.WithDescription("List WhatsApp chats sorted by most recent activity"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of chats to return (default 20, max 100)"),
			),
		),
		s.handleListChats,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_get_messages",
			mcp.WithDescription("Get messages from a specific WhatsApp chat, newest first"),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("JID of the chat (e.g. '1234567890@s.whatsapp.net' for users, 'groupid@g.us' for groups)"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return (default 50, max 200)"),
			),
		),
		s.handleGetMessages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_send_message",
			mcp.WithDescription("Send a text message to a WhatsApp chat"),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("JID of the chat to send to"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
		),
		s.handleSendMessage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_send_reaction",
			mcp.WithDescription("React to a message with an emoji. An empty emoji removes the reaction."),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("JID of the chat containing the message"),
			),
			mcp.WithString("message_id",
				mcp.Required(),
				mcp.Description("ID of the message to react to"),
			),
			mcp.WithString("emoji",
				mcp.Description("Reaction emoji (e.g. '👍'); empty removes your reaction"),
			),
		),
		s.handleSendReaction,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_mark_read",
			mcp.WithDescription("Mark messages as read in a chat"),
			mcp.WithString("chat_id",
				mcp.Required(),
				mcp.Description("JID of the chat"),
			),
			mcp.WithString("message_ids",
				mcp.Required(),
				mcp.Description("Comma-separated message IDs to mark as read"),
			),
		),
		s.handleMarkRead,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_search_messages",
			mcp.WithDescription("Search messages across all chats by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text; matched literally, not as a pattern"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_connection_status",
			mcp.WithDescription("Get the current WhatsApp connection status"),
		),
		s.handleConnectionStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_connect",
			mcp.WithDescription("Connect to WhatsApp (requires prior pairing)"),
		),
		s.handleConnect,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_disconnect",
			mcp.WithDescription("Disconnect from WhatsApp without unpairing"),
		),
		s.handleDisconnect,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("whatsapp_logout",
			mcp.WithDescription("Logout and remove the device pairing; pairing is required again afterwards"),
		),
		s.handleLogout,
	)
}

// Start binds the listener and serves in the background. Ready is closed
// once the port is bound.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	close(s.ready)
	s.log.Info().Str("addr", lis.Addr().String()).Msg("mcp server listening")

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("mcp server stopped")
		}
	}()
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
