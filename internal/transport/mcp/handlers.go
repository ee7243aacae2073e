package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wirebird/wabridge/internal/domain"
)

// clamp applies the tool's default and ceiling to a client-supplied limit.
func clamp(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (s *Server) handleListChats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clamp(request.GetInt("limit", 20), 20, 100)

	chats, err := s.messages.GetChats(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get chats: %v", err)), nil
	}
	if len(chats) == 0 {
		return mcp.NewToolResultText("No chats found. Make sure WhatsApp is connected and has synced."), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Found %d chat(s):\n\n", len(chats))
	for i, chat := range chats {
		kind := "Private"
		if chat.Type == domain.ChatTypeGroup {
			kind = "Group"
		}
		fmt.Fprintf(&out, "%d. %s (%s)\n   ID: %s\n", i+1, chat.Name, kind, chat.JID)
		if chat.UnreadCount > 0 {
			fmt.Fprintf(&out, "   Unread: %d message(s)\n", chat.UnreadCount)
		}
		if chat.LastMessageText != "" {
			fmt.Fprintf(&out, "   Last: %s\n", truncate(chat.LastMessageText, 60))
			if !chat.LastMessageTime.IsZero() {
				fmt.Fprintf(&out, "   Time: %s\n", chat.LastMessageTime.Format("2006-01-02 15:04"))
			}
		}
		out.WriteString("\n")
	}
	return mcp.NewToolResultText(out.String()), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}
	chatJID, err := domain.ParseJID(chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid chat_id: %v", err)), nil
	}
	limit := clamp(request.GetInt("limit", 50), 50, 200)

	messages, err := s.messages.GetMessages(ctx, chatJID, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get messages: %v", err)), nil
	}
	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found in chat %s", chatID)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Messages from %s (%d):\n\n", chatID, len(messages))
	for _, msg := range messages {
		sender := "Me"
		if !msg.IsFromMe {
			sender = msg.SenderJID.User
			if sender == "" {
				sender = msg.SenderJID.String()
			}
		}
		read := ""
		if msg.IsRead && !msg.IsFromMe {
			read = " [read]"
		}
		fmt.Fprintf(&out, "[%s] %s%s:\n", msg.Timestamp.Format("2006-01-02 15:04"), sender, read)
		out.WriteString("  " + renderBody(msg) + "\n")
		fmt.Fprintf(&out, "  ID: %s\n\n", msg.ID)
	}
	return mcp.NewToolResultText(out.String()), nil
}

func renderBody(msg *domain.Message) string {
	switch msg.Type {
	case domain.MessageTypeText:
		return msg.Text
	case domain.MessageTypeImage:
		return "[Image] " + captionOr(msg.Caption)
	case domain.MessageTypeVideo:
		return "[Video] " + captionOr(msg.Caption)
	case domain.MessageTypeAudio:
		return "[Audio message]"
	case domain.MessageTypeDocument:
		return fmt.Sprintf("[Document: %s]", msg.MediaFileName)
	case domain.MessageTypeSticker:
		return "[Sticker]"
	case domain.MessageTypeReaction:
		if msg.Reaction != nil {
			return fmt.Sprintf("Reacted with %s to message %s", msg.Reaction.Emoji, msg.Reaction.TargetMessageID)
		}
		return "[Reaction]"
	case domain.MessageTypeLocation:
		if msg.Location != nil {
			return fmt.Sprintf("[Location: %s]", msg.Location.Name)
		}
		return "[Location]"
	case domain.MessageTypeContact:
		if msg.ContactCard != nil {
			return fmt.Sprintf("[Contact: %s]", msg.ContactCard.Name)
		}
		return "[Contact]"
	}
	return fmt.Sprintf("[%s]", msg.Type)
}

func captionOr(caption string) string {
	if caption == "" {
		return "(no caption)"
	}
	return caption
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	chatJID, err := domain.ParseJID(chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid chat_id: %v", err)), nil
	}

	msg, err := s.messages.SendTextMessage(ctx, chatJID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message sent.\nID: %s\nTimestamp: %s\nTo: %s",
		msg.ID, msg.Timestamp.Format("2006-01-02 15:04:05"), chatID)), nil
}

func (s *Server) handleSendReaction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	messageID := request.GetString("message_id", "")
	emoji := request.GetString("emoji", "")

	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}
	if messageID == "" {
		return mcp.NewToolResultError("message_id is required"), nil
	}
	chatJID, err := domain.ParseJID(chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid chat_id: %v", err)), nil
	}

	if err := s.messages.SendReaction(ctx, chatJID, messageID, emoji); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send reaction: %v", err)), nil
	}
	if emoji == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Reaction removed from message %s", messageID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reaction %s sent to message %s", emoji, messageID)), nil
}

func (s *Server) handleMarkRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID := request.GetString("chat_id", "")
	rawIDs := request.GetString("message_ids", "")

	if chatID == "" {
		return mcp.NewToolResultError("chat_id is required"), nil
	}
	if rawIDs == "" {
		return mcp.NewToolResultError("message_ids is required"), nil
	}
	chatJID, err := domain.ParseJID(chatID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid chat_id: %v", err)), nil
	}

	ids := strings.Split(rawIDs, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}

	if err := s.messages.MarkAsRead(ctx, chatJID, ids); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mark as read: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked %d message(s) as read in chat %s", len(ids), chatID)), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := clamp(request.GetInt("limit", 20), 20, 100)

	messages, err := s.messages.SearchMessages(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}
	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Search results for '%s' (%d found):\n\n", query, len(messages))
	for i, msg := range messages {
		sender := "Me"
		if !msg.IsFromMe {
			sender = msg.SenderJID.User
		}
		fmt.Fprintf(&out, "%d. [%s] %s:\n   Chat: %s\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender, msg.ChatJID)
		text := msg.Text
		if text == "" {
			text = msg.Caption
		}
		fmt.Fprintf(&out, "   %s\n   ID: %s\n\n", truncate(text, 100), msg.ID)
	}
	return mcp.NewToolResultText(out.String()), nil
}

func (s *Server) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.session.Status()

	var label string
	switch {
	case st.Connected:
		label = "Connected"
	case st.LoggedIn:
		label = "Logged in but disconnected"
	default:
		label = "Not logged in"
	}

	out := fmt.Sprintf("WhatsApp Status: %s\nState: %s\nConnected: %v\nLogged In: %v", label, st.State, st.Connected, st.LoggedIn)
	if !st.OwnJID.IsEmpty() {
		out += fmt.Sprintf("\nDevice: %s", st.OwnJID)
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.session.Status().LoggedIn {
		return mcp.NewToolResultError("Not paired. Pair the device first via the CLI or RPC pairing flow."), nil
	}
	if err := s.session.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect: %v", err)), nil
	}
	return mcp.NewToolResultText("Connected to WhatsApp"), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.session.Disconnect()
	return mcp.NewToolResultText("Disconnected from WhatsApp"), nil
}

func (s *Server) handleLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.session.Logout(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to logout: %v", err)), nil
	}
	return mcp.NewToolResultText("Logged out. The device pairing has been removed."), nil
}
