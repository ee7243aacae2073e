package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"github.com/wirebird/wabridge/internal/domain"
)

// InteractiveCLI is the terminal front end with slash commands and inline
// event notifications.
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

func NewInteractiveCLI(handler *CommandHandler, in io.Reader, out io.Writer) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(in),
		writer:  out,
	}
}

func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	events, unsubscribe := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeMessageReceived,
		domain.EventTypeConnectionStatus,
	})
	defer unsubscribe()
	go cli.handleEvents(events)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cli.print("\n> ")
		line, err := cli.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := cli.processCommand(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				cli.println("Goodbye!")
				return nil
			}
			cli.printf("Error: %s\n", err)
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  WhatsApp Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("")

	if status, err := cli.handler.cmdStatus(); err == nil {
		if s, ok := status.(ConnectionStatus); ok {
			cli.printf("Status: %s\n", s.State)
		}
	}
}

func (cli *InteractiveCLI) processCommand(ctx context.Context, input string) error {
	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	// QR pairing streams refreshed codes instead of returning one value.
	if cmd.Name == "pair-qr" || cmd.Name == "qr" {
		return cli.handleQRPairing(ctx)
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) handleQRPairing(ctx context.Context) error {
	cli.println("Scan this QR code with your WhatsApp app (Settings > Linked Devices > Link a Device)")
	cli.println("")

	updates, err := cli.handler.PairingUpdates(ctx)
	if err != nil {
		return err
	}

	for update := range updates {
		switch {
		case update.Code != "":
			if qr, err := qrcode.New(update.Code, qrcode.Medium); err == nil {
				cli.println(qr.ToSmallString(false))
			} else {
				cli.printf("QR code data: %s\n", update.Code)
			}
			cli.println("Waiting for scan... (the code refreshes periodically)")
		case update.Success:
			cli.println("\nPairing successful! You are now connected.")
			return nil
		case update.Timeout:
			return fmt.Errorf("pairing timed out; run /pair-qr to try again")
		case update.Err != nil:
			return update.Err
		}
	}
	return fmt.Errorf("pairing ended without a result")
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(ConnectionStatus); ok {
			cli.printf("State: %s\n", s.State)
			cli.printf("  Connected: %v\n", s.Connected)
			cli.printf("  Logged In: %v\n", s.LoggedIn)
			if s.OwnJID != "" {
				cli.printf("  Device: %s\n", s.OwnJID)
			}
		}

	case "chats", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			chats, _ := m["chats"].([]ChatInfo)
			cli.printf("Found %d chat(s):\n\n", len(chats))
			for i, chat := range chats {
				unread := ""
				if chat.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d unread]", chat.UnreadCount)
				}
				cli.printf("%d. %s (%s)%s\n", i+1, chat.Name, chat.Type, unread)
				cli.printf("   JID: %s\n", chat.JID)
				if chat.LastMessageText != "" {
					preview := chat.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "messages", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			for _, msg := range messages {
				sender := "Me"
				if !msg.IsFromMe {
					sender = msg.SenderJID
				}
				cli.printf("[%s] %s:\n", msg.Timestamp.Format("2006-01-02 15:04"), sender)
				switch {
				case msg.Text != "":
					cli.printf("  %s\n", msg.Text)
				case msg.Caption != "":
					cli.printf("  [%s] %s\n", msg.Type, msg.Caption)
				default:
					cli.printf("  [%s]\n", msg.Type)
				}
				cli.printf("  ID: %s\n\n", msg.ID)
			}
		}

	case "send":
		if msg, ok := result.(MessageInfo); ok {
			cli.println("Message sent!")
			cli.printf("  ID: %s\n", msg.ID)
			cli.printf("  Time: %s\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				sender := "Me"
				if !msg.IsFromMe {
					sender = msg.SenderJID
				}
				cli.printf("%d. [%s] %s:\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), sender)
				text := msg.Text
				if text == "" {
					text = msg.Caption
				}
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("   %s\n", text)
				cli.printf("   Chat: %s | ID: %s\n\n", msg.ChatJID, msg.ID)
			}
		}

	case "pair-phone", "phone":
		if info, ok := result.(PairingInfo); ok && info.Code != "" {
			cli.println("Pairing code generated!")
			cli.printf("Enter this code in WhatsApp: %s\n", info.Code)
			cli.println("Go to WhatsApp > Settings > Linked Devices > Link a Device > Link with phone number")
		}

	default:
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) handleEvents(events <-chan Event) {
	for event := range events {
		switch event.Type {
		case "message_received":
			if msg, ok := event.Data.(MessageInfo); ok {
				cli.printf("\n[New Message] From %s:\n", msg.SenderJID)
				if msg.Text != "" {
					cli.printf("  %s\n", msg.Text)
				} else {
					cli.printf("  [%s]\n", msg.Type)
				}
				cli.print("> ")
			}
		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				if connected, _ := data["connected"].(bool); connected {
					cli.println("\n[Connected to WhatsApp]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
