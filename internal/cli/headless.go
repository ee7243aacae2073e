package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// HeadlessCLI speaks line-delimited JSON on stdin/stdout for host
// applications. The first output line is always the ready response; every
// later line is either a response to a request or an event.
type HeadlessCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
	// mu serializes output lines; responses and events share one stream.
	mu sync.Mutex
}

func NewHeadlessCLI(handler *CommandHandler, in io.Reader, out io.Writer) *HeadlessCLI {
	return &HeadlessCLI{
		handler: handler,
		reader:  bufio.NewReader(in),
		writer:  out,
	}
}

func (cli *HeadlessCLI) Run(ctx context.Context) error {
	cli.sendResponse(Response{
		Success: true,
		Data:    map[string]string{"status": "ready", "mode": "headless"},
	})

	events, unsubscribe := cli.handler.SubscribeEvents(nil)
	defer unsubscribe()
	go cli.streamEvents(events)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := cli.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			cli.sendError("", fmt.Sprintf("read error: %v", err))
			return err
		}

		if quit := cli.processRequest(ctx, line); quit {
			return nil
		}
	}
}

// processRequest handles one input line. The bool reports a quit request.
func (cli *HeadlessCLI) processRequest(ctx context.Context, line string) bool {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		cli.sendError("", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	if req.Command == "" {
		cli.sendError(req.ID, "missing command field")
		return false
	}

	switch req.Command {
	case "pair-qr", "qr":
		cli.handleQRPairingStream(ctx, req.ID)
		return false
	case "subscribe":
		// Events stream from startup; nothing to do but acknowledge.
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "subscribed to events"},
		})
		return false
	case "quit", "exit", "q":
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "goodbye"},
		})
		return true
	}

	cmd := &Command{Name: req.Command, Args: paramsToArgs(req.Command, req.Params)}
	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		cli.sendError(req.ID, err.Error())
		return false
	}

	cli.sendResponse(Response{ID: req.ID, Success: true, Data: result})
	return false
}

// paramsToArgs flattens structured params into the positional args the
// command handler takes.
func paramsToArgs(command string, params map[string]interface{}) []string {
	if params == nil {
		return nil
	}

	str := func(key string) (string, bool) {
		s, ok := params[key].(string)
		return s, ok
	}
	num := func(key string) (string, bool) {
		f, ok := params[key].(float64)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d", int(f)), true
	}

	var args []string
	appendStr := func(key string) {
		if s, ok := str(key); ok {
			args = append(args, s)
		}
	}
	appendNum := func(key string) {
		if s, ok := num(key); ok {
			args = append(args, s)
		}
	}

	switch command {
	case "pair-phone", "phone":
		appendStr("phone")
	case "chats", "ls":
		appendNum("limit")
	case "messages", "msg":
		appendStr("jid")
		appendNum("limit")
	case "send":
		appendStr("jid")
		appendStr("text")
	case "react":
		appendStr("jid")
		appendStr("message_id")
		appendStr("emoji")
	case "read":
		appendStr("jid")
		appendStr("message_id")
		if ids, ok := params["message_ids"].([]interface{}); ok {
			for _, id := range ids {
				if s, ok := id.(string); ok {
					args = append(args, s)
				}
			}
		}
	case "search":
		appendStr("query")
		appendNum("limit")
	case "download", "dl":
		appendStr("message_id")
	}

	return args
}

// handleQRPairingStream emits one response per pairing step, all sharing
// the request id, ending with pairing_success or an error.
func (cli *HeadlessCLI) handleQRPairingStream(ctx context.Context, reqID string) {
	updates, err := cli.handler.PairingUpdates(ctx)
	if err != nil {
		cli.sendError(reqID, err.Error())
		return
	}

	for update := range updates {
		switch {
		case update.Code != "":
			cli.sendResponse(Response{
				ID:      reqID,
				Success: true,
				Data:    map[string]interface{}{"event": "qr_code", "qr_code": update.Code},
			})
		case update.Success:
			cli.sendResponse(Response{
				ID:      reqID,
				Success: true,
				Data:    map[string]interface{}{"event": "pairing_success", "success": true},
			})
			return
		case update.Timeout:
			cli.sendError(reqID, "pairing timed out")
			return
		case update.Err != nil:
			cli.sendError(reqID, update.Err.Error())
			return
		}
	}
	cli.sendError(reqID, "pairing ended without a result")
}

func (cli *HeadlessCLI) streamEvents(events <-chan Event) {
	for event := range events {
		cli.sendEvent(event)
	}
}

func (cli *HeadlessCLI) sendResponse(resp Response) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(resp)
	fmt.Fprintln(cli.writer, string(data))
}

func (cli *HeadlessCLI) sendError(id, message string) {
	cli.sendResponse(Response{ID: id, Success: false, Error: message})
}

func (cli *HeadlessCLI) sendEvent(event Event) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(map[string]interface{}{
		"type":      "event",
		"event":     event.Type,
		"timestamp": event.Timestamp,
		"data":      event.Data,
	})
	fmt.Fprintln(cli.writer, string(data))
}
