package service

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waClient is the slice of the whatsmeow client the session depends on.
// Production uses the real client; tests substitute a fake through the
// session's client factory.
type waClient interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	Logout(ctx context.Context) error
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	PairPhone(ctx context.Context, phone string, showPushNotification bool, clientType whatsmeow.PairClientType, clientDisplayName string) (string, error)
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	BuildReaction(chat, sender types.JID, id types.MessageID, reaction string) *waE2E.Message
	MarkRead(ctx context.Context, ids []types.MessageID, timestamp time.Time, chat, sender types.JID, receiptTypeExtra ...types.ReceiptType) error
	Download(ctx context.Context, msg whatsmeow.DownloadableMessage) ([]byte, error)
	OwnID() *types.JID
}

// clientFactory builds a connected-capable client for the given device with
// the session's event handler already attached.
type clientFactory func(device *store.Device, handler whatsmeow.EventHandler, log waLog.Logger) waClient

type meowClient struct {
	*whatsmeow.Client
}

func (c *meowClient) OwnID() *types.JID {
	return c.Store.ID
}

func newMeowClient(device *store.Device, handler whatsmeow.EventHandler, log waLog.Logger) waClient {
	cli := whatsmeow.NewClient(device, log)
	cli.AddEventHandler(handler)
	return &meowClient{Client: cli}
}
