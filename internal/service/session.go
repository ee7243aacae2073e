package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/wirebird/wabridge/internal/bus"
	"github.com/wirebird/wabridge/internal/domain"
	"github.com/wirebird/wabridge/internal/logger"
	"github.com/wirebird/wabridge/internal/repository"
)

// State is the session lifecycle phase. Transitions are driven by the
// transports (Connect, Disconnect, pairing) and by library events.
type State string

const (
	StateNotRegistered State = "not_registered"
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StatePairing       State = "pairing"
)

// Status is a point-in-time snapshot of the session.
type Status struct {
	State     State
	Connected bool
	LoggedIn  bool
	OwnJID    domain.JID
}

// PairingUpdate is one step of a QR pairing flow. Exactly one terminal
// update (Success, Timeout or Err) ends the stream.
type PairingUpdate struct {
	Code    string
	Success bool
	Timeout bool
	Err     error
}

// Config carries the session's tunables.
type Config struct {
	MediaDir       string
	PairingTimeout time.Duration
}

const defaultPairingTimeout = 90 * time.Second

// e164 accepts an optional leading "+" followed by 7 to 15 digits with no
// leading zero, per the phone pairing input contract.
var e164 = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// Session owns the single WhatsApp connection, ingests inbound traffic into
// the store and publishes bus events. All exported methods are safe for
// concurrent use.
type Session struct {
	cfg   Config
	store *repository.Store
	bus   *bus.Bus
	log   zerolog.Logger
	waLog waLog.Logger

	newClient clientFactory

	mu       sync.Mutex
	device   *store.Device
	client   waClient
	state    State
	inflight *connectAttempt

	mediaMu    sync.Mutex
	mediaCache map[string]downloadable
}

type connectAttempt struct {
	done chan struct{}
	err  error
}

type downloadable struct {
	msg  whatsmeow.DownloadableMessage
	mime string
}

// mediaCacheLimit bounds the downloadable-proto cache; old entries are
// evicted wholesale once it fills.
const mediaCacheLimit = 512

func New(device *store.Device, st *repository.Store, b *bus.Bus, cfg Config) *Session {
	if cfg.PairingTimeout <= 0 {
		cfg.PairingTimeout = defaultPairingTimeout
	}
	s := &Session{
		cfg:        cfg,
		store:      st,
		bus:        b,
		log:        logger.Module("session"),
		waLog:      logger.NewWALogger("client"),
		newClient:  newMeowClient,
		device:     device,
		mediaCache: make(map[string]downloadable),
	}
	if s.registeredLocked() {
		s.state = StateDisconnected
	} else {
		s.state = StateNotRegistered
	}
	return s
}

func (s *Session) Bus() *bus.Bus { return s.bus }

// Status reports the current lifecycle snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:     s.state,
		Connected: s.state == StateConnected,
		LoggedIn:  s.registeredLocked(),
	}
	if st.LoggedIn {
		st.OwnJID = domain.JID{User: s.device.ID.User, Server: s.device.ID.Server, Device: s.device.ID.Device}
	}
	return st
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

func (s *Session) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registeredLocked()
}

// ownJID returns the paired device identity, zero if not registered.
func (s *Session) ownJID() domain.JID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registeredLocked() {
		return domain.JID{}
	}
	return domain.JID{User: s.device.ID.User, Server: s.device.ID.Server, Device: s.device.ID.Device}
}

// registeredLocked requires s.mu.
func (s *Session) registeredLocked() bool {
	return s.device != nil && s.device.ID != nil
}

// ensureClientLocked requires s.mu.
func (s *Session) ensureClientLocked() waClient {
	if s.client == nil {
		s.client = s.newClient(s.device, s.handleEvent, s.waLog)
	}
	return s.client
}

// setStateLocked requires s.mu. Publishing under the lock is fine; the bus
// never blocks.
func (s *Session) setStateLocked(state State, reason string) {
	if s.state == state {
		return
	}
	s.log.Info().Str("from", string(s.state)).Str("to", string(state)).Str("reason", reason).Msg("session state change")
	s.state = state
	s.bus.Publish(domain.ConnectionStatusEvent{
		Connected: state == StateConnected,
		Reason:    reason,
		EventTime: time.Now().UTC(),
	})
}

// Connect establishes the socket for a registered device. Concurrent calls
// coalesce onto one attempt; calling while connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if !s.registeredLocked() {
		s.mu.Unlock()
		return domain.Errorf(domain.KindFailedPrecondition, "device is not paired; pair with QR or phone code first")
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	if s.inflight != nil {
		attempt := s.inflight
		s.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return domain.WrapErr(domain.KindOf(ctx.Err()), "connect wait aborted", ctx.Err())
		}
	}
	attempt := &connectAttempt{done: make(chan struct{})}
	s.inflight = attempt
	s.setStateLocked(StateConnecting, "connect requested")
	cli := s.ensureClientLocked()
	s.mu.Unlock()

	err := cli.Connect()

	s.mu.Lock()
	if err != nil {
		err = domain.WrapErr(domain.KindUnavailable, "connect to WhatsApp", err)
		s.setStateLocked(StateDisconnected, "connect failed")
	}
	attempt.err = err
	s.inflight = nil
	s.mu.Unlock()
	close(attempt.done)
	return err
}

// Disconnect tears the socket down without touching registration.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cli := s.client
	s.mu.Unlock()
	if cli != nil {
		cli.Disconnect()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registeredLocked() {
		s.setStateLocked(StateDisconnected, "disconnect requested")
	} else {
		s.setStateLocked(StateNotRegistered, "disconnect requested")
	}
}

// Logout unpairs the device. Only a successful request drops the session to
// not-registered; when the request fails the library keeps the device store,
// so the registration is still in place and the session merely disconnects.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if !s.registeredLocked() {
		s.mu.Unlock()
		return domain.Errorf(domain.KindFailedPrecondition, "device is not paired")
	}
	cli := s.ensureClientLocked()
	s.mu.Unlock()

	err := cli.Logout(ctx)

	s.mu.Lock()
	if err != nil {
		s.setStateLocked(StateDisconnected, "logout failed")
		s.mu.Unlock()
		return domain.WrapErr(domain.KindUnavailable, "logout", err)
	}
	s.client = nil
	s.setStateLocked(StateNotRegistered, "logged out")
	s.mu.Unlock()
	return nil
}

// PairQR starts QR pairing and returns a stream of pairing updates. The
// stream carries each refreshed QR code and ends with exactly one terminal
// update.
func (s *Session) PairQR(ctx context.Context) (<-chan PairingUpdate, error) {
	s.mu.Lock()
	if s.registeredLocked() {
		s.mu.Unlock()
		return nil, domain.Errorf(domain.KindFailedPrecondition, "device is already paired; logout first")
	}
	if s.state == StatePairing {
		s.mu.Unlock()
		return nil, domain.Errorf(domain.KindFailedPrecondition, "pairing already in progress")
	}
	cli := s.ensureClientLocked()
	s.setStateLocked(StatePairing, "qr pairing started")
	s.mu.Unlock()

	// The QR channel must exist before the socket comes up, otherwise the
	// first code can be missed.
	qrChan, err := cli.GetQRChannel(ctx)
	if err != nil {
		s.failPairing("qr channel unavailable")
		return nil, domain.WrapErr(domain.KindUnavailable, "open QR channel", err)
	}
	if err := cli.Connect(); err != nil {
		s.failPairing("connect for pairing failed")
		return nil, domain.WrapErr(domain.KindUnavailable, "connect for pairing", err)
	}

	out := make(chan PairingUpdate, 8)
	go s.forwardQR(ctx, qrChan, out)
	return out, nil
}

func (s *Session) failPairing(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePairing {
		s.setStateLocked(StateNotRegistered, reason)
	}
}

func (s *Session) forwardQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem, out chan<- PairingUpdate) {
	defer close(out)
	timer := time.NewTimer(s.cfg.PairingTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.failPairing("pairing canceled")
			out <- PairingUpdate{Err: ctx.Err()}
			return
		case <-timer.C:
			s.failPairing("pairing timed out")
			out <- PairingUpdate{Timeout: true}
			return
		case item, ok := <-qrChan:
			if !ok {
				s.failPairing("qr channel closed")
				out <- PairingUpdate{Err: domain.Errorf(domain.KindUnavailable, "QR channel closed before pairing finished")}
				return
			}
			switch item.Event {
			case "code":
				// Each refresh restarts the deadline.
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.cfg.PairingTimeout)
				s.bus.Publish(domain.PairingQREvent{Code: item.Code, EventTime: time.Now().UTC()})
				out <- PairingUpdate{Code: item.Code}
			case "success":
				s.log.Info().Msg("qr pairing succeeded")
				out <- PairingUpdate{Success: true}
				return
			case "timeout":
				s.failPairing("pairing timed out")
				out <- PairingUpdate{Timeout: true}
				return
			default:
				if item.Error != nil {
					s.failPairing("pairing failed")
					out <- PairingUpdate{Err: item.Error}
					return
				}
			}
		}
	}
}

// PairWithCode requests an 8-character link code for the given phone number.
// The number must be E.164-ish: optional "+", 7 to 15 digits, no leading
// zero. Spaces and dashes are tolerated and stripped.
func (s *Session) PairWithCode(ctx context.Context, phone string) (string, error) {
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if !e164.MatchString(phone) {
		return "", domain.Errorf(domain.KindInvalidArgument, "invalid phone number %q", phone)
	}
	phone = strings.TrimPrefix(phone, "+")

	s.mu.Lock()
	if s.registeredLocked() {
		s.mu.Unlock()
		return "", domain.Errorf(domain.KindFailedPrecondition, "device is already paired; logout first")
	}
	cli := s.ensureClientLocked()
	s.setStateLocked(StatePairing, "phone pairing started")
	s.mu.Unlock()

	if !cli.IsConnected() {
		if err := cli.Connect(); err != nil {
			s.failPairing("connect for pairing failed")
			return "", domain.WrapErr(domain.KindUnavailable, "connect for pairing", err)
		}
	}

	code, err := cli.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Mac)")
	if err != nil {
		s.failPairing("pair code request failed")
		return "", domain.WrapErr(domain.KindUnavailable, "request pairing code", err)
	}

	s.bus.Publish(domain.PairingCodeEvent{Code: code, EventTime: time.Now().UTC()})
	return code, nil
}

// SendTextMessage sends text to a chat, records the message and publishes a
// sent event. The stored row uses the id the server assigned.
func (s *Session) SendTextMessage(ctx context.Context, chatJID domain.JID, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Errorf(domain.KindInvalidArgument, "message text is empty")
	}
	cli, err := s.connectedClient()
	if err != nil {
		return nil, err
	}

	to := types.JID{User: chatJID.User, Server: chatJID.Server}
	resp, err := cli.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return nil, domain.WrapErr(domain.KindUnavailable, "send message", err)
	}

	ts := resp.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	msg := domain.NewTextMessage(resp.ID, chatJID, s.ownJID(), text, ts, true)
	if _, err := s.Ingest(ctx, msg); err != nil {
		// The wire send succeeded; a persistence failure must not hide that.
		s.log.Error().Err(err).Str("id", msg.ID).Msg("sent message not persisted")
	}
	return msg, nil
}

// SendReaction sends an emoji reaction to a message. An empty emoji removes
// this sender's reaction. Locally the previous reaction row for the same
// (target, sender) pair is replaced, never accumulated.
func (s *Session) SendReaction(ctx context.Context, chatJID domain.JID, targetMessageID, emoji string) error {
	if targetMessageID == "" {
		return domain.Errorf(domain.KindInvalidArgument, "reaction target message id is empty")
	}
	cli, err := s.connectedClient()
	if err != nil {
		return err
	}

	target, err := s.store.Messages.GetByID(ctx, targetMessageID)
	if err != nil {
		return err
	}
	if target == nil {
		return domain.Errorf(domain.KindNotFound, "message %s not found", targetMessageID)
	}

	own := s.ownJID()
	chat := types.JID{User: chatJID.User, Server: chatJID.Server}
	sender := types.JID{User: target.SenderJID.User, Server: target.SenderJID.Server}
	if target.IsFromMe {
		sender = types.JID{User: own.User, Server: own.Server}
	}

	resp, err := cli.SendMessage(ctx, chat, cli.BuildReaction(chat, sender, targetMessageID, emoji))
	if err != nil {
		return domain.WrapErr(domain.KindUnavailable, "send reaction", err)
	}

	ts := resp.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Messages.DeleteReactions(ctx, chatJID, targetMessageID, own); err != nil {
			return err
		}
		if emoji == "" {
			return nil
		}
		reaction := domain.NewReactionMessage(resp.ID, chatJID, own, targetMessageID, emoji, ts, true)
		_, err := tx.Messages.CreateOrIgnore(ctx, reaction)
		return err
	})
}

// MarkAsRead sends read receipts for the given messages and reconciles the
// chat's unread count from the rows.
func (s *Session) MarkAsRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return domain.Errorf(domain.KindInvalidArgument, "no message ids to mark read")
	}
	cli, err := s.connectedClient()
	if err != nil {
		return err
	}

	// The receipt needs the sender of the messages being acknowledged. All
	// ids are expected to share one sender; the first row decides.
	first, err := s.store.Messages.GetByID(ctx, messageIDs[0])
	if err != nil {
		return err
	}
	if first == nil {
		return domain.Errorf(domain.KindNotFound, "message %s not found", messageIDs[0])
	}

	chat := types.JID{User: chatJID.User, Server: chatJID.Server}
	sender := types.JID{User: first.SenderJID.User, Server: first.SenderJID.Server}
	ids := make([]types.MessageID, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = types.MessageID(id)
	}
	if err := cli.MarkRead(ctx, ids, time.Now(), chat, sender); err != nil {
		return domain.WrapErr(domain.KindUnavailable, "send read receipt", err)
	}

	if err := s.applyRead(ctx, chatJID, messageIDs); err != nil {
		return err
	}
	s.bus.Publish(domain.MessageReadEvent{ChatJID: chatJID, MessageIDs: messageIDs, EventTime: time.Now().UTC()})
	return nil
}

// applyRead flips rows to read and recomputes the chat's unread count from
// the rows, which stay authoritative over the materialized counter.
func (s *Session) applyRead(ctx context.Context, chatJID domain.JID, messageIDs []string) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Messages.UpdateReadStatus(ctx, messageIDs, true); err != nil {
			return err
		}
		count, err := tx.Messages.CountUnread(ctx, chatJID)
		if err != nil {
			return err
		}
		return tx.Chats.UpdateUnreadCount(ctx, chatJID, int(count))
	})
}

// Ingest stores a message exactly once and maintains the chat summary. The
// bool reports whether this call inserted the row; a redelivered duplicate
// returns false with no error, no summary change and no event.
func (s *Session) Ingest(ctx context.Context, msg *domain.Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}
	msg.ClampTimestamp(time.Now().UTC())

	var inserted bool
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		ins, err := tx.Messages.CreateOrIgnore(ctx, msg)
		if err != nil || !ins {
			return err
		}
		inserted = true

		chat, err := tx.Chats.GetByJID(ctx, msg.ChatJID)
		if err != nil {
			return err
		}
		if chat == nil {
			if err := tx.Chats.Upsert(ctx, s.newChatFor(msg)); err != nil {
				return err
			}
		}
		if err := tx.Chats.UpdateLastMessage(ctx, msg.ChatJID, msg.Preview(), msg.SenderJID.User, msg.Timestamp); err != nil {
			return err
		}
		if !msg.IsFromMe {
			return tx.Chats.IncrementUnreadCount(ctx, msg.ChatJID)
		}
		return nil
	})
	if err != nil || !inserted {
		return false, err
	}

	now := time.Now().UTC()
	if msg.IsFromMe {
		s.bus.Publish(domain.MessageSentEvent{Message: msg, EventTime: now})
	} else {
		s.bus.Publish(domain.MessageReceivedEvent{Message: msg, EventTime: now})
	}
	return true, nil
}

// newChatFor lazily creates the chat summary for a message whose chat is not
// yet known.
func (s *Session) newChatFor(msg *domain.Message) *domain.Chat {
	if msg.ChatJID.IsGroup() {
		participants := []domain.JID{msg.SenderJID}
		if own := s.ownJID(); !own.IsEmpty() && own.User != msg.SenderJID.User {
			participants = append(participants, own)
		}
		return domain.NewGroupChat(msg.ChatJID, msg.ChatJID.User, participants)
	}
	return domain.NewPrivateChat(msg.ChatJID, msg.ChatJID.User)
}

// Contacts reads the paired device's contact book straight from the library
// store. Contacts are never mirrored into the bridge database.
func (s *Session) Contacts(ctx context.Context) ([]*domain.Contact, error) {
	s.mu.Lock()
	if !s.registeredLocked() {
		s.mu.Unlock()
		return nil, domain.Errorf(domain.KindFailedPrecondition, "device is not paired")
	}
	device := s.device
	s.mu.Unlock()

	raw, err := device.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, domain.WrapErr(domain.KindInternal, "read contacts", err)
	}
	contacts := make([]*domain.Contact, 0, len(raw))
	for jid, info := range raw {
		contacts = append(contacts, &domain.Contact{
			JID:          domain.JID{User: jid.User, Server: jid.Server},
			Name:         info.FullName,
			PushName:     info.PushName,
			BusinessName: info.BusinessName,
			PhoneNumber:  "+" + jid.User,
		})
	}
	return contacts, nil
}

func (s *Session) connectedClient() (waClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.client == nil {
		return nil, domain.Errorf(domain.KindFailedPrecondition, "not connected to WhatsApp")
	}
	return s.client, nil
}
