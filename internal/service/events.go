package service

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wirebird/wabridge/internal/domain"
)

// ingestTimeout bounds the database work done for one library event.
const ingestTimeout = 15 * time.Second

// handleEvent is the single event sink attached to the client. It runs on
// the library's dispatch goroutine, so database work gets its own context.
func (s *Session) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		s.mu.Lock()
		s.setStateLocked(StateConnected, "socket connected")
		s.mu.Unlock()
	case *events.Disconnected:
		s.mu.Lock()
		if s.registeredLocked() {
			s.setStateLocked(StateDisconnected, "socket disconnected")
		}
		s.mu.Unlock()
	case *events.LoggedOut:
		s.mu.Lock()
		s.client = nil
		s.setStateLocked(StateNotRegistered, "logged out by server")
		s.mu.Unlock()
	case *events.PairSuccess:
		s.log.Info().Str("jid", e.ID.String()).Msg("pairing succeeded")
	case *events.Message:
		s.handleMessage(e)
	case *events.Receipt:
		s.handleReceipt(e)
	}
}

func (s *Session) handleMessage(evt *events.Message) {
	msg := s.convertMessage(evt)
	if msg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	inserted, err := s.Ingest(ctx, msg)
	if err != nil {
		s.log.Error().Err(err).Str("id", msg.ID).Msg("ingest failed")
		return
	}
	if !inserted {
		s.log.Debug().Str("id", msg.ID).Msg("duplicate message ignored")
	}
}

func (s *Session) handleReceipt(evt *events.Receipt) {
	if evt.Type != types.ReceiptTypeRead && evt.Type != types.ReceiptTypeReadSelf {
		return
	}
	if len(evt.MessageIDs) == 0 {
		return
	}
	chatJID := domain.JID{User: evt.Chat.User, Server: evt.Chat.Server}
	ids := make([]string, len(evt.MessageIDs))
	for i, id := range evt.MessageIDs {
		ids[i] = string(id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()
	if err := s.applyRead(ctx, chatJID, ids); err != nil {
		s.log.Error().Err(err).Str("chat", chatJID.String()).Msg("apply read receipt failed")
		return
	}
	s.bus.Publish(domain.MessageReadEvent{ChatJID: chatJID, MessageIDs: ids, EventTime: time.Now().UTC()})
}

// convertMessage maps a library message event onto the stored message shape.
// Unsupported payloads (protocol messages, polls, calls) return nil and are
// dropped.
func (s *Session) convertMessage(evt *events.Message) *domain.Message {
	content := evt.Message
	if content == nil {
		return nil
	}

	msg := &domain.Message{
		ID:        string(evt.Info.ID),
		ChatJID:   domain.JID{User: evt.Info.Chat.User, Server: evt.Info.Chat.Server},
		SenderJID: domain.JID{User: evt.Info.Sender.User, Server: evt.Info.Sender.Server},
		Timestamp: evt.Info.Timestamp,
		IsFromMe:  evt.Info.IsFromMe,
		IsRead:    evt.Info.IsFromMe,
	}

	switch {
	case content.GetConversation() != "":
		msg.Type = domain.MessageTypeText
		msg.Text = content.GetConversation()
	case content.GetExtendedTextMessage() != nil:
		ext := content.GetExtendedTextMessage()
		msg.Type = domain.MessageTypeText
		msg.Text = ext.GetText()
		msg.QuotedMessageID = ext.GetContextInfo().GetStanzaID()
	case content.GetImageMessage() != nil:
		img := content.GetImageMessage()
		msg.Type = domain.MessageTypeImage
		msg.Caption = img.GetCaption()
		msg.MediaMimeType = img.GetMimetype()
		msg.MediaFileSize = int64(img.GetFileLength())
		s.cacheMedia(msg.ID, img, img.GetMimetype())
	case content.GetVideoMessage() != nil:
		vid := content.GetVideoMessage()
		msg.Type = domain.MessageTypeVideo
		msg.Caption = vid.GetCaption()
		msg.MediaMimeType = vid.GetMimetype()
		msg.MediaFileSize = int64(vid.GetFileLength())
		s.cacheMedia(msg.ID, vid, vid.GetMimetype())
	case content.GetAudioMessage() != nil:
		aud := content.GetAudioMessage()
		msg.Type = domain.MessageTypeAudio
		msg.MediaMimeType = aud.GetMimetype()
		msg.MediaFileSize = int64(aud.GetFileLength())
		s.cacheMedia(msg.ID, aud, aud.GetMimetype())
	case content.GetDocumentMessage() != nil:
		doc := content.GetDocumentMessage()
		msg.Type = domain.MessageTypeDocument
		msg.Caption = doc.GetCaption()
		msg.MediaMimeType = doc.GetMimetype()
		msg.MediaFileName = doc.GetFileName()
		msg.MediaFileSize = int64(doc.GetFileLength())
		s.cacheMedia(msg.ID, doc, doc.GetMimetype())
	case content.GetStickerMessage() != nil:
		stk := content.GetStickerMessage()
		msg.Type = domain.MessageTypeSticker
		msg.MediaMimeType = stk.GetMimetype()
		msg.MediaFileSize = int64(stk.GetFileLength())
		s.cacheMedia(msg.ID, stk, stk.GetMimetype())
	case content.GetReactionMessage() != nil:
		r := content.GetReactionMessage()
		msg.Type = domain.MessageTypeReaction
		msg.Reaction = &domain.Reaction{
			TargetMessageID: r.GetKey().GetID(),
			Emoji:           r.GetText(),
			SenderJID:       msg.SenderJID,
			Timestamp:       msg.Timestamp,
		}
	case content.GetLocationMessage() != nil:
		loc := content.GetLocationMessage()
		msg.Type = domain.MessageTypeLocation
		msg.Location = &domain.Location{
			Latitude:  loc.GetDegreesLatitude(),
			Longitude: loc.GetDegreesLongitude(),
			Name:      loc.GetName(),
			Address:   loc.GetAddress(),
		}
	case content.GetContactMessage() != nil:
		card := content.GetContactMessage()
		msg.Type = domain.MessageTypeContact
		msg.ContactCard = &domain.ContactCard{
			Name:  card.GetDisplayName(),
			VCard: card.GetVcard(),
		}
	default:
		return nil
	}

	return msg
}

// cacheMedia remembers the downloadable payload so a later DownloadMedia
// call can fetch the bytes. Cache only; the proto is never persisted.
func (s *Session) cacheMedia(id string, msg whatsmeow.DownloadableMessage, mime string) {
	s.mediaMu.Lock()
	defer s.mediaMu.Unlock()
	if len(s.mediaCache) >= mediaCacheLimit {
		s.mediaCache = make(map[string]downloadable)
	}
	s.mediaCache[id] = downloadable{msg: msg, mime: mime}
}
