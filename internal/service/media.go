package service

import (
	"context"
	"mime"
	"os"
	"path/filepath"

	"github.com/wirebird/wabridge/internal/domain"
)

// DownloadMedia fetches the media bytes for a stored message, writes them
// under the media directory and records the local path on the row. The
// download works from the in-memory payload cache, so only media received
// during this process lifetime can be fetched.
func (s *Session) DownloadMedia(ctx context.Context, messageID string) (string, error) {
	cli, err := s.connectedClient()
	if err != nil {
		return "", err
	}

	msg, err := s.store.Messages.GetByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", domain.Errorf(domain.KindNotFound, "message %s not found", messageID)
	}
	if msg.MediaURL != "" {
		if _, statErr := os.Stat(msg.MediaURL); statErr == nil {
			return msg.MediaURL, nil
		}
	}

	s.mediaMu.Lock()
	payload, ok := s.mediaCache[messageID]
	s.mediaMu.Unlock()
	if !ok {
		return "", domain.Errorf(domain.KindNotFound, "no downloadable payload cached for message %s", messageID)
	}

	data, err := cli.Download(ctx, payload.msg)
	if err != nil {
		return "", domain.WrapErr(domain.KindUnavailable, "download media", err)
	}

	if err := os.MkdirAll(s.cfg.MediaDir, 0o755); err != nil {
		return "", domain.WrapErr(domain.KindInternal, "create media directory", err)
	}
	path := filepath.Join(s.cfg.MediaDir, messageID+extensionFor(payload.mime, msg.MediaFileName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.WrapErr(domain.KindInternal, "write media file", err)
	}

	if err := s.store.Messages.UpdateMediaURL(ctx, messageID, path); err != nil {
		// The file exists; losing the pointer is recoverable on retry.
		s.log.Warn().Err(err).Str("id", messageID).Msg("media path not recorded")
	}
	return path, nil
}

// extensionFor picks a file extension from the mime type, falling back to
// the original file name's extension, then ".bin".
func extensionFor(mimeType, fileName string) string {
	if mimeType != "" {
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	if ext := filepath.Ext(fileName); ext != "" {
		return ext
	}
	return ".bin"
}
