package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ecomxpert/storefront/backend/internal/metrics"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

// Send appends a pending message to the session and returns it at once.
// Delivery runs in the background: on success the pending entry is
// swapped for the server record, on failure it is removed. Nothing is
// retried.
func (s *Service) Send(ctx context.Context, viewer Viewer, counterpartID, text string, files []chat.Attachment) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return chat.Message{}, ErrEmptyMessage
	}
	if s.maxAttachments > 0 && len(files) > s.maxAttachments {
		return chat.Message{}, ErrTooManyAttachments
	}

	s.mu.Lock()
	_, e, err := s.sessionLocked(viewer, counterpartID)
	if err != nil {
		s.mu.Unlock()
		return chat.Message{}, err
	}
	if e.session.ChatID == "" {
		s.mu.Unlock()
		return chat.Message{}, ErrSessionLoading
	}

	media := make([]chat.Media, 0, len(files))
	for _, f := range files {
		id := s.previews.Put(f)
		media = append(media, chat.Media{
			ID:        id,
			Type:      f.MediaType(),
			URL:       s.previewURL(id),
			Uploading: true,
		})
	}

	pending := chat.Message{
		ID:        chat.TempIDPrefix + uuid.NewString(),
		ChatID:    e.session.ChatID,
		SenderID:  viewer.ID,
		Text:      text,
		Media:     media,
		Timestamp: s.now().UTC(),
		Sending:   true,
	}

	next := make([]chat.Message, 0, len(e.session.Messages)+1)
	next = append(next, e.session.Messages...)
	e.session.Messages = append(next, pending)
	e.session.Version++
	s.publishSessionLocked(viewer.ID, EventSessionUpdated, e)
	gen := e.gen
	s.mu.Unlock()

	s.inflight.Add(1)
	go s.deliver(context.WithoutCancel(ctx), viewer, counterpartID, gen, pending, files)

	return pending, nil
}

func (s *Service) deliver(ctx context.Context, viewer Viewer, counterpartID string, gen uint64, pending chat.Message, files []chat.Attachment) {
	defer s.inflight.Done()

	ids := make([]string, 0, len(pending.Media))
	for _, m := range pending.Media {
		ids = append(ids, m.ID)
	}
	defer s.previews.Release(ids...)

	logger := log.Ctx(ctx).With().
		Str("viewer", viewer.ID).
		Str("chat_id", pending.ChatID).
		Str("temp_id", pending.ID).
		Logger()

	confirmed, err := s.upstream.SendMessage(marketplace.WithToken(ctx, viewer.Token), pending.ChatID, pending.Text, files)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, e := s.lookupLocked(viewer.ID, counterpartID)
	stale := e == nil || e.gen != gen

	if err != nil {
		metrics.ChatSends.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Msg("chat send failed")
		if stale {
			return
		}
		if next, ok := withoutMessage(e.session.Messages, pending.ID); ok {
			e.session.Messages = next
			e.session.Version++
			s.publishSessionLocked(viewer.ID, EventSessionUpdated, e)
		}
		return
	}

	metrics.ChatSends.WithLabelValues("ok").Inc()
	logger.Debug().Str("message_id", confirmed.ID).Msg("chat send confirmed")
	if stale {
		return
	}
	if next, ok := settle(e.session.Messages, pending.ID, confirmed); ok {
		e.session.Messages = next
		e.session.Version++
		s.publishSessionLocked(viewer.ID, EventSessionUpdated, e)
	}
}
