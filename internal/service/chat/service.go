package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ecomxpert/storefront/backend/internal/metrics"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

var (
	ErrViewerRequired      = errors.New("viewer id is required")
	ErrCounterpartRequired = errors.New("counterpart id is required")
	ErrSessionNotOpen      = errors.New("chat session is not open")
	ErrSessionLoading      = errors.New("chat session is still loading")
	ErrEmptyMessage        = errors.New("message text or media is required")
	ErrTooManyAttachments  = errors.New("too many attachments")
	ErrTokenRequired       = errors.New("viewer token is required")
	ErrViewerMismatch      = errors.New("token does not match viewer")
)

// Upstream is the slice of the marketplace API the chat service needs.
type Upstream interface {
	FindOrCreateChat(ctx context.Context, recipientID string) (chat.Thread, error)
	ListChats(ctx context.Context) ([]chat.Summary, error)
	ListMessages(ctx context.Context, chatID string) ([]chat.Message, error)
	SendMessage(ctx context.Context, chatID, text string, files []chat.Attachment) (chat.Message, error)
}

// Viewer identifies the browser user a workspace belongs to. Token is
// forwarded upstream on every call made on the viewer's behalf, and a
// workspace only answers to the token that created it.
type Viewer struct {
	ID    string
	Token string
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	MaxOpen        int
	MaxAttachments int
	// PreviewURL builds the URL pending media point at.
	PreviewURL func(id string) string
	// IdleTTL closes the sessions of viewers with no requests and no
	// live subscription for that long.
	IdleTTL time.Duration
	Now     func() time.Time
}

type entry struct {
	gen     uint64
	session chat.Session
}

type workspace struct {
	token    string
	sessions map[string]*entry
	order    []string
	inbox    *chat.Inbox
	lastSeen time.Time
}

func (ws *workspace) owns(token string) bool {
	return subtle.ConstantTimeCompare([]byte(ws.token), []byte(token)) == 1
}

// Service owns the open chat sessions of every viewer.
type Service struct {
	upstream Upstream
	broker   *Broker
	previews *PreviewStore

	maxOpen        int
	maxAttachments int
	previewURL     func(string) string
	idleTTL        time.Duration
	now            func() time.Time

	mu         sync.RWMutex
	gen        uint64
	workspaces map[string]*workspace

	inflight sync.WaitGroup
}

// NewService wires a chat service to the marketplace upstream.
func NewService(upstream Upstream, opts Options) *Service {
	if opts.MaxOpen <= 0 {
		opts.MaxOpen = 3
	}
	if opts.PreviewURL == nil {
		opts.PreviewURL = func(id string) string { return "/api/chat/previews/" + id }
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		upstream:       upstream,
		broker:         NewBroker(64),
		previews:       NewPreviewStore(),
		maxOpen:        opts.MaxOpen,
		maxAttachments: opts.MaxAttachments,
		previewURL:     opts.PreviewURL,
		idleTTL:        opts.IdleTTL,
		now:            opts.Now,
		workspaces:     make(map[string]*workspace),
	}
}

// Broker exposes the event broker.
func (s *Service) Broker() *Broker {
	return s.broker
}

// Preview returns a pending attachment by preview id.
func (s *Service) Preview(id string) (Preview, bool) {
	return s.previews.Get(id)
}

// Wait blocks until every in-flight delivery has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Open returns the viewer's session with counterpartID, creating it when
// needed. A new session resolves its backend chat and loads history
// before returning. Opening beyond the limit closes the oldest session.
func (s *Service) Open(ctx context.Context, viewer Viewer, counterpartID string, recipient chat.Participant) (chat.Session, error) {
	if counterpartID == "" {
		return chat.Session{}, ErrCounterpartRequired
	}
	if recipient.ID == "" {
		recipient.ID = counterpartID
	}

	s.mu.Lock()
	ws, err := s.workspaceLocked(viewer, true)
	if err != nil {
		s.mu.Unlock()
		return chat.Session{}, err
	}
	if e, ok := ws.sessions[counterpartID]; ok {
		snap := e.session
		s.mu.Unlock()
		return snap, nil
	}

	s.gen++
	e := &entry{
		gen: s.gen,
		session: chat.Session{
			CounterpartID: counterpartID,
			Recipient:     recipient,
			Messages:      []chat.Message{},
			Loading:       true,
			OpenedAt:      s.now().UTC(),
		},
	}
	ws.sessions[counterpartID] = e
	ws.order = append(ws.order, counterpartID)
	metrics.OpenSessions.Inc()
	s.publishSessionLocked(viewer.ID, EventSessionOpened, e)
	for len(ws.order) > s.maxOpen {
		oldest := ws.order[0]
		log.Ctx(ctx).Debug().Str("viewer", viewer.ID).Str("counterpart", oldest).Msg("evicting oldest chat session")
		s.removeLocked(viewer.ID, ws, oldest)
	}
	gen := e.gen
	s.mu.Unlock()

	authCtx := marketplace.WithToken(ctx, viewer.Token)
	thread, err := s.upstream.FindOrCreateChat(authCtx, counterpartID)
	if err != nil {
		s.mu.Lock()
		if ws, cur := s.lookupLocked(viewer.ID, counterpartID); cur != nil && cur.gen == gen {
			s.removeLocked(viewer.ID, ws, counterpartID)
		}
		s.mu.Unlock()
		return chat.Session{}, fmt.Errorf("open chat with %s: %w", counterpartID, err)
	}

	history, err := s.upstream.ListMessages(authCtx, thread.ID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("chat_id", thread.ID).Msg("initial message load failed")
		history = nil
	}
	if history == nil {
		history = []chat.Message{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, cur := s.lookupLocked(viewer.ID, counterpartID)
	if cur == nil || cur.gen != gen {
		return chat.Session{}, ErrSessionNotOpen
	}
	cur.session.ChatID = thread.ID
	cur.session.Messages = history
	cur.session.Loading = false
	cur.session.Version++
	s.publishSessionLocked(viewer.ID, EventSessionUpdated, cur)
	return cur.session, nil
}

// Close destroys the session. In-flight sends keep running.
func (s *Service) Close(viewer Viewer, counterpartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, e, err := s.sessionLocked(viewer, counterpartID)
	if err != nil {
		return err
	}
	s.removeLocked(viewer.ID, ws, e.session.CounterpartID)
	return nil
}

// ToggleMinimize flips the minimized flag. Minimized sessions are not polled.
func (s *Service) ToggleMinimize(viewer Viewer, counterpartID string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, e, err := s.sessionLocked(viewer, counterpartID)
	if err != nil {
		return chat.Session{}, err
	}
	e.session.Minimized = !e.session.Minimized
	e.session.Version++
	s.publishSessionLocked(viewer.ID, EventSessionMinimized, e)
	return e.session, nil
}

// Session returns a snapshot of one open session.
func (s *Service) Session(viewer Viewer, counterpartID string) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, e, err := s.sessionLocked(viewer, counterpartID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// Sessions returns the viewer's open sessions, oldest first.
func (s *Service) Sessions(viewer Viewer) ([]chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(viewer, false)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return []chat.Session{}, nil
	}
	out := make([]chat.Session, 0, len(ws.order))
	for _, key := range ws.order {
		out = append(out, ws.sessions[key].session)
	}
	return out, nil
}

// Inbox fetches the viewer's conversation list and unread total.
func (s *Service) Inbox(ctx context.Context, viewer Viewer) (chat.Inbox, error) {
	s.mu.Lock()
	_, err := s.workspaceLocked(viewer, false)
	s.mu.Unlock()
	if err != nil {
		return chat.Inbox{}, err
	}
	chats, err := s.upstream.ListChats(marketplace.WithToken(ctx, viewer.Token))
	if err != nil {
		return chat.Inbox{}, fmt.Errorf("list chats: %w", err)
	}
	inbox := newInbox(chats)

	s.mu.Lock()
	if ws, ok := s.workspaces[viewer.ID]; ok && ws.owns(viewer.Token) {
		ws.inbox = &inbox
	}
	s.mu.Unlock()
	return inbox, nil
}

// Subscribe starts an event subscription and keeps the viewer's token
// around for background inbox polling.
func (s *Service) Subscribe(viewer Viewer) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.workspaceLocked(viewer, true); err != nil {
		return nil, err
	}
	return s.broker.Subscribe(viewer.ID), nil
}

// Unsubscribe ends a subscription and drops the workspace once idle.
func (s *Service) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s.broker.Unsubscribe(sub)
	s.mu.Lock()
	if ws, ok := s.workspaces[sub.viewer]; ok {
		s.dropIfIdleLocked(sub.viewer, ws)
	}
	s.mu.Unlock()
}

func newInbox(chats []chat.Summary) chat.Inbox {
	if chats == nil {
		chats = []chat.Summary{}
	}
	inbox := chat.Inbox{Chats: chats}
	for _, c := range chats {
		inbox.TotalUnread += c.UnreadCount
	}
	return inbox
}

// workspaceLocked returns the viewer's workspace after checking the token
// against the one it was created with. A missing workspace is created
// when create is set and returned as nil otherwise.
func (s *Service) workspaceLocked(viewer Viewer, create bool) (*workspace, error) {
	if viewer.ID == "" {
		return nil, ErrViewerRequired
	}
	token := strings.TrimSpace(viewer.Token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	ws, ok := s.workspaces[viewer.ID]
	if !ok {
		if !create {
			return nil, nil
		}
		ws = &workspace{token: token, sessions: make(map[string]*entry)}
		s.workspaces[viewer.ID] = ws
	} else if !ws.owns(token) {
		return nil, ErrViewerMismatch
	}
	ws.lastSeen = s.now()
	return ws, nil
}

// sessionLocked resolves an open session of an authorized viewer.
func (s *Service) sessionLocked(viewer Viewer, counterpartID string) (*workspace, *entry, error) {
	ws, err := s.workspaceLocked(viewer, false)
	if err != nil {
		return nil, nil, err
	}
	if ws == nil {
		return nil, nil, ErrSessionNotOpen
	}
	e, ok := ws.sessions[counterpartID]
	if !ok {
		return nil, nil, ErrSessionNotOpen
	}
	return ws, e, nil
}

func (s *Service) lookupLocked(viewerID, counterpartID string) (*workspace, *entry) {
	ws, ok := s.workspaces[viewerID]
	if !ok {
		return nil, nil
	}
	return ws, ws.sessions[counterpartID]
}

// removeLocked drops a session, frees previews of its pending entries
// and announces the close.
func (s *Service) removeLocked(viewerID string, ws *workspace, counterpartID string) {
	e, ok := ws.sessions[counterpartID]
	if !ok {
		return
	}
	delete(ws.sessions, counterpartID)
	for i, key := range ws.order {
		if key == counterpartID {
			ws.order = append(ws.order[:i:i], ws.order[i+1:]...)
			break
		}
	}
	s.previews.Release(previewIDs(e.session.Messages)...)
	metrics.OpenSessions.Dec()
	s.broker.Publish(viewerID, Event{Type: EventSessionClosed, CounterpartID: counterpartID})
	s.dropIfIdleLocked(viewerID, ws)
}

// ExpireIdle closes every session of viewers that made no request for
// longer than the idle TTL and hold no live subscription. It returns the
// number of workspaces dropped.
func (s *Service) ExpireIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cutoff := now.Add(-s.idleTTL)
	dropped := 0
	for viewerID, ws := range s.workspaces {
		if s.broker.HasSubscribers(viewerID) {
			ws.lastSeen = now
			continue
		}
		if !ws.lastSeen.Before(cutoff) {
			continue
		}
		for _, key := range append([]string(nil), ws.order...) {
			s.removeLocked(viewerID, ws, key)
		}
		delete(s.workspaces, viewerID)
		dropped++
	}
	return dropped
}

func (s *Service) dropIfIdleLocked(viewerID string, ws *workspace) {
	if len(ws.sessions) == 0 && !s.broker.HasSubscribers(viewerID) {
		delete(s.workspaces, viewerID)
	}
}

func (s *Service) publishSessionLocked(viewerID, eventType string, e *entry) {
	snap := e.session
	s.broker.Publish(viewerID, Event{Type: eventType, CounterpartID: snap.CounterpartID, Session: &snap})
}
