package chat

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecomxpert/storefront/backend/internal/metrics"
	"github.com/ecomxpert/storefront/backend/internal/model/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

// PollerConfig controls the background refresh loops.
type PollerConfig struct {
	Interval      time.Duration
	InboxInterval time.Duration
	Concurrency   int
}

// Poller refreshes open sessions and inboxes on a fixed cadence. Failed
// fetches are logged and tried again on the next tick.
type Poller struct {
	svc *Service
	cfg PollerConfig
}

// NewPoller creates a poller for svc.
func NewPoller(svc *Service, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.InboxInterval <= 0 {
		cfg.InboxInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Poller{svc: svc, cfg: cfg}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	messages := time.NewTicker(p.cfg.Interval)
	defer messages.Stop()
	inbox := time.NewTicker(p.cfg.InboxInterval)
	defer inbox.Stop()

	log.Ctx(ctx).Info().
		Dur("interval", p.cfg.Interval).
		Dur("inbox_interval", p.cfg.InboxInterval).
		Msg("chat poller started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-messages.C:
			p.PollMessages(ctx)
		case <-inbox.C:
			p.PollInbox(ctx)
		}
	}
}

type pollTarget struct {
	viewer        string
	token         string
	counterpartID string
	chatID        string
	gen           uint64
}

// PollMessages re-fetches every open, non-minimized session once.
// Sessions of viewers idle past the TTL are closed first.
func (p *Poller) PollMessages(ctx context.Context) {
	if n := p.svc.ExpireIdle(); n > 0 {
		log.Ctx(ctx).Info().Int("viewers", n).Msg("closed idle chat workspaces")
	}

	targets := p.svc.pollTargets()
	if len(targets) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			fetched, err := p.svc.upstream.ListMessages(marketplace.WithToken(ctx, t.token), t.chatID)
			if err != nil {
				metrics.ChatPolls.WithLabelValues("error").Inc()
				log.Ctx(ctx).Warn().Err(err).Str("viewer", t.viewer).Str("chat_id", t.chatID).Msg("chat poll failed")
				return nil
			}
			p.svc.applyPoll(t, fetched)
			return nil
		})
	}
	_ = g.Wait()
}

// PollInbox refreshes the conversation list of viewers with live subscribers.
func (p *Poller) PollInbox(ctx context.Context) {
	viewers := p.svc.inboxTargets()
	if len(viewers) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, v := range viewers {
		v := v
		g.Go(func() error {
			chats, err := p.svc.upstream.ListChats(marketplace.WithToken(ctx, v.Token))
			if err != nil {
				metrics.InboxPolls.WithLabelValues("error").Inc()
				log.Ctx(ctx).Warn().Err(err).Str("viewer", v.ID).Msg("inbox poll failed")
				return nil
			}
			p.svc.applyInbox(v.ID, newInbox(chats))
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) pollTargets() []pollTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pollTarget
	for viewerID, ws := range s.workspaces {
		for _, key := range ws.order {
			e := ws.sessions[key]
			if e.session.Minimized || e.session.Loading || e.session.ChatID == "" {
				continue
			}
			out = append(out, pollTarget{
				viewer:        viewerID,
				token:         ws.token,
				counterpartID: key,
				chatID:        e.session.ChatID,
				gen:           e.gen,
			})
		}
	}
	return out
}

// applyPoll merges a fetched list into the session it was requested for.
// Results for sessions closed or re-opened since the fetch began are dropped.
func (s *Service) applyPoll(t pollTarget, fetched []chat.Message) {
	if fetched == nil {
		fetched = []chat.Message{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, e := s.lookupLocked(t.viewer, t.counterpartID)
	if e == nil || e.gen != t.gen || e.session.ChatID != t.chatID {
		metrics.ChatPolls.WithLabelValues("stale").Inc()
		return
	}

	merged, changed := Merge(e.session.Messages, fetched)
	if !changed {
		metrics.ChatPolls.WithLabelValues("unchanged").Inc()
		return
	}
	metrics.ChatPolls.WithLabelValues("changed").Inc()
	e.session.Messages = merged
	e.session.Version++
	s.publishSessionLocked(t.viewer, EventSessionUpdated, e)
}

func (s *Service) inboxTargets() []Viewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Viewer
	for viewerID, ws := range s.workspaces {
		if s.broker.HasSubscribers(viewerID) {
			out = append(out, Viewer{ID: viewerID, Token: ws.token})
		}
	}
	return out
}

func (s *Service) applyInbox(viewerID string, inbox chat.Inbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[viewerID]
	if !ok {
		metrics.InboxPolls.WithLabelValues("stale").Inc()
		return
	}
	if ws.inbox != nil && sameInbox(*ws.inbox, inbox) {
		metrics.InboxPolls.WithLabelValues("unchanged").Inc()
		return
	}
	metrics.InboxPolls.WithLabelValues("changed").Inc()
	ws.inbox = &inbox
	snap := inbox
	s.broker.Publish(viewerID, Event{Type: EventInboxUpdated, Inbox: &snap})
}
