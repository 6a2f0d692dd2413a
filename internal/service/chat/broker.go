package chat

import (
	"sync"

	"github.com/ecomxpert/storefront/backend/internal/model/chat"
)

// Event types pushed to viewer subscribers.
const (
	EventSessionOpened    = "session.opened"
	EventSessionUpdated   = "session.updated"
	EventSessionMinimized = "session.minimized"
	EventSessionClosed    = "session.closed"
	EventInboxUpdated     = "inbox.updated"
)

// Event is a state change of one viewer's chat workspace.
type Event struct {
	Type          string        `json:"type"`
	CounterpartID string        `json:"counterpartId,omitempty"`
	Session       *chat.Session `json:"session,omitempty"`
	Inbox         *chat.Inbox   `json:"inbox,omitempty"`
}

// Subscription receives events for one viewer until unsubscribed.
type Subscription struct {
	C <-chan Event

	id     uint64
	viewer string
	ch     chan Event
}

// Broker fans events out to per-viewer subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	next   uint64
	subs   map[string]map[uint64]*Subscription
	buffer int
}

// NewBroker creates a broker with the given per-subscriber buffer.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broker{subs: make(map[string]map[uint64]*Subscription), buffer: buffer}
}

// Subscribe registers a new subscriber for viewer.
func (b *Broker) Subscribe(viewer string) *Subscription {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	sub := &Subscription{C: ch, id: b.next, viewer: viewer, ch: ch}
	if b.subs[viewer] == nil {
		b.subs[viewer] = make(map[uint64]*Subscription)
	}
	b.subs[viewer][sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (b *Broker) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	viewerSubs, ok := b.subs[sub.viewer]
	if !ok {
		return
	}
	if _, ok := viewerSubs[sub.id]; !ok {
		return
	}
	delete(viewerSubs, sub.id)
	close(sub.ch)
	if len(viewerSubs) == 0 {
		delete(b.subs, sub.viewer)
	}
}

// Publish delivers ev to every subscriber of viewer.
func (b *Broker) Publish(viewer string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[viewer] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// HasSubscribers reports whether viewer has at least one live subscriber.
func (b *Broker) HasSubscribers(viewer string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[viewer]) > 0
}
