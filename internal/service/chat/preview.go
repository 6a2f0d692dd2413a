package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ecomxpert/storefront/backend/internal/model/chat"
)

// Preview is attachment content served while its message is in flight.
type Preview struct {
	Name        string
	ContentType string
	Data        []byte
}

// PreviewStore keeps attachment bytes addressable by id until released.
type PreviewStore struct {
	mu    sync.RWMutex
	items map[string]Preview
}

// NewPreviewStore returns an empty store.
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{items: make(map[string]Preview)}
}

// Put stores a and returns its preview id.
func (p *PreviewStore) Put(a chat.Attachment) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.items[id] = Preview{Name: a.Name, ContentType: a.ContentType, Data: a.Data}
	p.mu.Unlock()
	return id
}

// Get returns the preview stored under id.
func (p *PreviewStore) Get(id string) (Preview, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	return item, ok
}

// Release frees the given previews. Unknown ids are ignored.
func (p *PreviewStore) Release(ids ...string) {
	if len(ids) == 0 {
		return
	}
	p.mu.Lock()
	for _, id := range ids {
		delete(p.items, id)
	}
	p.mu.Unlock()
}

// Len returns the number of live previews.
func (p *PreviewStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
