package chat

import "github.com/ecomxpert/storefront/backend/internal/model/chat"

// Merge reconciles a session's current list with a freshly fetched
// server list. Pending entries are set aside and the confirmed remainder
// is compared with fetched. When nothing differs the current slice is
// returned untouched with changed=false. Otherwise the result is fetched
// followed by the pending entries in their original order.
func Merge(current, fetched []chat.Message) (merged []chat.Message, changed bool) {
	confirmed := make([]chat.Message, 0, len(current))
	var pending []chat.Message
	for _, m := range current {
		if m.Pending() {
			pending = append(pending, m)
			continue
		}
		confirmed = append(confirmed, m)
	}

	if sameMessages(confirmed, fetched) {
		return current, false
	}

	merged = make([]chat.Message, 0, len(fetched)+len(pending))
	merged = append(merged, fetched...)
	merged = append(merged, pending...)
	return merged, true
}

func sameMessages(a, b []chat.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// settle swaps the pending entry tempID for its confirmed record. When
// the confirmed id is already present, the pending entry is dropped.
func settle(list []chat.Message, tempID string, confirmed chat.Message) ([]chat.Message, bool) {
	if confirmed.Media == nil {
		confirmed.Media = []chat.Media{}
	}

	delivered := false
	for _, m := range list {
		if !m.Pending() && m.ID == confirmed.ID {
			delivered = true
			break
		}
	}

	found := false
	out := make([]chat.Message, 0, len(list))
	for _, m := range list {
		if m.ID == tempID {
			found = true
			if !delivered {
				out = append(out, confirmed)
			}
			continue
		}
		out = append(out, m)
	}
	return out, found
}

// withoutMessage drops the entry with id.
func withoutMessage(list []chat.Message, id string) ([]chat.Message, bool) {
	found := false
	out := make([]chat.Message, 0, len(list))
	for _, m := range list {
		if m.ID == id {
			found = true
			continue
		}
		out = append(out, m)
	}
	return out, found
}

func previewIDs(list []chat.Message) []string {
	var ids []string
	for _, m := range list {
		if !m.Pending() {
			continue
		}
		for _, media := range m.Media {
			ids = append(ids, media.ID)
		}
	}
	return ids
}

func sameInbox(a, b chat.Inbox) bool {
	if a.TotalUnread != b.TotalUnread || len(a.Chats) != len(b.Chats) {
		return false
	}
	for i := range a.Chats {
		x, y := a.Chats[i], b.Chats[i]
		if x.ID != y.ID || x.OtherUser != y.OtherUser || x.UnreadCount != y.UnreadCount {
			return false
		}
		if (x.LastMessage == nil) != (y.LastMessage == nil) {
			return false
		}
		if x.LastMessage != nil && !x.LastMessage.Equal(*y.LastMessage) {
			return false
		}
	}
	return true
}
