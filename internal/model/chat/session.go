package chat

import "time"

// Participant identifies the other side of a conversation.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Thread is the backend chat record returned by find-or-create.
type Thread struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	StoreID    string `json:"storeId"`
}

// Session captures one open conversation window for a viewer.
type Session struct {
	CounterpartID string      `json:"counterpartId"`
	ChatID        string      `json:"chatId"`
	Recipient     Participant `json:"recipient"`
	Messages      []Message   `json:"messages"`
	Loading       bool        `json:"loading"`
	Minimized     bool        `json:"minimized"`
	Version       uint64      `json:"version"`
	OpenedAt      time.Time   `json:"openedAt"`
}

// Summary is one row of the viewer's conversation list.
type Summary struct {
	ID          string      `json:"id"`
	OtherUser   Participant `json:"otherUser"`
	LastMessage *Message    `json:"lastMessage,omitempty"`
	UnreadCount int         `json:"unreadCount"`
}

// Inbox aggregates the conversation list with the badge count.
type Inbox struct {
	Chats       []Summary `json:"chats"`
	TotalUnread int       `json:"totalUnread"`
}
