package chat

import (
	"strings"
	"time"
)

// Media types understood by the storefront.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// TempIDPrefix marks client-generated ids of messages still in flight.
const TempIDPrefix = "temp_"

// Media is an attachment rendered inside a message bubble.
type Media struct {
	ID        string `json:"id"`
	Type      string `json:"mediaType"`
	URL       string `json:"mediaUrl"`
	Uploading bool   `json:"isUploading,omitempty"`
}

// Message is one chat entry, either server-confirmed or pending.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Media     []Media   `json:"media"`
	Timestamp time.Time `json:"timestamp"`
	Sending   bool      `json:"isSending,omitempty"`
}

// Pending reports whether the message is an optimistic local entry.
func (m Message) Pending() bool {
	return m.Sending
}

// Equal compares two messages field by field.
func (m Message) Equal(o Message) bool {
	if m.ID != o.ID || m.ChatID != o.ChatID || m.SenderID != o.SenderID ||
		m.Text != o.Text || m.Sending != o.Sending || !m.Timestamp.Equal(o.Timestamp) {
		return false
	}
	if len(m.Media) != len(o.Media) {
		return false
	}
	for i := range m.Media {
		if m.Media[i] != o.Media[i] {
			return false
		}
	}
	return true
}

// Attachment is an outbound file accompanying a send.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// MediaType classifies the attachment the same way the backend does.
func (a Attachment) MediaType() string {
	if strings.HasPrefix(strings.ToLower(a.ContentType), "image/") {
		return MediaImage
	}
	return MediaVideo
}
