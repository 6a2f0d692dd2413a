package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/ecomxpert/storefront/backend/internal/model/chat"
)

// FindOrCreateChat returns the thread between the viewer and recipientID.
func (c *Client) FindOrCreateChat(ctx context.Context, recipientID string) (chat.Thread, error) {
	var w wireThread
	payload := map[string]string{"recipientId": recipientID}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/chats/find-or-create", "chats.find_or_create", payload, &w); err != nil {
		return chat.Thread{}, err
	}
	return chat.Thread{ID: string(w.ID), CustomerID: string(w.CustomerID), StoreID: string(w.StoreID)}, nil
}

// ListChats returns the viewer's conversation list.
func (c *Client) ListChats(ctx context.Context) ([]chat.Summary, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/chats", "chats.list", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireSummary
	if err := json.Unmarshal(unwrapList(raw, "chats", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}

	out := make([]chat.Summary, 0, len(rows))
	for _, row := range rows {
		s := chat.Summary{
			ID:          string(row.ID),
			OtherUser:   c.toParticipant(row.OtherUser),
			UnreadCount: int(row.UnreadCount),
		}
		if row.LastMessage != nil {
			m := c.toMessage(*row.LastMessage)
			s.LastMessage = &m
		}
		out = append(out, s)
	}
	return out, nil
}

// ListMessages returns the full server-confirmed history of chatID.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var raw json.RawMessage
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.getJSON(ctx, path, "chats.messages", nil, &raw); err != nil {
		return nil, err
	}
	var rows []wireMessage
	if err := json.Unmarshal(unwrapList(raw, "messages", "data"), &rows); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	out := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, c.toMessage(row))
	}
	return out, nil
}

// SendMessage posts a multipart message with optional media files.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, files []chat.Attachment) (chat.Message, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("text", text); err != nil {
		return chat.Message{}, err
	}
	for i, f := range files {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("media-%d", i)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media[]"; filename=%q`, name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return chat.Message{}, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return chat.Message{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return chat.Message{}, err
	}

	path := "/api/chats/" + url.PathEscape(chatID) + "/messages"
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, &body)
	if err != nil {
		return chat.Message{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var w wireMessage
	if err := c.do(req, "chats.send", &w); err != nil {
		return chat.Message{}, err
	}
	return c.toMessage(w), nil
}
