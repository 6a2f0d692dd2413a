package chat_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	model "github.com/ecomxpert/storefront/backend/internal/model/chat"
	chat "github.com/ecomxpert/storefront/backend/internal/service/chat"
	"github.com/ecomxpert/storefront/backend/internal/service/marketplace"
)

type fakeUpstream struct {
	mu       sync.Mutex
	nextID   int
	messages map[string][]model.Message
	chats    []model.Summary

	sent      []string
	tokens    []string
	listCalls int

	findErr  error
	sendHook func(text string) error
	listHook func(chatID string)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{nextID: 100, messages: make(map[string][]model.Message)}
}

func (f *fakeUpstream) FindOrCreateChat(_ context.Context, recipientID string) (model.Thread, error) {
	if f.findErr != nil {
		return model.Thread{}, f.findErr
	}
	return model.Thread{ID: "chat-" + recipientID, StoreID: recipientID}, nil
}

func (f *fakeUpstream) ListChats(context.Context) ([]model.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Summary(nil), f.chats...), nil
}

func (f *fakeUpstream) ListMessages(_ context.Context, chatID string) ([]model.Message, error) {
	f.mu.Lock()
	f.listCalls++
	out := append([]model.Message{}, f.messages[chatID]...)
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook(chatID)
	}
	return out, nil
}

func (f *fakeUpstream) SendMessage(ctx context.Context, chatID, text string, _ []model.Attachment) (model.Message, error) {
	if f.sendHook != nil {
		if err := f.sendHook(text); err != nil {
			return model.Message{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.tokens = append(f.tokens, marketplace.TokenFrom(ctx))
	f.nextID++
	msg := model.Message{
		ID:        strconv.Itoa(f.nextID),
		ChatID:    chatID,
		SenderID:  "viewer-1",
		Text:      text,
		Media:     []model.Media{},
		Timestamp: time.Date(2024, 5, 1, 10, 0, f.nextID%60, 0, time.UTC),
	}
	f.messages[chatID] = append(f.messages[chatID], msg)
	return msg, nil
}

func (f *fakeUpstream) seed(chatID string, msgs ...model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[chatID] = append(f.messages[chatID], msgs...)
}

func confirmed(id, chatID, text string) model.Message {
	return model.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  "store-1",
		Text:      text,
		Media:     []model.Media{},
		Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

var viewer = chat.Viewer{ID: "viewer-1", Token: "tok"}

func openSession(t *testing.T, svc *chat.Service, counterpart string) model.Session {
	t.Helper()
	session, err := svc.Open(context.Background(), viewer, counterpart, model.Participant{Name: "Store " + counterpart})
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	return session
}

func subscribe(t *testing.T, svc *chat.Service) *chat.Subscription {
	t.Helper()
	sub, err := svc.Subscribe(viewer)
	if err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	return sub
}

func TestOpenLoadsHistory(t *testing.T) {
	up := newFakeUpstream()
	up.seed("chat-s1", confirmed("1", "chat-s1", "hello"))
	svc := chat.NewService(up, chat.Options{})

	session := openSession(t, svc, "s1")
	if session.ChatID != "chat-s1" || session.Loading {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(session.Messages) != 1 || session.Messages[0].ID != "1" {
		t.Fatalf("unexpected messages: %+v", session.Messages)
	}

	again := openSession(t, svc, "s1")
	if again.Version != session.Version {
		t.Fatalf("reopening should return the existing session")
	}
}

func TestOpenFailureRemovesSession(t *testing.T) {
	up := newFakeUpstream()
	up.findErr = errors.New("store not found")
	svc := chat.NewService(up, chat.Options{})

	if _, err := svc.Open(context.Background(), viewer, "s1", model.Participant{}); err == nil {
		t.Fatal("expected open error")
	}
	if got, _ := svc.Sessions(viewer); len(got) != 0 {
		t.Fatalf("expected no sessions, got %d", len(got))
	}
}

func TestOpenEvictsOldest(t *testing.T) {
	svc := chat.NewService(newFakeUpstream(), chat.Options{MaxOpen: 3})

	for _, id := range []string{"a", "b", "c", "d"} {
		openSession(t, svc, id)
	}

	sessions, err := svc.Sessions(viewer)
	if err != nil {
		t.Fatalf("Sessions err: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].CounterpartID != "b" || sessions[2].CounterpartID != "d" {
		t.Fatalf("unexpected order: %s %s", sessions[0].CounterpartID, sessions[2].CounterpartID)
	}
	if _, err := svc.Session(viewer, "a"); !errors.Is(err, chat.ErrSessionNotOpen) {
		t.Fatalf("expected evicted session, got %v", err)
	}
}

func TestSendAppendsPendingThenReplaces(t *testing.T) {
	up := newFakeUpstream()
	up.seed("chat-s1", confirmed("1", "chat-s1", "hello"))
	release := make(chan struct{})
	up.sendHook = func(string) error {
		<-release
		return nil
	}
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	pending, err := svc.Send(context.Background(), viewer, "s1", "hi there", []model.Attachment{
		{Name: "a.png", ContentType: "image/png", Data: []byte("png")},
	})
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if !pending.Sending || pending.ID[:5] != model.TempIDPrefix {
		t.Fatalf("unexpected pending entry: %+v", pending)
	}
	if len(pending.Media) != 1 || !pending.Media[0].Uploading || pending.Media[0].Type != model.MediaImage {
		t.Fatalf("unexpected pending media: %+v", pending.Media)
	}
	if _, ok := svc.Preview(pending.Media[0].ID); !ok {
		t.Fatal("expected preview to be served while sending")
	}

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 2 || session.Messages[1].ID != pending.ID {
		t.Fatalf("pending entry not appended: %+v", session.Messages)
	}

	close(release)
	svc.Wait()

	session, _ = svc.Session(viewer, "s1")
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(session.Messages))
	}
	last := session.Messages[1]
	if last.Sending || last.ID != "101" || last.Text != "hi there" {
		t.Fatalf("pending entry not replaced: %+v", last)
	}
	if _, ok := svc.Preview(pending.Media[0].ID); ok {
		t.Fatal("expected preview released after delivery")
	}
}

func TestSendFailureRemovesOnlyPending(t *testing.T) {
	up := newFakeUpstream()
	up.seed("chat-s1", confirmed("1", "chat-s1", "hello"))
	up.sendHook = func(string) error { return errors.New("upload failed") }
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	if _, err := svc.Send(context.Background(), viewer, "s1", "lost", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	svc.Wait()

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 1 || session.Messages[0].ID != "1" {
		t.Fatalf("unexpected messages after failure: %+v", session.Messages)
	}
}

func TestSendValidation(t *testing.T) {
	svc := chat.NewService(newFakeUpstream(), chat.Options{MaxAttachments: 1})
	openSession(t, svc, "s1")
	ctx := context.Background()

	if _, err := svc.Send(ctx, viewer, "s1", "   ", nil); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	files := []model.Attachment{{Name: "a"}, {Name: "b"}}
	if _, err := svc.Send(ctx, viewer, "s1", "x", files); !errors.Is(err, chat.ErrTooManyAttachments) {
		t.Fatalf("expected ErrTooManyAttachments, got %v", err)
	}
	if _, err := svc.Send(ctx, viewer, "missing", "x", nil); !errors.Is(err, chat.ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen, got %v", err)
	}
}

func TestConcurrentSendsSettleOutOfOrder(t *testing.T) {
	up := newFakeUpstream()
	gates := map[string]chan struct{}{"first": make(chan struct{}), "second": make(chan struct{})}
	up.sendHook = func(text string) error {
		<-gates[text]
		return nil
	}
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")
	ctx := context.Background()

	if _, err := svc.Send(ctx, viewer, "s1", "first", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if _, err := svc.Send(ctx, viewer, "s1", "second", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	close(gates["second"])
	waitFor(t, func() bool {
		s, _ := svc.Session(viewer, "s1")
		return len(s.Messages) == 2 && !s.Messages[1].Sending
	})
	close(gates["first"])
	svc.Wait()

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[0].Text != "first" || session.Messages[1].Text != "second" {
		t.Fatalf("unexpected order: %q %q", session.Messages[0].Text, session.Messages[1].Text)
	}
	for _, m := range session.Messages {
		if m.Sending {
			t.Fatalf("pending entry left behind: %+v", m)
		}
	}
}

func TestCloseReleasesPreviewsAndKeepsDeliveryRunning(t *testing.T) {
	up := newFakeUpstream()
	release := make(chan struct{})
	up.sendHook = func(string) error {
		<-release
		return nil
	}
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	pending, err := svc.Send(context.Background(), viewer, "s1", "", []model.Attachment{{Name: "v.mp4", ContentType: "video/mp4"}})
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if pending.Media[0].Type != model.MediaVideo {
		t.Fatalf("unexpected media type %q", pending.Media[0].Type)
	}
	if err := svc.Close(viewer, "s1"); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	if _, ok := svc.Preview(pending.Media[0].ID); ok {
		t.Fatal("expected preview released on close")
	}

	close(release)
	svc.Wait()

	up.mu.Lock()
	delivered := len(up.messages["chat-s1"])
	up.mu.Unlock()
	if delivered != 1 {
		t.Fatalf("expected in-flight send to complete, got %d messages", delivered)
	}
}

func TestToggleMinimize(t *testing.T) {
	svc := chat.NewService(newFakeUpstream(), chat.Options{})
	openSession(t, svc, "s1")

	session, err := svc.ToggleMinimize(viewer, "s1")
	if err != nil || !session.Minimized {
		t.Fatalf("expected minimized session, got %+v err=%v", session, err)
	}
	session, _ = svc.ToggleMinimize(viewer, "s1")
	if session.Minimized {
		t.Fatal("expected session restored")
	}
}

func TestSendTrimsText(t *testing.T) {
	up := newFakeUpstream()
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	pending, err := svc.Send(context.Background(), viewer, "s1", "  hi there \n", nil)
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if pending.Text != "hi there" {
		t.Fatalf("pending text not trimmed: %q", pending.Text)
	}
	svc.Wait()

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.sent) != 1 || up.sent[0] != "hi there" {
		t.Fatalf("unexpected upstream text: %q", up.sent)
	}
}

func TestSendDropsPendingWhenPollDeliveredFirst(t *testing.T) {
	up := newFakeUpstream()
	release := make(chan struct{})
	up.sendHook = func(string) error {
		<-release
		return nil
	}
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	if _, err := svc.Send(context.Background(), viewer, "s1", "hi", nil); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	// The backend stored the message before the send call returned.
	server := confirmed("101", "chat-s1", "hi")
	server.SenderID = viewer.ID
	up.seed("chat-s1", server)
	chat.NewPoller(svc, chat.PollerConfig{}).PollMessages(context.Background())

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 2 || session.Messages[0].ID != "101" || !session.Messages[1].Sending {
		t.Fatalf("expected server copy followed by pending entry, got %+v", session.Messages)
	}

	close(release)
	svc.Wait()

	session, _ = svc.Session(viewer, "s1")
	count := 0
	for _, m := range session.Messages {
		if m.Sending {
			t.Fatalf("pending entry left behind: %+v", m)
		}
		if m.ID == "101" {
			count++
		}
	}
	if count != 1 || len(session.Messages) != 1 {
		t.Fatalf("expected server id exactly once, got %+v", session.Messages)
	}
}

func TestWorkspaceBoundToToken(t *testing.T) {
	up := newFakeUpstream()
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")
	ctx := context.Background()

	intruder := chat.Viewer{ID: viewer.ID, Token: "other"}
	anonymous := chat.Viewer{ID: viewer.ID}

	if _, err := svc.Session(intruder, "s1"); !errors.Is(err, chat.ErrViewerMismatch) {
		t.Fatalf("expected ErrViewerMismatch, got %v", err)
	}
	if _, err := svc.Sessions(intruder); !errors.Is(err, chat.ErrViewerMismatch) {
		t.Fatalf("expected ErrViewerMismatch listing sessions, got %v", err)
	}
	if _, err := svc.Subscribe(intruder); !errors.Is(err, chat.ErrViewerMismatch) {
		t.Fatalf("expected ErrViewerMismatch subscribing, got %v", err)
	}
	if _, err := svc.Send(ctx, intruder, "s1", "hi", nil); !errors.Is(err, chat.ErrViewerMismatch) {
		t.Fatalf("expected ErrViewerMismatch sending, got %v", err)
	}
	if _, err := svc.Send(ctx, anonymous, "s1", "hi", nil); !errors.Is(err, chat.ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
	if err := svc.Close(intruder, "s1"); !errors.Is(err, chat.ErrViewerMismatch) {
		t.Fatalf("expected ErrViewerMismatch closing, got %v", err)
	}
	svc.Wait()

	up.mu.Lock()
	sent := len(up.sent)
	up.mu.Unlock()
	if sent != 0 {
		t.Fatalf("rejected sends reached upstream: %d", sent)
	}

	if _, err := svc.Send(ctx, viewer, "s1", "mine", nil); err != nil {
		t.Fatalf("owner Send err: %v", err)
	}
	svc.Wait()
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.tokens) != 1 || up.tokens[0] != viewer.Token {
		t.Fatalf("unexpected upstream tokens: %v", up.tokens)
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestIdleWorkspaceExpires(t *testing.T) {
	up := newFakeUpstream()
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := chat.NewService(up, chat.Options{IdleTTL: time.Minute, Now: clock.Now})
	poller := chat.NewPoller(svc, chat.PollerConfig{})
	ctx := context.Background()

	openSession(t, svc, "s1")
	poller.PollMessages(ctx)

	up.mu.Lock()
	calls := up.listCalls
	up.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected initial load and one poll, got %d list calls", calls)
	}

	clock.Advance(2 * time.Minute)
	for i := 0; i < 5; i++ {
		poller.PollMessages(ctx)
	}

	up.mu.Lock()
	calls = up.listCalls
	up.mu.Unlock()
	if calls != 2 {
		t.Fatalf("idle session kept polling: %d list calls", calls)
	}
	if got, _ := svc.Sessions(viewer); len(got) != 0 {
		t.Fatalf("expected idle sessions closed, got %d", len(got))
	}
}

func TestSubscribedWorkspaceStaysOpen(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := chat.NewService(newFakeUpstream(), chat.Options{IdleTTL: time.Minute, Now: clock.Now})

	openSession(t, svc, "s1")
	sub := subscribe(t, svc)
	defer svc.Unsubscribe(sub)

	clock.Advance(5 * time.Minute)
	if n := svc.ExpireIdle(); n != 0 {
		t.Fatalf("workspace with a live subscriber expired: %d", n)
	}
	if _, err := svc.Session(viewer, "s1"); err != nil {
		t.Fatalf("expected session kept, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
