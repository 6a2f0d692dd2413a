package chat_test

import (
	"context"
	"testing"
	"time"

	model "github.com/ecomxpert/storefront/backend/internal/model/chat"
	chat "github.com/ecomxpert/storefront/backend/internal/service/chat"
)

func drain(sub *chat.Subscription) []chat.Event {
	var out []chat.Event
	for {
		select {
		case ev := <-sub.C:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestMergeKeepsPendingAfterFetched(t *testing.T) {
	a := confirmed("1", "c", "a")
	b := confirmed("2", "c", "b")
	pending := model.Message{ID: "temp_x", ChatID: "c", Text: "p", Media: []model.Media{}, Sending: true}

	current := []model.Message{a, pending}
	merged, changed := chat.Merge(current, []model.Message{a, b})
	if !changed {
		t.Fatal("expected change")
	}
	if len(merged) != 3 || merged[1].ID != "2" || merged[2].ID != "temp_x" {
		t.Fatalf("unexpected merge: %+v", merged)
	}

	same, changed := chat.Merge(current, []model.Message{a})
	if changed || len(same) != 2 {
		t.Fatalf("identical fetch should be a no-op, got changed=%v", changed)
	}
}

func TestPollUnchangedKeepsVersion(t *testing.T) {
	up := newFakeUpstream()
	up.seed("chat-s1", confirmed("1", "chat-s1", "hello"))
	svc := chat.NewService(up, chat.Options{})
	before := openSession(t, svc, "s1")

	sub := subscribe(t, svc)
	defer svc.Unsubscribe(sub)
	drain(sub)

	poller := chat.NewPoller(svc, chat.PollerConfig{})
	poller.PollMessages(context.Background())

	after, _ := svc.Session(viewer, "s1")
	if after.Version != before.Version {
		t.Fatalf("version changed on identical poll: %d -> %d", before.Version, after.Version)
	}
	if events := drain(sub); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestPollAppliesNewMessages(t *testing.T) {
	up := newFakeUpstream()
	svc := chat.NewService(up, chat.Options{})
	before := openSession(t, svc, "s1")

	sub := subscribe(t, svc)
	defer svc.Unsubscribe(sub)
	drain(sub)

	up.seed("chat-s1", confirmed("7", "chat-s1", "new reply"))
	chat.NewPoller(svc, chat.PollerConfig{}).PollMessages(context.Background())

	after, _ := svc.Session(viewer, "s1")
	if after.Version == before.Version || len(after.Messages) != 1 {
		t.Fatalf("poll not applied: %+v", after)
	}
	events := drain(sub)
	if len(events) != 1 || events[0].Type != chat.EventSessionUpdated {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestPollSkipsMinimized(t *testing.T) {
	up := newFakeUpstream()
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")
	if _, err := svc.ToggleMinimize(viewer, "s1"); err != nil {
		t.Fatalf("ToggleMinimize err: %v", err)
	}

	up.seed("chat-s1", confirmed("7", "chat-s1", "new reply"))
	chat.NewPoller(svc, chat.PollerConfig{}).PollMessages(context.Background())

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 0 {
		t.Fatalf("minimized session was polled: %+v", session.Messages)
	}
}

func TestPollDiscardsResultForClosedSession(t *testing.T) {
	up := newFakeUpstream()
	svc := chat.NewService(up, chat.Options{})
	openSession(t, svc, "s1")

	started := make(chan struct{})
	release := make(chan struct{})
	up.mu.Lock()
	up.listHook = func(string) {
		close(started)
		<-release
	}
	up.mu.Unlock()
	up.seed("chat-s1", confirmed("7", "chat-s1", "late"))

	done := make(chan struct{})
	go func() {
		chat.NewPoller(svc, chat.PollerConfig{}).PollMessages(context.Background())
		close(done)
	}()

	<-started
	if err := svc.Close(viewer, "s1"); err != nil {
		t.Fatalf("Close err: %v", err)
	}
	up.mu.Lock()
	up.listHook = nil
	up.mu.Unlock()
	up.seed("chat-s1", confirmed("8", "chat-s1", "later"))
	openSession(t, svc, "s1")
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not finish")
	}

	session, _ := svc.Session(viewer, "s1")
	if len(session.Messages) != 2 || session.Version != 1 {
		t.Fatalf("stale poll result applied: %+v", session)
	}
}

func TestPollInboxPublishesUnreadTotal(t *testing.T) {
	up := newFakeUpstream()
	up.chats = []model.Summary{
		{ID: "1", OtherUser: model.Participant{ID: "s1"}, UnreadCount: 2},
		{ID: "2", OtherUser: model.Participant{ID: "s2"}, UnreadCount: 3},
	}
	svc := chat.NewService(up, chat.Options{})
	sub := subscribe(t, svc)
	defer svc.Unsubscribe(sub)

	poller := chat.NewPoller(svc, chat.PollerConfig{})
	poller.PollInbox(context.Background())

	events := drain(sub)
	if len(events) != 1 || events[0].Type != chat.EventInboxUpdated {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Inbox.TotalUnread != 5 {
		t.Fatalf("expected total unread 5, got %d", events[0].Inbox.TotalUnread)
	}

	poller.PollInbox(context.Background())
	if events := drain(sub); len(events) != 0 {
		t.Fatalf("unchanged inbox published again: %+v", events)
	}
}
