package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/bus"
	"github.com/ltavares/feira/internal/notify"
	"github.com/ltavares/feira/internal/unread"
)

type fakeThreadClient struct {
	mu        gosync.Mutex
	msgs      []api.Message
	listErr   error
	listCalls int
	// block, when non-nil, holds ListMessages until closed.
	block chan struct{}

	sendErr   func(text string) error
	sendGate  chan struct{}
	sendCalls int
}

func (f *fakeThreadClient) ListMessages(context.Context, string) ([]api.Message, error) {
	f.mu.Lock()
	f.listCalls++
	block := f.block
	err := f.listErr
	msgs := append([]api.Message(nil), f.msgs...)
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (f *fakeThreadClient) SendMessage(_ context.Context, conversationID, text string) (*api.Message, error) {
	f.mu.Lock()
	f.sendCalls++
	gate := f.sendGate
	errFn := f.sendErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if errFn != nil {
		if err := errFn(text); err != nil {
			return nil, err
		}
	}
	msg := api.Message{
		ID:             "srv-" + text,
		ConversationID: conversationID,
		SenderID:       "me",
		Text:           text,
		CreatedAt:      time.Now(),
	}
	f.mu.Lock()
	present := false
	for _, m := range f.msgs {
		if m.ID == msg.ID {
			present = true
			break
		}
	}
	if !present {
		f.msgs = append(f.msgs, msg)
	}
	f.mu.Unlock()
	return &msg, nil
}

func (f *fakeThreadClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type threadFixture struct {
	sync     *ThreadSync
	client   *fakeThreadClient
	cache    *memCache
	notices  <-chan bus.Event
	updates  <-chan bus.Event
	list     *ListSync
	inbox    *fakeInboxClient
	unauthed *int
}

func newThreadFixture(t *testing.T, client *fakeThreadClient) *threadFixture {
	t.Helper()
	b := bus.New()
	notices, unsubN := b.Subscribe("notify.", 16)
	updates, unsubU := b.Subscribe("thread.", 16)
	t.Cleanup(unsubN)
	t.Cleanup(unsubU)

	inbox := &fakeInboxClient{inbox: &api.Inbox{}}
	cache := newMemCache()
	list := NewListSync(inbox, cache, unread.NewCounter(nil), b,
		notify.New(b, zap.NewNop()), zap.NewNop(), time.Hour, nil)
	unauthed := 0
	s := NewThreadSync(client, cache, list, notify.New(b, zap.NewNop()), b,
		zap.NewNop(), "c1", "me", func() { unauthed++ })
	return &threadFixture{
		sync: s, client: client, cache: cache,
		notices: notices, updates: updates,
		list: list, inbox: inbox, unauthed: &unauthed,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestThreadRefreshReplacesHistory(t *testing.T) {
	client := &fakeThreadClient{msgs: []api.Message{
		{ID: "m1", Text: "oi"},
		{ID: "m2", Text: "olá"},
	}}
	f := newThreadFixture(t, client)

	if err := f.sync.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	msgs := f.sync.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("messages = %+v, want m1,m2", msgs)
	}
	if f.sync.State() != StateLoaded {
		t.Errorf("state = %s, want %s", f.sync.State(), StateLoaded)
	}
	cached, _ := f.cache.ListMessages("c1")
	if len(cached) != 2 {
		t.Errorf("cache holds %d messages, want 2", len(cached))
	}
	// Reading the thread marks messages read server-side; the list re-syncs.
	if got := f.inbox.calls(); got != 1 {
		t.Errorf("list refreshes = %d, want 1 after thread fetch", got)
	}
	select {
	case <-f.updates:
	default:
		t.Error("no thread.updated event published")
	}
}

func TestThreadRefreshInFlightIsNoOp(t *testing.T) {
	client := &fakeThreadClient{block: make(chan struct{})}
	f := newThreadFixture(t, client)

	done := make(chan error, 1)
	go func() { done <- f.sync.Refresh(context.Background()) }()
	waitFor(t, "first refresh to start", func() bool { return client.calls() == 1 })

	// Overlapping call returns immediately without a second fetch.
	if err := f.sync.Refresh(context.Background()); err != nil {
		t.Fatalf("overlapping Refresh() error = %v", err)
	}
	if got := client.calls(); got != 1 {
		t.Errorf("fetches = %d, want 1 while one is in flight", got)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
}

func TestThreadInitialFailureThenRecovery(t *testing.T) {
	client := &fakeThreadClient{listErr: fmt.Errorf("GET /chats/c1/messages: %w",
		&api.StatusError{Code: 500, Message: "oops"})}
	f := newThreadFixture(t, client)

	if err := f.sync.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want error")
	}
	if f.sync.State() != StateFailed {
		t.Errorf("state = %s, want %s after initial failure", f.sync.State(), StateFailed)
	}

	client.mu.Lock()
	client.listErr = nil
	client.msgs = []api.Message{{ID: "m1"}}
	client.mu.Unlock()

	if err := f.sync.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if f.sync.State() != StateLoaded {
		t.Errorf("state = %s, want %s after recovery", f.sync.State(), StateLoaded)
	}
}

func TestThreadBackgroundFailureKeepsLoaded(t *testing.T) {
	client := &fakeThreadClient{msgs: []api.Message{{ID: "m1", Text: "oi"}}}
	f := newThreadFixture(t, client)
	_ = f.sync.Refresh(context.Background())

	client.mu.Lock()
	client.listErr = fmt.Errorf("GET: %w", api.ErrRateLimited)
	client.mu.Unlock()

	if err := f.sync.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil, want error")
	}
	if f.sync.State() != StateLoaded {
		t.Errorf("state = %s, want %s: background failure keeps last good data", f.sync.State(), StateLoaded)
	}
	if len(f.sync.Messages()) != 1 {
		t.Error("background failure disturbed the message history")
	}
}

func TestSendOptimisticThenConfirmed(t *testing.T) {
	client := &fakeThreadClient{sendGate: make(chan struct{})}
	f := newThreadFixture(t, client)

	done := make(chan error, 1)
	go func() { done <- f.sync.Send(context.Background(), "tudo bem?") }()

	waitFor(t, "pending entry", func() bool { return f.sync.PendingCount() == 1 })
	msgs := f.sync.Messages()
	last := msgs[len(msgs)-1]
	if !last.Pending || last.ClientID == "" || last.Text != "tudo bem?" || last.SenderID != "me" {
		t.Errorf("pending entry = %+v", last)
	}

	close(client.sendGate)
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if f.sync.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0 after confirmation", f.sync.PendingCount())
	}
	msgs = f.sync.Messages()
	if len(msgs) != 1 || msgs[0].ID != "srv-tudo bem?" || msgs[0].Pending {
		t.Errorf("messages = %+v, want the confirmed server copy", msgs)
	}
	// Confirmation triggers a full refresh.
	if got := client.calls(); got != 1 {
		t.Errorf("refreshes = %d, want 1 after send", got)
	}
}

func TestSendConfirmationAlreadyPolledNotDuplicated(t *testing.T) {
	// A poll can land the server copy before Send returns. The confirmation
	// must not append it a second time.
	client := &fakeThreadClient{msgs: []api.Message{{ID: "srv-oi", Text: "oi"}}}
	f := newThreadFixture(t, client)
	_ = f.sync.Refresh(context.Background())

	// Make the realigning post-send refresh fail quietly so the merged
	// in-memory state is what gets asserted.
	client.mu.Lock()
	client.sendErr = func(string) error {
		client.listErr = fmt.Errorf("GET: %w", api.ErrRateLimited)
		return nil
	}
	client.mu.Unlock()

	if err := f.sync.Send(context.Background(), "oi"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	count := 0
	for _, m := range f.sync.Messages() {
		if m.ID == "srv-oi" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("message srv-oi appears %d times, want 1", count)
	}
	if f.sync.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", f.sync.PendingCount())
	}
}

func TestSendFailureRemovesOnlyFailedEntry(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeThreadClient{
		msgs:     []api.Message{{ID: "m1", Text: "histórico"}},
		sendGate: gate,
		sendErr: func(text string) error {
			if text == "falha" {
				return fmt.Errorf("POST: %w", &api.StatusError{Code: 500, Message: "Message rejected"})
			}
			return nil
		},
	}
	f := newThreadFixture(t, client)
	_ = f.sync.Refresh(context.Background())

	var wg gosync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = f.sync.Send(context.Background(), "falha") }()
	go func() { defer wg.Done(); _ = f.sync.Send(context.Background(), "sobrevive") }()

	waitFor(t, "both pending entries", func() bool { return f.sync.PendingCount() == 2 })
	close(gate)
	wg.Wait()

	if f.sync.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", f.sync.PendingCount())
	}
	var texts []string
	for _, m := range f.sync.Messages() {
		texts = append(texts, m.Text)
	}
	for _, txt := range texts {
		if txt == "falha" {
			t.Errorf("failed entry still present in %v", texts)
		}
	}
	found := false
	for _, txt := range texts {
		if txt == "sobrevive" {
			found = true
		}
	}
	if !found {
		t.Errorf("surviving send missing from %v", texts)
	}

	evt := nextNotice(t, f.notices)
	if evt.Kind != bus.KindNotifyError || evt.Payload.(bus.Notice).Message != "Message rejected" {
		t.Errorf("notice = %v %v, want server message surfaced", evt.Kind, evt.Payload)
	}
}

func TestSendUnauthorizedInvokesHook(t *testing.T) {
	client := &fakeThreadClient{
		sendErr: func(string) error { return fmt.Errorf("POST: %w", api.ErrUnauthorized) },
	}
	f := newThreadFixture(t, client)

	if err := f.sync.Send(context.Background(), "oi"); err == nil {
		t.Fatal("Send() error = nil, want error")
	}
	if *f.unauthed != 1 {
		t.Errorf("unauthorized hook ran %d times, want 1", *f.unauthed)
	}
	if f.sync.PendingCount() != 0 {
		t.Error("rejected send left a pending entry")
	}
	select {
	case evt := <-f.notices:
		t.Errorf("unexpected notice %v %v for session invalidation", evt.Kind, evt.Payload)
	default:
	}
}

func TestSendEmptyIsIgnored(t *testing.T) {
	client := &fakeThreadClient{}
	f := newThreadFixture(t, client)

	if err := f.sync.Send(context.Background(), ""); err != nil {
		t.Fatalf("Send(\"\") error = %v", err)
	}
	client.mu.Lock()
	calls := client.sendCalls
	client.mu.Unlock()
	if calls != 0 {
		t.Errorf("send calls = %d, want 0 for empty text", calls)
	}
}

func TestThreadLoadCachedPrimesHistory(t *testing.T) {
	client := &fakeThreadClient{}
	f := newThreadFixture(t, client)
	_ = f.cache.ReplaceMessages("c1", []api.Message{{ID: "m1"}, {ID: "m2"}})

	f.sync.LoadCached()

	if got := len(f.sync.Messages()); got != 2 {
		t.Errorf("messages = %d, want 2 from cache", got)
	}
	if got := client.calls(); got != 0 {
		t.Errorf("LoadCached() hit the network %d times", got)
	}
}

func TestStateMachineRejectsInvalidTransition(t *testing.T) {
	m := NewStateMachine()
	if m.Current() != StateIdle {
		t.Fatalf("initial state = %s, want %s", m.Current(), StateIdle)
	}
	if err := m.To(StateLoaded); err == nil {
		t.Error("To(loaded) from idle succeeded, want error")
	}
	if err := m.To(StateLoading); err != nil {
		t.Errorf("To(loading) error = %v", err)
	}
	if err := m.To(StateLoading); err != nil {
		t.Errorf("self-transition error = %v", err)
	}
	if err := m.To(StateLoaded); err != nil {
		t.Errorf("To(loaded) error = %v", err)
	}
	if err := m.To(StateLoading); err == nil {
		t.Error("loaded view dropped back to loading, want rejection")
	}
}
