package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/bus"
	"github.com/ltavares/feira/internal/notify"
)

// ThreadClient is the slice of the API client the thread engine needs.
type ThreadClient interface {
	ListMessages(ctx context.Context, conversationID string) ([]api.Message, error)
	SendMessage(ctx context.Context, conversationID, text string) (*api.Message, error)
}

// MessageCache persists confirmed message history across runs.
type MessageCache interface {
	ReplaceMessages(conversationID string, msgs []api.Message) error
	ListMessages(conversationID string) ([]api.Message, error)
}

// ThreadMessage is one entry of an open thread. Pending entries are local
// optimistic sends the server has not confirmed; they always carry a
// ClientID and sit after every confirmed message.
type ThreadMessage struct {
	api.Message
	ClientID string
	Pending  bool
}

// ThreadSync keeps one open conversation's message history aligned with the
// server. A refresh wholesale-replaces the confirmed history and re-appends
// whichever optimistic sends are still unconfirmed.
type ThreadSync struct {
	client   ThreadClient
	cache    MessageCache
	list     *ListSync
	notifier *notify.Notifier
	bus      *bus.Bus
	logger   *zap.Logger

	conversationID string
	selfID         string
	onUnauthorized func()

	machine *StateMachine

	mu       gosync.Mutex
	inFlight bool
	// appliedSeq guards against a slow response overwriting a newer one.
	// Responses apply only if no later refresh has applied since they started.
	nextSeq    uint64
	appliedSeq uint64
	confirmed  []ThreadMessage
	pending    []ThreadMessage
}

// NewThreadSync creates the engine for one open conversation. selfID marks
// which messages the current user sent. cache may be nil.
func NewThreadSync(client ThreadClient, cache MessageCache, list *ListSync,
	notifier *notify.Notifier, b *bus.Bus, logger *zap.Logger,
	conversationID, selfID string, onUnauthorized func()) *ThreadSync {
	return &ThreadSync{
		client:         client,
		cache:          cache,
		list:           list,
		notifier:       notifier,
		bus:            b,
		logger:         logger,
		conversationID: conversationID,
		selfID:         selfID,
		onUnauthorized: onUnauthorized,
		machine:        NewStateMachine(),
	}
}

// ConversationID returns the conversation this engine is bound to.
func (s *ThreadSync) ConversationID() string {
	return s.conversationID
}

// State returns the view lifecycle state of the thread.
func (s *ThreadSync) State() ViewState {
	return s.machine.Current()
}

// SelfID returns the current user's id for rendering own messages.
func (s *ThreadSync) SelfID() string {
	return s.selfID
}

// LoadCached primes the thread from the local cache so an opened conversation
// shows its last known history before the first fetch completes.
func (s *ThreadSync) LoadCached() {
	if s.cache == nil {
		return
	}
	msgs, err := s.cache.ListMessages(s.conversationID)
	if err != nil {
		s.logger.Warn("loading cached messages failed", zap.Error(err))
		return
	}
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	if s.appliedSeq == 0 && len(s.confirmed) == 0 {
		s.confirmed = wrapConfirmed(msgs)
	}
	s.mu.Unlock()
	s.publishUpdated()
}

// Refresh fetches the full message list and replaces the confirmed history.
// Fetching marks the messages read server-side, so a successful refresh also
// nudges the conversation list to re-sync its unread counts (throttled).
// A refresh already in flight makes this call a no-op.
func (s *ThreadSync) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()

	if cur := s.machine.Current(); cur == StateIdle || cur == StateFailed {
		if err := s.machine.To(StateLoading); err != nil {
			s.logger.Warn("thread state", zap.Error(err))
		}
	}

	msgs, err := s.client.ListMessages(ctx, s.conversationID)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.mu.Unlock()
		if s.machine.Current() == StateLoading {
			_ = s.machine.To(StateFailed)
		}
		return err
	}
	if seq <= s.appliedSeq {
		s.mu.Unlock()
		return nil
	}
	s.appliedSeq = seq
	s.confirmed = wrapConfirmed(msgs)
	s.mu.Unlock()

	if err := s.machine.To(StateLoaded); err != nil {
		s.logger.Warn("thread state", zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.ReplaceMessages(s.conversationID, msgs); err != nil {
			s.logger.Warn("caching messages failed", zap.Error(err))
		}
	}

	s.publishUpdated()

	if s.list != nil {
		s.list.MaybeRefresh(ctx)
	}
	return nil
}

// Messages returns the thread snapshot: confirmed history in server order,
// then pending sends in submission order.
func (s *ThreadSync) Messages() []ThreadMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThreadMessage, 0, len(s.confirmed)+len(s.pending))
	out = append(out, s.confirmed...)
	out = append(out, s.pending...)
	return out
}

// Send submits a message. The entry appears immediately as pending; on
// confirmation it is swapped for the server's copy and a full refresh
// realigns the history. On failure exactly the failed entry is removed and
// everything else stays.
func (s *ThreadSync) Send(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	clientID := uuid.NewString()
	entry := ThreadMessage{
		Message: api.Message{
			ConversationID: s.conversationID,
			SenderID:       s.selfID,
			Text:           text,
			CreatedAt:      time.Now(),
		},
		ClientID: clientID,
		Pending:  true,
	}

	s.mu.Lock()
	s.pending = append(s.pending, entry)
	s.mu.Unlock()
	s.publishUpdated()

	msg, err := s.client.SendMessage(ctx, s.conversationID, text)
	if err != nil {
		s.removePending(clientID)
		s.publishUpdated()
		switch {
		case errors.Is(err, api.ErrUnauthorized):
			s.logger.Info("send rejected, session invalid",
				zap.String("conversation", s.conversationID))
			if s.onUnauthorized != nil {
				s.onUnauthorized()
			}
		default:
			s.logger.Warn("sending message failed",
				zap.String("conversation", s.conversationID), zap.Error(err))
			s.notifier.Error(api.ErrorMessage(err))
		}
		return err
	}

	// Confirmed: promote the entry in place so it never flickers out of the
	// view, then let a full refresh adopt the server's ordering. A poll that
	// ran between the POST committing and this point may already carry the
	// server copy, so append only if its id is new.
	s.mu.Lock()
	s.removePendingLocked(clientID)
	if !s.hasConfirmedLocked(msg.ID) {
		s.confirmed = append(s.confirmed, ThreadMessage{Message: *msg})
	}
	s.mu.Unlock()
	s.publishUpdated()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Debug("post-send refresh failed", zap.Error(err))
	}
	return nil
}

// PendingCount returns how many optimistic sends await confirmation.
func (s *ThreadSync) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ThreadSync) hasConfirmedLocked(id string) bool {
	for i := range s.confirmed {
		if s.confirmed[i].ID == id {
			return true
		}
	}
	return false
}

func (s *ThreadSync) removePending(clientID string) {
	s.mu.Lock()
	s.removePendingLocked(clientID)
	s.mu.Unlock()
}

func (s *ThreadSync) removePendingLocked(clientID string) {
	kept := s.pending[:0]
	for _, m := range s.pending {
		if m.ClientID == clientID {
			continue
		}
		kept = append(kept, m)
	}
	s.pending = kept
}

func (s *ThreadSync) publishUpdated() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindThreadUpdated,
		Timestamp: time.Now(),
		Payload:   bus.ThreadUpdate{ConversationID: s.conversationID},
	})
}

func wrapConfirmed(msgs []api.Message) []ThreadMessage {
	out := make([]ThreadMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ThreadMessage{Message: m}
	}
	return out
}
