package sync

import (
	"context"
	"errors"
	"strconv"
	gosync "sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/bus"
	"github.com/ltavares/feira/internal/notify"
	"github.com/ltavares/feira/internal/unread"
)

// InboxClient is the slice of the API client the list engine needs.
type InboxClient interface {
	ListConversations(ctx context.Context) (*api.Inbox, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

// ConversationCache persists the confirmed conversation list and sync
// bookkeeping across runs.
type ConversationCache interface {
	ReplaceConversations(convs []api.Conversation) error
	ListConversations() ([]api.Conversation, error)
	DeleteConversation(id string) error
	SetState(key, value string) error
	GetState(key string) (string, error)
}

// Sync-state keys persisted alongside the cached list so a restart can show
// the last-known badge and sync time before the first fetch lands.
const (
	stateTotalUnread = "last_total_unread"
	stateSyncedAt    = "last_synced_at"
)

// ListSync keeps the local conversation list aligned with the server.
// Every successful refresh wholesale-replaces the list in server order and
// adopts the server-computed aggregate unread count.
type ListSync struct {
	client   InboxClient
	cache    ConversationCache
	counter  *unread.Counter
	bus      *bus.Bus
	notifier *notify.Notifier
	logger   *zap.Logger

	// limiter throttles the best-effort list refresh triggered by thread
	// activity, which would otherwise refetch the inbox on every thread poll.
	limiter *rate.Limiter

	onUnauthorized func()

	mu            gosync.Mutex
	conversations []api.Conversation
	lastSyncAt    time.Time
}

// NewListSync creates the conversation list engine. cache may be nil for
// headless use. onUnauthorized runs when a user-initiated call comes back 401.
func NewListSync(client InboxClient, cache ConversationCache, counter *unread.Counter,
	b *bus.Bus, notifier *notify.Notifier, logger *zap.Logger,
	throttle time.Duration, onUnauthorized func()) *ListSync {
	if throttle <= 0 {
		throttle = time.Second
	}
	return &ListSync{
		client:         client,
		cache:          cache,
		counter:        counter,
		bus:            b,
		notifier:       notifier,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Every(throttle), 1),
		onUnauthorized: onUnauthorized,
	}
}

// LoadCached primes the in-memory list and the unread badge from the local
// cache so the UI has something to show before the first fetch completes.
// Missing or empty cache is not an error. LastSyncAt stays zero: the cached
// view counts as stale until the server confirms it this run.
func (s *ListSync) LoadCached() {
	if s.cache == nil {
		return
	}
	if v, err := s.cache.GetState(stateTotalUnread); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.counter.SetTotal(n)
		}
	}
	convs, err := s.cache.ListConversations()
	if err != nil {
		s.logger.Warn("loading cached conversations failed", zap.Error(err))
		return
	}
	if len(convs) == 0 {
		return
	}
	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()
	s.publishUpdated()
}

// CachedSyncAt returns when a previous run last confirmed the list with the
// server, or zero when the cache has never been synced.
func (s *ListSync) CachedSyncAt() time.Time {
	if s.cache == nil {
		return time.Time{}
	}
	v, err := s.cache.GetState(stateSyncedAt)
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Refresh fetches the inbox and replaces local state with it. This is the
// fetch operation the list poller drives; errors are returned unclassified
// so the poller can apply its backoff and session handling.
func (s *ListSync) Refresh(ctx context.Context) error {
	inbox, err := s.client.ListConversations(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.conversations = inbox.Conversations
	s.lastSyncAt = now
	s.mu.Unlock()

	s.counter.SetTotal(inbox.TotalUnread)

	if s.cache != nil {
		if err := s.cache.ReplaceConversations(inbox.Conversations); err != nil {
			s.logger.Warn("caching conversations failed", zap.Error(err))
		}
		if err := s.cache.SetState(stateTotalUnread, strconv.Itoa(inbox.TotalUnread)); err != nil {
			s.logger.Warn("caching unread total failed", zap.Error(err))
		}
		if err := s.cache.SetState(stateSyncedAt, now.UTC().Format(time.RFC3339)); err != nil {
			s.logger.Warn("caching sync time failed", zap.Error(err))
		}
	}

	s.publishUpdated()
	return nil
}

// MaybeRefresh runs Refresh if the throttle window allows it. Used by the
// thread engine after fetching messages, which marks them read server-side
// and leaves the list's unread counts stale. Best effort: failures are
// logged, never surfaced.
func (s *ListSync) MaybeRefresh(ctx context.Context) {
	if !s.limiter.Allow() {
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Debug("throttled list refresh failed", zap.Error(err))
	}
}

// Conversations returns a snapshot of the current list in server order.
func (s *ListSync) Conversations() []api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Get returns one conversation by id.
func (s *ListSync) Get(id string) (api.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return api.Conversation{}, false
}

// LastSyncAt returns when the list was last confirmed by the server.
func (s *ListSync) LastSyncAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncAt
}

// Delete removes a conversation on the server and locally. A 404 means the
// conversation is already gone, which is the outcome the user wanted, so it
// is treated as success with its own notice.
func (s *ListSync) Delete(ctx context.Context, id string) error {
	err := s.client.DeleteConversation(ctx, id)
	switch {
	case err == nil:
		s.removeLocal(id)
		s.notifier.Success("Conversation deleted")
		return nil
	case errors.Is(err, api.ErrNotFound):
		s.removeLocal(id)
		s.notifier.Success("Conversation already deleted")
		return nil
	case errors.Is(err, api.ErrUnauthorized):
		s.logger.Info("delete rejected, session invalid", zap.String("conversation", id))
		if s.onUnauthorized != nil {
			s.onUnauthorized()
		}
		return err
	default:
		s.logger.Warn("deleting conversation failed", zap.String("conversation", id), zap.Error(err))
		s.notifier.Error(api.ErrorMessage(err))
		return err
	}
}

// Reset drops all local list state. Used when the session is invalidated;
// the next login's first fetch rebuilds everything.
func (s *ListSync) Reset() {
	s.mu.Lock()
	s.conversations = nil
	s.lastSyncAt = time.Time{}
	s.mu.Unlock()
	s.publishUpdated()
}

func (s *ListSync) removeLocal(id string) {
	s.mu.Lock()
	var removed *api.Conversation
	kept := s.conversations[:0]
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			c := s.conversations[i]
			removed = &c
			continue
		}
		kept = append(kept, s.conversations[i])
	}
	s.conversations = kept
	s.mu.Unlock()

	if removed == nil {
		return
	}
	// The deleted conversation's unread messages no longer count toward the
	// badge; the next full refresh confirms the server agrees.
	s.counter.DecrementBy(removed.UnreadCount)

	if s.cache != nil {
		if err := s.cache.DeleteConversation(id); err != nil {
			s.logger.Warn("removing cached conversation failed", zap.Error(err))
		}
	}
	s.publishUpdated()
}

func (s *ListSync) publishUpdated() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: bus.KindListUpdated, Timestamp: time.Now()})
}
