package bus

import "time"

// Event kinds published by the sync engines and the notifier.
const (
	KindListUpdated        = "list.updated"
	KindThreadUpdated      = "thread.updated"
	KindUnreadChanged      = "unread.changed"
	KindSessionInvalidated = "session.invalidated"
	KindNotifyError        = "notify.error"
	KindNotifySuccess      = "notify.success"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ThreadUpdate is the payload for thread.updated events.
type ThreadUpdate struct {
	ConversationID string
}

// UnreadChange is the payload for unread.changed events.
type UnreadChange struct {
	Total int
}

// Notice is the payload for notify.* events.
type Notice struct {
	Message string
}
