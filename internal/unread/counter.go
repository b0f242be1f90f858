// Package unread holds the aggregate unread-message badge value.
package unread

import (
	"strconv"
	"sync"
	"time"

	"github.com/ltavares/feira/internal/bus"
)

// badgeCap is the largest count rendered literally; anything above shows "99+".
const badgeCap = 99

// Counter is the process-wide aggregate unread count. It is session-scoped:
// nothing is persisted, the next successful inbox fetch rebuilds it.
type Counter struct {
	mu    sync.Mutex
	total int
	bus   *bus.Bus
}

// NewCounter creates a counter starting at zero.
func NewCounter(b *bus.Bus) *Counter {
	return &Counter{bus: b}
}

// SetTotal replaces the aggregate with the server-supplied total.
// Negative values clamp to zero.
func (c *Counter) SetTotal(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	changed := c.total != n
	c.total = n
	c.mu.Unlock()
	if changed {
		c.notify(n)
	}
}

// DecrementBy lowers the aggregate after a local optimistic removal, such as
// deleting a conversation with n unread messages. Clamped at zero.
func (c *Counter) DecrementBy(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	before := c.total
	c.total -= n
	if c.total < 0 {
		c.total = 0
	}
	after := c.total
	c.mu.Unlock()
	if after != before {
		c.notify(after)
	}
}

// Total returns the current aggregate.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// FormatBadge renders the aggregate for navigation chrome. Empty string
// means "do not render a badge".
func (c *Counter) FormatBadge() string {
	return FormatBadge(c.Total())
}

// FormatBadge renders any unread count using the shared display contract:
// "" for zero, the decimal string for 1..99, exactly "99+" above that.
func FormatBadge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > badgeCap:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}

func (c *Counter) notify(total int) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      bus.KindUnreadChanged,
		Timestamp: time.Now(),
		Payload:   bus.UnreadChange{Total: total},
	})
}
