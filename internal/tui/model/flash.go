// Package model holds UI-side presentation state.
package model

import (
	"sync"
	"time"
)

// Flash holds the transient status-bar message. Errors replace successes;
// whatever was set last wins until it expires.
type Flash struct {
	mu      sync.RWMutex
	message string
	isError bool
	expires time.Time
}

// Set stores a message that expires after d.
func (f *Flash) Set(msg string, isError bool, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.isError = isError
	f.expires = time.Now().Add(d)
}

// Get returns the current message and whether it is an error.
// Expired messages read as empty.
func (f *Flash) Get() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", false
	}
	return f.message, f.isError
}
