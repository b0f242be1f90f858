// Package gate aligns polling with window visibility and session validity.
// Hiding the window or losing the credential only suppresses ticks; timers
// are never torn down, so rapid focus switching costs nothing.
package gate

import "sync"

// CredentialSource reports whether a session credential is present.
type CredentialSource interface {
	Token() (string, bool)
}

// Forcer is the poller surface the gate needs on refocus.
type Forcer interface {
	ForceFetch()
}

// Gate decides whether background polling should run at all.
type Gate struct {
	creds CredentialSource

	mu      sync.Mutex
	visible bool
	forcers []Forcer
}

// New creates a gate. The window counts as visible until told otherwise.
func New(creds CredentialSource) *Gate {
	return &Gate{creds: creds, visible: true}
}

// Register adds a poller to force-fetch when the window regains focus.
func (g *Gate) Register(f Forcer) {
	g.mu.Lock()
	g.forcers = append(g.forcers, f)
	g.mu.Unlock()
}

// Unregister detaches a poller, typically when its view closes.
func (g *Gate) Unregister(f Forcer) {
	g.mu.Lock()
	kept := g.forcers[:0]
	for _, existing := range g.forcers {
		if existing != f {
			kept = append(kept, existing)
		}
	}
	g.forcers = kept
	g.mu.Unlock()
}

// ShouldPoll reports whether ticks may fetch: window visible and a
// credential present.
func (g *Gate) ShouldPoll() bool {
	g.mu.Lock()
	visible := g.visible
	g.mu.Unlock()
	if !visible {
		return false
	}
	_, ok := g.creds.Token()
	return ok
}

// SetVisible records a visibility transition. Regaining visibility with a
// valid credential immediately force-fetches every registered poller, so
// returning to the window shows fresh data without waiting out an interval.
func (g *Gate) SetVisible(visible bool) {
	g.mu.Lock()
	regained := visible && !g.visible
	g.visible = visible
	forcers := make([]Forcer, len(g.forcers))
	copy(forcers, g.forcers)
	g.mu.Unlock()

	if !regained {
		return
	}
	if _, ok := g.creds.Token(); !ok {
		return
	}
	for _, f := range forcers {
		f.ForceFetch()
	}
}
