// Package keys holds the TUI keybinding registry.
package keys

import "github.com/gdamore/tcell/v2"

// Binding ties one key to a handler within a page scope.
type Binding struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether the event triggers this binding.
func (b *Binding) Matches(ev *tcell.EventKey) bool {
	if b.Key != tcell.KeyRune {
		return ev.Key() == b.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
}

// Registry dispatches key events to bindings by page. Page bindings win
// over globals; within a scope, bindings match in registration order.
type Registry struct {
	global []*Binding
	pages  map[string][]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Binding)}
}

// AddGlobal registers a binding active on every page.
func (r *Registry) AddGlobal(b *Binding) {
	r.global = append(r.global, b)
}

// AddPage registers a binding active only on the named page.
func (r *Registry) AddPage(page string, b *Binding) {
	r.pages[page] = append(r.pages[page], b)
}

// Hints returns the visible binding descriptions for a page, page-specific
// first, in registration order.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, b := range r.pages[page] {
		if b.Visible {
			hints = append(hints, b.Description)
		}
	}
	for _, b := range r.global {
		if b.Visible {
			hints = append(hints, b.Description)
		}
	}
	return hints
}

// HandleEvent runs the first matching binding for the page. Reports whether
// a binding consumed the event.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, b := range r.pages[page] {
		if b.Matches(ev) {
			b.Handler()
			return true
		}
	}
	for _, b := range r.global {
		if b.Matches(ev) {
			b.Handler()
			return true
		}
	}
	return false
}
