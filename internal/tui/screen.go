package tui

import "github.com/gdamore/tcell/v2"

// focusScreen wraps a tcell screen to observe terminal focus reporting.
// Focus transitions feed the polling gate; everything else passes through.
type focusScreen struct {
	tcell.Screen
	onFocus func(focused bool)
}

func newFocusScreen(onFocus func(bool)) (*focusScreen, error) {
	inner, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &focusScreen{Screen: inner, onFocus: onFocus}, nil
}

func (s *focusScreen) Init() error {
	if err := s.Screen.Init(); err != nil {
		return err
	}
	// Not every terminal reports focus; without it the window simply counts
	// as always visible.
	s.Screen.EnableFocus()
	return nil
}

func (s *focusScreen) PollEvent() tcell.Event {
	ev := s.Screen.PollEvent()
	s.observe(ev)
	return ev
}

func (s *focusScreen) ChannelEvents(ch chan<- tcell.Event, quit <-chan struct{}) {
	inner := make(chan tcell.Event, 16)
	go s.Screen.ChannelEvents(inner, quit)
	go func() {
		defer close(ch)
		for ev := range inner {
			s.observe(ev)
			select {
			case ch <- ev:
			case <-quit:
				return
			}
		}
	}()
}

func (s *focusScreen) observe(ev tcell.Event) {
	if f, ok := ev.(*tcell.EventFocus); ok && s.onFocus != nil {
		s.onFocus(f.Focused)
	}
}
