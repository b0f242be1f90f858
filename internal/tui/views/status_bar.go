package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// StatusBar is the single bottom line: profile, aggregate unread badge,
// key hints, and the current flash message.
type StatusBar struct {
	*tview.TextView
	profile    string
	badge      string
	hints      []string
	stale      bool
	staleAt    time.Time
	flash      string
	flashIsErr bool
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetBadge updates the aggregate unread badge. Empty hides it.
func (sb *StatusBar) SetBadge(badge string) {
	sb.badge = badge
	sb.render()
}

// SetHints updates the key hints for the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetStale marks the display as cached data not yet confirmed by the
// server this run. at is when a previous run last synced, if known.
func (sb *StatusBar) SetStale(stale bool, at time.Time) {
	sb.stale = stale
	sb.staleAt = at
	sb.render()
}

// SetFlash updates the transient message.
func (sb *StatusBar) SetFlash(msg string, isError bool) {
	sb.flash = msg
	sb.flashIsErr = isError
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	badge := ""
	if sb.badge != "" {
		badge = fmt.Sprintf(" [red::b](%s)[-:-:-]", sb.badge)
	}

	stale := ""
	if sb.stale {
		stale = " [::d]cached[-:-:-]"
		if !sb.staleAt.IsZero() {
			stale = " [::d]cached " + formatTimestamp(sb.staleAt.Local()) + "[-:-:-]"
		}
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-]%s%s | %s | %s",
		sb.profile, badge, stale, strings.Join(sb.hints, " "), time.Now().Format("15:04"))
	if sb.flash != "" {
		color := "yellow"
		if sb.flashIsErr {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
