package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/ltavares/feira/internal/sync"
)

// nearBottomRows is how close to the end the viewport must be for a refresh
// to keep it pinned to the newest message. A reader who scrolled further up
// stays where they are.
const nearBottomRows = 3

// ThreadView renders one conversation's messages, oldest first, with
// pending optimistic sends at the tail.
type ThreadView struct {
	*tview.TextView
	lineCount int
}

// NewThreadView creates the message history view.
func NewThreadView() *ThreadView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &ThreadView{TextView: tv}
}

// SetHeading updates the title with the counterpart and listing names.
func (tv *ThreadView) SetHeading(contact, adTitle string) {
	title := " " + sanitizeForTerminal(contact)
	if adTitle != "" {
		title += " · " + sanitizeForTerminal(adTitle)
	}
	tv.SetTitle(title + " ")
}

// Update re-renders the thread. The viewport follows new messages only when
// it was already near the bottom.
func (tv *ThreadView) Update(msgs []sync.ThreadMessage, selfID string, state sync.ViewState) {
	row, _ := tv.GetScrollOffset()
	_, _, _, height := tv.GetInnerRect()
	follow := shouldFollow(row, height, tv.lineCount)

	tv.Clear()
	var b strings.Builder

	switch {
	case len(msgs) == 0 && state == sync.StateLoading:
		b.WriteString("[::d]Loading messages...[-:-:-]\n")
	case len(msgs) == 0 && state == sync.StateFailed:
		b.WriteString("[red]Couldn't load messages. Retrying...[-]\n")
	case len(msgs) == 0:
		b.WriteString("[::d]No messages yet. Press i to write one.[-:-:-]\n")
	}

	for i := range msgs {
		m := &msgs[i]
		sender := m.SenderName
		if m.SenderID == selfID {
			sender = "You"
		}
		if sender == "" {
			sender = m.SenderID
		}

		ts := formatTimestamp(m.CreatedAt)
		if m.Pending {
			fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]sending...[-:-:-]\n[::d]%s[-:-:-]\n\n",
				sanitizeForTerminal(sender), sanitizeForTerminal(m.Text))
			continue
		}
		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			sanitizeForTerminal(sender), ts, sanitizeForTerminal(m.Text))
	}

	text := b.String()
	tv.lineCount = strings.Count(text, "\n")
	_, _ = fmt.Fprint(tv, text)

	if follow {
		tv.ScrollToEnd()
	}
}

// shouldFollow decides whether a refresh keeps the viewport pinned to the
// newest message: yes when nothing was rendered yet, or when the bottom of
// the viewport sat within nearBottomRows of the last line.
func shouldFollow(offsetRow, height, lineCount int) bool {
	if lineCount == 0 {
		return true
	}
	return offsetRow+height >= lineCount-nearBottomRows
}
