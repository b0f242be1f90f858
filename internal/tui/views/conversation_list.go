package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/unread"
)

// ConversationList is the inbox table: one row per conversation, in the
// order the server returned them.
type ConversationList struct {
	*tview.Table
	convs  []api.Conversation
	selfID string
}

// NewConversationList creates the inbox table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")
	return &ConversationList{Table: table}
}

// SetSelfID marks which participant is the current user so rows show the
// counterpart's name.
func (cl *ConversationList) SetSelfID(id string) {
	cl.selfID = id
}

// Update re-renders the table from a fresh snapshot, keeping the cursor on
// the same conversation when it survived the refresh.
func (cl *ConversationList) Update(convs []api.Conversation) {
	selected := cl.SelectedConversation()
	cl.convs = convs
	cl.Clear()

	cl.SetCell(0, 0, headerCell(" Contact"))
	cl.SetCell(0, 1, headerCell(" Listing"))
	cl.SetCell(0, 2, headerCell(" Last Message"))
	cl.SetCell(0, 3, headerCell(" Unread"))
	cl.SetCell(0, 4, headerCell(" Time"))

	selectRow := 1
	for i := range convs {
		c := &convs[i]
		row := i + 1
		if c.ID == selected {
			selectRow = row
		}

		name := c.OtherParticipant(cl.selfID).Name
		if name == "" {
			name = c.ID
		}
		badge := unread.FormatBadge(c.UnreadCount)
		if badge != "" {
			badge = "[::b]" + badge + "[-:-:-]"
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+sanitizeForTerminal(name)).SetMaxWidth(24).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(c.AdTitle)).SetMaxWidth(28).SetExpansion(1))
		cl.SetCell(row, 2, tview.NewTableCell(" "+sanitizeForTerminal(c.LastMessagePreview)).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 3, tview.NewTableCell(" "+badge).SetMaxWidth(7))
		cl.SetCell(row, 4, tview.NewTableCell(" "+formatTimestamp(c.UpdatedAt)).SetMaxWidth(12))
	}

	if len(convs) > 0 {
		cl.Select(selectRow, 0)
	}
}

// SelectedConversation returns the id of the conversation under the cursor.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(cl.convs) {
		return cl.convs[idx].ID
	}
	return ""
}

func headerCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).
		SetSelectable(false).
		SetTextColor(tview.Styles.SecondaryTextColor)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// ConversationLabel renders a short description for confirmation prompts.
func ConversationLabel(c api.Conversation, selfID string) string {
	name := c.OtherParticipant(selfID).Name
	if name == "" {
		name = c.ID
	}
	if c.AdTitle == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, c.AdTitle)
}
