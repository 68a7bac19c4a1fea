package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification headline.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line.
func (i Item) Description() string {
	return strings.Join([]string{
		i.Notification.Type,
		relativeTime(i.Notification.CreatedAt, time.Now()),
	}, " | ")
}

// Delegate implements list.ItemDelegate for notification rows.
type Delegate struct {
	// Now is the clock used for relative timestamps.
	Now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws the headline row and a dimmed body row.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	marker := "○"
	if n.IsUnread() {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	kind := theme.KindStyle(n.Type).Render(kindLabel(n.Type))

	title := n.Title
	if n.IsUnread() {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	pending := ""
	if n.Optimistic {
		pending = theme.PendingStyle.Render(" syncing…")
	}

	when := theme.DimmedStyle.Render(relativeTime(n.CreatedAt, now()))

	head := fmt.Sprintf("%s %s %s%s  %s", marker, kind, title, pending, when)
	body := theme.DimmedStyle.Render("   " + truncate(n.Message, max(10, m.Width()-8)))
	if !n.IsUnread() {
		head = theme.DimmedStyle.Render(head)
	}

	style := theme.ListItemStyle
	if index == m.Index() {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(head+"\n"+body))
}

// kindLabel shortens a notification type to a badge.
func kindLabel(kind string) string {
	switch kind {
	case "bill_due", "payment_due":
		return "BILL"
	case "task_assigned", "task_due":
		return "TASK"
	case "announcement":
		return "NEWS"
	case "message", "poll":
		return "CHAT"
	case "":
		return "INFO"
	default:
		return strings.ToUpper(kind[:min(4, len(kind))])
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
