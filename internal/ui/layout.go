package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/theme"
)

// Layout manages the terminal frame: a header, the content area, a
// toast line and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	ToastHeight     int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions. The
// header, toast line and status bar are one row each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		ToastHeight:     1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view.
func (l Layout) ContentHeight() int {
	return max(0, l.Height-l.HeaderHeight-l.ToastHeight-l.StatusBarHeight)
}

// RenderHeader renders the title on the left and status on the right.
func (l Layout) RenderHeader(title, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Render(status)
	return l.fill(theme.HeaderStyle, left, right)
}

// RenderToasts renders the newest toast, with a count of the others.
func (l Layout) RenderToasts(toasts []state.Toast) string {
	if len(toasts) == 0 {
		return ""
	}
	t := toasts[len(toasts)-1]
	style := theme.ToastInfoStyle
	if t.Kind == state.ToastError {
		style = theme.ToastErrorStyle
	}
	text := t.Text
	if more := len(toasts) - 1; more > 0 {
		text += " (+" + strings.Repeat("•", min(more, 3)) + ")"
	}
	return style.MaxWidth(l.Width).Render(text)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.fill(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints), "")
}

// RenderWithFrame stacks the header, content, toast line and status bar.
func (l Layout) RenderWithFrame(header, content, toast, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, toast, statusBar)
}

func (l Layout) fill(style lipgloss.Style, left, right string) string {
	gap := max(0, l.Width-lipgloss.Width(left)-lipgloss.Width(right))
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}
