package notifications

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/homesync/internal/keys"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/theme"
)

// MarkReadMsg asks for one notification to be marked read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks for every notification to be marked read.
type MarkAllReadMsg struct{}

// DeleteMsg asks for a notification to be deleted.
type DeleteMsg struct {
	ID string
}

// Model is the notification list view.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	snapshot    state.NotificationState
	query       string
	unreadOnly  bool
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a notification list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetState replaces the rendered notifications with a store snapshot.
func (m *Model) SetState(s state.NotificationState) tea.Cmd {
	m.snapshot = s
	return m.refilter()
}

func (m *Model) refilter() tea.Cmd {
	q := strings.ToLower(m.query)
	items := make([]list.Item, 0, len(m.snapshot.Items))
	for _, n := range m.snapshot.Items {
		if m.unreadOnly && !n.IsUnread() {
			continue
		}
		if q != "" && !matches(n, q) {
			continue
		}
		items = append(items, Item{Notification: n})
	}
	return m.list.SetItems(items)
}

func matches(n model.Notification, q string) bool {
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Message), q)
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the notification list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = strings.TrimSpace(m.searchInput.Value())
		return m, m.refilter()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.refilter()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Select):
		n, ok := m.Selected()
		if !ok || !n.IsUnread() {
			return m, nil
		}
		return m, emit(MarkReadMsg{ID: n.ID})

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.snapshot.UnreadCount == 0 {
			return m, nil
		}
		return m, emit(MarkAllReadMsg{})

	case key.Matches(msg, m.keys.Delete):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, emit(DeleteMsg{ID: n.ID})

	case key.Matches(msg, m.keys.UnreadOnly):
		m.unreadOnly = !m.unreadOnly
		return m, m.refilter()

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// FilterSummary describes the active filters, or "".
func (m Model) FilterSummary() string {
	var parts []string
	if m.unreadOnly {
		parts = append(parts, "unread only")
	}
	if m.query != "" {
		parts = append(parts, "search: "+m.query)
	}
	return strings.Join(parts, " | ")
}

// View renders the notification list.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case !m.snapshot.Loaded && m.snapshot.Error != "":
		return style.Render("Couldn't load notifications.\n" + m.snapshot.Error + "\n\nPress r to retry.")
	case !m.snapshot.Loaded:
		return style.Render("Loading notifications...")
	case m.FilterSummary() != "":
		return style.Render("No matching notifications.\nPress u or / to adjust filters.")
	default:
		return style.Render("You're all caught up.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
