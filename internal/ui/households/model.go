package households

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/homesync/internal/keys"
	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/theme"
)

// CloseMsg signals the parent to close the picker.
type CloseMsg struct{}

// ChosenMsg reports the household the user picked.
type ChosenMsg struct {
	ID string
}

// Model is the household picker.
type Model struct {
	keys        *keys.KeyMap
	snapshot    state.HouseholdState
	selectedIdx int
	width       int
	height      int
}

// New creates a household picker.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height}
}

// SetState replaces the households shown. The cursor starts on the
// active household.
func (m *Model) SetState(s state.HouseholdState) {
	m.snapshot = s
	if m.selectedIdx >= len(s.Households) {
		m.selectedIdx = max(0, len(s.Households)-1)
	}
}

// Open moves the cursor to the active household.
func (m *Model) Open() {
	for i, h := range m.snapshot.Households {
		if h.ID == m.snapshot.ActiveID {
			m.selectedIdx = i
			return
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	n := len(m.snapshot.Households)

	switch {
	case key.Matches(k, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(k, m.keys.Down):
		if n > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % n
		}

	case key.Matches(k, m.keys.Up):
		if n > 0 {
			m.selectedIdx = (m.selectedIdx - 1 + n) % n
		}

	case key.Matches(k, m.keys.Select):
		if n == 0 {
			return m, nil
		}
		id := m.snapshot.Households[m.selectedIdx].ID
		return m, func() tea.Msg { return ChosenMsg{ID: id} }
	}
	return m, nil
}

// View renders the picker with the members of the focused household.
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Households"))
	b.WriteString("\n\n")

	if len(m.snapshot.Households) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("You're not a member of any household yet."))
	}
	for i, h := range m.snapshot.Households {
		label := h.Name
		if h.ID == m.snapshot.ActiveID {
			label += lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("  (active)")
		}
		if i == m.selectedIdx {
			b.WriteString(theme.SelectedItemStyle.Render(label))
		} else {
			b.WriteString(theme.ListItemStyle.Render(label))
		}
		b.WriteString("\n")
	}

	if i := m.selectedIdx; i < len(m.snapshot.Households) {
		members := m.snapshot.Members[m.snapshot.Households[i].ID]
		if len(members) > 0 {
			b.WriteString("\n")
			b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf("Members (%d)", len(members))))
			b.WriteString("\n")
			for _, mem := range members {
				b.WriteString(theme.DimmedStyle.Render("  " + mem.Name + " · " + mem.Role))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("enter switch | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
