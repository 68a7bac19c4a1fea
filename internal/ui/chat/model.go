package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/theme"
)

// CloseMsg signals the parent to close the chat.
type CloseMsg struct{}

// SendMsg asks for a message to be posted to a household.
type SendMsg struct {
	HouseholdID string
	Request     api.CreateMessageRequest
}

// VoteMsg asks for the user's selection on a poll to be replaced.
type VoteMsg struct {
	HouseholdID string
	MessageID   string
	Options     []int
}

// DeleteMsg asks for one of the user's messages to be deleted.
type DeleteMsg struct {
	HouseholdID string
	MessageID   string
}

// DraftChangedMsg reports the current unsent input of a household.
type DraftChangedMsg struct {
	HouseholdID string
	Text        string
}

// Model is the household chat view.
type Model struct {
	input    textarea.Model
	viewport viewport.Model

	householdID string
	title       string
	userID      string
	names       map[string]string
	messages    []model.Message
	loaded      bool
	fieldErrors state.FieldErrors
	inputErr    string

	width  int
	height int
}

// New creates a chat view.
func New(width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Message the household... (/poll Q | A | B, /vote N, /delete)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetWidth(width - 4)
	ta.SetHeight(3)
	ta.CharLimit = 2000

	vp := viewport.New(width-4, max(4, height-9))

	return Model{
		input:    ta,
		viewport: vp,
		names:    map[string]string{},
		width:    width,
		height:   height,
	}
}

// Open switches the view to a household and restores its draft.
func (m *Model) Open(householdID, title, userID, draft string) tea.Cmd {
	if householdID != m.householdID {
		m.messages = nil
		m.loaded = false
	}
	m.householdID = householdID
	m.title = title
	m.userID = userID
	m.inputErr = ""
	m.input.SetValue(draft)
	m.refreshViewport()
	return m.input.Focus()
}

// HouseholdID returns the household being shown.
func (m Model) HouseholdID() string {
	return m.householdID
}

// SetMessages updates the history from a store snapshot.
func (m *Model) SetMessages(s state.MessageState) {
	m.messages = s.Messages(m.householdID)
	m.loaded = s.Loaded[m.householdID]
	m.refreshViewport()
}

// SetMembers records display names for message authors.
func (m *Model) SetMembers(members []model.Member) {
	names := make(map[string]string, len(members))
	for _, mem := range members {
		names[mem.UserID] = mem.Name
	}
	m.names = names
	m.refreshViewport()
}

// SetFieldErrors shows validation failures for the send form.
func (m *Model) SetFieldErrors(fe state.FieldErrors) {
	m.fieldErrors = fe
}

// Update handles messages for the chat view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return CloseMsg{} }

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		c, err := ParseInput(text, m.latestPoll())
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		hid := m.householdID
		var out tea.Msg
		switch {
		case c.Send != nil:
			out = SendMsg{HouseholdID: hid, Request: *c.Send}
		case c.Vote != nil:
			out = *c.Vote
		default:
			own := m.latestOwn()
			if own == nil {
				m.inputErr = ErrNothingToDelete.Error()
				return m, nil
			}
			out = DeleteMsg{HouseholdID: hid, MessageID: own.ID}
		}
		m.inputErr = ""
		m.input.Reset()
		return m, tea.Batch(
			func() tea.Msg { return out },
			func() tea.Msg { return DraftChangedMsg{HouseholdID: hid} },
		)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		hid := m.householdID
		return m, tea.Batch(cmd, func() tea.Msg {
			return DraftChangedMsg{HouseholdID: hid, Text: after}
		})
	}
	return m, cmd
}

// latestPoll returns the newest confirmed poll message.
func (m Model) latestPoll() *model.Message {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if msg := m.messages[i]; msg.IsPoll() && !msg.Optimistic {
			return &msg
		}
	}
	return nil
}

// latestOwn returns the user's newest confirmed message.
func (m Model) latestOwn() *model.Message {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if msg := m.messages[i]; msg.UserID == m.userID && !msg.Optimistic {
			return &msg
		}
	}
	return nil
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	if !m.loaded && len(m.messages) == 0 {
		return theme.DimmedStyle.Italic(true).Render("Loading messages...")
	}
	if len(m.messages) == 0 {
		return theme.DimmedStyle.Italic(true).Render("No messages yet. Say hello!")
	}

	var sections []string
	authorStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
	selfStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)

	for _, msg := range m.messages {
		style := authorStyle
		if msg.UserID == m.userID {
			style = selfStyle
		}
		header := style.Render(m.author(msg.UserID)) + " " +
			theme.DimmedStyle.Render(msg.CreatedAt.In(time.Local).Format("Jan 02 15:04"))
		if msg.Optimistic {
			header += theme.PendingStyle.Render("  sending…")
		}
		sections = append(sections, header)

		if msg.IsPoll() {
			sections = append(sections, m.renderPoll(*msg.Poll))
		} else {
			sections = append(sections, msg.Content)
		}
		sections = append(sections, "")
	}
	return strings.Join(sections, "\n")
}

func (m Model) author(userID string) string {
	if userID == m.userID {
		return "You"
	}
	if name, ok := m.names[userID]; ok {
		return name
	}
	return userID
}

func (m Model) renderPoll(p model.Poll) string {
	var b strings.Builder
	kind := "poll"
	if p.MultipleChoice {
		kind = "poll, pick any"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("📊 "+p.Question) +
		theme.DimmedStyle.Render(" ("+kind+")"))

	counts := p.VoteCounts()
	mine := map[int]bool{}
	for _, i := range p.Votes[m.userID] {
		mine[i] = true
	}
	for i, opt := range p.Options {
		mark := " "
		if mine[i] {
			mark = "✓"
		}
		bar := strings.Repeat("█", counts[i])
		fmt.Fprintf(&b, "\n  %s %d. %-20s %s %d", mark, i+1, opt, bar, counts[i])
	}

	var voters []string
	for uid := range p.Votes {
		voters = append(voters, m.author(uid))
	}
	sort.Strings(voters)
	if len(voters) > 0 {
		b.WriteString("\n" + theme.DimmedStyle.Render("  voted: "+strings.Join(voters, ", ")))
	}
	return b.String()
}

// View renders the chat.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite)

	separator := lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(
		strings.Repeat("─", max(0, min(m.width-6, 80))),
	)

	errLine := m.inputErr
	if errLine == "" {
		errLine = formatFieldErrors(m.fieldErrors)
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(m.title),
		m.viewport.View(),
		separator,
		m.input.View(),
		theme.FieldErrorStyle.Render(errLine),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

func formatFieldErrors(fe state.FieldErrors) string {
	if len(fe) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// SetSize updates the chat dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 4)
	m.viewport.Width = width - 4
	m.viewport.Height = max(4, height-9)
}
