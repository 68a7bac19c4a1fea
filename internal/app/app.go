package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/keys"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/optimistic"
	"github.com/nhle/homesync/internal/push"
	"github.com/nhle/homesync/internal/session"
	"github.com/nhle/homesync/internal/state"
	appsync "github.com/nhle/homesync/internal/sync"
	"github.com/nhle/homesync/internal/theme"
	"github.com/nhle/homesync/internal/ui"
	"github.com/nhle/homesync/internal/ui/chat"
	"github.com/nhle/homesync/internal/ui/command"
	helpview "github.com/nhle/homesync/internal/ui/help"
	"github.com/nhle/homesync/internal/ui/households"
	"github.com/nhle/homesync/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewNotifications ViewState = iota
	ViewChat
	ViewHouseholds
	ViewHelp
	ViewCommand
)

// householdSelectedMsg reports the outcome of a household switch.
type householdSelectedMsg struct {
	err error
}

// messagesLoadedMsg reports the outcome of loading chat history.
type messagesLoadedMsg struct {
	householdID string
	err         error
}

// Model is the root Bubble Tea model. It renders store snapshots and
// turns key presses into session operations; it never mutates state
// directly.
type Model struct {
	sess *session.Session
	subs *subscriptions
	log  zerolog.Logger

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	prefs        model.Preferences

	notifications notifications.Model
	chat          chat.Model
	households    households.Model
	helpView      helpview.Model
	commandView   command.Model
	spinner       spinner.Model

	notifState     state.NotificationState
	householdState state.HouseholdState
	uiState        state.UIState
	pushState      push.Machine
	authMessage    string
	expired        bool
	ready          bool
}

// New creates the root model for a running session.
func New(sess *session.Session, prefs model.Preferences, log zerolog.Logger) Model {
	k := keys.DefaultKeyMap()
	theme.Apply(prefs.HighContrast)

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		sess:          sess,
		subs:          subscribe(sess.Stores),
		log:           log,
		keys:          k,
		prefs:         prefs,
		notifications: notifications.New(k, 80, 24),
		chat:          chat.New(80, 24),
		households:    households.New(k, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		spinner:       sp,

		notifState:     sess.Stores.Notifications.State(),
		householdState: sess.Stores.Households.State(),
		uiState:        sess.Stores.UI.State(),
	}
	m.notifications.SetState(m.notifState)
	m.households.SetState(m.householdState)
	return m
}

// Init starts polling and the store subscriptions.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.sess.Poller.Start(),
		m.subs.waitNotifications(),
		m.subs.waitHouseholds(),
		m.subs.waitMessages(),
		m.subs.waitUI(),
		waitExpired(m.sess.Expired()),
		tick(),
	}
	if !m.prefs.ReducedMotion {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.notifications.SetSize(w, h)
		m.chat.SetSize(w, h)
		m.households.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		return m, nil

	case notificationsMsg:
		m.notifState = state.NotificationState(msg)
		return m, tea.Batch(m.notifications.SetState(m.notifState), m.subs.waitNotifications())

	case householdsMsg:
		m.householdState = state.HouseholdState(msg)
		m.households.SetState(m.householdState)
		if hid := m.chat.HouseholdID(); hid != "" {
			m.chat.SetMembers(m.householdState.Members[hid])
		}
		if m.currentView == ViewChat && m.chat.HouseholdID() != m.householdState.ActiveID {
			// The active household changed underneath the chat, e.g. from
			// another terminal.
			m.currentView = ViewNotifications
		}
		return m, m.subs.waitHouseholds()

	case messagesMsg:
		m.chat.SetMessages(state.MessageState(msg))
		return m, m.subs.waitMessages()

	case uiMsg:
		m.uiState = state.UIState(msg)
		m.chat.SetFieldErrors(mergeFieldErrors(
			m.uiState.FieldErrors[optimistic.OpSendMessage],
			m.uiState.FieldErrors[optimistic.OpVote],
		))
		return m, m.subs.waitUI()

	case tickMsg:
		now := time.Time(msg)
		if len(m.uiState.Toasts) > 0 {
			m.sess.Stores.UI.Dispatch(state.ExpireToasts{Now: now})
		}
		m.pushState = m.sess.PushState()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authMessage = msg.AuthError.Message
		}
		return m, m.sess.Poller.WaitForNextResult()

	case sessionExpiredMsg:
		m.expired = true
		return m, nil

	case notifications.MarkReadMsg:
		m.sess.Coordinator.MarkRead(msg.ID)
		return m, nil

	case notifications.MarkAllReadMsg:
		m.sess.Coordinator.MarkAllRead()
		return m, nil

	case notifications.DeleteMsg:
		m.sess.Coordinator.Delete(msg.ID)
		return m, nil

	case chat.SendMsg:
		m.sess.Coordinator.SendMessage(msg.HouseholdID, msg.Request)
		return m, nil

	case chat.VoteMsg:
		m.sess.Coordinator.Vote(msg.HouseholdID, msg.MessageID, msg.Options)
		return m, nil

	case chat.DeleteMsg:
		m.sess.Coordinator.DeleteMessage(msg.HouseholdID, msg.MessageID)
		return m, nil

	case chat.DraftChangedMsg:
		m.sess.SaveDraft(msg.HouseholdID, msg.Text)
		return m, nil

	case chat.CloseMsg:
		m.currentView = ViewNotifications
		return m, nil

	case households.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case households.ChosenMsg:
		m.currentView = ViewNotifications
		return m, m.selectHousehold(msg.ID)

	case householdSelectedMsg:
		if msg.err != nil {
			m.toast(state.ToastError, "Couldn't switch household: "+msg.err.Error())
		}
		return m, nil

	case messagesLoadedMsg:
		if msg.err != nil {
			m.toast(state.ToastError, "Couldn't load messages. Showing what's cached.")
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if m.expired {
			if msg.String() == "q" || msg.String() == "ctrl+c" {
				return m, m.quit()
			}
			return m, nil
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that apply outside text inputs.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}

	typing := m.currentView == ViewChat ||
		m.currentView == ViewCommand ||
		(m.currentView == ViewNotifications && m.notifications.Searching())
	if typing {
		if m.currentView == ViewCommand && key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return nil, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewNotifications {
			return m.quit(), true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.open(ViewHelp)
		return nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}

	case key.Matches(msg, m.keys.Command):
		m.open(ViewCommand)
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh):
		m.sess.Poller.RefreshAll()
		return nil, true

	case key.Matches(msg, m.keys.Reconnect):
		m.sess.ReconnectPush()
		return nil, true

	case key.Matches(msg, m.keys.Chat):
		if m.currentView == ViewNotifications {
			return m.openChat(), true
		}

	case key.Matches(msg, m.keys.Households):
		if m.currentView == ViewNotifications {
			m.households.Open()
			m.open(ViewHouseholds)
			return nil, true
		}
	}
	return nil, false
}

func (m *Model) open(v ViewState) {
	if m.currentView != v {
		m.previousView = m.currentView
	}
	m.currentView = v
}

// openChat shows the active household's chat with its saved draft.
func (m *Model) openChat() tea.Cmd {
	hid := m.householdState.ActiveID
	if hid == "" {
		m.toast(state.ToastInfo, "Pick a household first.")
		m.households.Open()
		m.open(ViewHouseholds)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	draft, err := m.sess.Draft(ctx, hid)
	if err != nil {
		m.log.Warn().Err(err).Msg("loading draft")
	}

	title := hid
	if h, ok := m.householdState.Active(); ok {
		title = h.Name
	}
	userID := ""
	if u := m.sess.Stores.Auth.State().User; u != nil {
		userID = u.ID
	}

	focus := m.chat.Open(hid, title, userID, draft)
	m.chat.SetMembers(m.householdState.Members[hid])
	m.chat.SetMessages(m.sess.Stores.Messages.State())
	m.open(ViewChat)

	sess := m.sess
	return tea.Batch(focus, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := sess.LoadMessages(ctx, hid)
		return messagesLoadedMsg{householdID: hid, err: err}
	})
}

func (m *Model) selectHousehold(id string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return householdSelectedMsg{err: sess.SelectHousehold(ctx, id)}
	}
}

func (m *Model) toast(kind state.ToastKind, text string) {
	m.sess.Stores.UI.Dispatch(state.ShowToast{Toast: state.Toast{
		ID:        fmt.Sprintf("app-%d", time.Now().UnixNano()),
		Kind:      kind,
		Text:      text,
		ExpiresAt: time.Now().Add(optimistic.ToastTTL),
	}})
}

func (m *Model) quit() tea.Cmd {
	m.subs.close()
	return tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
	case ViewHouseholds:
		m.households, cmd = m.households.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.status())
	toast := m.layout.RenderToasts(m.uiState.Toasts)
	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, m.renderContent(), toast, statusBar)
}

func (m Model) renderContent() string {
	if m.expired {
		return lipgloss.NewStyle().
			Width(m.layout.ContentWidth()).
			Height(m.layout.ContentHeight()).
			Align(lipgloss.Center, lipgloss.Center).
			Render("Your session has expired.\n\nRun `homesync login` to sign in again, then restart.\nPress q to quit.")
	}

	switch m.currentView {
	case ViewNotifications:
		return m.notifications.View()
	case ViewChat:
		return m.chat.View()
	case ViewHouseholds:
		return m.households.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) title() string {
	title := "HomeSync"
	if h, ok := m.householdState.Active(); ok {
		title += " · " + h.Name
	}
	if n := m.notifState.UnreadCount; n > 0 {
		title += fmt.Sprintf(" [%d unread]", n)
	}
	return title
}

// status describes the push connection and background refreshes.
func (m Model) status() string {
	var parts []string

	running := 0
	for _, s := range m.sess.Poller.GetStatuses() {
		if s.State == appsync.SyncRunning {
			running++
		}
	}
	if running > 0 {
		if m.prefs.ReducedMotion {
			parts = append(parts, "syncing")
		} else {
			parts = append(parts, m.spinner.View()+" syncing")
		}
	}

	ps := m.pushState
	label := ps.State.String()
	switch {
	case m.householdState.ActiveID == "":
		label = "polling"
	case ps.State == push.Connected:
		label = "live"
	case ps.State == push.Reconnecting:
		label = fmt.Sprintf("reconnecting (%d)", ps.Attempts)
	}
	parts = append(parts, theme.PushStateStyle(ps.State.String()).Render("● "+label))

	return strings.Join(parts, "  ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.authMessage != "" {
		return m.authMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewChat:
		return "enter send | pgup/pgdown scroll | esc back"
	case ViewHouseholds:
		return "enter switch | esc back"
	default:
		if summary := m.notifications.FilterSummary(); summary != "" {
			return summary + " | u / adjust"
		}
		return "q quit | ? help | x read | X read all | d delete | c chat | h households"
	}
}

func mergeFieldErrors(sets ...state.FieldErrors) state.FieldErrors {
	var out state.FieldErrors
	for _, s := range sets {
		for k, v := range s {
			if out == nil {
				out = state.FieldErrors{}
			}
			out[k] = v
		}
	}
	return out
}
