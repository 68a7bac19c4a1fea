package app

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/theme"
)

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "refresh", "sync", "r":
		m.sess.Poller.RefreshAll()
		return nil

	case "read":
		// "read all"
		if strings.EqualFold(arg, "all") {
			m.sess.Coordinator.MarkAllRead()
		}
		return nil

	case "unread":
		var c tea.Cmd
		m.notifications, c = m.notifications.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
		return c

	case "chat":
		m.currentView = ViewNotifications
		return m.openChat()

	case "households":
		m.households.Open()
		m.open(ViewHouseholds)
		return nil

	case "household":
		id, ok := m.findHousehold(arg)
		if !ok {
			m.toast(state.ToastError, "No household named "+arg)
			return nil
		}
		return m.selectHousehold(id)

	case "reconnect":
		m.sess.ReconnectPush()
		return nil

	case "contrast":
		m.prefs.HighContrast = !m.prefs.HighContrast
		theme.Apply(m.prefs.HighContrast)
		return m.savePreferences()

	case "quit", "q":
		return m.quit()
	}

	m.toast(state.ToastInfo, "Unknown command: "+cmd)
	return nil
}

// findHousehold matches a household by ID or case-insensitive name.
func (m Model) findHousehold(arg string) (string, bool) {
	for _, h := range m.householdState.Households {
		if h.ID == arg || strings.EqualFold(h.Name, arg) {
			return h.ID, true
		}
	}
	return "", false
}

func (m Model) savePreferences() tea.Cmd {
	sess, prefs, log := m.sess, m.prefs, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.SetPreferences(ctx, prefs); err != nil {
			log.Warn().Err(err).Msg("saving preferences")
		}
		return nil
	}
}
