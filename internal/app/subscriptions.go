package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/homesync/internal/state"
)

// Store snapshots delivered to the Bubble Tea runtime.
type (
	notificationsMsg state.NotificationState
	householdsMsg    state.HouseholdState
	messagesMsg      state.MessageState
	uiMsg            state.UIState
)

// sessionExpiredMsg is sent once the backend rejects the session.
type sessionExpiredMsg struct{}

// tickMsg drives toast expiry and the push indicator.
type tickMsg time.Time

// subscriptions holds the store channels the model listens on.
type subscriptions struct {
	notifications <-chan state.NotificationState
	households    <-chan state.HouseholdState
	messages      <-chan state.MessageState
	ui            <-chan state.UIState
	cancel        []func()
}

func subscribe(s *state.Stores) *subscriptions {
	sub := &subscriptions{}
	var c func()
	sub.notifications, c = s.Notifications.Subscribe()
	sub.cancel = append(sub.cancel, c)
	sub.households, c = s.Households.Subscribe()
	sub.cancel = append(sub.cancel, c)
	sub.messages, c = s.Messages.Subscribe()
	sub.cancel = append(sub.cancel, c)
	sub.ui, c = s.UI.Subscribe()
	sub.cancel = append(sub.cancel, c)
	return sub
}

func (s *subscriptions) close() {
	for _, c := range s.cancel {
		c()
	}
}

// waitFor returns a command that delivers the next snapshot from ch.
// A closed channel ends the subscription.
func waitFor[S any](ch <-chan S, wrap func(S) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(s)
	}
}

func (s *subscriptions) waitNotifications() tea.Cmd {
	return waitFor(s.notifications, func(v state.NotificationState) tea.Msg { return notificationsMsg(v) })
}

func (s *subscriptions) waitHouseholds() tea.Cmd {
	return waitFor(s.households, func(v state.HouseholdState) tea.Msg { return householdsMsg(v) })
}

func (s *subscriptions) waitMessages() tea.Cmd {
	return waitFor(s.messages, func(v state.MessageState) tea.Msg { return messagesMsg(v) })
}

func (s *subscriptions) waitUI() tea.Cmd {
	return waitFor(s.ui, func(v state.UIState) tea.Msg { return uiMsg(v) })
}

func waitExpired(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return sessionExpiredMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
