package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/mockapi"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/session"
	"github.com/nhle/homesync/internal/ui/command"
	"github.com/nhle/homesync/internal/ui/notifications"
	"github.com/nhle/homesync/tests/testutil"
)

func newModel(t *testing.T) (Model, *session.Session) {
	t.Helper()
	b := mockapi.Seeded(time.Now())
	sess, err := session.Start(context.Background(), session.Deps{
		Backend: b,
		KV:      testutil.NewTestStore(t),
		Sync:    model.SyncConfig{PollIntervalSec: 60, CacheSize: 16},
		Timeout: time.Second,
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(sess.Close)

	m := New(sess, model.Preferences{ReducedMotion: true}, zerolog.Nop())
	t.Cleanup(m.subs.close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), sess
}

func press(m Model, s string) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model), cmd
}

func TestMarkReadKeyAppliesOptimistically(t *testing.T) {
	m, sess := newModel(t)
	require.Equal(t, 2, sess.Stores.Notifications.State().UnreadCount)

	m, cmd := press(m, "x")
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, notifications.MarkReadMsg{}, msg)

	m.Update(msg)
	assert.Equal(t, 1, sess.Stores.Notifications.State().UnreadCount)
}

func TestChatWithoutHouseholdOpensPicker(t *testing.T) {
	m, sess := newModel(t)

	m, _ = press(m, "c")
	assert.Equal(t, ViewHouseholds, m.currentView)
	assert.NotEmpty(t, sess.Stores.UI.State().Toasts)
}

func TestCommandSwitchesHouseholdByName(t *testing.T) {
	m, sess := newModel(t)

	_, cmd := m.Update(command.CommandMsg("household lake cabin"))
	require.NotNil(t, cmd)
	assert.Equal(t, householdSelectedMsg{}, cmd())

	assert.Equal(t, "hh-cabin", sess.ActiveHousehold())
}

func TestQuitFromNotifications(t *testing.T) {
	m, _ := newModel(t)
	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestExpiredSessionShowsSignInHint(t *testing.T) {
	m, _ := newModel(t)
	next, _ := m.Update(sessionExpiredMsg{})
	m = next.(Model)

	assert.Contains(t, m.View(), "homesync login")
	_, cmd := press(m, "x")
	assert.Nil(t, cmd)
}
