package optimistic

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/cache"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/state"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

// stubBackend implements api.Backend; only the methods a test sets are
// callable.
type stubBackend struct {
	api.Backend

	markRead    func(ctx context.Context, id string) (*model.Notification, error)
	markAllRead func(ctx context.Context) error
	deleteN     func(ctx context.Context, id string) error
	create      func(ctx context.Context, householdID string, req api.CreateMessageRequest) (*model.Message, error)
	deleteM     func(ctx context.Context, householdID, messageID string) error
	vote        func(ctx context.Context, pollID string, req api.VoteRequest) (*model.Poll, error)
}

func (b *stubBackend) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	return b.markRead(ctx, id)
}

func (b *stubBackend) MarkAllNotificationsRead(ctx context.Context) error {
	return b.markAllRead(ctx)
}

func (b *stubBackend) DeleteNotification(ctx context.Context, id string) error {
	return b.deleteN(ctx, id)
}

func (b *stubBackend) CreateMessage(ctx context.Context, householdID string, req api.CreateMessageRequest) (*model.Message, error) {
	return b.create(ctx, householdID, req)
}

func (b *stubBackend) DeleteMessage(ctx context.Context, householdID, messageID string) error {
	return b.deleteM(ctx, householdID, messageID)
}

func (b *stubBackend) VotePoll(ctx context.Context, pollID string, req api.VoteRequest) (*model.Poll, error) {
	return b.vote(ctx, pollID, req)
}

func unread(id string, created time.Time) model.Notification {
	return model.Notification{ID: id, Title: "n" + id, CreatedAt: created}
}

func read(id string, created, at time.Time) model.Notification {
	n := unread(id, created)
	n.ReadAt = &at
	return n
}

func newTestCoordinator(t *testing.T, b api.Backend, opts ...Option) (*Coordinator, *state.Stores) {
	t.Helper()
	stores := state.NewStores()
	stores.Auth.Dispatch(state.LoggedIn{User: model.User{ID: "u1", Name: "Ada"}})
	opts = append([]Option{WithClock(func() time.Time { return t1 })}, opts...)
	c := New(b, stores, opts...)
	t.Cleanup(c.Close)
	return c, stores
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func TestMarkReadCommitsServerTimestamp(t *testing.T) {
	serverAt := t1.Add(time.Second)
	release := make(chan struct{})
	b := &stubBackend{markRead: func(_ context.Context, id string) (*model.Notification, error) {
		<-release
		n := read(id, t0, serverAt)
		return &n, nil
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{unread("1", t0)}})

	p := c.MarkRead("1")
	assert.Zero(t, stores.Notifications.State().UnreadCount, "applied before the backend answers")
	n, _ := stores.Notifications.State().Find("1")
	assert.True(t, n.Optimistic)

	close(release)
	require.NoError(t, wait(t, p))

	n, _ = stores.Notifications.State().Find("1")
	assert.False(t, n.Optimistic)
	assert.Equal(t, serverAt, *n.ReadAt)
	assert.Zero(t, c.InFlight())
}

func TestMarkReadFailureRollsBackAndToasts(t *testing.T) {
	b := &stubBackend{markRead: func(context.Context, string) (*model.Notification, error) {
		return nil, &api.NetworkError{Method: http.MethodPut, Path: "/x", Err: errors.New("offline")}
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{
		unread("1", t0), unread("2", t1),
	}})

	err := wait(t, c.MarkRead("1"))
	require.Error(t, err)

	s := stores.Notifications.State()
	assert.Equal(t, 2, s.UnreadCount)
	n, _ := s.Find("1")
	assert.Nil(t, n.ReadAt)
	assert.Empty(t, s.PendingNotificationIDs())

	toasts := stores.UI.State().Toasts
	require.Len(t, toasts, 1)
	assert.Equal(t, state.ToastError, toasts[0].Kind)
	assert.Equal(t, t1.Add(ToastTTL), toasts[0].ExpiresAt)
}

func TestDuplicateMarkReadJoinsInFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	b := &stubBackend{markRead: func(context.Context, string) (*model.Notification, error) {
		calls.Add(1)
		<-release
		return nil, nil
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{
		unread("1", t0), unread("2", t1),
	}})

	first := c.MarkRead("1")
	second := c.MarkRead("1")
	assert.Same(t, first, second)
	assert.Equal(t, 1, stores.Notifications.State().UnreadCount)

	close(release)
	require.NoError(t, wait(t, first))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, stores.Notifications.State().UnreadCount)
}

func TestMarkReadOnReadItemIsNoop(t *testing.T) {
	c, stores := newTestCoordinator(t, &stubBackend{})
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{read("1", t0, t0)}})

	require.NoError(t, wait(t, c.MarkRead("1")))
	require.NoError(t, wait(t, c.MarkRead("missing")))
}

func TestMarkAllReadScenario(t *testing.T) {
	b := &stubBackend{markAllRead: func(context.Context) error {
		return &api.StatusError{StatusCode: http.StatusInternalServerError}
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{
		unread("1", t0), read("2", t1, t0),
	}})
	require.Equal(t, 1, stores.Notifications.State().UnreadCount)

	p := c.MarkAllRead()
	require.Error(t, wait(t, p))

	s := stores.Notifications.State()
	n1, _ := s.Find("1")
	n2, _ := s.Find("2")
	assert.Nil(t, n1.ReadAt)
	require.NotNil(t, n2.ReadAt)
	assert.Equal(t, t0, *n2.ReadAt)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestMarkAllReadInvalidatesCacheOnSuccess(t *testing.T) {
	ch, err := cache.New(4)
	require.NoError(t, err)
	k := cache.Key{Feature: cache.FeatureNotifications}
	ch.Register(k, cache.Definition{
		StaleAfter: time.Hour,
		Fetch:      func(context.Context) (any, error) { return nil, nil },
	})
	_, err = ch.Refresh(context.Background(), k)
	require.NoError(t, err)
	require.Empty(t, ch.Due(time.Now()))

	b := &stubBackend{markAllRead: func(context.Context) error { return nil }}
	c, stores := newTestCoordinator(t, b, WithCache(ch))
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{unread("1", t0)}})

	require.NoError(t, wait(t, c.MarkAllRead()))
	assert.Equal(t, []cache.Key{k}, ch.Due(time.Now()))
	assert.Empty(t, stores.Notifications.State().PendingNotificationIDs())
}

func TestDeleteRestoresOnFailure(t *testing.T) {
	b := &stubBackend{deleteN: func(context.Context, string) error {
		return &api.StatusError{StatusCode: http.StatusBadGateway}
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{unread("1", t0)}})

	p := c.Delete("1")
	require.Error(t, wait(t, p))

	n, ok := stores.Notifications.State().Find("1")
	require.True(t, ok)
	assert.False(t, n.Optimistic)
	assert.Equal(t, 1, stores.Notifications.State().UnreadCount)
}

func TestDeleteTreatsNotFoundAsDeleted(t *testing.T) {
	b := &stubBackend{deleteN: func(context.Context, string) error {
		return &api.StatusError{StatusCode: http.StatusNotFound}
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{unread("1", t0)}})

	require.NoError(t, wait(t, c.Delete("1")))
	assert.Empty(t, stores.Notifications.State().Items)
}

func TestDeleteMessageRestoresOnFailure(t *testing.T) {
	release := make(chan struct{})
	b := &stubBackend{deleteM: func(context.Context, string, string) error {
		<-release
		return &api.StatusError{StatusCode: http.StatusForbidden}
	}}
	c, stores := newTestCoordinator(t, b)
	mine := model.Message{ID: "m1", HouseholdID: "h1", UserID: "u1", Content: "hi", CreatedAt: t0}
	stores.Messages.Dispatch(state.SetMessages{HouseholdID: "h1", Items: []model.Message{mine}})

	p := c.DeleteMessage("h1", "m1")
	assert.Empty(t, stores.Messages.State().Messages("h1"), "removed before the backend answers")

	close(release)
	require.Error(t, wait(t, p))
	msgs := stores.Messages.State().Messages("h1")
	require.Len(t, msgs, 1)
	assert.Equal(t, mine, msgs[0])
	require.Len(t, stores.UI.State().Toasts, 1)
}

func TestDeleteMessageRejectsOthersMessages(t *testing.T) {
	c, stores := newTestCoordinator(t, &stubBackend{})
	theirs := model.Message{ID: "m1", HouseholdID: "h1", UserID: "u2", CreatedAt: t0}
	stores.Messages.Dispatch(state.SetMessages{HouseholdID: "h1", Items: []model.Message{theirs}})

	require.Error(t, wait(t, c.DeleteMessage("h1", "m1")))
	require.ErrorIs(t, wait(t, c.DeleteMessage("h1", "missing")), ErrNotFound)
	assert.Len(t, stores.Messages.State().Messages("h1"), 1)
}

func TestAuthErrorCallsHandler(t *testing.T) {
	b := &stubBackend{markRead: func(context.Context, string) (*model.Notification, error) {
		return nil, &api.AuthError{Message: "expired"}
	}}
	var authCalls atomic.Int32
	c, stores := newTestCoordinator(t, b, WithAuthHandler(func(error) { authCalls.Add(1) }))
	stores.Notifications.Dispatch(state.SetNotifications{Items: []model.Notification{unread("1", t0)}})

	err := wait(t, c.MarkRead("1"))
	assert.True(t, api.IsAuthError(err))
	assert.Equal(t, int32(1), authCalls.Load())
	assert.Equal(t, 1, stores.Notifications.State().UnreadCount)
}

func TestSendMessageReplacesTempID(t *testing.T) {
	release := make(chan struct{})
	b := &stubBackend{create: func(_ context.Context, householdID string, req api.CreateMessageRequest) (*model.Message, error) {
		<-release
		return &model.Message{
			ID: "m1", HouseholdID: householdID, UserID: "u1",
			Content: req.Content, MessageType: req.MessageType, CreatedAt: t1,
		}, nil
	}}
	c, stores := newTestCoordinator(t, b)

	p := c.SendMessage("h1", api.CreateMessageRequest{Content: "hello", MessageType: model.MessageTypeText})
	msgs := stores.Messages.State().Messages("h1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Optimistic)
	assert.Contains(t, msgs[0].ID, tempPrefix)

	close(release)
	require.NoError(t, wait(t, p))

	msgs = stores.Messages.State().Messages("h1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.False(t, msgs[0].Optimistic)
}

func TestSendMessageFailureRemovesTemp(t *testing.T) {
	b := &stubBackend{create: func(context.Context, string, api.CreateMessageRequest) (*model.Message, error) {
		return nil, &api.StatusError{StatusCode: http.StatusServiceUnavailable}
	}}
	c, stores := newTestCoordinator(t, b)

	require.Error(t, wait(t, c.SendMessage("h1", api.CreateMessageRequest{
		Content: "hello", MessageType: model.MessageTypeText,
	})))
	assert.Empty(t, stores.Messages.State().Messages("h1"))
	assert.Len(t, stores.UI.State().Toasts, 1)
}

func TestSendMessageValidationIsFieldLevel(t *testing.T) {
	c, stores := newTestCoordinator(t, &stubBackend{})

	err := wait(t, c.SendMessage("h1", api.CreateMessageRequest{MessageType: model.MessageTypeText}))
	_, ok := api.IsValidation(err)
	require.True(t, ok)

	assert.Empty(t, stores.Messages.State().Messages("h1"))
	assert.Empty(t, stores.UI.State().Toasts)
	assert.Contains(t, stores.UI.State().FieldErrors[OpSendMessage], "content")

	err = wait(t, c.SendMessage("", api.CreateMessageRequest{Content: "x", MessageType: model.MessageTypeText}))
	assert.ErrorIs(t, err, api.ErrNoActiveHousehold)
}

func pollMessage() model.Message {
	return model.Message{
		ID: "m1", HouseholdID: "h1", UserID: "u2", MessageType: model.MessageTypePoll, CreatedAt: t0,
		Poll: &model.Poll{
			ID: "p1", Question: "Dinner?", Options: []string{"pizza", "curry"},
			Votes: map[string][]int{"u1": {0}, "u2": {1}},
		},
	}
}

func TestVoteFailureRestoresPreviousSelection(t *testing.T) {
	var gotPoll string
	b := &stubBackend{vote: func(_ context.Context, pollID string, _ api.VoteRequest) (*model.Poll, error) {
		gotPoll = pollID
		return nil, &api.NetworkError{Err: errors.New("offline")}
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Messages.Dispatch(state.SetMessages{HouseholdID: "h1", Items: []model.Message{pollMessage()}})

	p := c.Vote("h1", "m1", []int{1})
	m, _ := stores.Messages.State().Find("h1", "m1")
	assert.Equal(t, []int{0, 2}, m.Poll.VoteCounts())

	require.Error(t, wait(t, p))
	assert.Equal(t, "p1", gotPoll)

	m, _ = stores.Messages.State().Find("h1", "m1")
	assert.Equal(t, []int{1, 1}, m.Poll.VoteCounts())
	assert.False(t, m.Optimistic)
}

func TestVoteCommitsServerTally(t *testing.T) {
	b := &stubBackend{vote: func(context.Context, string, api.VoteRequest) (*model.Poll, error) {
		p := pollMessage().Poll.WithVote("u1", []int{1}).WithVote("u3", []int{1})
		return &p, nil
	}}
	c, stores := newTestCoordinator(t, b)
	stores.Messages.Dispatch(state.SetMessages{HouseholdID: "h1", Items: []model.Message{pollMessage()}})

	require.NoError(t, wait(t, c.Vote("h1", "m1", []int{1})))
	m, _ := stores.Messages.State().Find("h1", "m1")
	assert.Equal(t, []int{0, 3}, m.Poll.VoteCounts())
}

func TestVoteRejectsInvalidSelection(t *testing.T) {
	c, stores := newTestCoordinator(t, &stubBackend{})
	multi := pollMessage()
	multi.ID = "m2"
	multi.CreatedAt = t1
	multi.Poll.ID = "p2"
	multi.Poll.MultipleChoice = true
	stores.Messages.Dispatch(state.SetMessages{HouseholdID: "h1", Items: []model.Message{pollMessage(), multi}})

	tests := []struct {
		name    string
		id      string
		options []int
	}{
		{"two options on single choice", "m1", []int{0, 1}},
		{"out of range", "m1", []int{5}},
		{"duplicate index", "m1", []int{1, 1}},
		{"duplicate index on multiple choice", "m2", []int{1, 1, 1}},
		{"empty", "m1", nil},
		{"unsent poll", tempPrefix + "x", []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := api.IsValidation(wait(t, c.Vote("h1", tt.id, tt.options)))
			assert.True(t, ok)
		})
	}

	err := wait(t, c.Vote("h1", "missing", []int{0}))
	assert.ErrorIs(t, err, ErrNotFound)

	m2, _ := stores.Messages.State().Find("h1", "m2")
	assert.Equal(t, []int{1, 1}, m2.Poll.VoteCounts(), "rejected votes leave the tally alone")
}
