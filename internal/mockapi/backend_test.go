package mockapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/push"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSeededBackend(t *testing.T) {
	ctx := context.Background()
	b := Seeded(now, WithClock(func() time.Time { return now }))

	households, err := b.ListHouseholds(ctx)
	require.NoError(t, err)
	assert.Len(t, households, 2)

	items, err := b.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "ntf-1", items[0].ID)
	assert.Equal(t, 2, model.CountUnread(items))

	msgs, err := b.ListMessages(ctx, "hh-maple")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	_, err = b.ListMessages(ctx, "hh-unknown")
	assert.True(t, api.IsNotFound(err))
}

func TestFailNextAppliesOnce(t *testing.T) {
	ctx := context.Background()
	b := Seeded(now)
	b.FailNext("MarkAllNotificationsRead", errors.New("boom"))

	require.Error(t, b.MarkAllNotificationsRead(ctx))
	require.NoError(t, b.MarkAllNotificationsRead(ctx))

	items, err := b.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Zero(t, model.CountUnread(items))
}

func TestVotePollReturnsTally(t *testing.T) {
	ctx := context.Background()
	b := Seeded(now)

	poll, err := b.VotePoll(ctx, "poll-1", api.VoteRequest{Options: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, poll.VoteCounts())

	_, err = b.VotePoll(ctx, "poll-1", api.VoteRequest{Options: []int{9}})
	_, ok := api.IsValidation(err)
	assert.True(t, ok)

	_, err = b.VotePoll(ctx, "missing", api.VoteRequest{Options: []int{0}})
	assert.True(t, api.IsNotFound(err))
}

func TestCreateMessageValidates(t *testing.T) {
	b := Seeded(now)
	_, err := b.CreateMessage(context.Background(), "hh-maple", api.CreateMessageRequest{MessageType: model.MessageTypeText})
	_, ok := api.IsValidation(err)
	assert.True(t, ok)

	msg, err := b.CreateMessage(context.Background(), "hh-maple", api.CreateMessageRequest{
		MessageType: model.MessageTypePoll,
		Poll:        &api.CreatePollRequest{Question: "Movie?", Options: []string{"yes", "no"}},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Poll)
	assert.NotEmpty(t, msg.Poll.ID)
}

func TestFeedPushesAndAnswersPings(t *testing.T) {
	b := Seeded(now)
	conn, err := b.Feed().Dial(context.Background(), "", nil)
	require.NoError(t, err)
	defer conn.Close()

	b.Notify(model.Notification{ID: "ntf-9", Title: "Rent"})
	frame, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := push.ParseInbound(frame)
	require.NoError(t, err)
	assert.Equal(t, "ntf-9", msg.(push.NotificationMsg).Notification.ID)

	require.NoError(t, conn.WriteMessage([]byte(`{"type":"ping"}`)))
	frame, err = conn.ReadMessage()
	require.NoError(t, err)
	msg, err = push.ParseInbound(frame)
	require.NoError(t, err)
	assert.Equal(t, push.PongMsg{}, msg)

	b.Feed().SetDown(true)
	_, err = conn.ReadMessage()
	assert.Error(t, err)
	_, err = b.Feed().Dial(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrFeedDown)
}

func TestDeleteMessageOnlyOwnMessages(t *testing.T) {
	ctx := context.Background()
	b := Seeded(now, WithClock(func() time.Time { return now }))

	err := b.DeleteMessage(ctx, "hh-maple", "msg-1")
	var status *api.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, 403, status.StatusCode)

	mine, err := b.CreateMessage(ctx, "hh-maple", api.CreateMessageRequest{
		Content: "bye", MessageType: model.MessageTypeText,
	})
	require.NoError(t, err)
	require.NoError(t, b.DeleteMessage(ctx, "hh-maple", mine.ID))

	msgs, err := b.ListMessages(ctx, "hh-maple")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.True(t, api.IsNotFound(b.DeleteMessage(ctx, "hh-maple", mine.ID)))
}
