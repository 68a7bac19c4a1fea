package state

import (
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/model"
)

var (
	t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func unread(id string, created time.Time) model.Notification {
	return model.Notification{ID: id, Title: "n" + id, CreatedAt: created}
}

func read(id string, created, at time.Time) model.Notification {
	n := unread(id, created)
	n.ReadAt = &at
	return n
}

func reduceAll(s NotificationState, actions ...NotificationAction) NotificationState {
	for _, a := range actions {
		s = ReduceNotifications(s, a)
	}
	return s
}

func TestSetNotificationsDerivesUnreadCount(t *testing.T) {
	s := reduceAll(NotificationState{}, SetNotifications{Items: []model.Notification{
		unread("1", t0),
		read("2", t1, t1),
		unread("3", t1.Add(time.Minute)),
	}})

	assert.True(t, s.Loaded)
	assert.Equal(t, 2, s.UnreadCount)
	require.Len(t, s.Items, 3)
	assert.Equal(t, "3", s.Items[0].ID, "newest first")
}

func TestAddNotificationDeduplicatesByID(t *testing.T) {
	n := unread("1", t0)
	s := reduceAll(NotificationState{},
		AddNotification{Notification: n},
		AddNotification{Notification: n},
	)

	assert.Len(t, s.Items, 1)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestRemoveNotificationRecomputesCount(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), unread("2", t1)}},
		RemoveNotification{ID: "1"},
		RemoveNotification{ID: "missing"},
	)

	require.Len(t, s.Items, 1)
	assert.Equal(t, "2", s.Items[0].ID)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestMarkReadRollbackIsExact(t *testing.T) {
	start := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), unread("2", t1)}},
	)
	require.Equal(t, 2, start.UnreadCount)

	s := ReduceNotifications(start, MarkReadOptimistic{ID: "1", At: t1})
	assert.Equal(t, 1, s.UnreadCount)
	n, _ := s.Find("1")
	assert.True(t, n.Optimistic)

	s = ReduceNotifications(s, MarkReadFailed{ID: "1"})
	n, _ = s.Find("1")
	assert.Nil(t, n.ReadAt)
	assert.False(t, n.Optimistic)
	assert.Equal(t, start.UnreadCount, s.UnreadCount)
}

func TestMarkReadOptimisticTwiceDoesNotDoubleCount(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), unread("2", t1)}},
		MarkReadOptimistic{ID: "1", At: t1},
		MarkReadOptimistic{ID: "1", At: t1},
	)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestMarkReadSucceededKeepsServerTimestamp(t *testing.T) {
	serverAt := t1.Add(time.Second)
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0)}},
		MarkReadOptimistic{ID: "1", At: t1},
		MarkReadSucceeded{Notification: read("1", t0, serverAt)},
		MarkReadFailed{ID: "1"},
	)

	n, ok := s.Find("1")
	require.True(t, ok)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, serverAt, *n.ReadAt)
	assert.False(t, n.Optimistic)
	assert.Zero(t, s.UnreadCount, "a late failure must not revert a confirmed read")
}

func TestMarkAllReadFailureRollsBackOnlyPreviouslyUnread(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), read("2", t1, t0)}},
	)
	require.Equal(t, 1, s.UnreadCount)

	s = ReduceNotifications(s, MarkAllReadOptimistic{At: t1})
	assert.Zero(t, s.UnreadCount)
	for _, n := range s.Items {
		assert.NotNil(t, n.ReadAt)
	}

	s = ReduceNotifications(s, MarkAllReadFailed{})
	n1, _ := s.Find("1")
	n2, _ := s.Find("2")
	assert.Nil(t, n1.ReadAt)
	require.NotNil(t, n2.ReadAt)
	assert.Equal(t, t0, *n2.ReadAt)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestMarkAllReadFailureSkipsItemsConfirmedByPush(t *testing.T) {
	pushedAt := t1.Add(time.Minute)
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), unread("2", t1)}},
		MarkAllReadOptimistic{At: t1},
		UpdateNotification{Notification: read("2", t1, pushedAt)},
		MarkAllReadFailed{},
	)

	n1, _ := s.Find("1")
	n2, _ := s.Find("2")
	assert.Nil(t, n1.ReadAt)
	require.NotNil(t, n2.ReadAt)
	assert.Equal(t, pushedAt, *n2.ReadAt)
	assert.Equal(t, 1, s.UnreadCount)
}

func TestSingleRollbackDuringMarkAllStaysUnreadUntilRefetch(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), unread("2", t1)}},
		MarkReadOptimistic{ID: "1", At: t1},
		MarkAllReadOptimistic{At: t1},
		MarkReadFailed{ID: "1"},
		MarkAllReadSucceeded{},
	)

	n1, _ := s.Find("1")
	assert.Nil(t, n1.ReadAt)
	assert.Equal(t, 1, s.UnreadCount)
	assert.Equal(t, model.CountUnread(s.Items), s.UnreadCount)

	s = ReduceNotifications(s, SetNotifications{Items: []model.Notification{read("1", t0, t1), read("2", t1, t1)}})
	assert.Zero(t, s.UnreadCount)
}

func TestSetNotificationsKeepsPendingLocalRead(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0)}},
		MarkReadOptimistic{ID: "1", At: t1},
		SetNotifications{Items: []model.Notification{unread("1", t0)}},
	)

	n, _ := s.Find("1")
	assert.True(t, n.Optimistic)
	assert.Zero(t, s.UnreadCount)
}

func TestUnknownActionIsNoop(t *testing.T) {
	s := reduceAll(NotificationState{}, SetNotifications{Items: []model.Notification{unread("1", t0)}})
	next := ReduceNotifications(s, nil)
	assert.Equal(t, s, next)
}

func TestReducerDoesNotMutateInput(t *testing.T) {
	s := reduceAll(NotificationState{}, SetNotifications{Items: []model.Notification{unread("1", t0)}})
	_ = ReduceNotifications(s, MarkReadOptimistic{ID: "1", At: t1})
	assert.Nil(t, s.Items[0].ReadAt)
	assert.False(t, s.Items[0].Optimistic)
}

// Any interleaving of mark-read transitions settles to an unread count
// equal to the number of items with a nil ReadAt.
func TestUnreadCountMatchesItemsAfterRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		var items []model.Notification
		for i := 0; i < 8; i++ {
			if rng.Intn(2) == 0 {
				items = append(items, unread(strconv.Itoa(i), t0.Add(time.Duration(i)*time.Minute)))
			} else {
				items = append(items, read(strconv.Itoa(i), t0.Add(time.Duration(i)*time.Minute), t0))
			}
		}
		s := ReduceNotifications(NotificationState{}, SetNotifications{Items: items})

		for step := 0; step < 20; step++ {
			id := strconv.Itoa(rng.Intn(10))
			var a NotificationAction
			switch rng.Intn(6) {
			case 0:
				a = MarkReadOptimistic{ID: id, At: t1}
			case 1:
				a = MarkReadSucceeded{Notification: read(id, t0, t1)}
			case 2:
				a = MarkReadFailed{ID: id}
			case 3:
				a = MarkAllReadOptimistic{At: t1}
			case 4:
				a = MarkAllReadFailed{}
			default:
				a = MarkAllReadSucceeded{}
			}
			s = ReduceNotifications(s, a)
			require.Equal(t, model.CountUnread(s.Items), s.UnreadCount)
		}
	}
}

func TestMarkAllReadScenario(t *testing.T) {
	// [{1, unread}, {2, read}] -> mark all -> server error.
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0), read("2", t1, t0)}},
	)
	require.Equal(t, 1, s.UnreadCount)

	s = ReduceNotifications(s, MarkAllReadOptimistic{At: t1})
	require.Zero(t, s.UnreadCount)

	s = ReduceNotifications(s, MarkAllReadFailed{})
	n1, _ := s.Find("1")
	n2, _ := s.Find("2")
	assert.Nil(t, n1.ReadAt)
	assert.NotNil(t, n2.ReadAt)
	assert.Equal(t, 1, s.UnreadCount)
	assert.Empty(t, s.PendingNotificationIDs())
}

func TestNotificationReadFromPushWinsOverPendingRollback(t *testing.T) {
	s := reduceAll(NotificationState{},
		SetNotifications{Items: []model.Notification{unread("1", t0)}},
		MarkReadOptimistic{ID: "1", At: t1},
		NotificationRead{ID: "1", At: t1.Add(time.Second)},
		MarkReadFailed{ID: "1"},
	)

	n, _ := s.Find("1")
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, t1.Add(time.Second), *n.ReadAt)
	assert.Zero(t, s.UnreadCount)
}
