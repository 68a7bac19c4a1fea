package state

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/model"
)

func TestStoreDispatchIsSynchronous(t *testing.T) {
	s := NewStores().Notifications

	got := s.Dispatch(AddNotification{Notification: unread("1", t0)})
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, 1, s.State().UnreadCount)
}

func TestStoreSubscribeReceivesLatestSnapshot(t *testing.T) {
	s := NewStores().Notifications
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Dispatch(AddNotification{Notification: unread("1", t0)})
	s.Dispatch(AddNotification{Notification: unread("2", t1)})

	select {
	case snap := <-ch:
		assert.Len(t, snap.Items, 2, "older snapshot is replaced by the newest")
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStoreUnsubscribeClosesChannel(t *testing.T) {
	s := NewStores().UI
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Dispatch after unsubscribe must not panic on a closed channel.
	s.Dispatch(ShowToast{Toast: Toast{ID: "x"}})
}

func TestStoreConcurrentDispatchKeepsEveryAction(t *testing.T) {
	s := NewStores().Notifications

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Dispatch(AddNotification{Notification: model.Notification{
				ID:        strconv.Itoa(i),
				CreatedAt: t0.Add(time.Duration(i) * time.Second),
			}})
		}(i)
	}
	wg.Wait()

	state := s.State()
	require.Len(t, state.Items, 50)
	assert.Equal(t, 50, state.UnreadCount)
}

func TestUIToastsExpire(t *testing.T) {
	s := NewStores().UI
	s.Dispatch(
		ShowToast{Toast: Toast{ID: "a", ExpiresAt: t0}},
		ShowToast{Toast: Toast{ID: "b", ExpiresAt: t1}},
	)
	s.Dispatch(ExpireToasts{Now: t0})

	toasts := s.State().Toasts
	require.Len(t, toasts, 1)
	assert.Equal(t, "b", toasts[0].ID)

	s.Dispatch(DismissToast{ID: "b"})
	assert.Empty(t, s.State().Toasts)
}

func TestUIFieldErrors(t *testing.T) {
	s := NewStores().UI
	s.Dispatch(SetFieldErrors{Form: "message", Errors: FieldErrors{"content": "required"}})
	assert.Equal(t, "required", s.State().FieldErrors["message"]["content"])

	s.Dispatch(SetFieldErrors{Form: "message"})
	assert.NotContains(t, s.State().FieldErrors, "message")
}
