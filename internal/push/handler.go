package push

import (
	"time"

	"github.com/nhle/homesync/internal/state"
)

// StoreHandler applies inbound notification messages to store. A
// repeated notification for a known ID is dropped by the reducer, so
// the unread count grows exactly once per notification.
func StoreHandler(store *state.NotificationStore, now func() time.Time) Handler {
	return func(msg Inbound) {
		switch msg := msg.(type) {
		case NotificationMsg:
			store.Dispatch(state.AddNotification{Notification: msg.Notification})
		case NotificationReadMsg:
			at := msg.ReadAt
			if at.IsZero() {
				at = now()
			}
			store.Dispatch(state.NotificationRead{ID: msg.ID, At: at})
		case NotificationDeletedMsg:
			store.Dispatch(state.RemoveNotification{ID: msg.ID})
		}
	}
}
