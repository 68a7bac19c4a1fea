package state

import (
	"sort"
	"time"

	"github.com/nhle/homesync/internal/model"
)

// NotificationState is the canonical notification list of a session.
// Items are ordered newest first. UnreadCount is always derived from
// Items and never adjusted incrementally.
type NotificationState struct {
	Items       []model.Notification
	UnreadCount int
	Loaded      bool
	Error       string
}

// NotificationAction is the closed set of notification transitions.
type NotificationAction interface {
	notificationAction()
}

// SetNotifications replaces the collection with a server snapshot.
// Items with an optimistic change still pending keep their local value.
type SetNotifications struct {
	Items []model.Notification
}

// AddNotification inserts a notification unless one with the same ID
// already exists.
type AddNotification struct {
	Notification model.Notification
}

// UpdateNotification merges a server-side version of an existing
// notification. The server value wins and clears any optimistic marker.
type UpdateNotification struct {
	Notification model.Notification
}

// RemoveNotification deletes a notification by ID.
type RemoveNotification struct {
	ID string
}

// NotificationRead applies a server-confirmed read of an existing
// notification, e.g. from another device. It clears the optimistic marker.
type NotificationRead struct {
	ID string
	At time.Time
}

// NotificationsFailed records a failed collection load.
type NotificationsFailed struct {
	Err string
}

// MarkReadOptimistic tentatively marks one unread notification as read.
type MarkReadOptimistic struct {
	ID string
	At time.Time
}

// MarkReadSucceeded commits a mark-read with the server's fields.
type MarkReadSucceeded struct {
	Notification model.Notification
}

// MarkReadFailed reverts a tentative mark-read. Only an item that is
// still optimistic is reverted.
type MarkReadFailed struct {
	ID string
}

// MarkAllReadOptimistic tentatively marks every unread notification read.
type MarkAllReadOptimistic struct {
	At time.Time
}

// MarkAllReadSucceeded commits every pending optimistic read.
type MarkAllReadSucceeded struct{}

// MarkAllReadFailed reverts exactly the items still marked optimistic.
type MarkAllReadFailed struct{}

func (SetNotifications) notificationAction()      {}
func (AddNotification) notificationAction()       {}
func (UpdateNotification) notificationAction()    {}
func (RemoveNotification) notificationAction()    {}
func (NotificationRead) notificationAction()      {}
func (NotificationsFailed) notificationAction()   {}
func (MarkReadOptimistic) notificationAction()    {}
func (MarkReadSucceeded) notificationAction()     {}
func (MarkReadFailed) notificationAction()        {}
func (MarkAllReadOptimistic) notificationAction() {}
func (MarkAllReadSucceeded) notificationAction()  {}
func (MarkAllReadFailed) notificationAction()     {}

// ReduceNotifications is the notification reducer.
func ReduceNotifications(s NotificationState, a NotificationAction) NotificationState {
	switch a := a.(type) {
	case SetNotifications:
		pending := make(map[string]model.Notification)
		for _, n := range s.Items {
			if n.Optimistic {
				pending[n.ID] = n
			}
		}
		items := make([]model.Notification, 0, len(a.Items))
		for _, n := range a.Items {
			if local, ok := pending[n.ID]; ok && n.IsUnread() {
				n = local
			}
			items = append(items, n)
		}
		sortNewestFirst(items)
		return withItems(NotificationState{Loaded: true}, items)

	case AddNotification:
		if indexOfNotification(s.Items, a.Notification.ID) >= 0 {
			return s
		}
		items := append(cloneNotifications(s.Items), a.Notification)
		sortNewestFirst(items)
		return withItems(s, items)

	case UpdateNotification:
		i := indexOfNotification(s.Items, a.Notification.ID)
		if i < 0 {
			return s
		}
		items := cloneNotifications(s.Items)
		merged := a.Notification
		merged.Optimistic = false
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = items[i].CreatedAt
		}
		items[i] = merged
		return withItems(s, items)

	case RemoveNotification:
		i := indexOfNotification(s.Items, a.ID)
		if i < 0 {
			return s
		}
		items := cloneNotifications(s.Items)
		items = append(items[:i], items[i+1:]...)
		return withItems(s, items)

	case NotificationRead:
		i := indexOfNotification(s.Items, a.ID)
		if i < 0 {
			return s
		}
		items := cloneNotifications(s.Items)
		at := a.At
		items[i].ReadAt = &at
		items[i].Optimistic = false
		return withItems(s, items)

	case NotificationsFailed:
		s.Error = a.Err
		return s

	case MarkReadOptimistic:
		i := indexOfNotification(s.Items, a.ID)
		if i < 0 || !s.Items[i].IsUnread() {
			return s
		}
		items := cloneNotifications(s.Items)
		at := a.At
		items[i].ReadAt = &at
		items[i].Optimistic = true
		return withItems(s, items)

	case MarkReadSucceeded:
		i := indexOfNotification(s.Items, a.Notification.ID)
		if i < 0 {
			return s
		}
		items := cloneNotifications(s.Items)
		if a.Notification.ReadAt != nil {
			readAt := *a.Notification.ReadAt
			items[i].ReadAt = &readAt
		}
		items[i].Optimistic = false
		return withItems(s, items)

	case MarkReadFailed:
		i := indexOfNotification(s.Items, a.ID)
		if i < 0 || !s.Items[i].Optimistic {
			return s
		}
		items := cloneNotifications(s.Items)
		items[i].ReadAt = nil
		items[i].Optimistic = false
		return withItems(s, items)

	case MarkAllReadOptimistic:
		items := cloneNotifications(s.Items)
		changed := false
		for i := range items {
			if items[i].IsUnread() {
				at := a.At
				items[i].ReadAt = &at
				items[i].Optimistic = true
				changed = true
			}
		}
		if !changed {
			return s
		}
		return withItems(s, items)

	case MarkAllReadSucceeded:
		items := cloneNotifications(s.Items)
		for i := range items {
			items[i].Optimistic = false
		}
		return withItems(s, items)

	case MarkAllReadFailed:
		items := cloneNotifications(s.Items)
		for i := range items {
			if items[i].Optimistic {
				items[i].ReadAt = nil
				items[i].Optimistic = false
			}
		}
		return withItems(s, items)
	}

	return s
}

// PendingNotificationIDs returns the IDs of items with an unconfirmed
// local change.
func (s NotificationState) PendingNotificationIDs() []string {
	var ids []string
	for _, n := range s.Items {
		if n.Optimistic {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Find returns the notification with the given ID.
func (s NotificationState) Find(id string) (model.Notification, bool) {
	i := indexOfNotification(s.Items, id)
	if i < 0 {
		return model.Notification{}, false
	}
	return s.Items[i], true
}

func withItems(s NotificationState, items []model.Notification) NotificationState {
	s.Items = items
	s.UnreadCount = model.CountUnread(items)
	s.Error = ""
	return s
}

func indexOfNotification(items []model.Notification, id string) int {
	for i, n := range items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func cloneNotifications(items []model.Notification) []model.Notification {
	out := make([]model.Notification, len(items), len(items)+1)
	copy(out, items)
	return out
}

func sortNewestFirst(items []model.Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
