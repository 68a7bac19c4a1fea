package model

import "time"

// Notification is an alert surfaced to a household member, e.g. a bill
// coming due or a chore being assigned.
type Notification struct {
	// ID is the server-assigned identifier.
	ID string `json:"id"`

	// Type is the server's category for the notification
	// (e.g., "bill_due", "task_assigned", "announcement").
	Type string `json:"type"`

	// Title is the short headline shown in lists.
	Title string `json:"title"`

	// Message is the human-readable notification body.
	Message string `json:"message"`

	// ReadAt is when the user read the notification. A nil ReadAt
	// means the notification is unread.
	ReadAt *time.Time `json:"read_at"`

	// CreatedAt is when the server generated the notification.
	CreatedAt time.Time `json:"created_at"`

	// Optimistic marks a local change that the server has not yet
	// confirmed. It is never serialized.
	Optimistic bool `json:"-"`
}

// IsUnread reports whether the notification has not been read.
func (n Notification) IsUnread() bool {
	return n.ReadAt == nil
}

// CountUnread returns the number of notifications with a nil ReadAt.
func CountUnread(items []Notification) int {
	count := 0
	for _, n := range items {
		if n.IsUnread() {
			count++
		}
	}
	return count
}
