package model

import "time"

// MessageType distinguishes plain chat messages from polls.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypePoll MessageType = "poll"
)

// Message is a chat message or announcement posted to a household.
type Message struct {
	ID          string      `json:"id"`
	HouseholdID string      `json:"household_id"`
	UserID      string      `json:"user_id"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`

	// RepliedTo is the ID of the message this one answers. The
	// referenced message is not owned and may no longer exist.
	RepliedTo *string `json:"replied_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Poll is set only when MessageType is MessageTypePoll.
	Poll *Poll `json:"poll,omitempty"`

	// Optimistic marks a message that was sent locally but not yet
	// acknowledged by the server.
	Optimistic bool `json:"-"`
}

// IsPoll reports whether the message carries a poll.
func (m Message) IsPoll() bool {
	return m.MessageType == MessageTypePoll && m.Poll != nil
}
