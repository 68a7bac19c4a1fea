package state

import (
	"sort"

	"github.com/nhle/homesync/internal/model"
)

// MessageState holds chat history per household, oldest message first.
type MessageState struct {
	ByHousehold map[string][]model.Message
	Loaded      map[string]bool
}

// Messages returns the history of one household.
func (s MessageState) Messages(householdID string) []model.Message {
	return s.ByHousehold[householdID]
}

// Find returns a message of a household by ID.
func (s MessageState) Find(householdID, id string) (model.Message, bool) {
	msgs := s.ByHousehold[householdID]
	i := indexOfMessage(msgs, id)
	if i < 0 {
		return model.Message{}, false
	}
	return msgs[i], true
}

// MessageAction is the closed set of chat transitions.
type MessageAction interface {
	messageAction()
}

// SetMessages replaces a household's history with a server snapshot.
// Locally sent messages still awaiting acknowledgement are kept.
type SetMessages struct {
	HouseholdID string
	Items       []model.Message
}

// AddMessage appends a message unless its ID is already present.
type AddMessage struct {
	Message model.Message
}

// UpdateMessage merges a server-side version of an existing message.
type UpdateMessage struct {
	Message model.Message
}

// RemoveMessage deletes a message from a household's history.
type RemoveMessage struct {
	HouseholdID string
	ID          string
}

// SendOptimistic appends a locally composed message under a temporary ID.
type SendOptimistic struct {
	Message model.Message
}

// SendSucceeded swaps the temporary message for the server's copy.
type SendSucceeded struct {
	TempID  string
	Message model.Message
}

// SendFailed discards a temporary message.
type SendFailed struct {
	HouseholdID string
	TempID      string
}

// VoteOptimistic tentatively replaces a user's selection on a poll.
type VoteOptimistic struct {
	HouseholdID string
	MessageID   string
	UserID      string
	Options     []int
}

// VoteSucceeded commits a vote. When Poll is set it replaces the local
// poll with the server's tally.
type VoteSucceeded struct {
	HouseholdID string
	MessageID   string
	Poll        *model.Poll
}

// VoteFailed restores the user's previous selection if the poll is
// still marked optimistic.
type VoteFailed struct {
	HouseholdID string
	MessageID   string
	UserID      string
	Previous    []int
}

func (SetMessages) messageAction()    {}
func (AddMessage) messageAction()     {}
func (UpdateMessage) messageAction()  {}
func (RemoveMessage) messageAction()  {}
func (SendOptimistic) messageAction() {}
func (SendSucceeded) messageAction()  {}
func (SendFailed) messageAction()     {}
func (VoteOptimistic) messageAction() {}
func (VoteSucceeded) messageAction()  {}
func (VoteFailed) messageAction()     {}

// ReduceMessages is the chat reducer.
func ReduceMessages(s MessageState, a MessageAction) MessageState {
	switch a := a.(type) {
	case SetMessages:
		msgs := append([]model.Message(nil), a.Items...)
		for _, m := range s.ByHousehold[a.HouseholdID] {
			if m.Optimistic && indexOfMessage(msgs, m.ID) < 0 {
				msgs = append(msgs, m)
			}
		}
		sortOldestFirst(msgs)
		s = withHousehold(s, a.HouseholdID, msgs)
		s.Loaded = cloneLoaded(s.Loaded)
		s.Loaded[a.HouseholdID] = true
		return s

	case AddMessage, SendOptimistic:
		msg := messageOf(a)
		msgs := s.ByHousehold[msg.HouseholdID]
		if indexOfMessage(msgs, msg.ID) >= 0 {
			return s
		}
		next := append(append([]model.Message(nil), msgs...), msg)
		sortOldestFirst(next)
		return withHousehold(s, msg.HouseholdID, next)

	case UpdateMessage:
		msgs := s.ByHousehold[a.Message.HouseholdID]
		i := indexOfMessage(msgs, a.Message.ID)
		if i < 0 {
			return s
		}
		next := append([]model.Message(nil), msgs...)
		merged := a.Message
		merged.Optimistic = false
		next[i] = merged
		return withHousehold(s, a.Message.HouseholdID, next)

	case RemoveMessage:
		return removeMessage(s, a.HouseholdID, a.ID)

	case SendSucceeded:
		householdID := a.Message.HouseholdID
		s = removeMessage(s, householdID, a.TempID)
		msgs := s.ByHousehold[householdID]
		if indexOfMessage(msgs, a.Message.ID) >= 0 {
			return s
		}
		confirmed := a.Message
		confirmed.Optimistic = false
		next := append(append([]model.Message(nil), msgs...), confirmed)
		sortOldestFirst(next)
		return withHousehold(s, householdID, next)

	case SendFailed:
		return removeMessage(s, a.HouseholdID, a.TempID)

	case VoteOptimistic:
		return updatePoll(s, a.HouseholdID, a.MessageID, func(m *model.Message) bool {
			poll := m.Poll.WithVote(a.UserID, a.Options)
			m.Poll = &poll
			m.Optimistic = true
			return true
		})

	case VoteSucceeded:
		return updatePoll(s, a.HouseholdID, a.MessageID, func(m *model.Message) bool {
			if a.Poll != nil {
				poll := *a.Poll
				m.Poll = &poll
			}
			m.Optimistic = false
			return true
		})

	case VoteFailed:
		return updatePoll(s, a.HouseholdID, a.MessageID, func(m *model.Message) bool {
			if !m.Optimistic {
				return false
			}
			poll := m.Poll.WithVote(a.UserID, a.Previous)
			m.Poll = &poll
			m.Optimistic = false
			return true
		})
	}

	return s
}

func messageOf(a MessageAction) model.Message {
	switch a := a.(type) {
	case AddMessage:
		return a.Message
	case SendOptimistic:
		msg := a.Message
		msg.Optimistic = true
		return msg
	}
	return model.Message{}
}

func updatePoll(
	s MessageState,
	householdID, messageID string,
	apply func(*model.Message) bool,
) MessageState {
	msgs := s.ByHousehold[householdID]
	i := indexOfMessage(msgs, messageID)
	if i < 0 || msgs[i].Poll == nil {
		return s
	}
	next := append([]model.Message(nil), msgs...)
	if !apply(&next[i]) {
		return s
	}
	return withHousehold(s, householdID, next)
}

func removeMessage(s MessageState, householdID, id string) MessageState {
	msgs := s.ByHousehold[householdID]
	i := indexOfMessage(msgs, id)
	if i < 0 {
		return s
	}
	next := make([]model.Message, 0, len(msgs)-1)
	next = append(next, msgs[:i]...)
	next = append(next, msgs[i+1:]...)
	return withHousehold(s, householdID, next)
}

func withHousehold(s MessageState, householdID string, msgs []model.Message) MessageState {
	by := make(map[string][]model.Message, len(s.ByHousehold)+1)
	for k, v := range s.ByHousehold {
		by[k] = v
	}
	by[householdID] = msgs
	s.ByHousehold = by
	return s
}

func cloneLoaded(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func indexOfMessage(msgs []model.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func sortOldestFirst(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
