package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/model"
)

func TestParseInputText(t *testing.T) {
	c, err := ParseInput("  dinner at 7?  ", nil)
	require.NoError(t, err)
	require.NotNil(t, c.Send)
	assert.Nil(t, c.Vote)
	assert.Equal(t, model.MessageTypeText, c.Send.MessageType)
	assert.Equal(t, "dinner at 7?", c.Send.Content)
}

func TestParseInputPoll(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		multi   bool
		options []string
	}{
		{"single", "/poll Pizza or curry? | Pizza | Curry", false, []string{"Pizza", "Curry"}},
		{"multi", "/poll! Which nights? | Mon | Tue | Wed", true, []string{"Mon", "Tue", "Wed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseInput(tt.in, nil)
			require.NoError(t, err)
			require.NotNil(t, c.Send)
			require.NotNil(t, c.Send.Poll)
			assert.Equal(t, model.MessageTypePoll, c.Send.MessageType)
			assert.Equal(t, tt.multi, c.Send.Poll.MultipleChoice)
			assert.Equal(t, tt.options, c.Send.Poll.Options)
			assert.NoError(t, c.Send.Validate())
		})
	}
}

func TestParseInputPollWithOneOptionFailsValidation(t *testing.T) {
	c, err := ParseInput("/poll Lonely? | Yes", nil)
	require.NoError(t, err)
	_, ok := api.IsValidation(c.Send.Validate())
	assert.True(t, ok)
}

func TestParseInputVote(t *testing.T) {
	poll := &model.Message{ID: "msg-2", HouseholdID: "hh-1", MessageType: model.MessageTypePoll, Poll: &model.Poll{}}

	c, err := ParseInput("/vote 1,3", poll)
	require.NoError(t, err)
	require.NotNil(t, c.Vote)
	assert.Equal(t, VoteMsg{HouseholdID: "hh-1", MessageID: "msg-2", Options: []int{0, 2}}, *c.Vote)

	_, err = ParseInput("/vote 1", nil)
	assert.ErrorIs(t, err, ErrNoPoll)

	_, err = ParseInput("/vote pizza", poll)
	_, ok := api.IsValidation(err)
	assert.True(t, ok)
}

func TestParseInputDelete(t *testing.T) {
	c, err := ParseInput("  /delete ", nil)
	require.NoError(t, err)
	assert.True(t, c.DeleteLast)
	assert.Nil(t, c.Send)
	assert.Nil(t, c.Vote)
}
