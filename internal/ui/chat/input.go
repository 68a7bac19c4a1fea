package chat

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/model"
)

// ErrNoPoll is returned by a vote command when the chat has no poll.
var ErrNoPoll = errors.New("there is no poll to vote on")

// ErrNothingToDelete is returned by /delete when the user has no
// confirmed message in the chat.
var ErrNothingToDelete = errors.New("you have no message to delete")

// Command is what a line of chat input asks for: exactly one of Send,
// Vote or DeleteLast is set.
type Command struct {
	Send       *api.CreateMessageRequest
	Vote       *VoteMsg
	DeleteLast bool
}

// ParseInput turns chat input into a command. Plain text is a message.
//
//	/poll Question? | Option A | Option B    single-choice poll
//	/poll! Question? | A | B | C             multiple-choice poll
//	/vote 2        or  /vote 1,3             vote on the latest poll
//	/delete                                  delete your latest message
//
// Vote options are 1-based in the input and 0-based in the result.
func ParseInput(text string, latestPoll *model.Message) (Command, error) {
	text = strings.TrimSpace(text)

	switch {
	case text == "/delete":
		return Command{DeleteLast: true}, nil

	case strings.HasPrefix(text, "/poll"):
		body := strings.TrimPrefix(text, "/poll")
		multi := strings.HasPrefix(body, "!")
		body = strings.TrimPrefix(body, "!")

		parts := strings.Split(body, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		req := api.CreateMessageRequest{
			MessageType: model.MessageTypePoll,
			Poll: &api.CreatePollRequest{
				Question:       parts[0],
				Options:        parts[1:],
				MultipleChoice: multi,
			},
		}
		return Command{Send: &req}, nil

	case strings.HasPrefix(text, "/vote"):
		if latestPoll == nil {
			return Command{}, ErrNoPoll
		}
		var options []int
		for _, f := range strings.FieldsFunc(strings.TrimPrefix(text, "/vote"), func(r rune) bool {
			return r == ',' || r == ' '
		}) {
			n, err := strconv.Atoi(f)
			if err != nil {
				return Command{}, &api.ValidationError{Fields: map[string]string{
					"options": "use option numbers, e.g. /vote 2",
				}}
			}
			options = append(options, n-1)
		}
		return Command{Vote: &VoteMsg{
			HouseholdID: latestPoll.HouseholdID,
			MessageID:   latestPoll.ID,
			Options:     options,
		}}, nil
	}

	req := api.CreateMessageRequest{
		MessageType: model.MessageTypeText,
		Content:     text,
	}
	return Command{Send: &req}, nil
}
