package mockapi

import (
	"time"

	"github.com/nhle/homesync/internal/model"
)

// Seeded returns a backend populated with a demo household, a few
// notifications and a short chat history, for offline mode.
func Seeded(now time.Time, opts ...Option) *Backend {
	user := model.User{ID: "user-1", Name: "Alex", Email: "alex@example.com"}
	b := New(user, opts...)

	b.AddHousehold(
		model.Household{ID: "hh-maple", Name: "Maple Street", CreatedAt: now.Add(-90 * 24 * time.Hour)},
		model.Member{UserID: "user-2", HouseholdID: "hh-maple", Name: "Sam", Role: "member"},
		model.Member{UserID: "user-3", HouseholdID: "hh-maple", Name: "Jo", Role: "member"},
	)
	b.AddHousehold(
		model.Household{ID: "hh-cabin", Name: "Lake Cabin", CreatedAt: now.Add(-30 * 24 * time.Hour)},
		model.Member{UserID: "user-2", HouseholdID: "hh-cabin", Name: "Sam", Role: "admin"},
	)

	readAt := now.Add(-20 * time.Hour)
	for _, n := range []model.Notification{
		{ID: "ntf-1", Type: "bill_due", Title: "Electricity bill due", Message: "$84.20 is due on Friday.", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "ntf-2", Type: "task_assigned", Title: "You were assigned: Take out recycling", Message: "Sam assigned you a chore.", CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "ntf-3", Type: "announcement", Title: "House meeting Sunday", Message: "Jo posted an announcement.", CreatedAt: now.Add(-26 * time.Hour), ReadAt: &readAt},
	} {
		b.notifications[n.ID] = n
	}

	b.messages["hh-maple"] = []model.Message{
		{ID: "msg-1", HouseholdID: "hh-maple", UserID: "user-2", Content: "Who's around this weekend?", MessageType: model.MessageTypeText, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "msg-2", HouseholdID: "hh-maple", UserID: "user-3", MessageType: model.MessageTypePoll, CreatedAt: now.Add(-150 * time.Minute), Poll: &model.Poll{
			ID: "poll-1", Question: "Dinner on Saturday?", Options: []string{"Pizza", "Curry", "Cook at home"},
			Votes: map[string][]int{"user-2": {1}, "user-3": {1}},
		}},
		{ID: "msg-3", HouseholdID: "hh-maple", UserID: "user-2", Content: "Curry it is", MessageType: model.MessageTypeText, CreatedAt: now.Add(-2 * time.Hour)},
	}
	return b
}
