package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/homesync/internal/model"
)

// Backend is the set of remote operations the sync layer depends on.
// Client implements it against the REST API; mockapi implements it in
// memory for offline development and tests.
type Backend interface {
	Me(ctx context.Context) (*model.User, error)
	ListHouseholds(ctx context.Context) ([]model.Household, error)
	ListMembers(ctx context.Context, householdID string) ([]model.Member, error)

	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error

	ListMessages(ctx context.Context, householdID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, householdID string, req CreateMessageRequest) (*model.Message, error)
	DeleteMessage(ctx context.Context, householdID, messageID string) error
	VotePoll(ctx context.Context, pollID string, req VoteRequest) (*model.Poll, error)
}

var _ Backend = (*Client)(nil)

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Get(ctx, "/api/me", &user); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &user, nil
}

// ListHouseholds returns the households the user belongs to.
func (c *Client) ListHouseholds(ctx context.Context) ([]model.Household, error) {
	var households []model.Household
	if err := c.Get(ctx, "/api/households", &households); err != nil {
		return nil, fmt.Errorf("listing households: %w", err)
	}
	return households, nil
}

// ListMembers returns the members of a household.
func (c *Client) ListMembers(ctx context.Context, householdID string) ([]model.Member, error) {
	var members []model.Member
	path := "/api/households/" + url.PathEscape(householdID) + "/members"
	if err := c.Get(ctx, path, &members); err != nil {
		return nil, fmt.Errorf("listing members of household %s: %w", householdID, err)
	}
	return members, nil
}

// ListNotifications returns the user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := c.Get(ctx, "/api/notifications", &notifications); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks one notification read and returns the
// server's copy.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	path := "/api/notifications/" + url.PathEscape(id) + "/read"
	if err := c.Put(ctx, path, nil, &n); err != nil {
		return nil, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	if n.ID == "" {
		return nil, nil
	}
	return &n, nil
}

// MarkAllNotificationsRead marks every notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.Put(ctx, "/api/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	if err := c.Delete(ctx, "/api/notifications/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// ListMessages returns a household's chat history.
func (c *Client) ListMessages(ctx context.Context, householdID string) ([]model.Message, error) {
	var msgs []model.Message
	path := "/api/households/" + url.PathEscape(householdID) + "/messages"
	if err := c.Get(ctx, path, &msgs); err != nil {
		return nil, fmt.Errorf("listing messages of household %s: %w", householdID, err)
	}
	return msgs, nil
}

// CreateMessage posts a message or poll to a household.
func (c *Client) CreateMessage(
	ctx context.Context,
	householdID string,
	req CreateMessageRequest,
) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var msg model.Message
	path := "/api/households/" + url.PathEscape(householdID) + "/messages"
	if err := c.Post(ctx, path, req, &msg); err != nil {
		return nil, fmt.Errorf("creating message in household %s: %w", householdID, err)
	}
	return &msg, nil
}

// DeleteMessage removes one of the user's messages from a household.
func (c *Client) DeleteMessage(ctx context.Context, householdID, messageID string) error {
	path := "/api/households/" + url.PathEscape(householdID) + "/messages/" + url.PathEscape(messageID)
	if err := c.Delete(ctx, path); err != nil {
		return fmt.Errorf("deleting message %s: %w", messageID, err)
	}
	return nil
}

// VotePoll records the user's selection on a poll and returns the
// updated poll.
func (c *Client) VotePoll(ctx context.Context, pollID string, req VoteRequest) (*model.Poll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var poll model.Poll
	path := "/api/polls/" + url.PathEscape(pollID) + "/vote"
	if err := c.Post(ctx, path, req, &poll); err != nil {
		return nil, fmt.Errorf("voting on poll %s: %w", pollID, err)
	}
	if poll.ID == "" {
		return nil, nil
	}
	return &poll, nil
}
