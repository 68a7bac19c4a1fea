// Package mockapi is an in-memory backend for offline development and
// tests. It implements api.Backend and serves an in-process push feed
// through a push.Dialer.
package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/model"
)

// Backend holds households, notifications and messages in memory.
type Backend struct {
	mu            sync.Mutex
	user          model.User
	households    []model.Household
	members       map[string][]model.Member
	notifications map[string]model.Notification
	messages      map[string][]model.Message
	failNext      map[string]error
	latency       time.Duration
	now           func() time.Time
	feed          *Feed
}

var _ api.Backend = (*Backend)(nil)

// Option customizes a Backend.
type Option func(*Backend)

// WithLatency delays every call, to make optimistic updates visible.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New creates an empty backend for user.
func New(user model.User, opts ...Option) *Backend {
	b := &Backend{
		user:          user,
		members:       make(map[string][]model.Member),
		notifications: make(map[string]model.Notification),
		messages:      make(map[string][]model.Message),
		failNext:      make(map[string]error),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.feed = newFeed()
	return b
}

// Feed returns the push feed fed by this backend's writes.
func (b *Backend) Feed() *Feed {
	return b.feed
}

// FailNext makes the next call of the named method return err.
// Method names match api.Backend, e.g. "MarkAllNotificationsRead".
func (b *Backend) FailNext(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[method] = err
}

// AddHousehold adds a household with the current user as its owner.
func (b *Backend) AddHousehold(h model.Household, members ...model.Member) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = b.now()
	}
	b.households = append(b.households, h)
	owner := model.Member{UserID: b.user.ID, HouseholdID: h.ID, Name: b.user.Name, Role: "owner"}
	b.members[h.ID] = append([]model.Member{owner}, members...)
}

// Notify stores a notification and pushes it to connected clients.
func (b *Backend) Notify(n model.Notification) model.Notification {
	b.mu.Lock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}
	b.notifications[n.ID] = n
	b.mu.Unlock()

	b.feed.publish(event{Type: "notification", Data: n})
	return n
}

// PostMessage appends a message as if another member had sent it.
func (b *Backend) PostMessage(m model.Message) model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = b.now()
	}
	b.messages[m.HouseholdID] = append(b.messages[m.HouseholdID], m)
	return m
}

// begin applies latency and any injected failure for method.
func (b *Backend) begin(ctx context.Context, method string) error {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failNext[method]; ok {
		delete(b.failNext, method)
		return err
	}
	return nil
}

func (b *Backend) Me(ctx context.Context) (*model.User, error) {
	if err := b.begin(ctx, "Me"); err != nil {
		return nil, err
	}
	user := b.user
	return &user, nil
}

func (b *Backend) ListHouseholds(ctx context.Context) ([]model.Household, error) {
	if err := b.begin(ctx, "ListHouseholds"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Household(nil), b.households...), nil
}

func (b *Backend) ListMembers(ctx context.Context, householdID string) ([]model.Member, error) {
	if err := b.begin(ctx, "ListMembers"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.members[householdID]
	if !ok {
		return nil, notFound(http.MethodGet, "/api/households/"+householdID+"/members")
	}
	return append([]model.Member(nil), members...), nil
}

func (b *Backend) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	if err := b.begin(ctx, "ListNotifications"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Notification, 0, len(b.notifications))
	for _, n := range b.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *Backend) MarkNotificationRead(ctx context.Context, id string) (*model.Notification, error) {
	if err := b.begin(ctx, "MarkNotificationRead"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	n, ok := b.notifications[id]
	if !ok {
		b.mu.Unlock()
		return nil, notFound(http.MethodPut, "/api/notifications/"+id+"/read")
	}
	if n.ReadAt == nil {
		at := b.now()
		n.ReadAt = &at
		b.notifications[id] = n
	}
	b.mu.Unlock()

	b.feed.publish(event{Type: "notification_read", Data: readPayload{ID: id, ReadAt: *n.ReadAt}})
	return &n, nil
}

func (b *Backend) MarkAllNotificationsRead(ctx context.Context) error {
	if err := b.begin(ctx, "MarkAllNotificationsRead"); err != nil {
		return err
	}
	b.mu.Lock()
	at := b.now()
	var changed []string
	for id, n := range b.notifications {
		if n.ReadAt == nil {
			n.ReadAt = &at
			b.notifications[id] = n
			changed = append(changed, id)
		}
	}
	b.mu.Unlock()

	for _, id := range changed {
		b.feed.publish(event{Type: "notification_read", Data: readPayload{ID: id, ReadAt: at}})
	}
	return nil
}

func (b *Backend) DeleteNotification(ctx context.Context, id string) error {
	if err := b.begin(ctx, "DeleteNotification"); err != nil {
		return err
	}
	b.mu.Lock()
	_, ok := b.notifications[id]
	delete(b.notifications, id)
	b.mu.Unlock()
	if !ok {
		return notFound(http.MethodDelete, "/api/notifications/"+id)
	}

	b.feed.publish(event{Type: "notification_deleted", Data: map[string]string{"id": id}})
	return nil
}

func (b *Backend) ListMessages(ctx context.Context, householdID string) ([]model.Message, error) {
	if err := b.begin(ctx, "ListMessages"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.members[householdID]; !ok {
		return nil, notFound(http.MethodGet, "/api/households/"+householdID+"/messages")
	}
	return cloneMessages(b.messages[householdID]), nil
}

func (b *Backend) CreateMessage(
	ctx context.Context,
	householdID string,
	req api.CreateMessageRequest,
) (*model.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := b.begin(ctx, "CreateMessage"); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.members[householdID]; !ok {
		return nil, notFound(http.MethodPost, "/api/households/"+householdID+"/messages")
	}
	msg := model.Message{
		ID:          uuid.NewString(),
		HouseholdID: householdID,
		UserID:      b.user.ID,
		Content:     req.Content,
		MessageType: req.MessageType,
		RepliedTo:   req.RepliedTo,
		CreatedAt:   b.now(),
	}
	if req.Poll != nil {
		msg.Poll = &model.Poll{
			ID:             uuid.NewString(),
			Question:       req.Poll.Question,
			Options:        append([]string(nil), req.Poll.Options...),
			Votes:          map[string][]int{},
			MultipleChoice: req.Poll.MultipleChoice,
		}
	}
	b.messages[householdID] = append(b.messages[householdID], msg)
	return cloneMessage(msg), nil
}

func (b *Backend) DeleteMessage(ctx context.Context, householdID, messageID string) error {
	if err := b.begin(ctx, "DeleteMessage"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	path := "/api/households/" + householdID + "/messages/" + messageID
	msgs := b.messages[householdID]
	for i, m := range msgs {
		if m.ID != messageID {
			continue
		}
		if m.UserID != b.user.ID {
			return &api.StatusError{Method: http.MethodDelete, Path: path, StatusCode: http.StatusForbidden, Body: "not your message"}
		}
		b.messages[householdID] = append(msgs[:i:i], msgs[i+1:]...)
		return nil
	}
	return notFound(http.MethodDelete, path)
}

func (b *Backend) VotePoll(ctx context.Context, pollID string, req api.VoteRequest) (*model.Poll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := b.begin(ctx, "VotePoll"); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for householdID, msgs := range b.messages {
		for i, m := range msgs {
			if m.Poll == nil || m.Poll.ID != pollID {
				continue
			}
			for _, idx := range req.Options {
				if idx >= len(m.Poll.Options) {
					return nil, &api.ValidationError{Fields: map[string]string{
						"options": fmt.Sprintf("option %d does not exist", idx),
					}}
				}
			}
			poll := m.Poll.WithVote(b.user.ID, req.Options)
			b.messages[householdID][i].Poll = &poll
			out := poll.Clone()
			return &out, nil
		}
	}
	return nil, notFound(http.MethodPost, "/api/polls/"+pollID+"/vote")
}

func notFound(method, path string) error {
	return &api.StatusError{Method: method, Path: path, StatusCode: http.StatusNotFound, Body: "not found"}
}

func cloneMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = *cloneMessage(m)
	}
	return out
}

func cloneMessage(m model.Message) *model.Message {
	if m.Poll != nil {
		poll := m.Poll.Clone()
		m.Poll = &poll
	}
	return &m
}
