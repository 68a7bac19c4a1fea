// Package optimistic applies local changes before the backend confirms
// them and reconciles the stores with the outcome.
//
// Every mutation follows the same shape: snapshot what rollback needs,
// dispatch the optimistic action, call the backend on a goroutine, then
// dispatch exactly one success or failure action. Remote calls are
// detached from the caller's context and always run to completion.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/cache"
	"github.com/nhle/homesync/internal/metrics"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/state"
)

// Operation names, used for in-flight keys, metrics and form errors.
const (
	OpMarkRead    = "mark_read"
	OpMarkAllRead = "mark_all_read"
	OpDelete      = "delete_notification"
	OpSendMessage = "send_message"
	OpDeleteMsg   = "delete_message"
	OpVote        = "vote"
)

// ToastTTL is how long an error toast stays visible.
const ToastTTL = 5 * time.Second

// tempPrefix marks IDs of messages not yet acknowledged by the backend.
const tempPrefix = "tmp-"

// ErrNotFound is returned for mutations on entities the store does not hold.
var ErrNotFound = errors.New("not found")

// Coordinator runs optimistic mutations against one session's stores.
type Coordinator struct {
	backend api.Backend
	stores  *state.Stores
	cache   *cache.Cache
	timeout time.Duration
	now     func() time.Time
	onAuth  func(error)
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*Pending
	wg       sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithCache invalidates affected cache keys after successful mutations.
func WithCache(c *cache.Cache) Option {
	return func(co *Coordinator) { co.cache = c }
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.timeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(co *Coordinator) { co.now = now }
}

// WithAuthHandler is called when the backend rejects the session.
func WithAuthHandler(f func(error)) Option {
	return func(co *Coordinator) { co.onAuth = f }
}

// WithMetrics records mutation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// WithLogger sets the coordinator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// New creates a Coordinator.
func New(backend api.Backend, stores *state.Stores, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		stores:   stores,
		timeout:  30 * time.Second,
		now:      time.Now,
		log:      zerolog.Nop(),
		inflight: make(map[string]*Pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close waits for every outstanding remote call to settle.
func (c *Coordinator) Close() {
	c.wg.Wait()
}

// InFlight returns the number of outstanding mutations.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// mutation describes one optimistic operation.
type mutation struct {
	op  string
	key string

	// apply dispatches the optimistic change. It returns false when
	// there is nothing to change, in which case no remote call is made.
	apply func() bool

	// remote performs the backend call.
	remote func(ctx context.Context) error

	// commit and rollback dispatch the terminal action.
	commit   func()
	rollback func()

	// invalidate lists the cache keys affected on success.
	invalidate []cache.Key

	// failure is the user-facing text shown when the call fails.
	failure string
}

// run starts m unless a mutation with the same key is outstanding, in
// which case the caller joins it.
func (c *Coordinator) run(m mutation) *Pending {
	c.mu.Lock()
	if p, ok := c.inflight[m.key]; ok {
		c.mu.Unlock()
		c.metrics.Mutation(m.op, "deduplicated")
		return p
	}
	if !m.apply() {
		c.mu.Unlock()
		return completed(nil)
	}
	p := newPending()
	c.inflight[m.key] = p
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		err := m.remote(ctx)
		cancel()

		if err != nil {
			m.rollback()
			c.metrics.Mutation(m.op, "rolled_back")
			c.reportFailure(m, err)
		} else {
			m.commit()
			c.metrics.Mutation(m.op, "committed")
			if c.cache != nil {
				for _, k := range m.invalidate {
					c.cache.Invalidate(k)
				}
			}
		}

		c.mu.Lock()
		delete(c.inflight, m.key)
		c.mu.Unlock()
		p.finish(err)
	}()

	return p
}

// reportFailure turns a remote error into UI feedback. Authorization
// failures also tear the session down.
func (c *Coordinator) reportFailure(m mutation, err error) {
	c.log.Warn().Err(err).Str("op", m.op).Str("key", m.key).Msg("mutation rolled back")

	if api.IsAuthError(err) {
		c.toast(state.ToastError, "Your session has expired. Sign in again.")
		if c.onAuth != nil {
			c.onAuth(err)
		}
		return
	}
	if verr, ok := api.IsValidation(err); ok {
		c.stores.UI.Dispatch(state.SetFieldErrors{Form: m.op, Errors: state.FieldErrors(verr.Fields)})
		return
	}
	c.toast(state.ToastError, m.failure)
}

func (c *Coordinator) toast(kind state.ToastKind, text string) {
	c.stores.UI.Dispatch(state.ShowToast{Toast: state.Toast{
		ID:        uuid.NewString(),
		Kind:      kind,
		Text:      text,
		ExpiresAt: c.now().Add(ToastTTL),
	}})
}

// rejected reports a mutation refused before any state change.
func (c *Coordinator) rejected(op string, err error) *Pending {
	c.metrics.Mutation(op, "rejected")
	if verr, ok := api.IsValidation(err); ok {
		c.stores.UI.Dispatch(state.SetFieldErrors{Form: op, Errors: state.FieldErrors(verr.Fields)})
	}
	return completed(err)
}

// MarkRead marks one notification read. Repeated calls for the same ID
// while the first is outstanding join it.
func (c *Coordinator) MarkRead(id string) *Pending {
	store := c.stores.Notifications
	var confirmed *model.Notification
	return c.run(mutation{
		op:  OpMarkRead,
		key: OpMarkRead + ":" + id,
		apply: func() bool {
			n, ok := store.State().Find(id)
			if !ok || !n.IsUnread() {
				return false
			}
			store.Dispatch(state.MarkReadOptimistic{ID: id, At: c.now()})
			return true
		},
		remote: func(ctx context.Context) error {
			n, err := c.backend.MarkNotificationRead(ctx, id)
			confirmed = n
			return err
		},
		commit: func() {
			n := model.Notification{ID: id}
			if confirmed != nil {
				n = *confirmed
			}
			store.Dispatch(state.MarkReadSucceeded{Notification: n})
		},
		rollback: func() {
			store.Dispatch(state.MarkReadFailed{ID: id})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureNotifications}},
		failure:    "Couldn't mark the notification read. It is unread again.",
	})
}

// MarkAllRead marks every unread notification read. On failure only the
// items still marked optimistic are reverted.
func (c *Coordinator) MarkAllRead() *Pending {
	store := c.stores.Notifications
	return c.run(mutation{
		op:  OpMarkAllRead,
		key: OpMarkAllRead,
		apply: func() bool {
			if store.State().UnreadCount == 0 {
				return false
			}
			store.Dispatch(state.MarkAllReadOptimistic{At: c.now()})
			return true
		},
		remote: c.backend.MarkAllNotificationsRead,
		commit: func() {
			store.Dispatch(state.MarkAllReadSucceeded{})
		},
		rollback: func() {
			store.Dispatch(state.MarkAllReadFailed{})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureNotifications}},
		failure:    "Couldn't mark all notifications read. Changes were undone.",
	})
}

// Delete removes a notification, restoring it if the backend refuses. A
// notification the backend no longer has counts as deleted.
func (c *Coordinator) Delete(id string) *Pending {
	store := c.stores.Notifications
	var snapshot model.Notification
	return c.run(mutation{
		op:  OpDelete,
		key: OpDelete + ":" + id,
		apply: func() bool {
			n, ok := store.State().Find(id)
			if !ok {
				return false
			}
			snapshot = n
			snapshot.Optimistic = false
			store.Dispatch(state.RemoveNotification{ID: id})
			return true
		},
		remote: func(ctx context.Context) error {
			err := c.backend.DeleteNotification(ctx, id)
			if api.IsNotFound(err) {
				return nil
			}
			return err
		},
		commit: func() {},
		rollback: func() {
			store.Dispatch(state.AddNotification{Notification: snapshot})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureNotifications}},
		failure:    "Couldn't delete the notification. It has been restored.",
	})
}

// SendMessage posts a message to a household. The message appears
// immediately under a temporary ID that is replaced by the server's
// copy on success and removed on failure.
func (c *Coordinator) SendMessage(householdID string, req api.CreateMessageRequest) *Pending {
	if householdID == "" {
		return c.rejected(OpSendMessage, api.ErrNoActiveHousehold)
	}
	if err := req.Validate(); err != nil {
		return c.rejected(OpSendMessage, err)
	}
	c.stores.UI.Dispatch(state.SetFieldErrors{Form: OpSendMessage})

	user := c.stores.Auth.State().User
	if user == nil {
		return c.rejected(OpSendMessage, &api.AuthError{Message: "not signed in"})
	}

	tempID := tempPrefix + uuid.NewString()
	msg := model.Message{
		ID:          tempID,
		HouseholdID: householdID,
		UserID:      user.ID,
		Content:     req.Content,
		MessageType: req.MessageType,
		RepliedTo:   req.RepliedTo,
		CreatedAt:   c.now(),
	}
	if req.Poll != nil {
		msg.Poll = &model.Poll{
			ID:             tempID,
			Question:       req.Poll.Question,
			Options:        append([]string(nil), req.Poll.Options...),
			MultipleChoice: req.Poll.MultipleChoice,
		}
	}

	store := c.stores.Messages
	var created *model.Message
	return c.run(mutation{
		op:  OpSendMessage,
		key: OpSendMessage + ":" + tempID,
		apply: func() bool {
			store.Dispatch(state.SendOptimistic{Message: msg})
			return true
		},
		remote: func(ctx context.Context) error {
			m, err := c.backend.CreateMessage(ctx, householdID, req)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("creating message: empty response")
			}
			created = m
			return nil
		},
		commit: func() {
			confirmed := *created
			if confirmed.HouseholdID == "" {
				confirmed.HouseholdID = householdID
			}
			store.Dispatch(state.SendSucceeded{TempID: tempID, Message: confirmed})
		},
		rollback: func() {
			store.Dispatch(state.SendFailed{HouseholdID: householdID, TempID: tempID})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureMessages, Scope: householdID}},
		failure:    "Your message wasn't sent.",
	})
}

// DeleteMessage removes one of the current user's messages, restoring it
// if the backend refuses. Messages still awaiting acknowledgement cannot
// be deleted.
func (c *Coordinator) DeleteMessage(householdID, messageID string) *Pending {
	store := c.stores.Messages
	msg, ok := store.State().Find(householdID, messageID)
	if !ok {
		return c.rejected(OpDeleteMsg, fmt.Errorf("message %s: %w", messageID, ErrNotFound))
	}
	if msg.Optimistic || strings.HasPrefix(messageID, tempPrefix) {
		return c.rejected(OpDeleteMsg, fmt.Errorf("message %s is still being sent", messageID))
	}
	if user := c.stores.Auth.State().User; user == nil || user.ID != msg.UserID {
		return c.rejected(OpDeleteMsg, fmt.Errorf("message %s was not written by you", messageID))
	}

	return c.run(mutation{
		op:  OpDeleteMsg,
		key: OpDeleteMsg + ":" + messageID,
		apply: func() bool {
			store.Dispatch(state.RemoveMessage{HouseholdID: householdID, ID: messageID})
			return true
		},
		remote: func(ctx context.Context) error {
			err := c.backend.DeleteMessage(ctx, householdID, messageID)
			if api.IsNotFound(err) {
				return nil
			}
			return err
		},
		commit: func() {},
		rollback: func() {
			store.Dispatch(state.AddMessage{Message: msg})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureMessages, Scope: householdID}},
		failure:    "Couldn't delete your message. It has been restored.",
	})
}

// Vote replaces the current user's selection on a poll message.
func (c *Coordinator) Vote(householdID, messageID string, options []int) *Pending {
	user := c.stores.Auth.State().User
	if user == nil {
		return c.rejected(OpVote, &api.AuthError{Message: "not signed in"})
	}

	if strings.HasPrefix(messageID, tempPrefix) {
		return c.rejected(OpVote, &api.ValidationError{Fields: map[string]string{"poll": "is still being sent"}})
	}

	msg, ok := c.stores.Messages.State().Find(householdID, messageID)
	if !ok || !msg.IsPoll() {
		return c.rejected(OpVote, fmt.Errorf("poll message %s: %w", messageID, ErrNotFound))
	}
	req := api.VoteRequest{Options: options}
	if err := validateVote(*msg.Poll, req); err != nil {
		return c.rejected(OpVote, err)
	}

	store := c.stores.Messages
	var previous []int
	var tally *model.Poll
	return c.run(mutation{
		op:  OpVote,
		key: OpVote + ":" + messageID,
		apply: func() bool {
			current, ok := store.State().Find(householdID, messageID)
			if !ok || current.Poll == nil {
				return false
			}
			previous = append([]int(nil), current.Poll.Votes[user.ID]...)
			store.Dispatch(state.VoteOptimistic{
				HouseholdID: householdID,
				MessageID:   messageID,
				UserID:      user.ID,
				Options:     options,
			})
			return true
		},
		remote: func(ctx context.Context) error {
			p, err := c.backend.VotePoll(ctx, msg.Poll.ID, req)
			tally = p
			return err
		},
		commit: func() {
			store.Dispatch(state.VoteSucceeded{HouseholdID: householdID, MessageID: messageID, Poll: tally})
		},
		rollback: func() {
			store.Dispatch(state.VoteFailed{
				HouseholdID: householdID,
				MessageID:   messageID,
				UserID:      user.ID,
				Previous:    previous,
			})
		},
		invalidate: []cache.Key{{Feature: cache.FeatureMessages, Scope: householdID}},
		failure:    "Your vote wasn't recorded.",
	})
}

func validateVote(poll model.Poll, req api.VoteRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if !poll.MultipleChoice && len(req.Options) > 1 {
		return &api.ValidationError{Fields: map[string]string{"options": "only one option may be selected"}}
	}
	for _, idx := range req.Options {
		if idx >= len(poll.Options) {
			return &api.ValidationError{Fields: map[string]string{"options": "selects an option that does not exist"}}
		}
	}
	return nil
}
