// Package session ties one authenticated user's stores, cache, poller,
// push transport and mutation coordinator together. Nothing here is a
// process-wide singleton: every login creates a Session and logout or
// an expired token closes it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/cache"
	"github.com/nhle/homesync/internal/debounce"
	"github.com/nhle/homesync/internal/logging"
	"github.com/nhle/homesync/internal/metrics"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/optimistic"
	"github.com/nhle/homesync/internal/push"
	"github.com/nhle/homesync/internal/state"
	"github.com/nhle/homesync/internal/store"
	appsync "github.com/nhle/homesync/internal/sync"
)

// ErrUnknownHousehold is returned when selecting a household the user
// does not belong to.
var ErrUnknownHousehold = errors.New("not a member of that household")

// Deps are the collaborators a Session is built from.
type Deps struct {
	Backend api.Backend
	KV      store.KV
	Sync    model.SyncConfig

	// Dialer and PushURL configure the push transport. A nil Dialer
	// disables push; the poller then covers every key.
	Dialer     push.Dialer
	PushURL    func(householdID string) (string, error)
	PushHeader http.Header
	PushClock  push.Clock

	// Timeout bounds each remote mutation.
	Timeout time.Duration

	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Session is one authenticated user's sync runtime.
type Session struct {
	deps Deps
	log  zerolog.Logger

	Stores      *state.Stores
	Cache       *cache.Cache
	Coordinator *optimistic.Coordinator
	Poller      *appsync.Poller

	ctx    context.Context
	cancel context.CancelFunc

	selMu sync.Mutex

	mu        sync.Mutex
	push      *push.Client
	connected bool
	drafts    map[string]*debounce.Debouncer
	closed    bool

	expired    chan struct{}
	expireOnce sync.Once
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// Start signs in with deps.Backend and loads the initial state:
// the user, households and notifications, then the persisted active
// household. Only authorization failures are fatal; anything else is
// logged and left to background refresh.
func Start(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}

	user, err := deps.Backend.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	c, err := cache.New(max(deps.Sync.CacheSize, 8),
		cache.WithMetrics(deps.Metrics),
		cache.WithFetchTimeout(deps.Timeout),
		cache.WithLogger(logging.Component(deps.Log, "cache")),
	)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		deps:    deps,
		log:     logging.Component(deps.Log, "session"),
		Stores:  state.NewStores(),
		Cache:   c,
		ctx:     sctx,
		cancel:  cancel,
		drafts:  make(map[string]*debounce.Debouncer),
		expired: make(chan struct{}),
	}
	s.Stores.Auth.Dispatch(state.LoggedIn{User: *user})

	s.Coordinator = optimistic.New(deps.Backend, s.Stores,
		optimistic.WithCache(c),
		optimistic.WithTimeout(deps.Timeout),
		optimistic.WithAuthHandler(s.authFailed),
		optimistic.WithMetrics(deps.Metrics),
		optimistic.WithLogger(logging.Component(deps.Log, "optimistic")),
	)
	s.Poller = appsync.New(c, model.Seconds(deps.Sync.PollIntervalSec),
		appsync.WithAuthHandler(s.authFailed),
		appsync.WithLogger(logging.Component(deps.Log, "poller")),
	)

	s.registerGlobalKeys()

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range []cache.Key{
		{Feature: cache.FeatureHouseholds},
		{Feature: cache.FeatureNotifications},
	} {
		g.Go(func() error {
			if _, err := c.Refresh(gctx, k); err != nil {
				if api.IsAuthError(err) {
					return err
				}
				s.log.Warn().Err(err).Str("key", k.String()).Msg("initial load failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, fmt.Errorf("starting session: %w", err)
	}

	if err := s.restoreActiveHousehold(ctx); err != nil {
		s.log.Warn().Err(err).Msg("restoring active household")
	}

	s.connectPush(s.Stores.Households.State().ActiveID)

	if changes, err := deps.KV.Watch(sctx); err != nil {
		s.log.Warn().Err(err).Msg("watching local store")
	} else {
		s.wg.Add(1)
		go s.watchStore(changes)
	}

	s.log.Info().
		Str("user", user.ID).
		Str("household", s.ActiveHousehold()).
		Msg("session started")
	return s, nil
}

func (s *Session) registerGlobalKeys() {
	cfg := s.deps.Sync
	b := s.deps.Backend

	s.Cache.Register(cache.Key{Feature: cache.FeatureNotifications}, cache.Definition{
		StaleAfter:  model.Seconds(cfg.NotificationsStaleSec),
		PushCovered: true,
		Fetch: func(ctx context.Context) (any, error) {
			items, err := b.ListNotifications(ctx)
			if err != nil {
				s.Stores.Notifications.Dispatch(state.NotificationsFailed{Err: err.Error()})
				return nil, err
			}
			return items, nil
		},
		Apply: func(v any) {
			s.Stores.Notifications.Dispatch(state.SetNotifications{Items: v.([]model.Notification)})
		},
	})

	s.Cache.Register(cache.Key{Feature: cache.FeatureHouseholds}, cache.Definition{
		StaleAfter: model.Seconds(cfg.HouseholdsStaleSec),
		Fetch: func(ctx context.Context) (any, error) {
			return b.ListHouseholds(ctx)
		},
		Apply: func(v any) {
			before := s.Stores.Households.State().ActiveID
			after := s.Stores.Households.Dispatch(state.SetHouseholds{Households: v.([]model.Household)}).ActiveID
			if before != "" && after == "" {
				s.log.Info().Str("household", before).Msg("active household no longer available")
				s.persistActive("")
				s.switchScope(before, "")
				s.connectPush("")
			}
		},
	})
}

func (s *Session) registerScopedKeys(householdID string) {
	cfg := s.deps.Sync
	b := s.deps.Backend

	s.Cache.Register(messagesKey(householdID), cache.Definition{
		StaleAfter: model.Seconds(cfg.MessagesStaleSec),
		Fetch: func(ctx context.Context) (any, error) {
			return b.ListMessages(ctx, householdID)
		},
		Apply: func(v any) {
			s.Stores.Messages.Dispatch(state.SetMessages{HouseholdID: householdID, Items: v.([]model.Message)})
		},
	})
	s.Cache.Register(membersKey(householdID), cache.Definition{
		StaleAfter: model.Seconds(cfg.HouseholdsStaleSec),
		Fetch: func(ctx context.Context) (any, error) {
			return b.ListMembers(ctx, householdID)
		},
		Apply: func(v any) {
			s.Stores.Households.Dispatch(state.SetMembers{HouseholdID: householdID, Members: v.([]model.Member)})
		},
	})
}

func messagesKey(householdID string) cache.Key {
	return cache.Key{Feature: cache.FeatureMessages, Scope: householdID}
}

func membersKey(householdID string) cache.Key {
	return cache.Key{Feature: cache.FeatureMembers, Scope: householdID}
}

// restoreActiveHousehold mirrors the persisted selection into the store.
// A stale selection is cleared; with no selection and exactly one
// household, that household is selected.
func (s *Session) restoreActiveHousehold(ctx context.Context) error {
	id, err := store.ActiveHousehold(ctx, s.deps.KV)
	if err != nil {
		return err
	}

	hs := s.Stores.Households.State()
	switch {
	case id != "" && hs.Contains(id):
	case id != "":
		s.log.Info().Str("household", id).Msg("clearing persisted household the user no longer belongs to")
		id = ""
		if err := store.SetActiveHousehold(ctx, s.deps.KV, ""); err != nil {
			return err
		}
	case len(hs.Households) == 1:
		id = hs.Households[0].ID
		if err := store.SetActiveHousehold(ctx, s.deps.KV, id); err != nil {
			return err
		}
	}

	if id == "" {
		return nil
	}
	s.Stores.Households.Dispatch(state.SelectHousehold{ID: id})
	s.switchScope("", id)
	return nil
}

// ActiveHousehold returns the selected household ID, or "".
func (s *Session) ActiveHousehold() string {
	return s.Stores.Households.State().ActiveID
}

// SelectHousehold makes id the active household, persists the choice
// and reconnects push for the new scope. An empty id clears the
// selection.
func (s *Session) SelectHousehold(ctx context.Context, id string) error {
	if id != "" && !s.Stores.Households.State().Contains(id) {
		return fmt.Errorf("selecting household %s: %w", id, ErrUnknownHousehold)
	}
	if err := store.SetActiveHousehold(ctx, s.deps.KV, id); err != nil {
		return fmt.Errorf("persisting active household: %w", err)
	}
	s.applySelection(id)
	return nil
}

// applySelection updates the store and the household-scoped runtime.
func (s *Session) applySelection(id string) {
	s.selMu.Lock()
	defer s.selMu.Unlock()

	prev := s.Stores.Households.State().ActiveID
	if prev == id {
		return
	}
	next := s.Stores.Households.Dispatch(state.SelectHousehold{ID: id}).ActiveID
	if next != id {
		return
	}
	s.log.Info().Str("from", prev).Str("to", id).Msg("active household changed")
	s.switchScope(prev, id)
	s.connectPush(id)
}

func (s *Session) switchScope(prev, next string) {
	if prev != "" {
		s.flushDraft(prev)
		s.Cache.Forget(messagesKey(prev))
		s.Cache.Forget(membersKey(prev))
	}
	if next == "" {
		return
	}
	s.registerScopedKeys(next)
	s.Poller.RefreshKey(messagesKey(next))
	s.Poller.RefreshKey(membersKey(next))
}

func (s *Session) persistActive(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.SetActiveHousehold(ctx, s.deps.KV, id); err != nil {
		s.log.Warn().Err(err).Msg("persisting active household")
	}
}

// LoadMessages returns the chat history of a household, fetching it
// when stale.
func (s *Session) LoadMessages(ctx context.Context, householdID string) ([]model.Message, error) {
	if householdID == "" {
		return nil, api.ErrNoActiveHousehold
	}
	if _, err := s.Cache.Get(ctx, messagesKey(householdID)); err != nil {
		return nil, err
	}
	return s.Stores.Messages.State().Messages(householdID), nil
}

// RefreshNotifications reloads notifications now.
func (s *Session) RefreshNotifications(ctx context.Context) error {
	_, err := s.Cache.Refresh(ctx, cache.Key{Feature: cache.FeatureNotifications})
	return err
}

// Expired is closed when the backend rejects the session token.
func (s *Session) Expired() <-chan struct{} {
	return s.expired
}

// authFailed handles a 401 from any component. Teardown runs on its
// own goroutine because the caller may be a component being stopped.
func (s *Session) authFailed(err error) {
	s.expireOnce.Do(func() {
		s.log.Warn().Err(err).Msg("session rejected by backend")
		s.Stores.Auth.Dispatch(state.SessionExpired{})
		close(s.expired)
		go s.Close()
	})
}

// Close stops push, polling and the store watch and waits for
// outstanding mutations and draft writes.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		client := s.push
		s.push = nil
		drafts := s.drafts
		s.drafts = map[string]*debounce.Debouncer{}
		s.mu.Unlock()

		if client != nil {
			client.Close()
		}
		s.Poller.Stop()
		for _, d := range drafts {
			d.Flush()
		}
		s.cancel()
		s.Coordinator.Close()
		s.wg.Wait()
		s.log.Info().Msg("session closed")
	})
}
