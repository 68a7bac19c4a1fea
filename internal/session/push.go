package session

import (
	"time"

	"github.com/nhle/homesync/internal/cache"
	"github.com/nhle/homesync/internal/logging"
	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/push"
)

// connectPush replaces the push client with one scoped to householdID.
// Without a household the session runs on polling alone.
func (s *Session) connectPush(householdID string) {
	s.mu.Lock()
	old := s.push
	s.push = nil
	s.connected = false
	closed := s.closed
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.Cache.SetPushConnected(false)
	if closed || s.deps.Dialer == nil || s.deps.PushURL == nil || householdID == "" {
		return
	}

	url, err := s.deps.PushURL(householdID)
	if err != nil {
		s.log.Warn().Err(err).Msg("push disabled")
		return
	}

	cfg := s.deps.Sync
	opts := []push.Option{
		push.WithPolicy(reconnectPolicy(cfg)),
		push.WithHeader(s.deps.PushHeader),
		push.WithHandler(push.StoreHandler(s.Stores.Notifications, nowFunc(s.deps.PushClock))),
		push.WithStateListener(s.pushStateChanged),
		push.WithMetrics(s.deps.Metrics),
		push.WithLogger(logging.Component(s.deps.Log, "push")),
	}
	if cfg.HeartbeatSec > 0 {
		opts = append(opts, push.WithHeartbeat(model.Seconds(cfg.HeartbeatSec)))
	}
	if s.deps.PushClock != nil {
		opts = append(opts, push.WithClock(s.deps.PushClock))
	}
	client := push.NewClient(s.deps.Dialer, url, opts...)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		client.Close()
		return
	}
	s.push = client
	s.mu.Unlock()

	client.Connect()
}

// reconnectPolicy overlays the configured backoff on push.DefaultPolicy.
// Unset values keep the defaults.
func reconnectPolicy(cfg model.SyncConfig) push.Policy {
	policy := push.DefaultPolicy
	if cfg.ReconnectBaseMs > 0 {
		policy.Base = model.Millis(cfg.ReconnectBaseMs)
	}
	if cfg.ReconnectCapMs > 0 {
		policy.Cap = model.Millis(cfg.ReconnectCapMs)
	}
	if cfg.ReconnectMaxAttempt > 0 {
		policy.MaxAttempts = cfg.ReconnectMaxAttempt
	}
	return policy
}

// pushStateChanged runs on the push event loop. Events missed while the
// socket was down are recovered by refetching notifications once it is
// back.
func (s *Session) pushStateChanged(m push.Machine) {
	up := m.State == push.Connected

	s.mu.Lock()
	was := s.connected
	s.connected = up
	s.mu.Unlock()

	s.Cache.SetPushConnected(up)
	if up && !was {
		key := cache.Key{Feature: cache.FeatureNotifications}
		s.Cache.Invalidate(key)
		s.Poller.RefreshKey(key)
	}
}

// PushState returns the state of the push transport. A session without
// push reports Disconnected.
func (s *Session) PushState() push.Machine {
	s.mu.Lock()
	client := s.push
	s.mu.Unlock()
	if client == nil {
		return push.Machine{State: push.Disconnected}
	}
	return client.State()
}

// ReconnectPush restarts the transport after it gave up retrying.
func (s *Session) ReconnectPush() {
	s.mu.Lock()
	client := s.push
	s.mu.Unlock()
	if client != nil {
		client.Connect()
	}
}

func nowFunc(clock push.Clock) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock.Now
}
