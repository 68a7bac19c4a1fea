package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/api"
	"github.com/nhle/homesync/internal/cache"
)

// SyncState represents the current state of a feature's background refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state for a single feature.
type SyncStatus struct {
	Feature  string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Key       cache.Key
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the session.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// Poller periodically refreshes the cache keys that are due. Keys kept
// current by the push transport are skipped by the cache while push is
// connected, so polling only fills the gaps.
type Poller struct {
	cache     *cache.Cache
	interval  time.Duration
	statuses  map[string]*SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan cache.Key
	stopCh    chan struct{}
	doneCh    chan struct{}
	onAuth    func(error)
	log       zerolog.Logger
	mu        gosync.Mutex
	running   bool
}

// Option customizes a Poller.
type Option func(*Poller)

// WithAuthHandler is called when a refresh fails with a 401.
func WithAuthHandler(f func(error)) Option {
	return func(p *Poller) { p.onAuth = f }
}

// WithLogger sets the poller logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// New creates a Poller over c that checks for due keys every interval.
func New(c *cache.Cache, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p := &Poller{
		cache:     c,
		interval:  interval,
		statuses:  make(map[string]*SyncStatus),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan cache.Key, 16),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling goroutine. The returned command waits on
// the result channel and delivers SyncResultMsg messages to the Bubble
// Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for an in-progress
// refresh to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	<-p.doneCh
}

// RefreshAll triggers an immediate refresh of every registered key.
func (p *Poller) RefreshAll() tea.Cmd {
	for _, k := range p.cache.Keys() {
		p.cache.Invalidate(k)
	}
	p.RefreshKey(cache.Key{})
	return nil
}

// RefreshKey triggers an immediate check; a non-zero key is refreshed
// even when fresh.
func (p *Poller) RefreshKey(k cache.Key) tea.Cmd {
	select {
	case p.triggerCh <- k:
	default:
		// Channel full; skip to avoid blocking
	}
	return nil
}

// GetStatuses returns the current sync status of every feature seen.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

func (p *Poller) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refreshDue()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.refreshDue()
		case k := <-p.triggerCh:
			if k != (cache.Key{}) {
				p.refresh(k)
			}
			p.refreshDue()
		}
	}
}

func (p *Poller) refreshDue() {
	for _, k := range p.cache.Due(time.Now()) {
		select {
		case <-p.stopCh:
			return
		default:
		}
		p.refresh(k)
	}
}

// refresh performs a single refresh and reports it on the result channel.
func (p *Poller) refresh(k cache.Key) {
	p.setStatus(k.Feature, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	_, err := p.cache.Refresh(ctx, k)
	if err != nil {
		p.setStatus(k.Feature, SyncError, err)
		p.log.Warn().Err(err).Str("key", k.String()).Msg("background refresh failed")

		if api.IsAuthError(err) {
			if p.onAuth != nil {
				p.onAuth(err)
			}
			p.sendResult(SyncResultMsg{
				Key:   k,
				Error: err,
				AuthError: &AuthErrorMsg{
					Message: "session expired. Run `homesync login` to sign in again.",
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{Key: k, Error: err})
		return
	}

	p.setStatus(k.Feature, SyncIdle, nil)
	p.sendResult(SyncResultMsg{Key: k})
}

func (p *Poller) setStatus(feature string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[feature]
	if !ok {
		status = &SyncStatus{Feature: feature}
		p.statuses[feature] = status
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// This should be called after processing a SyncResultMsg to continue
// listening for future results.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
