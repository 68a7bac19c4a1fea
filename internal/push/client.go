package push

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/homesync/internal/metrics"
)

// Handler receives every parsed inbound message except pongs. It is
// called from the connection's read goroutine, one message at a time.
type Handler func(Inbound)

// Client is a reconnecting push transport. All connection state is
// owned by a single event loop goroutine; dial, read and timer callbacks
// only post events to it. Each connection gets a generation number so
// events from a connection that has since been replaced are ignored.
type Client struct {
	dialer    Dialer
	url       string
	header    http.Header
	policy    Policy
	heartbeat time.Duration
	clock     Clock
	handler   Handler
	onState   func(Machine)
	metrics   *metrics.Metrics
	log       zerolog.Logger

	inbox     chan any
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	machine  Machine
	lastPong time.Time

	// Owned by the event loop.
	gen            uint64
	conn           Conn
	heartbeatTimer Timer
	retryTimer     Timer
	retryToken     uint64
}

type requestEvent struct {
	ev Event
}

type dialResult struct {
	gen  uint64
	conn Conn
	err  error
}

type readFailed struct {
	gen uint64
	err error
}

type retryFired struct {
	token uint64
}

type heartbeatFired struct {
	gen uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithHeader sets handshake headers, e.g. Authorization.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithPolicy sets the reconnect policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithHeartbeat sets the ping interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithHandler sets the inbound message sink.
func WithHandler(h Handler) Option {
	return func(c *Client) { c.handler = h }
}

// WithStateListener is called from the event loop after every state
// change.
func WithStateListener(f func(Machine)) Option {
	return func(c *Client) { c.onState = f }
}

// WithMetrics records state, reconnect and inbound counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a disconnected client for url.
func NewClient(dialer Dialer, url string, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		dialer:    dialer,
		url:       url,
		policy:    DefaultPolicy,
		heartbeat: 30 * time.Second,
		clock:     RealClock{},
		handler:   func(Inbound) {},
		log:       zerolog.Nop(),
		inbox:     make(chan any, 16),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the transport. It is a no-op unless disconnected.
func (c *Client) Connect() {
	c.startOnce.Do(func() { go c.run() })
	c.send(requestEvent{ev: Connect{}})
}

// Disconnect stops the transport without releasing it; Connect may be
// called again.
func (c *Client) Disconnect() {
	c.send(requestEvent{ev: Disconnect{}})
}

// Close stops the transport for good and waits for the event loop to
// exit.
func (c *Client) Close() {
	started := true
	c.startOnce.Do(func() {
		started = false
		close(c.done)
	})
	c.cancel()
	if started {
		<-c.done
	}
}

// State returns the current machine.
func (c *Client) State() Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine
}

// LastPong returns when the server last answered a ping. A missed pong
// does not force a reconnect.
func (c *Client) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

func (c *Client) send(msg any) {
	select {
	case c.inbox <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.apply(Disconnect{})
			return
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

func (c *Client) handle(msg any) {
	switch msg := msg.(type) {
	case requestEvent:
		c.apply(msg.ev)

	case dialResult:
		if msg.gen != c.gen {
			if msg.conn != nil {
				_ = msg.conn.Close()
			}
			return
		}
		if msg.err != nil {
			c.log.Warn().Err(msg.err).Str("url", c.url).Msg("push dial failed")
			c.apply(Closed{Err: msg.err})
			return
		}
		c.conn = msg.conn
		go c.readLoop(msg.gen, msg.conn)
		c.apply(Opened{})

	case readFailed:
		if msg.gen != c.gen {
			return
		}
		c.log.Info().Err(msg.err).Msg("push connection closed")
		c.apply(Closed{Err: msg.err})

	case retryFired:
		if msg.token != c.retryToken {
			return
		}
		c.retryTimer = nil
		c.apply(RetryDue{})

	case heartbeatFired:
		if msg.gen != c.gen || c.conn == nil {
			return
		}
		if err := c.conn.WriteMessage(pingFrame); err != nil {
			c.log.Warn().Err(err).Msg("push ping failed")
			c.apply(Closed{Err: err})
			return
		}
		c.scheduleHeartbeat()
	}
}

// apply runs one transition and executes its effects.
func (c *Client) apply(ev Event) {
	c.mu.Lock()
	prev := c.machine
	next, effects := Transition(c.policy, prev, ev)
	c.machine = next
	c.mu.Unlock()

	for _, eff := range effects {
		c.execute(eff)
	}

	if next.State == prev.State {
		return
	}
	c.log.Debug().
		Str("from", prev.State.String()).
		Str("to", next.State.String()).
		Int("attempts", next.Attempts).
		Msg("push state changed")
	c.metrics.PushState(next.State.String(), stateNames())
	if c.onState != nil {
		c.onState(next)
	}
}

func (c *Client) execute(eff Effect) {
	switch eff := eff.(type) {
	case Dial:
		c.gen++
		go c.dial(c.gen)

	case StartHeartbeat:
		c.mu.Lock()
		c.lastPong = c.clock.Now()
		c.mu.Unlock()
		c.scheduleHeartbeat()

	case StopHeartbeat:
		if c.heartbeatTimer != nil {
			c.heartbeatTimer.Stop()
			c.heartbeatTimer = nil
		}

	case ScheduleRetry:
		c.retryToken++
		token := c.retryToken
		c.retryTimer = c.clock.AfterFunc(eff.Delay, func() {
			c.send(retryFired{token: token})
		})
		c.metrics.PushReconnect()
		c.log.Info().Dur("delay", eff.Delay).Msg("push reconnect scheduled")

	case CancelRetry:
		c.retryToken++
		if c.retryTimer != nil {
			c.retryTimer.Stop()
			c.retryTimer = nil
		}

	case CloseConn:
		c.gen++
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
	}
}

func (c *Client) scheduleHeartbeat() {
	gen := c.gen
	c.heartbeatTimer = c.clock.AfterFunc(c.heartbeat, func() {
		c.send(heartbeatFired{gen: gen})
	})
}

func (c *Client) dial(gen uint64) {
	conn, err := c.dialer.Dial(c.ctx, c.url, c.header)
	select {
	case c.inbox <- dialResult{gen: gen, conn: conn, err: err}:
	case <-c.ctx.Done():
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			c.send(readFailed{gen: gen, err: err})
			return
		}
		c.receive(frame)
	}
}

func (c *Client) receive(frame []byte) {
	msg, err := ParseInbound(frame)
	if err != nil {
		c.metrics.PushInbound("malformed")
		c.log.Warn().Err(err).Msg("dropping push message")
		return
	}

	switch msg := msg.(type) {
	case PongMsg:
		c.metrics.PushInbound(TypePong)
		c.mu.Lock()
		c.lastPong = c.clock.Now()
		c.mu.Unlock()
		return
	case UnknownMsg:
		c.metrics.PushInbound("unknown")
		c.log.Warn().Str("type", msg.Type).Msg("dropping push message of unknown type")
		return
	case NotificationMsg:
		c.metrics.PushInbound(TypeNotification)
	case NotificationReadMsg:
		c.metrics.PushInbound(TypeNotificationRead)
	case NotificationDeletedMsg:
		c.metrics.PushInbound(TypeNotificationDeleted)
	}
	c.handler(msg)
}

func stateNames() []string {
	names := make([]string, len(States))
	for i, s := range States {
		names[i] = s.String()
	}
	return names
}
