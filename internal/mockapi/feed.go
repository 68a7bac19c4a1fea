package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nhle/homesync/internal/push"
)

// ErrFeedDown is returned by Dial while the feed is down.
var ErrFeedDown = errors.New("mock push feed is down")

var errConnClosed = errors.New("mock push connection closed")

type event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type readPayload struct {
	ID     string    `json:"id"`
	ReadAt time.Time `json:"read_at"`
}

// Feed is an in-process push server. It implements push.Dialer.
type Feed struct {
	mu    sync.Mutex
	conns map[*feedConn]struct{}
	down  bool
	dials int
}

var _ push.Dialer = (*Feed)(nil)

func newFeed() *Feed {
	return &Feed{conns: make(map[*feedConn]struct{})}
}

// Dial opens a connection to the feed.
func (f *Feed) Dial(ctx context.Context, _ string, _ http.Header) (push.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.down {
		return nil, ErrFeedDown
	}
	c := &feedConn{feed: f, frames: make(chan []byte, 64), closed: make(chan struct{})}
	f.conns[c] = struct{}{}
	return c, nil
}

// SetDown makes new dials fail and, when down, drops open connections.
func (f *Feed) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	var open []*feedConn
	if down {
		for c := range f.conns {
			open = append(open, c)
		}
	}
	f.mu.Unlock()

	for _, c := range open {
		_ = c.Close()
	}
}

// Connections returns the number of open connections.
func (f *Feed) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// Dials returns how many times Dial was called.
func (f *Feed) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// Send pushes a raw frame to every open connection.
func (f *Feed) Send(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.conns {
		c.deliver(frame)
	}
}

func (f *Feed) publish(ev event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f.Send(frame)
}

func (f *Feed) remove(c *feedConn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, c)
}

type feedConn struct {
	feed      *Feed
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *feedConn) deliver(frame []byte) {
	select {
	case c.frames <- frame:
	case <-c.closed:
	default:
		// Slow reader; the mock drops rather than blocks the backend.
	}
}

func (c *feedConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *feedConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	if gjson.GetBytes(data, "type").String() == push.TypePing {
		c.deliver([]byte(`{"type":"pong"}`))
	}
	return nil
}

func (c *feedConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.feed.remove(c)
	})
	return nil
}
