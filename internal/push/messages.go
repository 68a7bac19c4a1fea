package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nhle/homesync/internal/model"
)

// Inbound message types.
const (
	TypeNotification        = "notification"
	TypeNotificationRead    = "notification_read"
	TypeNotificationDeleted = "notification_deleted"
	TypePong                = "pong"
	TypePing                = "ping"
)

// Inbound is the closed set of server-to-client messages.
type Inbound interface {
	inbound()
}

// NotificationMsg announces a new notification.
type NotificationMsg struct {
	Notification model.Notification
}

// NotificationReadMsg reports a notification read elsewhere.
type NotificationReadMsg struct {
	ID     string
	ReadAt time.Time
}

// NotificationDeletedMsg reports a deleted notification.
type NotificationDeletedMsg struct {
	ID string
}

// PongMsg answers a ping.
type PongMsg struct{}

// UnknownMsg is any well-formed message with an unrecognized type.
type UnknownMsg struct {
	Type string
}

func (NotificationMsg) inbound()        {}
func (NotificationReadMsg) inbound()    {}
func (NotificationDeletedMsg) inbound() {}
func (PongMsg) inbound()                {}
func (UnknownMsg) inbound()             {}

// ErrMalformed is returned for frames that are not JSON objects or lack
// the fields their type requires.
var ErrMalformed = errors.New("malformed push message")

// ParseInbound decodes a frame of the form {"type": ..., "data": ...}.
func ParseInbound(frame []byte) (Inbound, error) {
	if !gjson.ValidBytes(frame) {
		return nil, ErrMalformed
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return nil, ErrMalformed
	}

	typ := root.Get("type").String()
	data := root.Get("data")

	switch typ {
	case TypeNotification:
		var n model.Notification
		if !data.IsObject() {
			return nil, fmt.Errorf("%w: %s without data", ErrMalformed, typ)
		}
		if err := json.Unmarshal([]byte(data.Raw), &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if n.ID == "" {
			return nil, fmt.Errorf("%w: notification without id", ErrMalformed)
		}
		return NotificationMsg{Notification: n}, nil

	case TypeNotificationRead:
		id := idOf(data)
		if id == "" {
			return nil, fmt.Errorf("%w: %s without id", ErrMalformed, typ)
		}
		msg := NotificationReadMsg{ID: id}
		if at := data.Get("read_at"); at.Exists() && at.Type != gjson.Null {
			t, err := time.Parse(time.RFC3339Nano, at.String())
			if err != nil {
				return nil, fmt.Errorf("%w: read_at: %v", ErrMalformed, err)
			}
			msg.ReadAt = t
		}
		return msg, nil

	case TypeNotificationDeleted:
		id := idOf(data)
		if id == "" {
			return nil, fmt.Errorf("%w: %s without id", ErrMalformed, typ)
		}
		return NotificationDeletedMsg{ID: id}, nil

	case TypePong:
		return PongMsg{}, nil
	}

	return UnknownMsg{Type: typ}, nil
}

// idOf accepts either a bare id or an object carrying one.
func idOf(data gjson.Result) string {
	if data.Type == gjson.String {
		return data.String()
	}
	return data.Get("id").String()
}

var pingFrame = []byte(`{"type":"ping"}`)
