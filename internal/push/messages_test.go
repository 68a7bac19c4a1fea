package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/model"
)

func TestParseInbound(t *testing.T) {
	readAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		frame string
		want  Inbound
	}{
		{
			name:  "notification",
			frame: `{"type":"notification","data":{"id":"n1","type":"bill_due","title":"Rent","message":"due friday","read_at":null,"created_at":"2026-03-01T09:00:00Z"}}`,
			want: NotificationMsg{Notification: func() (n model.Notification) {
				n.ID, n.Type, n.Title, n.Message = "n1", "bill_due", "Rent", "due friday"
				n.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
				return n
			}()},
		},
		{
			name:  "read with timestamp",
			frame: `{"type":"notification_read","data":{"id":"n1","read_at":"2026-03-01T10:00:00Z"}}`,
			want:  NotificationReadMsg{ID: "n1", ReadAt: readAt},
		},
		{
			name:  "read with bare id",
			frame: `{"type":"notification_read","data":"n1"}`,
			want:  NotificationReadMsg{ID: "n1"},
		},
		{
			name:  "deleted",
			frame: `{"type":"notification_deleted","data":{"id":"n2"}}`,
			want:  NotificationDeletedMsg{ID: "n2"},
		},
		{
			name:  "pong",
			frame: `{"type":"pong"}`,
			want:  PongMsg{},
		},
		{
			name:  "unknown",
			frame: `{"type":"typing","data":{"user":"u1"}}`,
			want:  UnknownMsg{Type: "typing"},
		},
		{
			name:  "missing type",
			frame: `{"data":{}}`,
			want:  UnknownMsg{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInboundMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`[1,2]`,
		`{"type":"notification"}`,
		`{"type":"notification","data":{"title":"no id"}}`,
		`{"type":"notification_deleted","data":{}}`,
		`{"type":"notification_read","data":{"id":"n1","read_at":"yesterday"}}`,
	}
	for _, f := range frames {
		_, err := ParseInbound([]byte(f))
		assert.ErrorIs(t, err, ErrMalformed, f)
	}
}

func notification(id string) model.Notification {
	return model.Notification{ID: id, Title: "t" + id, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}
