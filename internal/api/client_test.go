package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, StaticToken("secret"),
		WithRetry(2, time.Millisecond, 5*time.Millisecond),
	)
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(model.User{ID: "u1", Name: "Ada"})
	}))

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got)
	assert.Equal(t, "u1", user.ID)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]model.Notification{{ID: "n1"}})
	}))

	items, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.ListNotifications(context.Background())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}))

	err := c.MarkAllNotificationsRead(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "token expired")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientMapsValidationErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"invite_code":"is invalid"}}`))
	}))

	_, err := c.ListHouseholds(context.Background())
	verr, ok := IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "is invalid", verr.Fields["invite_code"])
}

func TestClientNotFoundIsStatusError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	err := c.DeleteNotification(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestClientEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		call   func(c *Client) error
	}{
		{"mark read", http.MethodPut, "/api/notifications/n1/read", func(c *Client) error {
			_, err := c.MarkNotificationRead(context.Background(), "n1")
			return err
		}},
		{"mark all read", http.MethodPut, "/api/notifications/read-all", func(c *Client) error {
			return c.MarkAllNotificationsRead(context.Background())
		}},
		{"delete", http.MethodDelete, "/api/notifications/n1", func(c *Client) error {
			return c.DeleteNotification(context.Background(), "n1")
		}},
		{"messages", http.MethodGet, "/api/households/h1/messages", func(c *Client) error {
			_, err := c.ListMessages(context.Background(), "h1")
			return err
		}},
		{"delete message", http.MethodDelete, "/api/households/h1/messages/m1", func(c *Client) error {
			return c.DeleteMessage(context.Background(), "h1", "m1")
		}},
		{"members", http.MethodGet, "/api/households/h1/members", func(c *Client) error {
			_, err := c.ListMembers(context.Background(), "h1")
			return err
		}},
		{"create message", http.MethodPost, "/api/households/h1/messages", func(c *Client) error {
			_, err := c.CreateMessage(context.Background(), "h1", CreateMessageRequest{
				Content: "hi", MessageType: model.MessageTypeText,
			})
			return err
		}},
		{"vote", http.MethodPost, "/api/polls/p1/vote", func(c *Client) error {
			_, err := c.VotePoll(context.Background(), "p1", VoteRequest{Options: []int{0}})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var method, path string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			}))

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.method, method)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestClientCancelledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ListNotifications(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
