package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/homesync/internal/model"
)

func TestValidateURL(t *testing.T) {
	assert.NoError(t, validateURL("https://home.example.com"))
	assert.NoError(t, validateURL(" http://localhost:8080 "))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("home.example.com"))
	assert.Error(t, validateURL("ftp://home.example.com"))
}

func TestValidateRequired(t *testing.T) {
	check := validateRequired("Token")
	assert.EqualError(t, check("  "), "Token is required")
	assert.NoError(t, check("abc"))
}

func TestAge(t *testing.T) {
	assert.Equal(t, "now", age(10*time.Second))
	assert.Equal(t, "5m", age(5*time.Minute))
	assert.Equal(t, "3h", age(3*time.Hour+10*time.Minute))
	assert.Equal(t, "2d", age(49*time.Hour))
}

func TestNotificationTableMarksUnread(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	readAt := now.Add(-time.Hour)
	out := notificationTable([]model.Notification{
		{ID: "ntf-1", Type: "bill_due", Title: "Electricity bill due", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "ntf-2", Type: "announcement", Title: "House meeting", CreatedAt: now.Add(-26 * time.Hour), ReadAt: &readAt},
	}, now)

	assert.Contains(t, out, "ntf-1")
	assert.Contains(t, out, "Electricity bill due")
	assert.Contains(t, out, "2h")
	assert.Contains(t, out, "1d")
	assert.Contains(t, out, "●")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"tui"},
		{"login"},
		{"notifications", "list"},
		{"household", "list"},
		{"logout"},
		{"notifications", "read-all"},
		{"notifications", "read"},
		{"notifications", "delete"},
		{"household", "use"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if assert.NoError(t, err, path) {
			assert.NotNil(t, cmd.RunE, path)
		}
	}
}
