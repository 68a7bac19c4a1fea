package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		base, path, household, want string
	}{
		{"http://localhost:8080", "/ws", "", "ws://localhost:8080/ws"},
		{"https://home.example.com/", "ws", "h1", "wss://home.example.com/ws?household=h1"},
		{"https://home.example.com/app", "/ws", "h 2", "wss://home.example.com/app/ws?household=h+2"},
	}
	for _, tt := range tests {
		got, err := URL(tt.base, tt.path, tt.household)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := URL("ftp://example.com", "/ws", "")
	assert.Error(t, err)
}
