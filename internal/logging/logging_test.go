package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/homesync/internal/model"
)

func TestComponentFieldIsAttached(t *testing.T) {
	buf := &bytes.Buffer{}
	log := Component(New(Options{Level: zerolog.DebugLevel, Output: buf}), "push")

	log.Info().Str("state", "connected").Msg("transition")

	assert.Contains(t, buf.String(), `"component":"push"`)
	assert.Contains(t, buf.String(), `"state":"connected"`)
}

func TestLevelFiltersEvents(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Level: zerolog.WarnLevel, Output: buf})

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestOpenWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "homesync.log")
	log, closer, err := Open(model.LogConfig{Level: "info", File: path}, nil)
	require.NoError(t, err)

	log.Info().Msg("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
