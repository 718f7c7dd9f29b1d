package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vsnplyr/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsnplyr.log")
	logger, closer, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.WithField("playlist_id", "p1").Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"playlist_id":"p1"`))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: "chatty", Format: "text"})
	assert.Error(t, err)
}
