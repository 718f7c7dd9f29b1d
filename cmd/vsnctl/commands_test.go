package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrders(t *testing.T) {
	orders, err := parseOrders([]string{"a=2", "b=1"})
	require.NoError(t, err)
	assert.Equal(t, []models.SongOrder{{SongID: "a", Position: 2}, {SongID: "b", Position: 1}}, orders)

	for _, bad := range []string{"a", "=1", "a=x"} {
		_, err := parseOrders([]string{bad})
		assert.True(t, errors.Is(err, apperr.ErrValidation), bad)
	}
}

func TestPrintSequenceMarksPlaceholders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSequence(&buf, []models.PlaylistSong{
		{Song: models.Song{ID: "s1", Name: "One", Artist: "A", Duration: 65, CreatedAt: time.Now()}, MembershipID: "m1", Position: 1},
		{Song: models.Song{ID: "s2", Name: "Two", Artist: "B", Duration: 5}, MembershipID: "temp-1", Position: 2},
	}))

	out := buf.String()
	assert.Contains(t, out, "One")
	assert.Contains(t, out, "1:05")
	assert.Contains(t, out, "Two (pending)")
	assert.NotContains(t, out, "One (pending)")
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", clock(0))
	assert.Equal(t, "3:07", clock(187))
	assert.Equal(t, "61:00", clock(3660))
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"playlists", "songs", "show", "add", "remove", "move", "reorder", "watch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
