package models

import (
	"encoding/json"
	"errors"
	"testing"

	"vsnplyr/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSongUpdatesSurviveTheWire(t *testing.T) {
	bpm := 120
	updates := []SongUpdate{
		SetName{Name: "  Blue  "},
		SetAlbum{Album: ""},
		SetBPM{BPM: &bpm},
		SetIsLocal{IsLocal: true},
	}
	wire, err := EncodeSongUpdates(updates)
	require.NoError(t, err)

	var song Song
	for _, fu := range wire {
		u, err := DecodeSongUpdate(fu)
		require.NoError(t, err, fu.Field)
		u.ApplyTo(&song)
	}
	assert.Equal(t, "Blue", song.Name)
	assert.Empty(t, song.Album)
	require.NotNil(t, song.BPM)
	assert.Equal(t, 120, *song.BPM)
	assert.True(t, song.IsLocal)
}

func TestDecodeSongUpdateRejects(t *testing.T) {
	tests := []struct {
		name  string
		fu    FieldUpdate
		field string
	}{
		{"unknown field", FieldUpdate{Field: "owner", Value: json.RawMessage(`"me"`)}, "owner"},
		{"wrong type", FieldUpdate{Field: "duration", Value: json.RawMessage(`"long"`)}, "duration"},
		{"zero duration", FieldUpdate{Field: "duration", Value: json.RawMessage(`0`)}, "duration"},
		{"empty name", FieldUpdate{Field: "name", Value: json.RawMessage(`"  "`)}, "name"},
		{"negative bpm", FieldUpdate{Field: "bpm", Value: json.RawMessage(`-3`)}, "bpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSongUpdate(tt.fu)
			require.Error(t, err)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestPlaylistUpdates(t *testing.T) {
	wire, err := EncodePlaylistUpdates([]PlaylistUpdate{SetPlaylistName{Name: "Road"}, SetCoverURL{URL: ""}})
	require.NoError(t, err)

	p := Playlist{Name: "Old", CoverURL: "https://img.example.com/c.png"}
	for _, fu := range wire {
		u, err := DecodePlaylistUpdate(fu)
		require.NoError(t, err)
		u.ApplyTo(&p)
	}
	assert.Equal(t, "Road", p.Name)
	assert.Empty(t, p.CoverURL)

	_, err = DecodePlaylistUpdate(FieldUpdate{Field: "name", Value: json.RawMessage(`""`)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
