package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"vsnplyr/internal/apperr"
)

// SongUpdate changes one field of a song. The set of implementations is
// closed: SetName, SetArtist, SetAlbum, SetGenre, SetKey, SetImageURL,
// SetAudioURL, SetDuration, SetBPM and SetIsLocal.
type SongUpdate interface {
	// Field is the wire name of the updated field.
	Field() string
	// Value is the new value as stored; nil clears an optional field.
	Value() any
	Validate() error
	ApplyTo(s *Song)
	songUpdate()
}

// SetName sets the title; surrounding whitespace is trimmed and it must
// not be empty.
type SetName struct{ Name string }

// SetArtist sets the artist; it must not be empty.
type SetArtist struct{ Artist string }

// SetAlbum sets the album; an empty value clears it.
type SetAlbum struct{ Album string }

// SetGenre sets the genre; an empty value clears it.
type SetGenre struct{ Genre string }

// SetKey sets the musical key; an empty value clears it.
type SetKey struct{ Key string }

// SetImageURL sets the artwork URL; an empty value clears it.
type SetImageURL struct{ URL string }

// SetAudioURL sets the playable location; it must not be empty.
type SetAudioURL struct{ URL string }

// SetDuration sets the length in seconds; it must be positive.
type SetDuration struct{ Seconds int }

// SetIsLocal marks whether the audio lives in the local library.
type SetIsLocal struct{ IsLocal bool }

// SetBPM sets the tempo; a nil BPM clears it.
type SetBPM struct{ BPM *int }

func (u SetName) Field() string     { return "name" }
func (u SetArtist) Field() string   { return "artist" }
func (u SetAlbum) Field() string    { return "album" }
func (u SetGenre) Field() string    { return "genre" }
func (u SetKey) Field() string      { return "key" }
func (u SetImageURL) Field() string { return "imageUrl" }
func (u SetAudioURL) Field() string { return "audioUrl" }
func (u SetDuration) Field() string { return "duration" }
func (u SetBPM) Field() string      { return "bpm" }
func (u SetIsLocal) Field() string  { return "isLocal" }

func (u SetName) Value() any     { return strings.TrimSpace(u.Name) }
func (u SetArtist) Value() any   { return strings.TrimSpace(u.Artist) }
func (u SetAlbum) Value() any    { return optional(u.Album) }
func (u SetGenre) Value() any    { return optional(u.Genre) }
func (u SetKey) Value() any      { return optional(u.Key) }
func (u SetImageURL) Value() any { return optional(u.URL) }
func (u SetAudioURL) Value() any { return strings.TrimSpace(u.URL) }
func (u SetDuration) Value() any { return u.Seconds }
func (u SetIsLocal) Value() any  { return u.IsLocal }

func (u SetBPM) Value() any {
	if u.BPM == nil {
		return nil
	}
	return *u.BPM
}

func (u SetName) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return apperr.Invalid("name", "EMPTY_NAME", "Song name cannot be empty")
	}
	return nil
}

func (u SetArtist) Validate() error {
	if strings.TrimSpace(u.Artist) == "" {
		return apperr.Invalid("artist", "EMPTY_ARTIST", "Artist cannot be empty")
	}
	return nil
}

func (u SetAudioURL) Validate() error {
	if strings.TrimSpace(u.URL) == "" {
		return apperr.Invalid("audioUrl", "EMPTY_AUDIO_URL", "Audio URL cannot be empty")
	}
	return nil
}

func (u SetDuration) Validate() error {
	if u.Seconds <= 0 {
		return apperr.Invalid("duration", "INVALID_DURATION", "Duration must be positive")
	}
	return nil
}

func (u SetBPM) Validate() error {
	if u.BPM != nil && *u.BPM <= 0 {
		return apperr.Invalid("bpm", "INVALID_BPM", "BPM must be positive")
	}
	return nil
}

func (u SetAlbum) Validate() error    { return nil }
func (u SetGenre) Validate() error    { return nil }
func (u SetKey) Validate() error      { return nil }
func (u SetImageURL) Validate() error { return nil }
func (u SetIsLocal) Validate() error  { return nil }

func (u SetName) ApplyTo(s *Song)     { s.Name = strings.TrimSpace(u.Name) }
func (u SetArtist) ApplyTo(s *Song)   { s.Artist = strings.TrimSpace(u.Artist) }
func (u SetAlbum) ApplyTo(s *Song)    { s.Album = strings.TrimSpace(u.Album) }
func (u SetGenre) ApplyTo(s *Song)    { s.Genre = strings.TrimSpace(u.Genre) }
func (u SetKey) ApplyTo(s *Song)      { s.Key = strings.TrimSpace(u.Key) }
func (u SetImageURL) ApplyTo(s *Song) { s.ImageURL = strings.TrimSpace(u.URL) }
func (u SetAudioURL) ApplyTo(s *Song) { s.AudioURL = strings.TrimSpace(u.URL) }
func (u SetDuration) ApplyTo(s *Song) { s.Duration = u.Seconds }
func (u SetIsLocal) ApplyTo(s *Song)  { s.IsLocal = u.IsLocal }

func (u SetBPM) ApplyTo(s *Song) {
	if u.BPM == nil {
		s.BPM = nil
		return
	}
	bpm := *u.BPM
	s.BPM = &bpm
}

func (SetName) songUpdate()     {}
func (SetArtist) songUpdate()   {}
func (SetAlbum) songUpdate()    {}
func (SetGenre) songUpdate()    {}
func (SetKey) songUpdate()      {}
func (SetImageURL) songUpdate() {}
func (SetAudioURL) songUpdate() {}
func (SetDuration) songUpdate() {}
func (SetBPM) songUpdate()      {}
func (SetIsLocal) songUpdate()  {}

// PlaylistUpdate changes one field of a playlist. Implemented by
// SetPlaylistName and SetCoverURL.
type PlaylistUpdate interface {
	Field() string
	Value() any
	Validate() error
	ApplyTo(p *Playlist)
	playlistUpdate()
}

// SetPlaylistName renames a playlist; the name must not be empty.
type SetPlaylistName struct{ Name string }

// SetCoverURL sets the cover image; an empty URL clears it.
type SetCoverURL struct{ URL string }

func (u SetPlaylistName) Field() string { return "name" }
func (u SetCoverURL) Field() string     { return "coverUrl" }

func (u SetPlaylistName) Value() any { return strings.TrimSpace(u.Name) }
func (u SetCoverURL) Value() any     { return optional(u.URL) }

func (u SetPlaylistName) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return apperr.Invalid("name", "EMPTY_NAME", "Playlist name cannot be empty")
	}
	return nil
}

func (u SetCoverURL) Validate() error { return nil }

func (u SetPlaylistName) ApplyTo(p *Playlist) { p.Name = strings.TrimSpace(u.Name) }
func (u SetCoverURL) ApplyTo(p *Playlist)     { p.CoverURL = strings.TrimSpace(u.URL) }

func (SetPlaylistName) playlistUpdate() {}
func (SetCoverURL) playlistUpdate()     {}

// FieldUpdate is the wire form of a single field update.
type FieldUpdate struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// EncodeSongUpdates converts typed updates to their wire form.
func EncodeSongUpdates(updates []SongUpdate) ([]FieldUpdate, error) {
	out := make([]FieldUpdate, 0, len(updates))
	for _, u := range updates {
		raw, err := json.Marshal(u.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, FieldUpdate{Field: u.Field(), Value: raw})
	}
	return out, nil
}

// EncodePlaylistUpdates converts typed updates to their wire form.
func EncodePlaylistUpdates(updates []PlaylistUpdate) ([]FieldUpdate, error) {
	out := make([]FieldUpdate, 0, len(updates))
	for _, u := range updates {
		raw, err := json.Marshal(u.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, FieldUpdate{Field: u.Field(), Value: raw})
	}
	return out, nil
}

// DecodeSongUpdate turns a wire update into its typed variant. Unknown
// fields and mistyped values are validation errors.
func DecodeSongUpdate(fu FieldUpdate) (SongUpdate, error) {
	var u SongUpdate
	var err error
	switch fu.Field {
	case "name":
		var v string
		err = decodeValue(fu, &v)
		u = SetName{Name: v}
	case "artist":
		var v string
		err = decodeValue(fu, &v)
		u = SetArtist{Artist: v}
	case "album":
		var v string
		err = decodeValue(fu, &v)
		u = SetAlbum{Album: v}
	case "genre":
		var v string
		err = decodeValue(fu, &v)
		u = SetGenre{Genre: v}
	case "key":
		var v string
		err = decodeValue(fu, &v)
		u = SetKey{Key: v}
	case "imageUrl":
		var v string
		err = decodeValue(fu, &v)
		u = SetImageURL{URL: v}
	case "audioUrl":
		var v string
		err = decodeValue(fu, &v)
		u = SetAudioURL{URL: v}
	case "duration":
		var v int
		err = decodeValue(fu, &v)
		u = SetDuration{Seconds: v}
	case "bpm":
		var v *int
		err = decodeValue(fu, &v)
		u = SetBPM{BPM: v}
	case "isLocal":
		var v bool
		err = decodeValue(fu, &v)
		u = SetIsLocal{IsLocal: v}
	default:
		return nil, apperr.Invalid(fu.Field, "UNKNOWN_FIELD", "Unknown song field")
	}
	if err != nil {
		return nil, err
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// DecodePlaylistUpdate turns a wire update into its typed variant.
func DecodePlaylistUpdate(fu FieldUpdate) (PlaylistUpdate, error) {
	var u PlaylistUpdate
	var v string
	if err := decodeValue(fu, &v); err != nil {
		return nil, err
	}
	switch fu.Field {
	case "name":
		u = SetPlaylistName{Name: v}
	case "coverUrl":
		u = SetCoverURL{URL: v}
	default:
		return nil, apperr.Invalid(fu.Field, "UNKNOWN_FIELD", "Unknown playlist field")
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func decodeValue(fu FieldUpdate, dst any) error {
	raw := fu.Value
	if len(raw) == 0 {
		raw = []byte("null")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid(fu.Field, "INVALID_VALUE", "Value has the wrong type")
	}
	return nil
}

// optional maps an empty string to nil so the stored column is cleared.
func optional(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
