package models

import (
	"strings"
	"time"

	"vsnplyr/internal/apperr"
)

// Song represents a music track in the library
type Song struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album,omitempty"`
	Duration  int       `json:"duration"` // in seconds
	Genre     string    `json:"genre,omitempty"`
	BPM       *int      `json:"bpm,omitempty"`
	Key       string    `json:"key,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	AudioURL  string    `json:"audioUrl"`
	IsLocal   bool      `json:"isLocal"`
	CreatedAt time.Time `json:"createdAt"`
}

// SongInput carries the fields needed to create a song
type SongInput struct {
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration"`
	Genre    string `json:"genre,omitempty"`
	BPM      *int   `json:"bpm,omitempty"`
	Key      string `json:"key,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	AudioURL string `json:"audioUrl"`
	IsLocal  bool   `json:"isLocal"`
}

// Normalize trims every string field.
func (in SongInput) Normalize() SongInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Artist = strings.TrimSpace(in.Artist)
	in.Album = strings.TrimSpace(in.Album)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Key = strings.TrimSpace(in.Key)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	return in
}

// Validate checks a normalized input.
func (in SongInput) Validate() error {
	if in.Name == "" {
		return apperr.Invalid("name", "EMPTY_NAME", "Song name cannot be empty")
	}
	if in.Artist == "" {
		return apperr.Invalid("artist", "EMPTY_ARTIST", "Artist cannot be empty")
	}
	if in.AudioURL == "" {
		return apperr.Invalid("audioUrl", "EMPTY_AUDIO_URL", "Audio URL cannot be empty")
	}
	if in.Duration <= 0 {
		return apperr.Invalid("duration", "INVALID_DURATION", "Duration must be positive")
	}
	if in.BPM != nil && *in.BPM <= 0 {
		return apperr.Invalid("bpm", "INVALID_BPM", "BPM must be positive")
	}
	return nil
}

// SongOrderBy selects the sort column for song listings
type SongOrderBy string

const (
	OrderByName      SongOrderBy = "name"
	OrderByArtist    SongOrderBy = "artist"
	OrderByCreatedAt SongOrderBy = "createdAt"
)

// SortOrder is asc or desc
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SongQuery describes a song listing request. Zero values mean
// createdAt, desc and the default limit.
type SongQuery struct {
	OrderBy SongOrderBy `json:"orderBy,omitempty"`
	Order   SortOrder   `json:"order,omitempty"`
	Limit   int         `json:"limit,omitempty"`
}

// Default listing limits.
const (
	DefaultListLimit   = 100
	DefaultRecentLimit = 10
	DefaultSearchLimit = 50
)

// WithDefaults fills unset fields and validates the rest.
func (q SongQuery) WithDefaults() (SongQuery, error) {
	switch q.OrderBy {
	case "":
		q.OrderBy = OrderByCreatedAt
	case OrderByName, OrderByArtist, OrderByCreatedAt:
	default:
		return q, apperr.Invalid("orderBy", "INVALID_ORDER_BY", "orderBy must be name, artist or createdAt")
	}
	switch q.Order {
	case "":
		q.Order = Desc
	case Asc, Desc:
	default:
		return q, apperr.Invalid("order", "INVALID_ORDER", "order must be asc or desc")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	return q, nil
}
