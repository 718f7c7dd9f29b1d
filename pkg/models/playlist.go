package models

import (
	"strings"
	"time"

	"vsnplyr/internal/apperr"
)

// Playlist represents a user-created playlist
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlaylistInput carries the fields needed to create a playlist
type PlaylistInput struct {
	Name     string `json:"name"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// Normalize trims the input.
func (in PlaylistInput) Normalize() PlaylistInput {
	in.Name = strings.TrimSpace(in.Name)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	return in
}

// Validate checks a normalized input.
func (in PlaylistInput) Validate() error {
	if in.Name == "" {
		return apperr.Invalid("name", "EMPTY_NAME", "Playlist name cannot be empty")
	}
	return nil
}

// Membership records that a song belongs to a playlist at a position
type Membership struct {
	ID         string `json:"id"`
	PlaylistID string `json:"playlistId"`
	SongID     string `json:"songId"`
	Position   int    `json:"position"`
}

// PlaylistSong is a song as seen through one playlist
type PlaylistSong struct {
	Song
	MembershipID string `json:"membershipId"`
	Position     int    `json:"position"`
}

// PlaylistWithPosition is a playlist as seen from one of its songs
type PlaylistWithPosition struct {
	Playlist
	MembershipID string `json:"membershipId"`
	Position     int    `json:"position"`
}

// SongOrder assigns a position to a song in a batch reorder
type SongOrder struct {
	SongID   string `json:"songId"`
	Position int    `json:"position"`
}

// PlaylistStats summarizes a playlist's contents
type PlaylistStats struct {
	TrackCount      int      `json:"trackCount"`
	TotalDuration   int      `json:"totalDuration"`
	AverageDuration float64  `json:"averageDuration"`
	Genres          []string `json:"genres"`
	Artists         []string `json:"artists"`
}

// Direction selects the neighbour returned by an adjacency lookup
type Direction string

const (
	Next     Direction = "next"
	Previous Direction = "prev"
)

// Valid reports whether d is next or prev.
func (d Direction) Valid() bool {
	return d == Next || d == Previous
}
