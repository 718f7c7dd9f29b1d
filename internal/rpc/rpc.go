// Package rpc defines the wire contract between the server and its
// clients: method names, request bodies, the result wrapper, the error
// envelope and the subscription frames.
package rpc

import (
	"errors"
	"net/url"

	"vsnplyr/internal/apperr"
	"vsnplyr/pkg/models"
)

// Method names, called as POST /rpc/{method}.
const (
	AddSongToPlaylist      = "addSongToPlaylist"
	RemoveSongFromPlaylist = "removeSongFromPlaylist"
	RemoveMembership       = "removeMembership"
	MoveSongInPlaylist     = "moveSongInPlaylist"
	UpdateSongPositions    = "updateSongPositions"
	ClearPlaylist          = "clearPlaylist"
	DuplicatePlaylistSongs = "duplicatePlaylistSongs"
	GetPlaylistSongs       = "getPlaylistSongs"
	GetPlaylistsContaining = "getPlaylistsContainingSong"
	IsSongInPlaylist       = "isSongInPlaylist"
	GetPlaylistSongCount   = "getPlaylistSongCount"
	GetPlaylistDuration    = "getPlaylistDuration"
	GetPlaylistStats       = "getPlaylistStats"
	GetAdjacentSong        = "getAdjacentSong"
	CreatePlaylist         = "createPlaylist"
	UpdatePlaylist         = "updatePlaylist"
	DeletePlaylist         = "deletePlaylist"
	GetPlaylist            = "getPlaylist"
	GetPlaylists           = "getPlaylists"
	AddSong                = "addSong"
	UpdateSong             = "updateSong"
	DeleteSong             = "deleteSong"
	GetSong                = "getSong"
	GetAllSongs            = "getAllSongs"
	GetRecentlyAddedSongs  = "getRecentlyAddedSongs"
	SearchSongs            = "searchSongs"
	GetSongsByGenre        = "getSongsByGenre"
	GetSongsByArtist       = "getSongsByArtist"
	GetSongCount           = "getSongCount"
)

// Subscription paths.
const (
	PlaylistsStream = "/ws/playlists"
)

// PlaylistSongsStream is the subscription path for one playlist's songs.
func PlaylistSongsStream(playlistID string) string {
	return "/ws/playlists/" + url.PathEscape(playlistID) + "/songs"
}

// MethodPath is the HTTP path of method.
func MethodPath(method string) string {
	return "/rpc/" + method
}

type MemberRequest struct {
	PlaylistID string `json:"playlistId"`
	SongID     string `json:"songId"`
}

type MoveRequest struct {
	PlaylistID string `json:"playlistId"`
	SongID     string `json:"songId"`
	Position   int    `json:"position"`
}

type ReorderRequest struct {
	PlaylistID string             `json:"playlistId"`
	Orders     []models.SongOrder `json:"orders"`
}

type PlaylistRequest struct {
	PlaylistID string `json:"playlistId"`
}

type MembershipRequest struct {
	MembershipID string `json:"membershipId"`
}

type DuplicateRequest struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

type AdjacentRequest struct {
	PlaylistID string           `json:"playlistId"`
	Position   int              `json:"position"`
	Direction  models.Direction `json:"direction"`
}

type UpdatePlaylistRequest struct {
	PlaylistID string               `json:"playlistId"`
	Updates    []models.FieldUpdate `json:"updates"`
}

type SongRequest struct {
	SongID string `json:"songId"`
}

type UpdateSongRequest struct {
	SongID  string               `json:"songId"`
	Updates []models.FieldUpdate `json:"updates"`
}

type LimitRequest struct {
	Limit int `json:"limit,omitempty"`
}

type SearchRequest struct {
	Term  string `json:"term"`
	Limit int    `json:"limit,omitempty"`
}

type GenreRequest struct {
	Genre string `json:"genre"`
	Limit int    `json:"limit,omitempty"`
}

type ArtistRequest struct {
	Artist string `json:"artist"`
	Limit  int    `json:"limit,omitempty"`
}

// Response wraps a successful result.
type Response[T any] struct {
	Result T `json:"result"`
}

// Error is the body of a failed call or subscription frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse is the envelope of a failed call.
type ErrorResponse struct {
	Error Error `json:"error"`
}

// Frame is one message pushed on a subscription.
type Frame[T any] struct {
	Data  T      `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ErrorOf converts err to its wire form.
func ErrorOf(err error) Error {
	e := Error{Code: apperr.Code(err), Message: err.Error()}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		e.Message = ve.Message
		e.Field = ve.Field
	}
	return e
}

// Err converts a wire error back into one that matches the apperr
// sentinels.
func (e Error) Err() error {
	return apperr.FromCode(e.Code, e.Message, e.Field)
}
