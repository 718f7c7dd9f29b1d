package rpcclient

import (
	"context"

	"vsnplyr/internal/rpc"
	"vsnplyr/pkg/models"
)

func (c *Client) AddMember(ctx context.Context, playlistID, songID string) (string, error) {
	return call[string](ctx, c, rpc.AddSongToPlaylist, rpc.MemberRequest{PlaylistID: playlistID, SongID: songID})
}

func (c *Client) RemoveMember(ctx context.Context, playlistID, songID string) error {
	_, err := call[any](ctx, c, rpc.RemoveSongFromPlaylist, rpc.MemberRequest{PlaylistID: playlistID, SongID: songID})
	return err
}

func (c *Client) MoveMember(ctx context.Context, playlistID, songID string, position int) error {
	_, err := call[any](ctx, c, rpc.MoveSongInPlaylist, rpc.MoveRequest{PlaylistID: playlistID, SongID: songID, Position: position})
	return err
}

func (c *Client) ReorderBatch(ctx context.Context, playlistID string, orders []models.SongOrder) error {
	_, err := call[any](ctx, c, rpc.UpdateSongPositions, rpc.ReorderRequest{PlaylistID: playlistID, Orders: orders})
	return err
}

// ClearPlaylist removes every member and returns the deleted membership IDs.
func (c *Client) ClearPlaylist(ctx context.Context, playlistID string) ([]string, error) {
	return call[[]string](ctx, c, rpc.ClearPlaylist, rpc.PlaylistRequest{PlaylistID: playlistID})
}

// DuplicatePlaylistSongs appends the members of sourceID to targetID.
func (c *Client) DuplicatePlaylistSongs(ctx context.Context, sourceID, targetID string) ([]string, error) {
	return call[[]string](ctx, c, rpc.DuplicatePlaylistSongs, rpc.DuplicateRequest{SourceID: sourceID, TargetID: targetID})
}

func (c *Client) PlaylistSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error) {
	return call[[]models.PlaylistSong](ctx, c, rpc.GetPlaylistSongs, rpc.PlaylistRequest{PlaylistID: playlistID})
}

func (c *Client) Stats(ctx context.Context, playlistID string) (*models.PlaylistStats, error) {
	return call[*models.PlaylistStats](ctx, c, rpc.GetPlaylistStats, rpc.PlaylistRequest{PlaylistID: playlistID})
}

// AdjacentSong returns nil when there is no song in that direction.
func (c *Client) AdjacentSong(ctx context.Context, playlistID string, position int, dir models.Direction) (*models.PlaylistSong, error) {
	return call[*models.PlaylistSong](ctx, c, rpc.GetAdjacentSong, rpc.AdjacentRequest{PlaylistID: playlistID, Position: position, Direction: dir})
}

func (c *Client) CreatePlaylist(ctx context.Context, in models.PlaylistInput) (string, error) {
	return call[string](ctx, c, rpc.CreatePlaylist, in)
}

func (c *Client) UpdatePlaylist(ctx context.Context, id string, updates ...models.PlaylistUpdate) error {
	wire, err := models.EncodePlaylistUpdates(updates)
	if err != nil {
		return err
	}
	_, err = call[any](ctx, c, rpc.UpdatePlaylist, rpc.UpdatePlaylistRequest{PlaylistID: id, Updates: wire})
	return err
}

func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	_, err := call[any](ctx, c, rpc.DeletePlaylist, rpc.PlaylistRequest{PlaylistID: id})
	return err
}

func (c *Client) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return call[[]models.Playlist](ctx, c, rpc.GetPlaylists, struct{}{})
}

func (c *Client) CreateSong(ctx context.Context, in models.SongInput) (string, error) {
	return call[string](ctx, c, rpc.AddSong, in)
}

func (c *Client) UpdateSong(ctx context.Context, id string, updates ...models.SongUpdate) (*models.Song, error) {
	wire, err := models.EncodeSongUpdates(updates)
	if err != nil {
		return nil, err
	}
	return call[*models.Song](ctx, c, rpc.UpdateSong, rpc.UpdateSongRequest{SongID: id, Updates: wire})
}

func (c *Client) DeleteSong(ctx context.Context, id string) error {
	_, err := call[any](ctx, c, rpc.DeleteSong, rpc.SongRequest{SongID: id})
	return err
}

func (c *Client) ListSongs(ctx context.Context, q models.SongQuery) ([]models.Song, error) {
	return call[[]models.Song](ctx, c, rpc.GetAllSongs, q)
}

func (c *Client) SearchSongs(ctx context.Context, term string, limit int) ([]models.Song, error) {
	return call[[]models.Song](ctx, c, rpc.SearchSongs, rpc.SearchRequest{Term: term, Limit: limit})
}

// WatchPlaylists streams the playlist list until ctx ends.
func (c *Client) WatchPlaylists(ctx context.Context) (<-chan []models.Playlist, error) {
	return watch[[]models.Playlist](ctx, c, rpc.PlaylistsStream)
}

// WatchPlaylistSongs streams one playlist's songs until ctx ends or the
// playlist is deleted.
func (c *Client) WatchPlaylistSongs(ctx context.Context, playlistID string) (<-chan []models.PlaylistSong, error) {
	return watch[[]models.PlaylistSong](ctx, c, rpc.PlaylistSongsStream(playlistID))
}
