package client

import (
	"context"

	"vsnplyr/internal/gateway"
	"vsnplyr/internal/live"
	"vsnplyr/pkg/models"
)

// Remote is the server the session mirrors. Watch methods return the
// current value immediately and a new value after every change; the
// channel closes when ctx ends or the watched view disappears.
type Remote interface {
	AddMember(ctx context.Context, playlistID, songID string) (string, error)
	RemoveMember(ctx context.Context, playlistID, songID string) error
	MoveMember(ctx context.Context, playlistID, songID string, position int) error
	ReorderBatch(ctx context.Context, playlistID string, orders []models.SongOrder) error

	CreatePlaylist(ctx context.Context, in models.PlaylistInput) (string, error)
	UpdatePlaylist(ctx context.Context, id string, updates ...models.PlaylistUpdate) error
	DeletePlaylist(ctx context.Context, id string) error

	WatchPlaylists(ctx context.Context) (<-chan []models.Playlist, error)
	WatchPlaylistSongs(ctx context.Context, playlistID string) (<-chan []models.PlaylistSong, error)
}

// Local serves a session from an in-process gateway and change bus.
type Local struct {
	*gateway.Gateway
	bus *live.Bus
}

// NewLocal creates a Remote backed by gw, watching changes on bus.
func NewLocal(gw *gateway.Gateway, bus *live.Bus) *Local {
	return &Local{Gateway: gw, bus: bus}
}

func (l *Local) WatchPlaylists(ctx context.Context) (<-chan []models.Playlist, error) {
	return Follow(ctx, l.bus, live.ForPlaylists(), l.ListPlaylists)
}

func (l *Local) WatchPlaylistSongs(ctx context.Context, playlistID string) (<-chan []models.PlaylistSong, error) {
	return Follow(ctx, l.bus, live.ForPlaylistSongs(playlistID), func(ctx context.Context) ([]models.PlaylistSong, error) {
		return l.PlaylistSongs(ctx, playlistID)
	})
}

// Follow watches query and returns its values. An error from the first
// evaluation is returned directly; a later error ends the stream. The
// channel holds only the latest value.
func Follow[T any](ctx context.Context, bus *live.Bus, match live.Matcher, query live.Query[T]) (<-chan T, error) {
	ctx, cancel := context.WithCancel(ctx)
	results := live.Watch(ctx, bus, match, query)

	first, ok := <-results
	if !ok {
		cancel()
		return nil, ctx.Err()
	}
	if first.Err != nil {
		cancel()
		return nil, first.Err
	}

	out := make(chan T, 1)
	out <- first.Value
	go func() {
		defer close(out)
		defer cancel()
		for r := range results {
			if r.Err != nil {
				return
			}
			Offer(out, r.Value)
		}
	}()
	return out, nil
}

// Offer replaces any undelivered value in ch with v. ch must have a
// buffer of one and a single sender.
func Offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
