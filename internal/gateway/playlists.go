package gateway

import (
	"context"

	"vsnplyr/pkg/models"

	"github.com/sirupsen/logrus"
)

// CreatePlaylist validates and stores a new playlist.
func (g *Gateway) CreatePlaylist(ctx context.Context, in models.PlaylistInput) (string, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := g.store.InsertPlaylist(ctx, in)
	if err != nil {
		return "", err
	}
	g.logger.WithFields(logrus.Fields{"playlist_id": id, "name": in.Name}).Info("Created playlist")
	return id, nil
}

// UpdatePlaylist applies typed updates to a playlist.
func (g *Gateway) UpdatePlaylist(ctx context.Context, id string, updates ...models.PlaylistUpdate) error {
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	return g.store.PatchPlaylist(ctx, id, updates)
}

// DeletePlaylist deletes a playlist and all of its memberships.
func (g *Gateway) DeletePlaylist(ctx context.Context, id string) error {
	return g.store.DeletePlaylist(ctx, id)
}

// GetPlaylist returns one playlist.
func (g *Gateway) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	return g.store.GetPlaylist(ctx, id)
}

// ListPlaylists returns every playlist.
func (g *Gateway) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return g.store.ListPlaylists(ctx)
}
