package gateway

import (
	"context"
	"strings"

	"vsnplyr/pkg/models"

	"github.com/sirupsen/logrus"
)

// CreateSong validates and stores a new song.
func (g *Gateway) CreateSong(ctx context.Context, in models.SongInput) (string, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := g.store.InsertSong(ctx, in)
	if err != nil {
		return "", err
	}
	g.logger.WithFields(logrus.Fields{
		"song_id": id,
		"name":    in.Name,
		"artist":  in.Artist,
	}).Info("Added song")
	return id, nil
}

// UpdateSong applies typed updates to a song and returns the result.
func (g *Gateway) UpdateSong(ctx context.Context, id string, updates ...models.SongUpdate) (*models.Song, error) {
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return nil, err
		}
	}
	if err := g.store.PatchSong(ctx, id, updates); err != nil {
		return nil, err
	}
	return g.store.GetSong(ctx, id)
}

// DeleteSong removes the song from every playlist, compacting each, then
// deletes the song itself.
func (g *Gateway) DeleteSong(ctx context.Context, id string) error {
	if _, err := g.store.GetSong(ctx, id); err != nil {
		return err
	}
	memberships, err := g.store.MembershipsBySong(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if err := g.removeMembership(ctx, m); err != nil {
			return err
		}
	}
	return g.store.DeleteSong(ctx, id)
}

// GetSong returns one song.
func (g *Gateway) GetSong(ctx context.Context, id string) (*models.Song, error) {
	return g.store.GetSong(ctx, id)
}

// SongByAudioURL returns the song stored for url.
func (g *Gateway) SongByAudioURL(ctx context.Context, url string) (*models.Song, error) {
	return g.store.SongByAudioURL(ctx, url)
}

// ListSongs returns songs sorted by name, artist or creation time.
func (g *Gateway) ListSongs(ctx context.Context, q models.SongQuery) ([]models.Song, error) {
	q, err := q.WithDefaults()
	if err != nil {
		return nil, err
	}
	return g.store.ListSongs(ctx, q)
}

// RecentSongs returns the most recently added songs.
func (g *Gateway) RecentSongs(ctx context.Context, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = models.DefaultRecentLimit
	}
	return g.store.RecentSongs(ctx, limit)
}

// SearchSongs matches term against name, artist and album. An empty term
// matches nothing.
func (g *Gateway) SearchSongs(ctx context.Context, term string, limit int) ([]models.Song, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Song{}, nil
	}
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	return g.store.SearchSongs(ctx, term, limit)
}

// SongsByGenre returns songs of one genre.
func (g *Gateway) SongsByGenre(ctx context.Context, genre string, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	return g.store.SongsByGenre(ctx, strings.TrimSpace(genre), limit)
}

// SongsByArtist returns songs by one artist.
func (g *Gateway) SongsByArtist(ctx context.Context, artist string, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = models.DefaultSearchLimit
	}
	return g.store.SongsByArtist(ctx, strings.TrimSpace(artist), limit)
}

// CountSongs returns the library size.
func (g *Gateway) CountSongs(ctx context.Context) (int, error) {
	return g.store.CountSongs(ctx)
}
