package gateway

import (
	"context"
	"errors"
	"sort"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/ordering"
	"vsnplyr/pkg/models"
)

// PlaylistSongs returns the playlist's songs in position order.
func (g *Gateway) PlaylistSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error) {
	if _, err := g.store.GetPlaylist(ctx, playlistID); err != nil {
		return nil, err
	}
	return g.store.PlaylistSongs(ctx, playlistID)
}

// PlaylistsContainingSong returns every playlist the song belongs to.
func (g *Gateway) PlaylistsContainingSong(ctx context.Context, songID string) ([]models.PlaylistWithPosition, error) {
	return g.store.PlaylistsForSong(ctx, songID)
}

// IsMember reports whether songID is in playlistID.
func (g *Gateway) IsMember(ctx context.Context, playlistID, songID string) (bool, error) {
	_, err := g.store.MembershipByPair(ctx, playlistID, songID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SongCount returns the number of members of playlistID.
func (g *Gateway) SongCount(ctx context.Context, playlistID string) (int, error) {
	ms, err := g.store.MembershipsByPlaylist(ctx, playlistID, models.Asc, 0)
	if err != nil {
		return 0, err
	}
	return len(ms), nil
}

// Duration returns the summed duration in seconds of the playlist's songs.
func (g *Gateway) Duration(ctx context.Context, playlistID string) (int, error) {
	songs, err := g.store.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range songs {
		total += s.Duration
	}
	return total, nil
}

// Stats summarizes the playlist's songs.
func (g *Gateway) Stats(ctx context.Context, playlistID string) (*models.PlaylistStats, error) {
	songs, err := g.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	stats := &models.PlaylistStats{TrackCount: len(songs), Genres: []string{}, Artists: []string{}}
	genres := map[string]bool{}
	artists := map[string]bool{}
	for _, s := range songs {
		stats.TotalDuration += s.Duration
		if s.Genre != "" && !genres[s.Genre] {
			genres[s.Genre] = true
			stats.Genres = append(stats.Genres, s.Genre)
		}
		if !artists[s.Artist] {
			artists[s.Artist] = true
			stats.Artists = append(stats.Artists, s.Artist)
		}
	}
	if len(songs) > 0 {
		stats.AverageDuration = float64(stats.TotalDuration) / float64(len(songs))
	}
	sort.Strings(stats.Genres)
	sort.Strings(stats.Artists)
	return stats, nil
}

// AdjacentSong returns the song after (Next) or before (Previous)
// position in the playlist, or nil at either end.
func (g *Gateway) AdjacentSong(ctx context.Context, playlistID string, position int, dir models.Direction) (*models.PlaylistSong, error) {
	if !dir.Valid() {
		return nil, apperr.Invalid("direction", "INVALID_DIRECTION", "direction must be next or prev")
	}
	songs, err := g.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	seq := make(ordering.Sequence, 0, len(songs))
	byID := make(map[string]models.PlaylistSong, len(songs))
	for _, s := range songs {
		seq = append(seq, ordering.Entry{Member: s.ID, Position: s.Position})
		byID[s.ID] = s
	}
	e, ok := ordering.Adjacent(seq, position, dir == models.Next)
	if !ok {
		return nil, nil
	}
	s := byID[e.Member]
	return &s, nil
}
