// Package gateway is the server side of every playlist and song mutation.
// It checks preconditions against the store, runs the ordering engine and
// writes the resulting positions back record by record.
//
// Mutations that touch several memberships are not transactional: a
// failure part way through leaves positions sparse but never reorders the
// surviving members, and every reader tolerates gaps.
package gateway

import (
	"context"

	"vsnplyr/internal/ordering"
	"vsnplyr/pkg/models"

	"github.com/sirupsen/logrus"
)

// Store is the document store the gateway works against.
type Store interface {
	InsertSong(ctx context.Context, in models.SongInput) (string, error)
	GetSong(ctx context.Context, id string) (*models.Song, error)
	SongByAudioURL(ctx context.Context, url string) (*models.Song, error)
	PatchSong(ctx context.Context, id string, updates []models.SongUpdate) error
	DeleteSong(ctx context.Context, id string) error
	ListSongs(ctx context.Context, q models.SongQuery) ([]models.Song, error)
	RecentSongs(ctx context.Context, limit int) ([]models.Song, error)
	SearchSongs(ctx context.Context, term string, limit int) ([]models.Song, error)
	SongsByGenre(ctx context.Context, genre string, limit int) ([]models.Song, error)
	SongsByArtist(ctx context.Context, artist string, limit int) ([]models.Song, error)
	CountSongs(ctx context.Context) (int, error)

	InsertPlaylist(ctx context.Context, in models.PlaylistInput) (string, error)
	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)
	PatchPlaylist(ctx context.Context, id string, updates []models.PlaylistUpdate) error
	DeletePlaylist(ctx context.Context, id string) error

	InsertMembership(ctx context.Context, playlistID, songID string, position int) (string, error)
	GetMembership(ctx context.Context, id string) (*models.Membership, error)
	MembershipByPair(ctx context.Context, playlistID, songID string) (*models.Membership, error)
	MembershipsByPlaylist(ctx context.Context, playlistID string, order models.SortOrder, limit int) ([]models.Membership, error)
	MembershipsBySong(ctx context.Context, songID string) ([]models.Membership, error)
	SetMembershipPosition(ctx context.Context, m models.Membership, position int) error
	DeleteMembership(ctx context.Context, m models.Membership) error
	ClearMemberships(ctx context.Context, playlistID string) ([]string, error)
	PlaylistSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error)
	PlaylistsForSong(ctx context.Context, songID string) ([]models.PlaylistWithPosition, error)
}

// Gateway applies mutations to a Store
type Gateway struct {
	store  Store
	logger *logrus.Logger
}

// New creates a gateway over store
func New(store Store, logger *logrus.Logger) *Gateway {
	return &Gateway{store: store, logger: logger}
}

// sequenceOf converts memberships to an ordering sequence keyed by song.
func sequenceOf(ms []models.Membership) ordering.Sequence {
	s := make(ordering.Sequence, 0, len(ms))
	for _, m := range ms {
		s = append(s, ordering.Entry{Member: m.SongID, Position: m.Position})
	}
	return s
}

// applyPositions writes each update to the membership of its song. It
// stops at the first failure; updates already written stay.
func (g *Gateway) applyPositions(ctx context.Context, ms []models.Membership, updates []ordering.PositionUpdate) error {
	bySong := make(map[string]models.Membership, len(ms))
	for _, m := range ms {
		bySong[m.SongID] = m
	}

	for i, u := range updates {
		m, ok := bySong[u.Member]
		if !ok {
			continue
		}
		if err := g.store.SetMembershipPosition(ctx, m, u.Position); err != nil {
			g.logger.WithError(err).WithFields(logrus.Fields{
				"playlist_id": m.PlaylistID,
				"applied":     i,
				"pending":     len(updates) - i,
			}).Error("Position update interrupted")
			return err
		}
	}
	return nil
}
