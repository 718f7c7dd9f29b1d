package client

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/optimistic"
	"vsnplyr/pkg/models"
)

// CreatePlaylist shows a placeholder playlist at once and creates the real
// one. The placeholder is replaced when the real playlist arrives.
func (s *Session) CreatePlaylist(ctx context.Context, in models.PlaylistInput) (string, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return "", err
	}

	placeholder := models.Playlist{
		ID:        placeholderID(),
		Name:      in.Name,
		CoverURL:  in.CoverURL,
		CreatedAt: time.Now(),
	}
	var realID atomic.Pointer[string]
	created := func(list []models.Playlist) bool {
		id := realID.Load()
		return id != nil && indexOfPlaylist(list, *id) >= 0
	}

	id := s.playlists.Begin(optimistic.Edit[[]models.Playlist]{
		Kind: optimistic.KindAdd,
		Op:   "createPlaylist",
		Apply: func(list []models.Playlist) []models.Playlist {
			if created(list) {
				return list
			}
			return append(slices.Clip(list), placeholder)
		},
		Undo: func(list []models.Playlist) []models.Playlist {
			return slices.DeleteFunc(slices.Clone(list), func(p models.Playlist) bool {
				return p.ID == placeholder.ID
			})
		},
		Settled: created,
	})

	playlistID, err := s.remote.CreatePlaylist(ctx, in)
	if err == nil {
		realID.Store(&playlistID)
	}
	if err := s.playlists.Resolve(id, err); err != nil {
		s.report(err)
		return "", err
	}
	return playlistID, nil
}

// UpdatePlaylist applies typed updates to a playlist. Invalid updates are
// rejected before anything changes.
func (s *Session) UpdatePlaylist(ctx context.Context, playlistID string, updates ...models.PlaylistUpdate) error {
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	if indexOfPlaylist(s.playlists.Visible(), playlistID) < 0 {
		return apperr.PlaylistNotFound(playlistID)
	}

	patch := func(p models.Playlist) models.Playlist {
		for _, u := range updates {
			u.ApplyTo(&p)
		}
		return p
	}

	id := s.playlists.Begin(optimistic.Edit[[]models.Playlist]{
		Kind: optimistic.KindUpdate,
		Op:   "updatePlaylist",
		Apply: func(list []models.Playlist) []models.Playlist {
			i := indexOfPlaylist(list, playlistID)
			if i < 0 {
				return list
			}
			out := slices.Clone(list)
			out[i] = patch(out[i])
			return out
		},
		Settled: func(list []models.Playlist) bool {
			i := indexOfPlaylist(list, playlistID)
			return i < 0 || patch(list[i]) == list[i]
		},
	})

	err := s.remote.UpdatePlaylist(ctx, playlistID, updates...)
	if err := s.playlists.Resolve(id, err); err != nil {
		s.report(err)
		return err
	}
	return nil
}

// DeletePlaylist hides the playlist at once and deletes it with all of its
// memberships. An open sequence for the playlist is closed.
func (s *Session) DeletePlaylist(ctx context.Context, playlistID string) error {
	if indexOfPlaylist(s.playlists.Visible(), playlistID) < 0 {
		return apperr.PlaylistNotFound(playlistID)
	}

	absent := func(list []models.Playlist) bool {
		return indexOfPlaylist(list, playlistID) < 0
	}
	id := s.playlists.Begin(optimistic.Edit[[]models.Playlist]{
		Kind: optimistic.KindDelete,
		Op:   "deletePlaylist",
		Apply: func(list []models.Playlist) []models.Playlist {
			if absent(list) {
				return list
			}
			return slices.DeleteFunc(slices.Clone(list), func(p models.Playlist) bool {
				return p.ID == playlistID
			})
		},
		Settled: absent,
	})

	err := s.remote.DeletePlaylist(ctx, playlistID)
	if err := s.playlists.Resolve(id, err); err != nil {
		s.report(err)
		return err
	}

	s.mutex.Lock()
	c, ok := s.collections[playlistID]
	delete(s.collections, playlistID)
	s.mutex.Unlock()
	if ok {
		c.cancel()
	}
	return nil
}

func indexOfPlaylist(list []models.Playlist, id string) int {
	return slices.IndexFunc(list, func(p models.Playlist) bool {
		return p.ID == id
	})
}
