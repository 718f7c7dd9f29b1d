package client

import (
	"context"
	"slices"
	"strings"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/optimistic"
	"vsnplyr/internal/ordering"
	"vsnplyr/pkg/models"
)

// AddMember appends songID to the playlist. The song shows at the end of
// the visible sequence at once, under a placeholder membership ID, and
// stays there until the server confirms it or the call fails.
func (s *Session) AddMember(ctx context.Context, playlistID, songID string) (string, error) {
	if strings.TrimSpace(songID) == "" {
		return "", apperr.Invalid("songId", "EMPTY_SONG_ID", "Song ID cannot be empty")
	}
	c, err := s.open(ctx, playlistID)
	if err != nil {
		return "", err
	}
	if _, err := ordering.InsertAtEnd(sequenceOf(c.rec.Visible()), songID); err != nil {
		return "", err
	}

	song := models.Song{ID: songID}
	if s.songs != nil {
		if cached, ok := s.songs.GetSong(songID); ok {
			song = cached
		}
	}
	tempID := placeholderID()

	id := c.rec.Begin(optimistic.Edit[[]models.PlaylistSong]{
		Kind: optimistic.KindAdd,
		Op:   "addSongToPlaylist",
		Apply: func(rows []models.PlaylistSong) []models.PlaylistSong {
			seq, err := ordering.InsertAtEnd(sequenceOf(rows), songID)
			if err != nil {
				return rows
			}
			out := sortedRows(rows)
			return append(out, models.PlaylistSong{
				Song:         song,
				MembershipID: tempID,
				Position:     seq[len(seq)-1].Position,
			})
		},
		Undo: func(rows []models.PlaylistSong) []models.PlaylistSong {
			return slices.DeleteFunc(slices.Clone(rows), func(r models.PlaylistSong) bool {
				return r.MembershipID == tempID
			})
		},
		Settled: func(rows []models.PlaylistSong) bool {
			return indexOfSong(rows, songID) >= 0
		},
	})

	membershipID, err := s.remote.AddMember(ctx, playlistID, songID)
	if err := c.rec.Resolve(id, err); err != nil {
		s.report(err)
		return "", err
	}
	return membershipID, nil
}

// RemoveMember removes songID from the playlist and closes the gap.
func (s *Session) RemoveMember(ctx context.Context, playlistID, songID string) error {
	c, err := s.open(ctx, playlistID)
	if err != nil {
		return err
	}
	if _, err := ordering.RemoveAndCompact(sequenceOf(c.rec.Visible()), songID); err != nil {
		return err
	}

	id := c.rec.Begin(optimistic.Edit[[]models.PlaylistSong]{
		Kind: optimistic.KindRemove,
		Op:   "removeSongFromPlaylist",
		Apply: func(rows []models.PlaylistSong) []models.PlaylistSong {
			seq, err := ordering.RemoveAndCompact(sequenceOf(rows), songID)
			if err != nil {
				return rows
			}
			return reposition(rows, seq)
		},
		Settled: func(rows []models.PlaylistSong) bool {
			return indexOfSong(rows, songID) < 0
		},
	})

	return s.resolve(c, id, s.remote.RemoveMember(ctx, playlistID, songID))
}

// MoveMember moves songID to position, shifting the members in between.
func (s *Session) MoveMember(ctx context.Context, playlistID, songID string, position int) error {
	c, err := s.open(ctx, playlistID)
	if err != nil {
		return err
	}
	visible := c.rec.Visible()
	if _, err := ordering.MoveToPosition(sequenceOf(visible), songID, position); err != nil {
		return err
	}
	oldPosition := visible[indexOfSong(visible, songID)].Position

	id := c.rec.Begin(optimistic.Edit[[]models.PlaylistSong]{
		Kind: optimistic.KindMove,
		Op:   "moveSongInPlaylist",
		Apply: func(rows []models.PlaylistSong) []models.PlaylistSong {
			return moveRows(rows, songID, position)
		},
		Undo: func(rows []models.PlaylistSong) []models.PlaylistSong {
			return moveRows(rows, songID, oldPosition)
		},
		Settled: func(rows []models.PlaylistSong) bool {
			i := indexOfSong(rows, songID)
			return i < 0 || rows[i].Position == position
		},
	})

	return s.resolve(c, id, s.remote.MoveMember(ctx, playlistID, songID, position))
}

// ReorderBatch assigns positions verbatim, the way a drag and drop
// reorder does. Gaps and duplicates are shown as given.
func (s *Session) ReorderBatch(ctx context.Context, playlistID string, orders []models.SongOrder) error {
	assignments := make(map[string]int, len(orders))
	for _, o := range orders {
		if strings.TrimSpace(o.SongID) == "" {
			return apperr.Invalid("songId", "EMPTY_SONG_ID", "Song ID cannot be empty")
		}
		assignments[o.SongID] = o.Position
	}

	c, err := s.open(ctx, playlistID)
	if err != nil {
		return err
	}
	if _, err := ordering.BatchReassign(sequenceOf(c.rec.Visible()), assignments); err != nil {
		return err
	}

	id := c.rec.Begin(optimistic.Edit[[]models.PlaylistSong]{
		Kind: optimistic.KindReorder,
		Op:   "updateSongPositions",
		Apply: func(rows []models.PlaylistSong) []models.PlaylistSong {
			present := make(map[string]int, len(assignments))
			for songID, pos := range assignments {
				if indexOfSong(rows, songID) >= 0 {
					present[songID] = pos
				}
			}
			seq, err := ordering.BatchReassign(sequenceOf(rows), present)
			if err != nil {
				return rows
			}
			return reposition(rows, seq)
		},
		Settled: func(rows []models.PlaylistSong) bool {
			for songID, pos := range assignments {
				if i := indexOfSong(rows, songID); i >= 0 && rows[i].Position != pos {
					return false
				}
			}
			return true
		},
	})

	return s.resolve(c, id, s.remote.ReorderBatch(ctx, playlistID, orders))
}

func (s *Session) resolve(c *collection, id string, err error) error {
	if err := c.rec.Resolve(id, err); err != nil {
		s.report(err)
		return err
	}
	return nil
}

func moveRows(rows []models.PlaylistSong, songID string, position int) []models.PlaylistSong {
	seq, err := ordering.MoveToPosition(sequenceOf(rows), songID, position)
	if err != nil {
		return rows
	}
	return reposition(rows, seq)
}

// sequenceOf keys a playlist view by song ID.
func sequenceOf(rows []models.PlaylistSong) ordering.Sequence {
	seq := make(ordering.Sequence, 0, len(rows))
	for _, r := range rows {
		seq = append(seq, ordering.Entry{Member: r.ID, Position: r.Position})
	}
	return seq
}

// reposition returns the rows named in seq with seq's positions, in
// ascending position order.
func reposition(rows []models.PlaylistSong, seq ordering.Sequence) []models.PlaylistSong {
	positions := make(map[string]int, len(seq))
	for _, e := range seq {
		positions[e.Member] = e.Position
	}
	out := make([]models.PlaylistSong, 0, len(seq))
	for _, r := range rows {
		if p, ok := positions[r.ID]; ok {
			r.Position = p
			out = append(out, r)
		}
	}
	return sortedRows(out)
}

func sortedRows(rows []models.PlaylistSong) []models.PlaylistSong {
	out := make([]models.PlaylistSong, len(rows), len(rows)+1)
	copy(out, rows)
	slices.SortStableFunc(out, func(a, b models.PlaylistSong) int {
		return a.Position - b.Position
	})
	return out
}

func indexOfSong(rows []models.PlaylistSong, songID string) int {
	return slices.IndexFunc(rows, func(r models.PlaylistSong) bool {
		return r.ID == songID
	})
}
