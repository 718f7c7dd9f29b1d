package gateway

import (
	"context"
	"errors"
	"strings"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/ordering"
	"vsnplyr/pkg/models"

	"github.com/sirupsen/logrus"
)

// AddMember appends songID to the end of playlistID and returns the new
// membership ID.
func (g *Gateway) AddMember(ctx context.Context, playlistID, songID string) (string, error) {
	if _, err := g.store.GetPlaylist(ctx, playlistID); err != nil {
		return "", err
	}
	if _, err := g.store.GetSong(ctx, songID); err != nil {
		return "", err
	}
	if _, err := g.store.MembershipByPair(ctx, playlistID, songID); err == nil {
		return "", apperr.ErrDuplicateMember
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	tail, err := g.store.MembershipsByPlaylist(ctx, playlistID, models.Desc, 1)
	if err != nil {
		return "", err
	}
	seq, err := ordering.InsertAtEnd(sequenceOf(tail), songID)
	if err != nil {
		return "", err
	}
	position := seq[len(seq)-1].Position

	// A concurrent add of the same pair loses here on the unique index.
	id, err := g.store.InsertMembership(ctx, playlistID, songID, position)
	if err != nil {
		return "", err
	}

	g.logger.WithFields(logrus.Fields{
		"playlist_id": playlistID,
		"song_id":     songID,
		"position":    position,
	}).Info("Added song to playlist")
	return id, nil
}

// RemoveMember removes songID from playlistID and closes the gap.
func (g *Gateway) RemoveMember(ctx context.Context, playlistID, songID string) error {
	m, err := g.store.MembershipByPair(ctx, playlistID, songID)
	if err != nil {
		return err
	}
	return g.removeMembership(ctx, *m)
}

// RemoveMembership removes a membership by its own ID and closes the gap.
func (g *Gateway) RemoveMembership(ctx context.Context, membershipID string) error {
	m, err := g.store.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	return g.removeMembership(ctx, *m)
}

func (g *Gateway) removeMembership(ctx context.Context, m models.Membership) error {
	all, err := g.store.MembershipsByPlaylist(ctx, m.PlaylistID, models.Asc, 0)
	if err != nil {
		return err
	}
	before := sequenceOf(all)

	if err := g.store.DeleteMembership(ctx, m); err != nil {
		return err
	}

	after, err := ordering.RemoveAndCompact(before, m.SongID)
	if err != nil {
		// Deleted between the scan and the delete; nothing to compact.
		return nil
	}
	if err := g.applyPositions(ctx, all, ordering.Diff(before, after)); err != nil {
		return err
	}

	g.logger.WithFields(logrus.Fields{
		"playlist_id": m.PlaylistID,
		"song_id":     m.SongID,
	}).Info("Removed song from playlist")
	return nil
}

// MoveMember moves songID to position within playlistID, shifting the
// members in between.
func (g *Gateway) MoveMember(ctx context.Context, playlistID, songID string, position int) error {
	if _, err := g.store.GetPlaylist(ctx, playlistID); err != nil {
		return err
	}
	all, err := g.store.MembershipsByPlaylist(ctx, playlistID, models.Asc, 0)
	if err != nil {
		return err
	}
	before := sequenceOf(all)
	after, err := ordering.MoveToPosition(before, songID, position)
	if err != nil {
		return err
	}
	return g.applyPositions(ctx, all, ordering.Diff(before, after))
}

// ReorderBatch assigns the given positions verbatim. Gaps and duplicates
// are accepted; every song must already be a member.
func (g *Gateway) ReorderBatch(ctx context.Context, playlistID string, orders []models.SongOrder) error {
	if _, err := g.store.GetPlaylist(ctx, playlistID); err != nil {
		return err
	}

	assignments := make(map[string]int, len(orders))
	for _, o := range orders {
		if strings.TrimSpace(o.SongID) == "" {
			return apperr.Invalid("songId", "EMPTY_SONG_ID", "Song ID cannot be empty")
		}
		assignments[o.SongID] = o.Position
	}

	all, err := g.store.MembershipsByPlaylist(ctx, playlistID, models.Asc, 0)
	if err != nil {
		return err
	}
	before := sequenceOf(all)
	after, err := ordering.BatchReassign(before, assignments)
	if err != nil {
		return err
	}
	if err := ordering.ValidateDensity(after); err != nil {
		g.logger.WithField("playlist_id", playlistID).WithError(err).Debug("Batch reorder leaves positions sparse")
	}
	return g.applyPositions(ctx, all, ordering.Diff(before, after))
}

// ClearPlaylist removes every member of playlistID and returns the
// deleted membership IDs.
func (g *Gateway) ClearPlaylist(ctx context.Context, playlistID string) ([]string, error) {
	if _, err := g.store.GetPlaylist(ctx, playlistID); err != nil {
		return nil, err
	}
	return g.store.ClearMemberships(ctx, playlistID)
}

// DuplicatePlaylistSongs appends the members of sourceID to targetID in
// source order. Songs already in the target are skipped. It returns the
// new membership IDs.
func (g *Gateway) DuplicatePlaylistSongs(ctx context.Context, sourceID, targetID string) ([]string, error) {
	if _, err := g.store.GetPlaylist(ctx, sourceID); err != nil {
		return nil, err
	}
	if _, err := g.store.GetPlaylist(ctx, targetID); err != nil {
		return nil, err
	}

	source, err := g.store.MembershipsByPlaylist(ctx, sourceID, models.Asc, 0)
	if err != nil {
		return nil, err
	}
	target, err := g.store.MembershipsByPlaylist(ctx, targetID, models.Asc, 0)
	if err != nil {
		return nil, err
	}

	seq := sequenceOf(target)
	ids := make([]string, 0, len(source))
	for _, m := range source {
		next, err := ordering.InsertAtEnd(seq, m.SongID)
		if err != nil {
			continue
		}
		id, err := g.store.InsertMembership(ctx, targetID, m.SongID, next[len(next)-1].Position)
		if errors.Is(err, apperr.ErrDuplicateMember) {
			continue
		}
		if err != nil {
			return ids, err
		}
		seq = next
		ids = append(ids, id)
	}
	return ids, nil
}
