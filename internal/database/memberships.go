package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/live"
	"vsnplyr/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const membershipColumns = `id, playlist_id, song_id, position`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InsertMembership adds songID to playlistID at position. A second
// membership for the same pair fails with apperr.ErrDuplicateMember.
func (db *Database) InsertMembership(ctx context.Context, playlistID, songID string, position int) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO playlist_songs (id, playlist_id, song_id, position)
		VALUES (?, ?, ?, ?)`,
		id, playlistID, songID, position)
	if err != nil {
		if isUniqueViolation(err) {
			return "", apperr.ErrDuplicateMember
		}
		db.logger.WithError(err).WithFields(logrus.Fields{
			"playlist_id": playlistID,
			"song_id":     songID,
		}).Error("Failed to insert membership")
		return "", fmt.Errorf("failed to insert membership: %w", err)
	}

	db.publish(live.Change{Table: live.TableMemberships, Op: live.OpInsert, ID: id, PlaylistID: playlistID, SongID: songID})
	return id, nil
}

// GetMembership returns the membership with the given ID.
func (db *Database) GetMembership(ctx context.Context, id string) (*models.Membership, error) {
	ms, err := queryMemberships(ctx, db.conn, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, apperr.MembershipNotFound(id)
	}
	return &ms[0], nil
}

// MembershipByPair returns the membership of songID in playlistID.
func (db *Database) MembershipByPair(ctx context.Context, playlistID, songID string) (*models.Membership, error) {
	var m models.Membership
	err := db.membershipByPairStmt.QueryRowContext(ctx, playlistID, songID).
		Scan(&m.ID, &m.PlaylistID, &m.SongID, &m.Position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.MembershipNotFound(playlistID + "/" + songID)
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// MembershipsByPlaylist scans the playlist's memberships through the
// (playlist_id, position) index. A limit of zero or less returns all.
func (db *Database) MembershipsByPlaylist(ctx context.Context, playlistID string, order models.SortOrder, limit int) ([]models.Membership, error) {
	clause := `WHERE playlist_id = ? ORDER BY position ASC, rowid ASC`
	if order == models.Desc {
		clause = `WHERE playlist_id = ? ORDER BY position DESC, rowid DESC`
	}
	args := []any{playlistID}
	if limit > 0 {
		clause += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryMemberships(ctx, db.conn, clause, args...)
}

// MembershipsBySong returns every membership of songID.
func (db *Database) MembershipsBySong(ctx context.Context, songID string) ([]models.Membership, error) {
	return queryMemberships(ctx, db.conn, `WHERE song_id = ? ORDER BY rowid`, songID)
}

// SetMembershipPosition patches the stored position of one membership.
func (db *Database) SetMembershipPosition(ctx context.Context, m models.Membership, position int) error {
	res, err := db.setPositionStmt.ExecContext(ctx, position, m.ID)
	if err != nil {
		db.logger.WithError(err).WithField("membership_id", m.ID).Error("Failed to update position")
		return fmt.Errorf("failed to update position: %w", err)
	}
	if err := requireAffected(res, apperr.MembershipNotFound(m.ID)); err != nil {
		return err
	}

	db.publish(live.Change{Table: live.TableMemberships, Op: live.OpUpdate, ID: m.ID, PlaylistID: m.PlaylistID, SongID: m.SongID})
	return nil
}

// DeleteMembership removes one membership record.
func (db *Database) DeleteMembership(ctx context.Context, m models.Membership) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM playlist_songs WHERE id = ?`, m.ID)
	if err != nil {
		db.logger.WithError(err).WithField("membership_id", m.ID).Error("Failed to delete membership")
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if err := requireAffected(res, apperr.MembershipNotFound(m.ID)); err != nil {
		return err
	}

	db.publish(live.Change{Table: live.TableMemberships, Op: live.OpDelete, ID: m.ID, PlaylistID: m.PlaylistID, SongID: m.SongID})
	return nil
}

// ClearMemberships deletes every membership of a playlist and returns the
// deleted IDs.
func (db *Database) ClearMemberships(ctx context.Context, playlistID string) ([]string, error) {
	var memberships []models.Membership
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		memberships, err = queryMemberships(ctx, tx, `WHERE playlist_id = ? ORDER BY position`, playlistID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID); err != nil {
			return fmt.Errorf("failed to clear playlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.publish(membershipDeletes(memberships)...)

	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// PlaylistSongs joins a playlist's memberships with their songs in
// position order. Memberships whose song no longer exists are skipped.
func (db *Database) PlaylistSongs(ctx context.Context, playlistID string) ([]models.PlaylistSong, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.name, s.artist, COALESCE(s.album, ''), s.duration, COALESCE(s.genre, ''), s.bpm,
			COALESCE(s.musical_key, ''), COALESCE(s.image_url, ''), s.audio_url, s.is_local, s.created_at,
			ps.id, ps.position
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		WHERE ps.playlist_id = ?
		ORDER BY ps.position ASC, ps.rowid ASC`, playlistID)
	if err != nil {
		db.logger.WithError(err).WithField("playlist_id", playlistID).Error("Failed to get playlist songs")
		return nil, fmt.Errorf("failed to get playlist songs: %w", err)
	}
	defer rows.Close()

	songs := make([]models.PlaylistSong, 0)
	for rows.Next() {
		var ps models.PlaylistSong
		var bpm sql.NullInt64
		s := &ps.Song
		if err := rows.Scan(&s.ID, &s.Name, &s.Artist, &s.Album, &s.Duration, &s.Genre, &bpm,
			&s.Key, &s.ImageURL, &s.AudioURL, &s.IsLocal, &s.CreatedAt,
			&ps.MembershipID, &ps.Position); err != nil {
			return nil, err
		}
		if bpm.Valid {
			v := int(bpm.Int64)
			s.BPM = &v
		}
		songs = append(songs, ps)
	}
	return songs, rows.Err()
}

// PlaylistsForSong returns the playlists containing songID together with
// the song's position in each.
func (db *Database) PlaylistsForSong(ctx context.Context, songID string) ([]models.PlaylistWithPosition, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.id, p.name, COALESCE(p.cover_url, ''), p.created_at, ps.id, ps.position
		FROM playlist_songs ps
		JOIN playlists p ON p.id = ps.playlist_id
		WHERE ps.song_id = ?
		ORDER BY p.created_at, p.rowid`, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists for song: %w", err)
	}
	defer rows.Close()

	out := make([]models.PlaylistWithPosition, 0)
	for rows.Next() {
		var pp models.PlaylistWithPosition
		if err := rows.Scan(&pp.ID, &pp.Name, &pp.CoverURL, &pp.CreatedAt, &pp.MembershipID, &pp.Position); err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

func queryMemberships(ctx context.Context, q querier, clause string, args ...any) ([]models.Membership, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+membershipColumns+` FROM playlist_songs `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	out := make([]models.Membership, 0)
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.PlaylistID, &m.SongID, &m.Position); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func membershipDeletes(ms []models.Membership) []live.Change {
	changes := make([]live.Change, 0, len(ms)+1)
	for _, m := range ms {
		changes = append(changes, live.Change{
			Table:      live.TableMemberships,
			Op:         live.OpDelete,
			ID:         m.ID,
			PlaylistID: m.PlaylistID,
			SongID:     m.SongID,
		})
	}
	return changes
}
