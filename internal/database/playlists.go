package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/live"
	"vsnplyr/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const playlistColumns = `id, name, COALESCE(cover_url, ''), created_at`

var playlistFieldColumns = map[string]string{
	"name":     "name",
	"coverUrl": "cover_url",
}

// InsertPlaylist creates a playlist and returns its ID.
func (db *Database) InsertPlaylist(ctx context.Context, in models.PlaylistInput) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO playlists (id, name, cover_url, created_at)
		VALUES (?, ?, ?, ?)`,
		id, in.Name, nullable(in.CoverURL), time.Now().UTC())
	if err != nil {
		db.logger.WithError(err).WithField("name", in.Name).Error("Failed to insert playlist")
		return "", fmt.Errorf("failed to insert playlist: %w", err)
	}

	db.publish(live.Change{Table: live.TablePlaylists, Op: live.OpInsert, ID: id, PlaylistID: id})
	return id, nil
}

// GetPlaylist returns the playlist with the given ID.
func (db *Database) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	p, err := scanPlaylist(db.getPlaylistStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.PlaylistNotFound(id)
		}
		db.logger.WithError(err).WithField("playlist_id", id).Error("Failed to get playlist by ID")
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return p, nil
}

// ListPlaylists returns every playlist in creation order.
func (db *Database) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists ORDER BY created_at, rowid`)
	if err != nil {
		db.logger.WithError(err).Error("Failed to list playlists")
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]models.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *p)
	}
	return playlists, rows.Err()
}

// PatchPlaylist applies typed field updates to one playlist.
func (db *Database) PatchPlaylist(ctx context.Context, id string, updates []models.PlaylistUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	sets := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	for _, u := range updates {
		column, ok := playlistFieldColumns[u.Field()]
		if !ok {
			return apperr.Invalid(u.Field(), "UNKNOWN_FIELD", "Unknown playlist field")
		}
		sets = append(sets, column+" = ?")
		args = append(args, u.Value())
	}
	args = append(args, id)

	res, err := db.conn.ExecContext(ctx, `UPDATE playlists SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		db.logger.WithError(err).WithField("playlist_id", id).Error("Failed to update playlist")
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := requireAffected(res, apperr.PlaylistNotFound(id)); err != nil {
		return err
	}

	db.publish(live.Change{Table: live.TablePlaylists, Op: live.OpUpdate, ID: id, PlaylistID: id})
	return nil
}

// DeletePlaylist deletes a playlist together with all of its memberships
// in one transaction.
func (db *Database) DeletePlaylist(ctx context.Context, id string) error {
	var memberships []models.Membership
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		memberships, err = queryMemberships(ctx, tx, `WHERE playlist_id = ?`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete playlist memberships: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		return requireAffected(res, apperr.PlaylistNotFound(id))
	})
	if err != nil {
		return err
	}

	changes := membershipDeletes(memberships)
	changes = append(changes, live.Change{Table: live.TablePlaylists, Op: live.OpDelete, ID: id, PlaylistID: id})
	db.publish(changes...)

	db.logger.WithFields(logrus.Fields{
		"playlist_id": id,
		"memberships": len(memberships),
	}).Info("Deleted playlist")
	return nil
}

func scanPlaylist(row scanner) (*models.Playlist, error) {
	var p models.Playlist
	if err := row.Scan(&p.ID, &p.Name, &p.CoverURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
