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

const songColumns = `id, name, artist, COALESCE(album, ''), duration, COALESCE(genre, ''), bpm,
	COALESCE(musical_key, ''), COALESCE(image_url, ''), audio_url, is_local, created_at`

// songFieldColumns maps the wire name of each song field to its column.
var songFieldColumns = map[string]string{
	"name":     "name",
	"artist":   "artist",
	"album":    "album",
	"genre":    "genre",
	"key":      "musical_key",
	"imageUrl": "image_url",
	"audioUrl": "audio_url",
	"duration": "duration",
	"bpm":      "bpm",
	"isLocal":  "is_local",
}

var songOrderColumns = map[models.SongOrderBy]string{
	models.OrderByName:      "name COLLATE NOCASE",
	models.OrderByArtist:    "artist COLLATE NOCASE",
	models.OrderByCreatedAt: "created_at",
}

// InsertSong stores a new song and returns its ID. The input must already
// be validated.
func (db *Database) InsertSong(ctx context.Context, in models.SongInput) (string, error) {
	id := uuid.NewString()
	var bpm any
	if in.BPM != nil {
		bpm = *in.BPM
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO songs (id, name, artist, album, duration, genre, bpm, musical_key, image_url, audio_url, is_local, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Artist, nullable(in.Album), in.Duration, nullable(in.Genre), bpm,
		nullable(in.Key), nullable(in.ImageURL), in.AudioURL, in.IsLocal, time.Now().UTC())
	if err != nil {
		db.logger.WithError(err).WithField("name", in.Name).Error("Failed to insert song")
		return "", fmt.Errorf("failed to insert song: %w", err)
	}

	db.publish(live.Change{Table: live.TableSongs, Op: live.OpInsert, ID: id, SongID: id})
	return id, nil
}

// GetSong returns the song with the given ID.
func (db *Database) GetSong(ctx context.Context, id string) (*models.Song, error) {
	song, err := scanSong(db.getSongStmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.SongNotFound(id)
		}
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to get song by ID")
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	return song, nil
}

// SongByAudioURL returns the song playing from url.
func (db *Database) SongByAudioURL(ctx context.Context, url string) (*models.Song, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE audio_url = ? LIMIT 1`, url)
	song, err := scanSong(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.SongNotFound(url)
		}
		return nil, fmt.Errorf("failed to get song by audio url: %w", err)
	}
	return song, nil
}

// PatchSong applies typed field updates to one song.
func (db *Database) PatchSong(ctx context.Context, id string, updates []models.SongUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	sets := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	for _, u := range updates {
		column, ok := songFieldColumns[u.Field()]
		if !ok {
			return apperr.Invalid(u.Field(), "UNKNOWN_FIELD", "Unknown song field")
		}
		sets = append(sets, column+" = ?")
		args = append(args, u.Value())
	}
	args = append(args, id)

	res, err := db.conn.ExecContext(ctx, `UPDATE songs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		db.logger.WithError(err).WithField("song_id", id).Error("Failed to update song")
		return fmt.Errorf("failed to update song: %w", err)
	}
	if err := requireAffected(res, apperr.SongNotFound(id)); err != nil {
		return err
	}

	db.publish(live.Change{Table: live.TableSongs, Op: live.OpUpdate, ID: id, SongID: id})
	return nil
}

// DeleteSong deletes a song and any memberships still referencing it in
// one transaction. Callers that need compaction remove the memberships
// first.
func (db *Database) DeleteSong(ctx context.Context, id string) error {
	var memberships []models.Membership
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		memberships, err = queryMemberships(ctx, tx, `WHERE song_id = ?`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE song_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete song memberships: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete song: %w", err)
		}
		return requireAffected(res, apperr.SongNotFound(id))
	})
	if err != nil {
		return err
	}

	changes := membershipDeletes(memberships)
	changes = append(changes, live.Change{Table: live.TableSongs, Op: live.OpDelete, ID: id, SongID: id})
	db.publish(changes...)

	db.logger.WithFields(logrus.Fields{
		"song_id":     id,
		"memberships": len(memberships),
	}).Info("Deleted song")
	return nil
}

// ListSongs returns songs sorted as requested. The query must have
// defaults applied.
func (db *Database) ListSongs(ctx context.Context, q models.SongQuery) ([]models.Song, error) {
	column, ok := songOrderColumns[q.OrderBy]
	if !ok {
		return nil, apperr.Invalid("orderBy", "INVALID_ORDER_BY", "orderBy must be name, artist or createdAt")
	}
	direction := "DESC"
	if q.Order == models.Asc {
		direction = "ASC"
	}
	return db.querySongs(ctx, `SELECT `+songColumns+` FROM songs ORDER BY `+column+` `+direction+`, rowid LIMIT ?`, q.Limit)
}

// RecentSongs returns the most recently added songs.
func (db *Database) RecentSongs(ctx context.Context, limit int) ([]models.Song, error) {
	return db.querySongs(ctx, `SELECT `+songColumns+` FROM songs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
}

// SearchSongs matches term against name, artist and album.
func (db *Database) SearchSongs(ctx context.Context, term string, limit int) ([]models.Song, error) {
	pattern := "%" + escapeLike(term) + "%"
	return db.querySongs(ctx, `
		SELECT `+songColumns+`
		FROM songs
		WHERE name LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE, rowid
		LIMIT ?`, pattern, pattern, pattern, limit)
}

// SongsByGenre returns songs with exactly the given genre.
func (db *Database) SongsByGenre(ctx context.Context, genre string, limit int) ([]models.Song, error) {
	return db.querySongs(ctx, `SELECT `+songColumns+` FROM songs WHERE genre = ? ORDER BY name COLLATE NOCASE, rowid LIMIT ?`, genre, limit)
}

// SongsByArtist returns songs by exactly the given artist.
func (db *Database) SongsByArtist(ctx context.Context, artist string, limit int) ([]models.Song, error) {
	return db.querySongs(ctx, `SELECT `+songColumns+` FROM songs WHERE artist = ? ORDER BY name COLLATE NOCASE, rowid LIMIT ?`, artist, limit)
}

// CountSongs returns the number of songs in the library.
func (db *Database) CountSongs(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

func (db *Database) querySongs(ctx context.Context, query string, args ...any) ([]models.Song, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		db.logger.WithError(err).Error("Failed to query songs")
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := make([]models.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*models.Song, error) {
	var s models.Song
	var bpm sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.Artist, &s.Album, &s.Duration, &s.Genre, &bpm,
		&s.Key, &s.ImageURL, &s.AudioURL, &s.IsLocal, &s.CreatedAt); err != nil {
		return nil, err
	}
	if bpm.Valid {
		v := int(bpm.Int64)
		s.BPM = &v
	}
	return &s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
