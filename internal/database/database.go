package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vsnplyr/internal/live"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ChangePublisher receives a Change after every committed write.
type ChangePublisher interface {
	Publish(c live.Change)
}

// Options tunes the connection pool.
type Options struct {
	MaxConnections int
}

// Database wraps a *sql.DB holding songs, playlists and the ordered
// playlist memberships. It is safe for concurrent use because the
// underlying *sql.DB is concurrency-safe.
type Database struct {
	conn      *sql.DB
	logger    *logrus.Logger
	publisher ChangePublisher

	// Prepared statements for the hot membership paths
	getSongStmt          *sql.Stmt
	getPlaylistStmt      *sql.Stmt
	membershipByPairStmt *sql.Stmt
	setPositionStmt      *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. Every committed write is
// reported to publisher, which may be nil. Caller should Close() it when
// finished.
func NewDatabase(dbPath string, opts Options, logger *logrus.Logger, publisher ChangePublisher) (*Database, error) {
	dsn := dbPath + "?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := opts.MaxConnections
	if maxConns < 1 {
		maxConns = 5
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:      conn,
		logger:    logger,
		publisher: publisher,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		duration INTEGER NOT NULL,
		genre TEXT,
		bpm INTEGER,
		musical_key TEXT,
		image_url TEXT,
		audio_url TEXT NOT NULL,
		is_local BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cover_url TEXT,
		created_at DATETIME NOT NULL
	);`

	// No ON DELETE CASCADE: memberships are removed explicitly so the
	// remaining positions can be compacted.
	membershipsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		id TEXT PRIMARY KEY,
		playlist_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id),
		FOREIGN KEY (song_id) REFERENCES songs(id)
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_songs_name ON songs(name);",
		"CREATE INDEX IF NOT EXISTS idx_songs_artist ON songs(artist);",
		"CREATE INDEX IF NOT EXISTS idx_songs_genre ON songs(genre);",
		"CREATE INDEX IF NOT EXISTS idx_songs_created ON songs(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_songs_audio_url ON songs(audio_url);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_playlist_songs_pair ON playlist_songs(playlist_id, song_id);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_order ON playlist_songs(playlist_id, position);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_song ON playlist_songs(song_id);",
	}

	tables := []string{songsTable, playlistsTable, membershipsTable}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations adds columns introduced after the first schema. Each
// migration is idempotent.
func (db *Database) runMigrations() error {
	columns := []struct {
		table, column, definition string
	}{
		{"playlists", "cover_url", "TEXT"},
		{"songs", "is_local", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{"songs", "musical_key", "TEXT"},
	}

	for _, c := range columns {
		var exists bool
		err := db.conn.QueryRow(`
			SELECT COUNT(*) > 0
			FROM pragma_table_info(?)
			WHERE name = ?`, c.table, c.column).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.conn.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.column, c.definition)); err != nil {
			return err
		}
		db.logger.WithFields(logrus.Fields{
			"table":  c.table,
			"column": c.column,
		}).Info("Added column")
	}
	return nil
}

func (db *Database) prepareStatements() error {
	var err error

	db.getSongStmt, err = db.conn.Prepare(`SELECT ` + songColumns + ` FROM songs WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get song statement: %w", err)
	}

	db.getPlaylistStmt, err = db.conn.Prepare(`SELECT ` + playlistColumns + ` FROM playlists WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get playlist statement: %w", err)
	}

	db.membershipByPairStmt, err = db.conn.Prepare(`
		SELECT ` + membershipColumns + `
		FROM playlist_songs
		WHERE playlist_id = ? AND song_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare membership by pair statement: %w", err)
	}

	db.setPositionStmt, err = db.conn.Prepare(`UPDATE playlist_songs SET position = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare set position statement: %w", err)
	}

	return nil
}

// Ping checks database connectivity.
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close releases prepared statements and closes the underlying connection.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.getSongStmt,
		db.getPlaylistStmt,
		db.membershipByPairStmt,
		db.setPositionStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	return db.conn.Close()
}

// withTx runs fn in a transaction, rolling back on error.
func (db *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *Database) publish(changes ...live.Change) {
	if db.publisher == nil {
		return
	}
	for _, c := range changes {
		db.publisher.Publish(c)
	}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// requireAffected maps a zero-row write to notFound.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
