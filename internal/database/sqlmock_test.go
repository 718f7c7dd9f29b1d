package database

import (
	"context"
	"errors"
	"io"
	"testing"

	"vsnplyr/internal/apperr"
	"vsnplyr/pkg/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*Database, sqlmock.Sqlmock, *recorder) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := &recorder{}
	return &Database{conn: conn, logger: logger, publisher: rec}, mock, rec
}

func TestInsertMembershipMapsUniqueViolation(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectExec("INSERT INTO playlist_songs").
		WithArgs(sqlmock.AnyArg(), "p1", "s1", 3).
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	_, err := db.InsertMembership(context.Background(), "p1", "s1", 3)
	assert.ErrorIs(t, err, apperr.ErrDuplicateMember)
	assert.Empty(t, rec.tables())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMembershipWrapsOtherErrors(t *testing.T) {
	db, mock, _ := newMockDB(t)

	ioErr := errors.New("disk I/O error")
	mock.ExpectExec("INSERT INTO playlist_songs").WillReturnError(ioErr)

	_, err := db.InsertMembership(context.Background(), "p1", "s1", 1)
	assert.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, apperr.ErrDuplicateMember)
}

func TestDeletePlaylistRollsBackOnFailure(t *testing.T) {
	db, mock, rec := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, playlist_id, song_id, position FROM playlist_songs").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "playlist_id", "song_id", "position"}).
			AddRow("m1", "p1", "s1", 1))
	mock.ExpectExec("DELETE FROM playlist_songs").WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM playlists").WithArgs("p1").WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := db.DeletePlaylist(context.Background(), "p1")
	require.Error(t, err)
	assert.Empty(t, rec.tables(), "nothing may be published for a rolled back delete")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMembershipNotFound(t *testing.T) {
	db, mock, _ := newMockDB(t)

	mock.ExpectExec("DELETE FROM playlist_songs WHERE id").
		WithArgs("m1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.DeleteMembership(context.Background(), models.Membership{ID: "m1", PlaylistID: "p1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
