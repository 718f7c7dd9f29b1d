package client

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vsnplyr/internal/apperr"
	"vsnplyr/internal/cache"
	"vsnplyr/internal/database"
	"vsnplyr/internal/gateway"
	"vsnplyr/internal/live"
	"vsnplyr/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeRemote lets a test drive the subscription and hold or fail calls.
type fakeRemote struct {
	mutex     sync.Mutex
	playlists chan []models.Playlist
	songs     map[string]chan []models.PlaylistSong

	release chan struct{}
	err     error
	calls   atomic.Int32
	nextID  string
}

func newFakeRemote(playlists []models.Playlist) *fakeRemote {
	f := &fakeRemote{
		playlists: make(chan []models.Playlist, 1),
		songs:     make(map[string]chan []models.PlaylistSong),
	}
	f.playlists <- playlists
	return f
}

// seed sets the first value the playlist's subscription delivers.
func (f *fakeRemote) seed(playlistID string, rows []models.PlaylistSong) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ch := make(chan []models.PlaylistSong, 1)
	ch <- rows
	f.songs[playlistID] = ch
}

func (f *fakeRemote) confirm(playlistID string, rows []models.PlaylistSong) {
	f.mutex.Lock()
	ch := f.songs[playlistID]
	f.mutex.Unlock()
	Offer(ch, rows)
}

func (f *fakeRemote) call() error {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.err
}

func (f *fakeRemote) AddMember(ctx context.Context, playlistID, songID string) (string, error) {
	if err := f.call(); err != nil {
		return "", err
	}
	return f.nextID, nil
}

func (f *fakeRemote) RemoveMember(ctx context.Context, playlistID, songID string) error {
	return f.call()
}

func (f *fakeRemote) MoveMember(ctx context.Context, playlistID, songID string, position int) error {
	return f.call()
}

func (f *fakeRemote) ReorderBatch(ctx context.Context, playlistID string, orders []models.SongOrder) error {
	return f.call()
}

func (f *fakeRemote) CreatePlaylist(ctx context.Context, in models.PlaylistInput) (string, error) {
	if err := f.call(); err != nil {
		return "", err
	}
	return f.nextID, nil
}

func (f *fakeRemote) UpdatePlaylist(ctx context.Context, id string, updates ...models.PlaylistUpdate) error {
	return f.call()
}

func (f *fakeRemote) DeletePlaylist(ctx context.Context, id string) error {
	return f.call()
}

func (f *fakeRemote) WatchPlaylists(ctx context.Context) (<-chan []models.Playlist, error) {
	return f.playlists, nil
}

func (f *fakeRemote) WatchPlaylistSongs(ctx context.Context, playlistID string) (<-chan []models.PlaylistSong, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ch, ok := f.songs[playlistID]
	if !ok {
		return nil, apperr.PlaylistNotFound(playlistID)
	}
	return ch, nil
}

func row(songID, membershipID string, position int) models.PlaylistSong {
	return models.PlaylistSong{
		Song:         models.Song{ID: songID, Name: strings.ToUpper(songID)},
		MembershipID: membershipID,
		Position:     position,
	}
}

func order(rows []models.PlaylistSong) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func positions(rows []models.PlaylistSong) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Position)
	}
	return out
}

func newTestSession(t *testing.T, remote Remote) *Session {
	t.Helper()
	songs := cache.NewSongCache(time.Minute)
	t.Cleanup(songs.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := NewSession(ctx, remote, songs, quietLogger())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestAddMemberShowsImmediatelyThenConfirms(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", nil)
	remote.release = make(chan struct{})
	remote.nextID = "m1"
	s := newTestSession(t, remote)

	visible, stop, err := s.VisibleSequence(context.Background(), "p1")
	require.NoError(t, err)
	defer stop()
	assert.Empty(t, receive(t, visible))

	done := make(chan error, 1)
	go func() {
		_, err := s.AddMember(context.Background(), "p1", "a")
		done <- err
	}()

	rows := receive(t, visible)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, 1, rows[0].Position)
	assert.True(t, strings.HasPrefix(rows[0].MembershipID, PlaceholderPrefix))

	close(remote.release)
	require.NoError(t, <-done)

	// Still tentative until the subscription reports the song.
	assert.Equal(t, []string{"a"}, order(s.Sequence("p1")))

	remote.confirm("p1", []models.PlaylistSong{row("a", "m1", 1)})
	require.Eventually(t, func() bool {
		seq := s.Sequence("p1")
		return len(seq) == 1 && seq[0].MembershipID == "m1"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFailedAddRollsBack(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1)})
	remote.err = apperr.ErrDuplicateMember
	s := newTestSession(t, remote)

	require.NoError(t, s.Open(context.Background(), "p1"))
	before := s.Sequence("p1")

	_, err := s.AddMember(context.Background(), "p1", "b")
	require.Error(t, err)
	var rf *apperr.RemoteFailure
	assert.True(t, errors.As(err, &rf))
	assert.ErrorIs(t, err, apperr.ErrDuplicateMember)

	assert.Equal(t, before, s.Sequence("p1"))
	assert.ErrorIs(t, receive(t, s.Errors()), apperr.ErrDuplicateMember)
}

func TestChecksRunBeforeAnyOptimisticChange(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1), row("b", "m2", 2), row("c", "m3", 3)})
	s := newTestSession(t, remote)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "p1"))

	_, err := s.AddMember(ctx, "p1", "a")
	assert.ErrorIs(t, err, apperr.ErrDuplicateMember)

	err = s.MoveMember(ctx, "p1", "a", 5)
	assert.ErrorIs(t, err, apperr.ErrPositionOutOfRange)

	err = s.RemoveMember(ctx, "p1", "zzz")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = s.ReorderBatch(ctx, "p1", []models.SongOrder{{SongID: " ", Position: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.CreatePlaylist(ctx, models.PlaylistInput{Name: "   "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Zero(t, remote.calls.Load())
	assert.Equal(t, []string{"a", "b", "c"}, order(s.Sequence("p1")))
	assert.Empty(t, s.Playlists())
}

func TestMoveAndRemoveFoldOverBase(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1), row("b", "m2", 2), row("c", "m3", 3)})
	s := newTestSession(t, remote)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx, "p1"))

	require.NoError(t, s.MoveMember(ctx, "p1", "c", 1))
	assert.Equal(t, []string{"c", "a", "b"}, order(s.Sequence("p1")))
	assert.Equal(t, []int{1, 2, 3}, positions(s.Sequence("p1")))

	require.NoError(t, s.RemoveMember(ctx, "p1", "b"))
	assert.Equal(t, []string{"c", "a"}, order(s.Sequence("p1")))
	assert.Equal(t, []int{1, 2}, positions(s.Sequence("p1")))

	remote.confirm("p1", []models.PlaylistSong{row("c", "m3", 1), row("a", "m1", 2)})
	require.Eventually(t, func() bool {
		return len(s.Sequence("p1")) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"c", "a"}, order(s.Sequence("p1")))
}

func TestFailedMoveUndoes(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1), row("b", "m2", 2), row("c", "m3", 3)})
	remote.err = errors.New("offline")
	s := newTestSession(t, remote)
	require.NoError(t, s.Open(context.Background(), "p1"))

	err := s.MoveMember(context.Background(), "p1", "a", 3)
	var rf *apperr.RemoteFailure
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, "moveSongInPlaylist", rf.Op)
	assert.Equal(t, []string{"a", "b", "c"}, order(s.Sequence("p1")))
}

func TestFailedMoveAfterNewBaseShowsThatBase(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1), row("b", "m2", 2), row("c", "m3", 3)})
	remote.release = make(chan struct{})
	remote.err = errors.New("offline")
	s := newTestSession(t, remote)
	require.NoError(t, s.Open(context.Background(), "p1"))

	done := make(chan error, 1)
	go func() {
		done <- s.MoveMember(context.Background(), "p1", "c", 1)
	}()
	require.Eventually(t, func() bool {
		return remote.calls.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"c", "a", "b"}, order(s.Sequence("p1")))

	// b is removed elsewhere while the move is in flight.
	remote.confirm("p1", []models.PlaylistSong{row("a", "m1", 1), row("c", "m3", 2)})
	require.Eventually(t, func() bool {
		return len(s.Sequence("p1")) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"c", "a"}, order(s.Sequence("p1")))

	close(remote.release)
	var rf *apperr.RemoteFailure
	require.True(t, errors.As(<-done, &rf))

	assert.Equal(t, []string{"a", "c"}, order(s.Sequence("p1")))
	assert.Equal(t, []int{1, 2}, positions(s.Sequence("p1")))
}

func TestReorderBatchIsShownVerbatim(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.seed("p1", []models.PlaylistSong{row("a", "m1", 1), row("b", "m2", 2)})
	s := newTestSession(t, remote)
	require.NoError(t, s.Open(context.Background(), "p1"))

	err := s.ReorderBatch(context.Background(), "p1", []models.SongOrder{{SongID: "a", Position: 2}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, positions(s.Sequence("p1")))
}

func TestCreatePlaylistReplacesPlaceholder(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.nextID = "p-real"
	s := newTestSession(t, remote)

	id, err := s.CreatePlaylist(context.Background(), models.PlaylistInput{Name: "  Road trip "})
	require.NoError(t, err)
	assert.Equal(t, "p-real", id)

	list := s.Playlists()
	require.Len(t, list, 1)
	assert.True(t, strings.HasPrefix(list[0].ID, PlaceholderPrefix))
	assert.Equal(t, "Road trip", list[0].Name)

	Offer(remote.playlists, []models.Playlist{{ID: "p-real", Name: "Road trip"}})
	require.Eventually(t, func() bool {
		list := s.Playlists()
		return len(list) == 1 && list[0].ID == "p-real"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPlaylistUpdateAndDelete(t *testing.T) {
	remote := newFakeRemote([]models.Playlist{{ID: "p1", Name: "Old"}, {ID: "p2", Name: "Other"}})
	s := newTestSession(t, remote)
	ctx := context.Background()

	require.NoError(t, s.UpdatePlaylist(ctx, "p1", models.SetPlaylistName{Name: "New"}))
	assert.Equal(t, "New", s.Playlists()[0].Name)

	err := s.UpdatePlaylist(ctx, "p1", models.SetPlaylistName{Name: ""})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, s.DeletePlaylist(ctx, "p2"))
	assert.Len(t, s.Playlists(), 1)

	assert.ErrorIs(t, s.DeletePlaylist(ctx, "p2"), apperr.ErrNotFound)
}

func TestSessionAgainstLocalGateway(t *testing.T) {
	logger := quietLogger()
	bus := live.NewBus(logger)
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "client.db"), database.Options{MaxConnections: 4}, logger, bus)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := gateway.New(db, logger)
	ctx := context.Background()

	songA, err := gw.CreateSong(ctx, models.SongInput{Name: "A", Artist: "X", Duration: 60, AudioURL: "https://cdn.example.com/a"})
	require.NoError(t, err)
	songB, err := gw.CreateSong(ctx, models.SongInput{Name: "B", Artist: "X", Duration: 60, AudioURL: "https://cdn.example.com/b"})
	require.NoError(t, err)

	s := newTestSession(t, NewLocal(gw, bus))

	playlistID, err := s.CreatePlaylist(ctx, models.PlaylistInput{Name: "Mix"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		list := s.Playlists()
		return len(list) == 1 && list[0].ID == playlistID
	}, 5*time.Second, 10*time.Millisecond)

	m1, err := s.AddMember(ctx, playlistID, songA)
	require.NoError(t, err)
	_, err = s.AddMember(ctx, playlistID, songB)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		seq := s.Sequence(playlistID)
		return len(seq) == 2 && seq[0].MembershipID == m1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.MoveMember(ctx, playlistID, songB, 1))
	require.Eventually(t, func() bool {
		confirmed, err := gw.PlaylistSongs(ctx, playlistID)
		return err == nil && len(confirmed) == 2 && confirmed[0].ID == songB
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{songB, songA}, order(s.Sequence(playlistID)))

	// A second add of the same song is rejected locally.
	_, err = s.AddMember(ctx, playlistID, songA)
	assert.ErrorIs(t, err, apperr.ErrDuplicateMember)
}
