// Package client holds the optimistic view a UI works against. Every
// mutation updates the visible state at once, is sent to the Remote, and
// is either confirmed by the next subscription update or rolled back.
package client

import (
	"context"
	"errors"
	"sync"

	"vsnplyr/internal/cache"
	"vsnplyr/internal/optimistic"
	"vsnplyr/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlaceholderPrefix starts the ID of every tentative record.
const PlaceholderPrefix = "temp-"

// ErrSubscriptionClosed is returned when a watched view ends before
// delivering its first value.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Session mirrors the playlists and the opened playlist sequences of one
// user.
type Session struct {
	remote Remote
	songs  *cache.SongCache
	logger *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc

	playlists *optimistic.Reconciler[[]models.Playlist]

	mutex       sync.Mutex
	collections map[string]*collection

	errors chan error
}

type collection struct {
	rec    *optimistic.Reconciler[[]models.PlaylistSong]
	cancel context.CancelFunc
	ready  chan struct{}
	once   sync.Once
	err    error
}

func (c *collection) markReady(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.ready)
	})
}

// NewSession subscribes to the playlist list and returns once its first
// value has arrived.
func NewSession(ctx context.Context, remote Remote, songs *cache.SongCache, logger *logrus.Logger) (*Session, error) {
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		remote:      remote,
		songs:       songs,
		logger:      logger,
		ctx:         sctx,
		cancel:      cancel,
		collections: make(map[string]*collection),
		errors:      make(chan error, 16),
	}

	updates, err := remote.WatchPlaylists(sctx)
	if err != nil {
		cancel()
		return nil, err
	}

	var first []models.Playlist
	select {
	case v, ok := <-updates:
		if !ok {
			cancel()
			return nil, ErrSubscriptionClosed
		}
		first = v
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	s.playlists = optimistic.New(first, logger)
	go func() {
		for v := range updates {
			s.playlists.Confirm(v)
		}
	}()
	return s, nil
}

// Errors delivers remote failures as transient notifications. Failures
// are dropped when nobody reads them.
func (s *Session) Errors() <-chan error {
	return s.errors
}

// Close ends every subscription and closes every visible-state channel.
func (s *Session) Close() {
	s.cancel()

	s.mutex.Lock()
	collections := s.collections
	s.collections = make(map[string]*collection)
	s.mutex.Unlock()

	for _, c := range collections {
		c.cancel()
		c.rec.Close()
	}
	s.playlists.Close()
}

// Open subscribes to a playlist's sequence and waits for its first value.
// Opening an already open playlist returns at once.
func (s *Session) Open(ctx context.Context, playlistID string) error {
	_, err := s.open(ctx, playlistID)
	return err
}

func (s *Session) open(ctx context.Context, playlistID string) (*collection, error) {
	s.mutex.Lock()
	c, ok := s.collections[playlistID]
	if !ok {
		wctx, cancel := context.WithCancel(s.ctx)
		updates, err := s.remote.WatchPlaylistSongs(wctx, playlistID)
		if err != nil {
			s.mutex.Unlock()
			cancel()
			return nil, err
		}
		c = &collection{
			rec:    optimistic.New[[]models.PlaylistSong](nil, s.logger),
			cancel: cancel,
			ready:  make(chan struct{}),
		}
		s.collections[playlistID] = c
		go s.follow(playlistID, c, updates)
	}
	s.mutex.Unlock()

	select {
	case <-c.ready:
		if c.err != nil {
			return nil, c.err
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) follow(playlistID string, c *collection, updates <-chan []models.PlaylistSong) {
	for rows := range updates {
		if s.songs != nil {
			s.songs.SetPlaylistSongs(rows)
		}
		c.rec.Confirm(rows)
		c.markReady(nil)
	}
	c.markReady(ErrSubscriptionClosed)

	s.mutex.Lock()
	if s.collections[playlistID] == c {
		delete(s.collections, playlistID)
	}
	s.mutex.Unlock()
	c.cancel()
	c.rec.Close()

	s.logger.WithField("playlist_id", playlistID).Debug("Playlist subscription ended")
}

// VisibleSequence returns a channel carrying the playlist's visible
// sequence: immediately, then after every change. Call the returned
// function to stop receiving.
func (s *Session) VisibleSequence(ctx context.Context, playlistID string) (<-chan []models.PlaylistSong, func(), error) {
	c, err := s.open(ctx, playlistID)
	if err != nil {
		return nil, nil, err
	}
	ch := c.rec.Subscribe()
	return ch, func() { c.rec.Unsubscribe(ch) }, nil
}

// Sequence returns the current visible sequence of an open playlist.
func (s *Session) Sequence(playlistID string) []models.PlaylistSong {
	s.mutex.Lock()
	c, ok := s.collections[playlistID]
	s.mutex.Unlock()
	if !ok {
		return nil
	}
	return c.rec.Visible()
}

// Playlists returns the visible playlist list.
func (s *Session) Playlists() []models.Playlist {
	return s.playlists.Visible()
}

// VisiblePlaylists returns a channel carrying the visible playlist list.
func (s *Session) VisiblePlaylists() (<-chan []models.Playlist, func()) {
	ch := s.playlists.Subscribe()
	return ch, func() { s.playlists.Unsubscribe(ch) }
}

// report publishes a failure without blocking.
func (s *Session) report(err error) {
	select {
	case s.errors <- err:
	default:
	}
}

func placeholderID() string {
	return PlaceholderPrefix + uuid.NewString()
}
