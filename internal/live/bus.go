// Package live fans store changes out to subscribers and re-evaluates
// subscribed queries when the data they read changes.
package live

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Tables a Change can refer to.
const (
	TableSongs       = "songs"
	TablePlaylists   = "playlists"
	TableMemberships = "playlist_songs"
)

// Operations a Change can describe.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change describes one committed write
type Change struct {
	Table      string `json:"table"`
	Op         string `json:"op"`
	ID         string `json:"id"`
	PlaylistID string `json:"playlistId,omitempty"`
	SongID     string `json:"songId,omitempty"`
	Origin     string `json:"origin"`
}

// Matcher selects the changes a subscriber cares about
type Matcher func(Change) bool

type listener struct {
	ch    chan Change
	match Matcher
}

// Bus delivers changes to subscribers without ever blocking the writer
type Bus struct {
	origin    string
	logger    *logrus.Logger
	mutex     sync.RWMutex
	listeners []*listener
}

// NewBus creates a bus with a fresh origin identifier
func NewBus(logger *logrus.Logger) *Bus {
	return &Bus{
		origin:    uuid.NewString(),
		logger:    logger,
		listeners: make([]*listener, 0),
	}
}

// Origin identifies changes published by this process
func (b *Bus) Origin() string {
	return b.origin
}

// Publish delivers c to every matching subscriber. Changes without an
// origin are stamped with this bus's origin.
func (b *Bus) Publish(c Change) {
	if c.Origin == "" {
		c.Origin = b.origin
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, l := range b.listeners {
		if l.match != nil && !l.match(c) {
			continue
		}
		select {
		case l.ch <- c:
		default:
			// Full buffer: the subscriber already has work queued.
			b.logger.WithFields(logrus.Fields{
				"table": c.Table,
				"id":    c.ID,
			}).Debug("Dropped change for slow subscriber")
		}
	}
}

// SubscriberBuffer is the queue length of a Subscribe channel. Changes
// arriving while it is full are dropped for that subscriber.
const SubscriberBuffer = 64

// Subscribe adds a listener for changes accepted by match (nil accepts all)
func (b *Bus) Subscribe(match Matcher) <-chan Change {
	return b.SubscribeBuffered(match, SubscriberBuffer)
}

// SubscribeBuffered is Subscribe with a queue of size changes, for
// subscribers that must see every change rather than re-reading state.
func (b *Bus) SubscribeBuffered(match Matcher, size int) <-chan Change {
	if size < 1 {
		size = 1
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	ch := make(chan Change, size)
	b.listeners = append(b.listeners, &listener{ch: ch, match: match})
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (b *Bus) Unsubscribe(ch <-chan Change) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i, l := range b.listeners {
		if l.ch == ch {
			close(l.ch)
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}
}

// Subscribers returns the current listener count
func (b *Bus) Subscribers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.listeners)
}

// ForPlaylists matches changes to the playlist list.
func ForPlaylists() Matcher {
	return func(c Change) bool {
		return c.Table == TablePlaylists
	}
}

// ForPlaylistSongs matches changes visible through one playlist's song view:
// its memberships, the playlist itself and any song.
func ForPlaylistSongs(playlistID string) Matcher {
	return func(c Change) bool {
		switch c.Table {
		case TableMemberships:
			return c.PlaylistID == playlistID
		case TablePlaylists:
			return c.ID == playlistID
		case TableSongs:
			return true
		}
		return false
	}
}

// ForSongs matches changes to the song library.
func ForSongs() Matcher {
	return func(c Change) bool {
		return c.Table == TableSongs
	}
}
