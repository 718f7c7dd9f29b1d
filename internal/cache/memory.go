package cache

import (
	"sync"
	"time"

	"vsnplyr/pkg/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expiration)
}

// MemoryCache implements a simple in-memory TTL cache
type MemoryCache struct {
	items map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new memory cache that sweeps expired entries
// every cleanupInterval until Close is called
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]*CacheEntry),
		ttl:   ttl,
		done:  make(chan struct{}),
	}

	go cache.cleanupExpired(cleanupInterval)

	return cache
}

// Set stores a value in the cache
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Size returns the number of items in the cache, including expired ones
// not yet swept
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

// cleanupExpired removes expired entries periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.items {
		if entry.IsExpired() {
			delete(c.items, key)
		}
	}
}

// SongCache remembers song details seen in confirmed playlist views so
// tentative rows can show them before the server confirms
type SongCache struct {
	*MemoryCache
}

// NewSongCache creates a song cache
func NewSongCache(ttl time.Duration) *SongCache {
	return &SongCache{
		MemoryCache: NewMemoryCache(ttl, 5*time.Minute),
	}
}

// SetSong caches a single song
func (sc *SongCache) SetSong(song models.Song) {
	sc.Set(song.ID, song)
}

// SetPlaylistSongs caches every song of a playlist view
func (sc *SongCache) SetPlaylistSongs(songs []models.PlaylistSong) {
	for _, s := range songs {
		sc.SetSong(s.Song)
	}
}

// GetSong retrieves a cached song
func (sc *SongCache) GetSong(id string) (models.Song, bool) {
	value, exists := sc.Get(id)
	if !exists {
		return models.Song{}, false
	}

	song, ok := value.(models.Song)
	return song, ok
}
