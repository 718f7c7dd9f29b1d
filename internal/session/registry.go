package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber describes one open live subscription
type Subscriber struct {
	ID           string    `json:"id"`
	Stream       string    `json:"stream"`
	UserAgent    string    `json:"userAgent"`
	IPAddress    string    `json:"ipAddress"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	Frames       int       `json:"frames"`
}

// Registry tracks the live subscriptions served by this process
type Registry struct {
	subscribers map[string]*Subscriber
	mutex       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]*Subscriber),
	}
}

// Register records a new subscription and returns its ID
func (r *Registry) Register(stream, userAgent, ipAddress string) string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	sub := &Subscriber{
		ID:           uuid.NewString(),
		Stream:       stream,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		ConnectedAt:  now,
		LastActivity: now,
	}
	r.subscribers[sub.ID] = sub
	return sub.ID
}

// Touch records that a frame was sent to a subscription
func (r *Registry) Touch(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if sub, exists := r.subscribers[id]; exists {
		sub.LastActivity = time.Now()
		sub.Frames++
	}
}

// Remove forgets a subscription
func (r *Registry) Remove(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.subscribers, id)
}

// Get returns a copy of one subscription
func (r *Registry) Get(id string) (Subscriber, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subscribers[id]
	if !exists {
		return Subscriber{}, false
	}
	return *sub, true
}

// Count returns the number of open subscriptions
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.subscribers)
}

// CountByStream returns open subscriptions grouped by stream path
func (r *Registry) CountByStream() map[string]int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	// Return a copy to avoid race conditions
	result := make(map[string]int)
	for _, sub := range r.subscribers {
		result[sub.Stream]++
	}
	return result
}
