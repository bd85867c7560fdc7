package cache

import (
	"sync"

	"github.com/puckstats/shotrecorder/pkg/core"
)

// DefaultContactHistorySize is the number of contacts kept per puck.
const DefaultContactHistorySize = 32

// ContactCache keeps a bounded history of player contacts for every puck.
// It backs goal attribution when no pending shot exists for the scoring puck.
type ContactCache struct {
	mu    sync.Mutex
	size  int
	pucks map[core.PuckID][]core.Contact
}

// NewContactCache creates a cache keeping at most size contacts per puck.
func NewContactCache(size int) *ContactCache {
	if size <= 0 {
		size = DefaultContactHistorySize
	}
	return &ContactCache{
		size:  size,
		pucks: make(map[core.PuckID][]core.Contact),
	}
}

// Add appends a contact for puck, evicting the oldest entry when full.
func (c *ContactCache) Add(puck core.PuckID, contact core.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.pucks[puck]
	if len(history) >= c.size {
		history = append(history[:0], history[len(history)-c.size+1:]...)
	}
	c.pucks[puck] = append(history, contact)
}

// RecentContacts returns the contacts of puck, oldest first. The slice is a copy.
func (c *ContactCache) RecentContacts(puck core.PuckID) []core.Contact {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.pucks[puck]
	out := make([]core.Contact, len(history))
	copy(out, history)
	return out
}

// Forget drops the history of a puck that no longer exists.
func (c *ContactCache) Forget(puck core.PuckID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pucks, puck)
}

// Reset clears every puck's history.
func (c *ContactCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pucks = make(map[core.PuckID][]core.Contact)
}
