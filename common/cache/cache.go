// Package cache keeps recently read OCFL inventories in memory, as
// marshaled JSON, so that classifying an object again while its entry
// is fresh does not re-read its inventory.json from disk. Callers still
// unmarshal the cached bytes on every hit.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dpreserve/drreplicator/common/logger"
)

// defaultTTL bounds how long a cached inventory is trusted before a
// fresh read is forced.
const defaultTTL = 2 * time.Minute

// Cache is the inventory cache the OCFL store reads through. Keys are
// OCFL object ids; values are marshaled inventory documents.
type Cache interface {
	Get(ctx context.Context, objectID string) ([]byte, bool, error)
	Put(ctx context.Context, objectID string, inventory []byte) error
	Invalidate(ctx context.Context, objectID string) error
	Close() error
}

// InventoryCache is the in-memory implementation. Entries go stale
// after a fixed TTL and are invalidated eagerly when a commit seals a
// new version, so classification never trusts a superseded HEAD.
type InventoryCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]inventoryEntry
	stop    chan struct{}
	log     *logger.Logger
}

type inventoryEntry struct {
	inventory []byte
	staleAt   time.Time
}

// NewInventoryCache creates an InventoryCache. A non-positive ttl
// falls back to the two-minute default.
func NewInventoryCache(ttl time.Duration, log *logger.Logger) *InventoryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &InventoryCache{
		ttl:     ttl,
		entries: make(map[string]inventoryEntry),
		stop:    make(chan struct{}),
		log:     log,
	}
	go c.sweep()
	return c
}

// Get returns the cached inventory for objectID, if still fresh.
func (c *InventoryCache) Get(ctx context.Context, objectID string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[objectID]
	if !ok || time.Now().After(entry.staleAt) {
		return nil, false, nil
	}
	return entry.inventory, true, nil
}

// Put stores the marshaled inventory for objectID.
func (c *InventoryCache) Put(ctx context.Context, objectID string, inventory []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[objectID] = inventoryEntry{
		inventory: inventory,
		staleAt:   time.Now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops objectID's entry. The store calls this after
// sealing a new version so the next classification re-reads HEAD.
func (c *InventoryCache) Invalidate(ctx context.Context, objectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, objectID)
	return nil
}

// Close stops the sweeper and drops every entry.
func (c *InventoryCache) Close() error {
	close(c.stop)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.log.Info("inventory cache closed")
	return nil
}

// sweep drops stale entries so objects that stop receiving messages do
// not pin their last inventory forever.
func (c *InventoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for id, entry := range c.entries {
				if now.After(entry.staleAt) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
