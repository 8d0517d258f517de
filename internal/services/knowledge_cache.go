package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"answerhub/internal/models"
)

const cacheSlotKey = "knowledge:entries"

// KnowledgeCache is a single time-bound slot holding the last successfully
// retrieved entry set. The whole record (entries + provenance + fetch time)
// is always replaced atomically; there is no per-entry mutation.
type KnowledgeCache struct {
	store *cache.Cache
	ttl   time.Duration
	mu    sync.RWMutex
}

// NewKnowledgeCache creates a cache with the given TTL.
// Expired slots are purged on a 1 minute sweep.
func NewKnowledgeCache(ttl time.Duration) *KnowledgeCache {
	return &KnowledgeCache{
		store: cache.New(ttl, 1*time.Minute),
		ttl:   ttl,
	}
}

// Get returns the cached record if present and not expired.
func (c *KnowledgeCache) Get() (*models.CacheRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, found := c.store.Get(cacheSlotKey)
	if !found {
		return nil, false
	}

	record, ok := value.(*models.CacheRecord)
	if !ok {
		return nil, false
	}
	return record, true
}

// Put replaces the cached slot with a fresh record.
func (c *KnowledgeCache) Put(entries []models.KnowledgeEntry, provenance models.Provenance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := &models.CacheRecord{
		Entries:    entries,
		Provenance: provenance,
		FetchedAt:  time.Now(),
	}
	c.store.Set(cacheSlotKey, record, c.ttl)

	slog.Debug("Knowledge cache updated",
		"entries", len(entries),
		"provenance", provenance,
	)
}

// Clear removes the cached slot. Safe to call when empty.
func (c *KnowledgeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(cacheSlotKey)
	slog.Info("Knowledge cache cleared")
}

// Info reports the operational state of the cache slot.
func (c *KnowledgeCache) Info() models.CacheInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, expiry, found := c.store.GetWithExpiration(cacheSlotKey)
	if !found {
		return models.CacheInfo{Cached: false, Provenance: models.ProvenanceNone}
	}

	record, ok := value.(*models.CacheRecord)
	if !ok {
		return models.CacheInfo{Cached: false, Provenance: models.ProvenanceNone}
	}

	info := models.CacheInfo{
		Cached:     true,
		AgeSeconds: time.Since(record.FetchedAt).Seconds(),
		EntryCount: len(record.Entries),
		Provenance: record.Provenance,
	}
	if !expiry.IsZero() {
		info.TTLRemaining = time.Until(expiry).Seconds()
		if info.TTLRemaining < 0 {
			info.TTLRemaining = 0
		}
	}
	return info
}

// TTL returns the configured slot lifetime.
func (c *KnowledgeCache) TTL() time.Duration {
	return c.ttl
}
