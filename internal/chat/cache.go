package chat

import (
	"sync"
	"time"
)

// ChannelInfo is the resolved identity of a channel or user a message
// originates from.
type ChannelInfo struct {
	ID       int64
	Name     string
	Username string
}

// Private reports whether the channel has no public username, meaning no
// public deep link can be generated for it.
func (i ChannelInfo) Private() bool { return i.Username == "" }

// InfoCache is a bounded TTL cache of channel identities, injected into the
// source instead of held as ambient state. Forward origins repeat heavily in
// practice, so this avoids re-resolving the same channel per message.
type InfoCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[int64]cacheEntry
}

type cacheEntry struct {
	info    ChannelInfo
	expires time.Time
}

// NewInfoCache creates a cache holding at most maxSize entries for ttl each.
func NewInfoCache(ttl time.Duration, maxSize int) *InfoCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &InfoCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[int64]cacheEntry),
	}
}

// Get returns the cached identity for id, if present and not expired.
func (c *InfoCache) Get(id int64) (ChannelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return ChannelInfo{}, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, id)
		return ChannelInfo{}, false
	}
	return e.info, true
}

// Put stores an identity, evicting the entry closest to expiry when full.
func (c *InfoCache) Put(info ChannelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[info.ID]; !ok && len(c.entries) >= c.maxSize {
		var oldest int64
		var oldestExp time.Time
		first := true
		for id, e := range c.entries {
			if first || e.expires.Before(oldestExp) {
				oldest, oldestExp = id, e.expires
				first = false
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[info.ID] = cacheEntry{info: info, expires: time.Now().Add(c.ttl)}
}

// Len returns the number of live entries, expired ones included until read.
func (c *InfoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
