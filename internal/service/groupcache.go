package service

import "time"

// GroupCache cache nama group per-session dengan TTL pendek, biar tidak
// fetch metadata berulang untuk tiap pesan group yang masuk.
// Hanya diakses dari callback stream session yang sekuensial, jadi tidak
// perlu lock sendiri.
type GroupCache struct {
	ttl     time.Duration
	entries map[string]groupEntry
}

type groupEntry struct {
	name      string
	expiresAt time.Time
}

func NewGroupCache(ttl time.Duration) *GroupCache {
	return &GroupCache{
		ttl:     ttl,
		entries: make(map[string]groupEntry),
	}
}

func (c *GroupCache) Get(groupJID string) (string, bool) {
	entry, ok := c.entries[groupJID]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, groupJID)
		return "", false
	}
	return entry.name, true
}

func (c *GroupCache) Put(groupJID, name string) {
	c.entries[groupJID] = groupEntry{
		name:      name,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *GroupCache) Len() int {
	return len(c.entries)
}
