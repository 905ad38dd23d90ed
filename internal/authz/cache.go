// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/trailhook/trailhook/internal/auth"
)

// cacheEntry is a node in the decision cache's doubly-linked list.
type cacheEntry struct {
	key       uint64
	decision  *Decision
	prev      *cacheEntry
	next      *cacheEntry
	expiresAt time.Time
}

// DecisionCache is a thread-safe, capacity-bounded LRU cache of
// authorization decisions with per-entry TTL.
//
// Entries expire lazily: a Get that finds an expired entry removes it and
// reports a miss, so a hit never returns a decision whose TTL has
// elapsed. Once capacity is exceeded the least recently used entry is
// evicted. All operations are O(1) via a hashmap plus a doubly-linked
// list with sentinel head/tail nodes.
//
// Entries are not proactively invalidated on role or policy changes; TTL
// alone bounds staleness.
type DecisionCache struct {
	mu sync.Mutex

	// capacity is the maximum number of entries.
	capacity int

	// items maps keys to list nodes for O(1) lookup.
	items map[uint64]*cacheEntry

	// head.next is the most recently used, tail.prev the least.
	head *cacheEntry
	tail *cacheEntry

	// stats
	hits   int64
	misses int64
}

// NewDecisionCache creates a decision cache holding at most capacity
// entries.
func NewDecisionCache(capacity int) *DecisionCache {
	if capacity <= 0 {
		capacity = 10000
	}

	c := &DecisionCache{
		capacity: capacity,
		items:    make(map[uint64]*cacheEntry, capacity),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves an unexpired decision. A found entry is moved to the
// front (most recently used).
func (c *DecisionCache) Get(key uint64) (*Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		recordCacheMiss()
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		recordCacheMiss()
		recordCacheEviction("expired")
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	recordCacheHit()
	return entry.decision, true
}

// Put inserts or overwrites a decision with the given TTL. If the cache
// is at capacity the least recently used entry is evicted.
func (c *DecisionCache) Put(key uint64, decision *Decision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		entry.decision = decision
		entry.expiresAt = time.Now().Add(ttl)
		c.moveToFront(entry)
		return
	}

	if len(c.items) >= c.capacity {
		if lru := c.tail.prev; lru != c.head {
			c.removeEntry(lru)
			recordCacheEviction("capacity")
		}
	}

	entry := &cacheEntry{
		key:       key,
		decision:  decision,
		expiresAt: time.Now().Add(ttl),
	}
	c.items[key] = entry
	c.addToFront(entry)
	setCacheSize(len(c.items))
}

// Len returns the current number of entries, including any not yet
// lazily expired.
func (c *DecisionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts.
func (c *DecisionCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// removeEntry unlinks an entry and deletes it from the map.
// Caller must hold c.mu.
func (c *DecisionCache) removeEntry(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
	setCacheSize(len(c.items))
}

// addToFront links an entry directly after the head sentinel.
// Caller must hold c.mu.
func (c *DecisionCache) addToFront(entry *cacheEntry) {
	entry.next = c.head.next
	entry.prev = c.head
	c.head.next.prev = entry
	c.head.next = entry
}

// moveToFront marks an entry most recently used. Caller must hold c.mu.
func (c *DecisionCache) moveToFront(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

// CacheKey computes a stable fingerprint of a decision request: subject
// identity and roles, the required action, the resource descriptor, and
// the policy bundle revision last reported by the evaluator. Roles and
// member ids are sorted so set ordering does not change the key.
func CacheKey(subject *auth.Subject, action Action, resource *ResourceDescriptor, revision string) uint64 {
	d := xxhash.New()

	writeField(d, subject.ID)
	writeSet(d, subject.Roles)
	writeField(d, string(action))
	writeField(d, revision)

	if resource != nil {
		writeField(d, string(resource.Type))
		writeField(d, resource.ID)
		writeField(d, resource.OwnerID)
		writeField(d, resource.GroupID)
		writeSet(d, resource.MemberIDs)
	}

	return d.Sum64()
}

// writeField writes a length-prefixed field so adjacent values cannot
// collide by concatenation.
func writeField(d *xxhash.Digest, value string) {
	_, _ = d.WriteString(strconv.Itoa(len(value)))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(value)
	_, _ = d.WriteString(";")
}

// writeSet writes an order-insensitive view of a string set.
func writeSet(d *xxhash.Digest, values []string) {
	if len(values) > 1 {
		sorted := make([]string, len(values))
		copy(sorted, values)
		sort.Strings(sorted)
		values = sorted
	}
	_, _ = d.WriteString(strconv.Itoa(len(values)))
	_, _ = d.WriteString("[")
	for _, v := range values {
		writeField(d, v)
	}
	_, _ = d.WriteString("]")
}
