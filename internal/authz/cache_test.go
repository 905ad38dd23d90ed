// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"sync"
	"testing"
	"time"

	"github.com/trailhook/trailhook/internal/auth"
)

func allowDecision(reason Reason) *Decision {
	return &Decision{Outcome: Allow, Reason: reason}
}

func TestDecisionCache_BasicOperations(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(3)

	cache.Put(1, allowDecision(ReasonPermissionMatch), time.Minute)
	cache.Put(2, allowDecision(ReasonOwnershipMatch), time.Minute)

	decision, found := cache.Get(1)
	if !found {
		t.Fatal("Expected key 1 to be present")
	}
	if decision.Reason != ReasonPermissionMatch {
		t.Errorf("Expected reason %s, got %s", ReasonPermissionMatch, decision.Reason)
	}

	if _, found := cache.Get(99); found {
		t.Error("Expected key 99 to be absent")
	}
	if cache.Len() != 2 {
		t.Errorf("Expected len 2, got %d", cache.Len())
	}

	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestDecisionCache_LRUEviction(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(3)

	cache.Put(1, allowDecision(ReasonPermissionMatch), time.Minute)
	cache.Put(2, allowDecision(ReasonPermissionMatch), time.Minute)
	cache.Put(3, allowDecision(ReasonPermissionMatch), time.Minute)

	// Touch 1 so 2 becomes the least recently used.
	cache.Get(1)

	cache.Put(4, allowDecision(ReasonPermissionMatch), time.Minute)

	if _, found := cache.Get(2); found {
		t.Error("Expected key 2 to be evicted")
	}
	for _, key := range []uint64{1, 3, 4} {
		if _, found := cache.Get(key); !found {
			t.Errorf("Expected key %d to be present", key)
		}
	}
}

func TestDecisionCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(10)
	cache.Put(1, allowDecision(ReasonPermissionMatch), 20*time.Millisecond)

	if _, found := cache.Get(1); !found {
		t.Fatal("Expected entry before expiry")
	}

	time.Sleep(30 * time.Millisecond)

	if _, found := cache.Get(1); found {
		t.Error("Expected entry to expire")
	}
	if cache.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, len %d", cache.Len())
	}
}

func TestDecisionCache_OverwriteRefreshesTTL(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(10)
	cache.Put(1, allowDecision(ReasonPermissionMatch), 20*time.Millisecond)
	cache.Put(1, allowDecision(ReasonOwnershipMatch), time.Minute)

	time.Sleep(30 * time.Millisecond)

	decision, found := cache.Get(1)
	if !found {
		t.Fatal("Expected refreshed entry to survive the original TTL")
	}
	if decision.Reason != ReasonOwnershipMatch {
		t.Errorf("Expected overwritten decision, got reason %s", decision.Reason)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected a single entry, got %d", cache.Len())
	}
}

func TestDecisionCache_NonPositiveTTLIgnored(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(10)
	cache.Put(1, allowDecision(ReasonPermissionMatch), 0)

	if cache.Len() != 0 {
		t.Error("Expected zero-TTL put to be ignored")
	}
}

func TestDecisionCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := NewDecisionCache(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for j := uint64(0); j < 200; j++ {
				key := base*1000 + j%50
				cache.Put(key, allowDecision(ReasonPermissionMatch), time.Minute)
				cache.Get(key)
			}
		}(uint64(i))
	}
	wg.Wait()

	if cache.Len() > 100 {
		t.Errorf("Cache exceeded capacity: %d", cache.Len())
	}
}

func TestCacheKey_Properties(t *testing.T) {
	t.Parallel()

	subject := &auth.Subject{ID: "user-1", Roles: []string{"editor", "viewer"}}
	resource := &ResourceDescriptor{Type: ResourceEvent, ID: "ev-1", OwnerID: "user-1"}

	base := CacheKey(subject, ActionEventRead, resource, "rev-1")

	if got := CacheKey(subject, ActionEventRead, resource, "rev-1"); got != base {
		t.Error("Expected identical inputs to produce identical keys")
	}

	// Role order must not matter.
	reordered := &auth.Subject{ID: "user-1", Roles: []string{"viewer", "editor"}}
	if got := CacheKey(reordered, ActionEventRead, resource, "rev-1"); got != base {
		t.Error("Expected role order to be irrelevant")
	}

	variants := map[string]uint64{
		"subject":      CacheKey(&auth.Subject{ID: "user-2", Roles: subject.Roles}, ActionEventRead, resource, "rev-1"),
		"action":       CacheKey(subject, ActionEventDelete, resource, "rev-1"),
		"resource":     CacheKey(subject, ActionEventRead, &ResourceDescriptor{Type: ResourceEvent, ID: "ev-2"}, "rev-1"),
		"revision":     CacheKey(subject, ActionEventRead, resource, "rev-2"),
		"nil resource": CacheKey(subject, ActionEventRead, nil, "rev-1"),
	}
	for name, key := range variants {
		if key == base {
			t.Errorf("Expected %s change to alter the key", name)
		}
	}

	// Field boundaries are length-prefixed, so shifting a character
	// between adjacent fields changes the key.
	a := CacheKey(&auth.Subject{ID: "ab"}, Action("c"), nil, "")
	b := CacheKey(&auth.Subject{ID: "a"}, Action("bc"), nil, "")
	if a == b {
		t.Error("Expected field boundaries to be unambiguous")
	}
}
