// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/trailhook/trailhook/internal/auth"
	"github.com/trailhook/trailhook/internal/logging"
	"github.com/trailhook/trailhook/internal/policy"
)

// PolicyClientConfig tunes the policy client.
type PolicyClientConfig struct {
	// DefaultTTL is the cache lifetime for decisions whose evaluator
	// response suggested none.
	DefaultTTL time.Duration

	// MaxTTL clamps evaluator-suggested TTLs.
	MaxTTL time.Duration

	// RemoteTimeout bounds a single evaluator call.
	RemoteTimeout time.Duration
}

// PolicyClient orchestrates attribute-aware policy decisions: cache
// lookup, then circuit-breaker-gated remote evaluation, then the
// fallback rule when the evaluator is unreachable.
//
// The cache and breaker are shared process-wide; a PolicyClient itself
// holds no per-request state.
type PolicyClient struct {
	cache     *DecisionCache
	breaker   *Breaker
	evaluator policy.Evaluator
	fallback  Fallback
	cfg       PolicyClientConfig

	// revision is the policy bundle revision last reported by the
	// evaluator. It is folded into cache keys so a bundle rollout
	// naturally misses entries cached under the previous bundle.
	revision atomic.Value // string
}

// NewPolicyClient creates a policy client. evaluator may be nil, in
// which case every decision that reaches the client is resolved by the
// fallback rule.
func NewPolicyClient(cache *DecisionCache, breaker *Breaker, evaluator policy.Evaluator, fallback Fallback, cfg PolicyClientConfig) *PolicyClient {
	if cache == nil {
		cache = NewDecisionCache(1024)
	}
	if breaker == nil {
		breaker = NewBreaker(DefaultBreakerConfig())
	}
	if fallback == nil {
		fallback = RoleFallback
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 10 * time.Second
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 250 * time.Millisecond
	}

	pc := &PolicyClient{
		cache:     cache,
		breaker:   breaker,
		evaluator: evaluator,
		fallback:  fallback,
		cfg:       cfg,
	}
	pc.revision.Store("")
	return pc
}

// Decide returns a decision for the given subject, action, and resource.
// It never returns an error: evaluator unavailability is absorbed by the
// fallback rule.
func (pc *PolicyClient) Decide(ctx context.Context, subject *auth.Subject, action Action, resource *ResourceDescriptor) *Decision {
	key := CacheKey(subject, action, resource, pc.Revision())
	if cached, ok := pc.cache.Get(key); ok {
		return cached
	}

	if pc.evaluator == nil {
		return pc.fallbackDecision(subject, action)
	}

	result, err := pc.evaluate(ctx, subject, action, resource)
	if err != nil {
		if !IsCircuitOpen(err) {
			logger := logging.Ctx(ctx)
			logger.Warn().
				Err(err).
				Str("subject", subject.ID).
				Str("action", string(action)).
				Msg("Policy evaluation failed, using fallback")
		}
		return pc.fallbackDecision(subject, action)
	}

	decision := decisionFromResult(result)

	if result.Revision != "" {
		pc.revision.Store(result.Revision)
	}

	ttl := result.TTL()
	if ttl <= 0 {
		ttl = pc.cfg.DefaultTTL
	}
	if ttl > pc.cfg.MaxTTL {
		ttl = pc.cfg.MaxTTL
	}

	// Store under the current revision so followers compute the same key.
	pc.cache.Put(CacheKey(subject, action, resource, pc.Revision()), decision, ttl)

	return decision
}

// evaluate issues one breaker-gated remote evaluation. The call is
// detached from the request context: if the caller disconnects while the
// evaluation is in flight, the call still runs to completion inside its
// own timeout so its outcome updates the shared breaker state and cache.
func (pc *PolicyClient) evaluate(ctx context.Context, subject *auth.Subject, action Action, resource *ResourceDescriptor) (*policy.Result, error) {
	input := &policy.Input{
		SubjectID:   subject.ID,
		Roles:       subject.Roles,
		Permissions: subject.Permissions,
		Action:      string(action),
	}
	if resource != nil {
		input.ResourceType = string(resource.Type)
		input.ResourceID = resource.ID
		input.OwnerID = resource.OwnerID
		input.GroupID = resource.GroupID
		input.MemberIDs = resource.MemberIDs
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pc.cfg.RemoteTimeout)
	defer cancel()

	start := time.Now()
	result, err := pc.breaker.Execute(func() (*policy.Result, error) {
		return pc.evaluator.Evaluate(callCtx, input)
	})
	observeRemoteEvaluation(time.Since(start), err)

	return result, err
}

// fallbackDecision applies the injected fallback rule. The result is
// never cached: freezing a conservative verdict past the end of an
// outage would serve stale decisions after the evaluator recovers.
func (pc *PolicyClient) fallbackDecision(subject *auth.Subject, action Action) *Decision {
	return &Decision{
		Outcome: pc.fallback(subject, action),
		Reason:  ReasonPolicyUnreachableFallback,
	}
}

// Revision returns the policy bundle revision last reported by the
// evaluator, or empty when none has been seen.
func (pc *PolicyClient) Revision() string {
	revision, _ := pc.revision.Load().(string)
	return revision
}

// BreakerState returns the circuit state as a string for health
// reporting.
func (pc *PolicyClient) BreakerState() string {
	return stateToString(pc.breaker.State())
}

// CacheLen returns the current decision cache occupancy.
func (pc *PolicyClient) CacheLen() int {
	return pc.cache.Len()
}

// CacheStats returns cumulative cache hit and miss counts.
func (pc *PolicyClient) CacheStats() (hits, misses int64) {
	return pc.cache.Stats()
}

// decisionFromResult maps an evaluator verdict onto a Decision.
func decisionFromResult(result *policy.Result) *Decision {
	if !result.Allow {
		return &Decision{Outcome: Deny, Reason: ReasonNoMatchingRule}
	}

	reason := ReasonPermissionMatch
	switch result.Reason {
	case "ownership":
		reason = ReasonOwnershipMatch
	case "membership", "group-membership":
		reason = ReasonGroupMembershipMatch
	}
	return &Decision{Outcome: Allow, Reason: reason}
}
