// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import "time"

// Outcome is the terminal verdict of an authorization decision.
type Outcome string

const (
	// Allow admits the request.
	Allow Outcome = "allow"

	// Deny rejects the request.
	Deny Outcome = "deny"
)

// Reason explains how a decision was reached.
type Reason string

const (
	// ReasonPublicRoute: the route requires no authorization.
	ReasonPublicRoute Reason = "public-route"

	// ReasonPermissionMatch: the subject's permission set contains the
	// required action.
	ReasonPermissionMatch Reason = "permission-match"

	// ReasonOwnershipMatch: the policy evaluator allowed based on
	// resource ownership.
	ReasonOwnershipMatch Reason = "ownership-match"

	// ReasonGroupMembershipMatch: the policy evaluator allowed based on
	// group membership.
	ReasonGroupMembershipMatch Reason = "group-membership-match"

	// ReasonNoMatchingRule: no rule granted access.
	ReasonNoMatchingRule Reason = "no-matching-rule"

	// ReasonPolicyUnreachableFallback: the evaluator was unreachable and
	// the conservative local fallback rule decided.
	ReasonPolicyUnreachableFallback Reason = "policy-unreachable-fallback"
)

// Decision is the immutable outcome of an authorization check.
type Decision struct {
	// Outcome is Allow or Deny; there is no partial terminal state.
	Outcome Outcome `json:"outcome"`

	// Reason explains the outcome.
	Reason Reason `json:"reason"`

	// Latency is how long the check took, for observability only.
	Latency time.Duration `json:"latency_ns"`
}

// Allowed reports whether the decision admits the request.
func (d *Decision) Allowed() bool {
	return d != nil && d.Outcome == Allow
}

// ResourceDescriptor carries the minimal resource attributes needed for
// ownership- and membership-aware decisions. It is supplied by the route
// layer and read-only to the engine.
type ResourceDescriptor struct {
	// Type is the resource family.
	Type ResourceType `json:"type"`

	// ID identifies the resource. Empty for collection-level actions.
	ID string `json:"id,omitempty"`

	// OwnerID identifies the resource owner, when known.
	OwnerID string `json:"owner_id,omitempty"`

	// GroupID identifies the containing group, when known.
	GroupID string `json:"group_id,omitempty"`

	// MemberIDs lists group member subjects, for membership checks.
	MemberIDs []string `json:"member_ids,omitempty"`
}
