// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import "github.com/trailhook/trailhook/internal/auth"

// Fallback is the strategy used to decide when the policy evaluator is
// unreachable. It is injected into the PolicyClient so alternative
// policies are swappable and independently testable. Fallback decisions
// are tagged ReasonPolicyUnreachableFallback and never cached.
type Fallback func(subject *auth.Subject, action Action) Outcome

// RoleFallback allows when the subject's permission set contains the
// action and denies otherwise. This is the conservative default: it
// grants nothing the local role evaluation would not grant, and denies
// everything an outage leaves inconclusive.
func RoleFallback(subject *auth.Subject, action Action) Outcome {
	if EvaluateRoles(subject, action) == LocalAllow {
		return Allow
	}
	return Deny
}

// DenyAllFallback denies everything while the evaluator is unreachable.
func DenyAllFallback(*auth.Subject, Action) Outcome {
	return Deny
}

// FallbackByName returns the named strategy, defaulting to RoleFallback.
func FallbackByName(name string) Fallback {
	if name == "deny" {
		return DenyAllFallback
	}
	return RoleFallback
}
