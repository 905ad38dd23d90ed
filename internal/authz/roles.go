// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import "github.com/trailhook/trailhook/internal/auth"

// Verdict is the local role evaluator's answer. It deliberately has no
// Deny: a subject whose permission set lacks the action may still be
// allowed by an attribute-aware policy rule, so the engine escalates
// rather than denying on role membership alone.
type Verdict int

const (
	// Inconclusive means the permission set does not contain the action;
	// the decision escalates to the policy client.
	Inconclusive Verdict = iota

	// LocalAllow means the permission set contains the action.
	LocalAllow
)

// EvaluateRoles checks whether the subject's role-derived permission set
// satisfies the required action. It never consults resource attributes
// and performs no I/O.
func EvaluateRoles(subject *auth.Subject, action Action) Verdict {
	if subject == nil {
		return Inconclusive
	}
	if subject.HasPermission(string(action)) {
		return LocalAllow
	}
	return Inconclusive
}
