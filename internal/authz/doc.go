// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

/*
Package authz implements Trailhook's request-time authorization engine.

Every inbound request passes through the Engine, which decides whether the
authenticated caller may perform the requested action on the requested
resource:

 1. The permission mapper classifies the route: public routes short-circuit
    to Allow, unmapped routes fail closed.
 2. The credential validator (package auth) turns the bearer token into a
    Subject.
 3. The local role evaluator grants a fast Allow when the Subject's
    permission set already contains the required action.
 4. Otherwise the policy client consults the decision cache and, on a miss,
    the external policy evaluator behind a circuit breaker. When the
    evaluator is unreachable a conservative fallback rule decides, and that
    decision is never cached.
 5. Every decision is recorded by the audit emitter.

The decision cache and circuit breaker are the only mutable shared state;
both are internally synchronized and dependency-injected so tests can
construct isolated instances. Each process keeps its own cache and breaker;
staleness across instances is bounded by TTL, not coordination.

The caller only ever observes Allow or Deny. Evaluator outages are absorbed
by the fallback path and surface only in audit records and metrics.
*/
package authz
