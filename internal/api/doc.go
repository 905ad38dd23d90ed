// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package api provides Trailhook's HTTP surface: the Chi router, the
// authorization middleware that guards every resource route, and the
// public health, metrics, and policy introspection endpoints.
//
// The package owns no domain logic. Every protected request passes
// through the authorization engine before reaching a resource handler,
// and the handler set for resources is injected so the decision layer
// can be exercised without one.
package api
