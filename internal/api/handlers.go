// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package api

import (
	"net/http"
	"time"

	"github.com/trailhook/trailhook/internal/authz"
)

// Handler serves the decision layer's own endpoints: health, policy
// introspection, and the placeholder resource surface.
type Handler struct {
	mapper *authz.Mapper
	policy *authz.PolicyClient
	audit  *authz.AuditEmitter
	start  time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(mapper *authz.Mapper, policyClient *authz.PolicyClient, audit *authz.AuditEmitter) *Handler {
	return &Handler{
		mapper: mapper,
		policy: policyClient,
		audit:  audit,
		start:  time.Now(),
	}
}

// healthResponse is the /healthz payload.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	// BreakerState reports the policy evaluator circuit: closed is
	// healthy, open means decisions run on the fallback rule. An open
	// circuit degrades the service but does not fail the check.
	BreakerState string `json:"breaker_state"`

	CacheEntries int   `json:"cache_entries"`
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`

	AuditPending int `json:"audit_pending"`
}

// Health reports liveness plus the decision layer's degraded-mode
// signals.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.policy.CacheStats()

	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.start).Seconds()),
		BreakerState:  h.policy.BreakerState(),
		CacheEntries:  h.policy.CacheLen(),
		CacheHits:     hits,
		CacheMisses:   misses,
		AuditPending:  h.audit.Pending(),
	}
	if resp.BreakerState != "closed" {
		resp.Status = "degraded"
	}

	writeSuccess(w, r, http.StatusOK, resp)
}

// policyResponse is the /api/v1/authz/policy payload. It exposes the
// static authorization surface so operators can verify route coverage
// without reading source.
type policyResponse struct {
	Actions      []authz.Action       `json:"actions"`
	Routes       []authz.RouteMapping `json:"routes"`
	PublicRoutes []string             `json:"public_routes"`

	// Revision is the policy bundle revision last reported by the
	// evaluator, empty when none has been seen.
	Revision string `json:"revision,omitempty"`
}

// Policy serves the authorization introspection document: the permission
// taxonomy, the route-to-permission table, and the public route list.
func (h *Handler) Policy(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, http.StatusOK, policyResponse{
		Actions:      authz.Actions(),
		Routes:       h.mapper.Mappings(),
		PublicRoutes: h.mapper.PublicRoutes(),
		Revision:     h.policy.Revision(),
	})
}

// NotImplemented is the placeholder for resource routes. The
// authorization middleware has already run by the time it is reached,
// so hitting it means the request was allowed.
func (h *Handler) NotImplemented(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotImplemented, "not-implemented", "resource endpoints are not available in this build")
}
