// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/trailhook/trailhook/internal/auth"
	"github.com/trailhook/trailhook/internal/logging"
)

// ErrorKind classifies an authorization error.
type ErrorKind string

const (
	// KindMissingCredential: no token on a route requiring one.
	KindMissingCredential ErrorKind = "missing-credential"

	// KindInvalidCredential: malformed, unsigned, wrong issuer, or
	// unknown permission claims.
	KindInvalidCredential ErrorKind = "invalid-credential"

	// KindExpiredCredential: token expiry in the past.
	KindExpiredCredential ErrorKind = "expired-credential"

	// KindUnroutableRequest: no route family matched and the route is
	// not public. A configuration defect, denied and logged at error
	// severity.
	KindUnroutableRequest ErrorKind = "unroutable-request"
)

// AuthError is a terminal authorization failure. Like a Deny decision it
// rejects the request; unlike one it carries an error classification the
// route layer maps onto 401/403.
type AuthError struct {
	Kind ErrorKind
	err  error
}

// Error implements error.
func (e *AuthError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.err)
	}
	return string(e.Kind)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.err
}

// Status returns the HTTP status the error maps onto.
func (e *AuthError) Status() int {
	switch e.Kind {
	case KindMissingCredential, KindInvalidCredential, KindExpiredCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Engine is the per-request authorization orchestrator. It sequences
// credential validation, permission mapping, local role evaluation, and
// attribute-aware policy evaluation, audits every outcome, and returns a
// terminal Allow/Deny — never a partial state.
type Engine struct {
	validator *auth.Validator
	mapper    *Mapper
	policy    *PolicyClient
	audit     *AuditEmitter
}

// NewEngine creates an authorization engine. All collaborators are
// required; the cache and breaker shared state live inside the policy
// client.
func NewEngine(validator *auth.Validator, mapper *Mapper, policyClient *PolicyClient, audit *AuditEmitter) (*Engine, error) {
	if validator == nil {
		return nil, errors.New("credential validator is required")
	}
	if mapper == nil {
		return nil, errors.New("permission mapper is required")
	}
	if policyClient == nil {
		return nil, errors.New("policy client is required")
	}
	return &Engine{
		validator: validator,
		mapper:    mapper,
		policy:    policyClient,
		audit:     audit,
	}, nil
}

// Authorize decides whether the caller identified by rawCredential may
// perform the request described by method, path, and resource.
//
// Returns a Decision for requests that reached a verdict, or an
// *AuthError for authentication and mapping failures. Both are terminal
// denials to the route layer except an Allow decision. resource may be
// nil, in which case the descriptor is derived from the path.
func (e *Engine) Authorize(ctx context.Context, rawCredential, method, path string, resource *ResourceDescriptor) (*Decision, error) {
	start := time.Now()

	route, err := e.mapper.Map(method, path)
	if err != nil {
		// An unmapped protected route is a configuration defect.
		logger := logging.Ctx(ctx)
		logger.Error().
			Str("method", method).
			Str("path", path).
			Msg("Request matched no route family and no public route")
		return nil, e.fail(ctx, KindUnroutableRequest, err, method, path, start)
	}

	if route.Public {
		decision := &Decision{Outcome: Allow, Reason: ReasonPublicRoute, Latency: time.Since(start)}
		e.recordOutcome(ctx, "", method, path, "", nil, decision)
		return decision, nil
	}

	subject, err := e.validator.Validate(rawCredential)
	if err != nil {
		return nil, e.fail(ctx, classifyCredentialError(err), err, method, path, start)
	}

	if resource == nil {
		resource = e.mapper.ResourceFromPath(path)
	}

	var decision *Decision
	if EvaluateRoles(subject, route.Action) == LocalAllow {
		decision = &Decision{Outcome: Allow, Reason: ReasonPermissionMatch}
	} else {
		decision = e.policy.Decide(ctx, subject, route.Action, resource)
	}

	// Cached decisions are shared; return a copy carrying this
	// request's latency.
	final := *decision
	final.Latency = time.Since(start)

	e.recordOutcome(ctx, subject.ID, method, path, route.Action, resource, &final)
	return &final, nil
}

// fail audits and returns a terminal AuthError.
func (e *Engine) fail(ctx context.Context, kind ErrorKind, err error, method, path string, start time.Time) *AuthError {
	authErr := &AuthError{Kind: kind, err: err}
	recordAuthzError(string(kind))

	e.audit.Emit(ctx, &AuditRecord{
		SubjectID: "anonymous",
		Method:    method,
		Path:      path,
		Outcome:   Deny,
		Error:     string(kind),
		Latency:   time.Since(start),
	})

	return authErr
}

// recordOutcome audits and counts a terminal decision.
func (e *Engine) recordOutcome(ctx context.Context, subjectID, method, path string, action Action, resource *ResourceDescriptor, decision *Decision) {
	recordDecision(decision.Outcome, decision.Reason, decision.Latency)

	record := &AuditRecord{
		SubjectID: subjectID,
		Action:    action,
		Method:    method,
		Path:      path,
		Outcome:   decision.Outcome,
		Reason:    decision.Reason,
		Latency:   decision.Latency,
	}
	if subjectID == "" {
		record.SubjectID = "anonymous"
	}
	if resource != nil {
		record.ResourceType = resource.Type
		record.ResourceID = resource.ID
	}

	e.audit.Emit(ctx, record)
}

// classifyCredentialError maps validator errors onto error kinds.
func classifyCredentialError(err error) ErrorKind {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, auth.ErrExpiredCredential):
		return KindExpiredCredential
	default:
		return KindInvalidCredential
	}
}
