// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package auth validates bearer credentials and produces the Subject that
// the authorization engine evaluates. Credential issuance is external;
// this package only consumes the claim shapes the token service emits.
package auth

import (
	"context"
	"errors"
)

// Standard authentication errors.
var (
	// ErrMissingCredential indicates no token was supplied on a route
	// that requires one.
	ErrMissingCredential = errors.New("no credential provided")

	// ErrInvalidCredential indicates the token was malformed, carried an
	// invalid signature, came from the wrong issuer, or declared unknown
	// permission claims.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrExpiredCredential indicates the token's expiry is in the past.
	ErrExpiredCredential = errors.New("credential expired")
)

// Subject is the authenticated caller: identity plus role and permission
// claims extracted from a validated credential. It is constructed once
// per request and must not be mutated afterwards.
type Subject struct {
	// ID is the opaque subject identifier (the 'sub' claim).
	ID string `json:"id"`

	// Roles are the subject's role names. Unordered, unique.
	Roles []string `json:"roles,omitempty"`

	// Permissions are the subject's permission strings, already
	// validated against the permission taxonomy. Unordered, unique.
	Permissions []string `json:"permissions,omitempty"`
}

// HasRole checks if the subject has a specific role.
func (s *Subject) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the subject's permission set contains the
// given permission string.
func (s *Subject) HasPermission(permission string) bool {
	if permission == "" {
		return false
	}
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// subjectKey is the context key for the authenticated subject.
type contextKey string

const subjectKey contextKey = "auth_subject"

// ContextWithSubject returns a new context carrying the subject.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext retrieves the authenticated subject from context.
// Returns nil if the request was not authenticated.
func SubjectFromContext(ctx context.Context) *Subject {
	if s, ok := ctx.Value(subjectKey).(*Subject); ok {
		return s
	}
	return nil
}
