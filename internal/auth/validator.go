// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims Trailhook's token service emits.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens and extracts Subjects. Verification is
// pure computation against a signing secret configured at process start;
// no network or storage access is involved.
type Validator struct {
	secret []byte
	issuer string

	// knownPermission reports whether a permission string belongs to the
	// fixed taxonomy. Tokens declaring unknown permissions fail
	// validation rather than being silently accepted.
	knownPermission func(string) bool
}

// NewValidator creates a credential validator.
//
// Parameters:
//   - secret: HMAC-SHA256 signing secret (minimum 32 bytes)
//   - issuer: expected 'iss' claim; empty accepts any issuer
//   - knownPermission: taxonomy membership check for permission claims
func NewValidator(secret []byte, issuer string, knownPermission func(string) bool) (*Validator, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes, got %d", len(secret))
	}
	if knownPermission == nil {
		return nil, errors.New("permission taxonomy check is required")
	}
	return &Validator{
		secret:          secret,
		issuer:          issuer,
		knownPermission: knownPermission,
	}, nil
}

// Validate verifies a raw bearer token and returns the Subject it
// describes.
//
// Returns:
//   - ErrMissingCredential if the token is empty
//   - ErrExpiredCredential if the token's expiry is in the past
//   - ErrInvalidCredential for any other verification failure, including
//     wrong signature, wrong issuer, unexpected signing algorithm, and
//     permission claims outside the taxonomy
func (v *Validator) Validate(rawToken string) (*Subject, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrMissingCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC to prevent algorithm confusion.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s", ErrExpiredCredential, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: issuer %q not accepted", ErrInvalidCredential, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidCredential)
	}

	permissions, err := v.validatePermissions(claims.Permissions)
	if err != nil {
		return nil, err
	}

	return &Subject{
		ID:          claims.Subject,
		Roles:       dedupe(claims.Roles),
		Permissions: permissions,
	}, nil
}

// validatePermissions checks every permission claim against the taxonomy
// and deduplicates the set.
func (v *Validator) validatePermissions(permissions []string) ([]string, error) {
	for _, p := range permissions {
		if !v.knownPermission(p) {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidCredential, p)
		}
	}
	return dedupe(permissions), nil
}

// dedupe returns a copy of values with duplicates removed, preserving
// first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
