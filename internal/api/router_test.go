// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/trailhook/trailhook/internal/auth"
	"github.com/trailhook/trailhook/internal/authz"
	"github.com/trailhook/trailhook/internal/policy"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// scriptedEvaluator returns a fixed verdict.
type scriptedEvaluator struct {
	result *policy.Result
}

func (s *scriptedEvaluator) Evaluate(context.Context, *policy.Input) (*policy.Result, error) {
	return s.result, nil
}

func newTestRouter(t *testing.T, evaluator policy.Evaluator, resources http.Handler) http.Handler {
	t.Helper()

	validator, err := auth.NewValidator(testSecret, "trailhook", authz.ValidPermission)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	mapper := authz.NewMapper()
	policyClient := authz.NewPolicyClient(nil, nil, evaluator, authz.RoleFallback, authz.PolicyClientConfig{
		DefaultTTL:    time.Second,
		MaxTTL:        time.Minute,
		RemoteTimeout: time.Second,
	})
	audit := authz.NewAuditEmitter(authz.AuditEmitterConfig{Enabled: true, BufferSize: 100})

	engine, err := authz.NewEngine(validator, mapper, policyClient, audit)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	handler := NewHandler(mapper, policyClient, audit)
	middleware := NewMiddleware(MiddlewareConfig{})
	return NewRouter(handler, middleware, engine, resources).Setup()
}

func issueToken(t *testing.T, subject string, permissions []string) string {
	t.Helper()

	claims := &auth.Claims{
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "trailhook",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *APIResponse {
	t.Helper()

	resp := &APIResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestRouter_HealthIsPublic(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("Expected success envelope")
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Marshal data: %v", err)
	}
	var health healthResponse
	if err := json.Unmarshal(data, &health); err != nil {
		t.Fatalf("Decode health payload: %v", err)
	}
	if health.Status != "ok" || health.BreakerState != "closed" {
		t.Errorf("Unexpected health payload: %+v", health)
	}
}

func TestRouter_MetricsIsPublic(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/metrics", "")

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestRouter_PolicyIntrospectionIsPublic(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/authz/policy", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Marshal data: %v", err)
	}
	var doc policyResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Decode policy payload: %v", err)
	}
	if len(doc.Actions) != 12 {
		t.Errorf("Expected the full action taxonomy, got %d actions", len(doc.Actions))
	}
	if len(doc.Routes) != 3 {
		t.Errorf("Expected 3 route families, got %d", len(doc.Routes))
	}
}

func TestRouter_ProtectedRouteRequiresCredential(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/events", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error == nil {
		t.Fatal("Expected error envelope")
	}
	if resp.Error.Code != "missing-credential" {
		t.Errorf("Expected missing-credential, got %q", resp.Error.Code)
	}
}

func TestRouter_NonBearerHeaderIsMissingCredential(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRouter_InvalidCredential(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/events", "not.a.token")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != "invalid-credential" {
		t.Errorf("Expected invalid-credential error, got %+v", resp.Error)
	}
}

func TestRouter_AllowedRequestReachesResources(t *testing.T) {
	t.Parallel()

	reached := false
	resources := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	router := newTestRouter(t, nil, resources)
	token := issueToken(t, "user-1", []string{"event:read"})
	rec := doRequest(t, router, http.MethodGet, "/api/v1/events", token)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !reached {
		t.Error("Expected the resource handler to run")
	}
}

func TestRouter_DeniedRequestNeverReachesResources(t *testing.T) {
	t.Parallel()

	reached := false
	resources := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
	})

	router := newTestRouter(t, &scriptedEvaluator{result: &policy.Result{Allow: false}}, resources)

	// The subject lacks delete, and the evaluator denies.
	token := issueToken(t, "user-1", []string{"event:read"})
	rec := doRequest(t, router, http.MethodDelete, "/api/v1/events/ev-1", token)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if reached {
		t.Error("Expected the resource handler to be skipped")
	}
	if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != "no-matching-rule" {
		t.Errorf("Expected no-matching-rule error, got %+v", resp.Error)
	}
}

func TestRouter_UnknownMethodFailsClosed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	token := issueToken(t, "user-1", []string{"event:read"})
	rec := doRequest(t, router, "TRACE", "/api/v1/events", token)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Error == nil || resp.Error.Code != "unroutable-request" {
		t.Errorf("Expected unroutable-request error, got %+v", resp.Error)
	}
}

func TestRouter_DefaultResourceHandlerIs501(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	token := issueToken(t, "user-1", []string{"receiver:read"})
	rec := doRequest(t, router, http.MethodGet, "/api/v1/receivers", token)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected 501 placeholder, got %d", rec.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, nil, nil)
	rec := doRequest(t, router, http.MethodGet, "/healthz", "")

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected an X-Request-ID response header")
	}
}
