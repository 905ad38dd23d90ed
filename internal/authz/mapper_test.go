// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"errors"
	"net/http"
	"testing"
)

func TestMapper_PublicRoutes(t *testing.T) {
	t.Parallel()

	m := NewMapper()

	for _, path := range []string{"/healthz", "/metrics", "/api/v1/authz/policy", "/graphiql"} {
		route, err := m.Map(http.MethodGet, path)
		if err != nil {
			t.Errorf("Map(GET %s): unexpected error %v", path, err)
			continue
		}
		if !route.Public {
			t.Errorf("Map(GET %s): expected public route", path)
		}
	}
}

func TestMapper_ExtraPublicRoutes(t *testing.T) {
	t.Parallel()

	m := NewMapper("/debug/pprof")

	route, err := m.Map(http.MethodGet, "/debug/pprof")
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if !route.Public {
		t.Error("Expected extra public route to be public")
	}
}

func TestMapper_ResourceRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		path   string
		action Action
	}{
		{http.MethodGet, "/api/v1/events", ActionEventRead},
		{http.MethodHead, "/api/v1/events", ActionEventRead},
		{http.MethodGet, "/api/v1/events/ev-123", ActionEventRead},
		{http.MethodPost, "/api/v1/events", ActionEventCreate},
		{http.MethodPut, "/api/v1/events/ev-123", ActionEventUpdate},
		{http.MethodPatch, "/api/v1/events/ev-123", ActionEventUpdate},
		{http.MethodDelete, "/api/v1/events/ev-123", ActionEventDelete},
		{http.MethodGet, "/api/v1/receivers", ActionReceiverRead},
		{http.MethodPost, "/api/v1/receivers", ActionReceiverCreate},
		{http.MethodDelete, "/api/v1/receivers/r-9", ActionReceiverDelete},
		{http.MethodGet, "/api/v1/groups/g-1/members", ActionGroupRead},
		{http.MethodPut, "/api/v1/groups/g-1", ActionGroupUpdate},
		// Trailing slashes normalize away.
		{http.MethodGet, "/api/v1/events/", ActionEventRead},
	}

	m := NewMapper()

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()

			route, err := m.Map(tt.method, tt.path)
			if err != nil {
				t.Fatalf("Map: %v", err)
			}
			if route.Public {
				t.Fatal("Expected protected route")
			}
			if route.Action != tt.action {
				t.Errorf("Expected action %s, got %s", tt.action, route.Action)
			}
		})
	}
}

func TestMapper_UnroutableRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"unknown path", http.MethodGet, "/internal/debug"},
		{"root", http.MethodGet, "/"},
		{"prefix but wrong segment", http.MethodGet, "/api/v1/eventstream"},
		{"unknown method", "TRACE", "/api/v1/events"},
		{"connect", http.MethodConnect, "/api/v1/events"},
	}

	m := NewMapper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := m.Map(tt.method, tt.path)
			if !errors.Is(err, ErrUnroutableRequest) {
				t.Errorf("Expected ErrUnroutableRequest, got %v", err)
			}
		})
	}
}

func TestMapper_ResourceFromPath(t *testing.T) {
	t.Parallel()

	m := NewMapper()

	tests := []struct {
		path     string
		resource ResourceType
		id       string
	}{
		{"/api/v1/events", ResourceEvent, ""},
		{"/api/v1/events/ev-123", ResourceEvent, "ev-123"},
		{"/api/v1/events/ev-123/provenance", ResourceEvent, "ev-123"},
		{"/api/v1/groups/g-1", ResourceGroup, "g-1"},
		{"/api/v1/receivers/r-2/", ResourceReceiver, "r-2"},
	}

	for _, tt := range tests {
		desc := m.ResourceFromPath(tt.path)
		if desc == nil {
			t.Errorf("ResourceFromPath(%s): expected descriptor", tt.path)
			continue
		}
		if desc.Type != tt.resource || desc.ID != tt.id {
			t.Errorf("ResourceFromPath(%s) = %s/%q, expected %s/%q",
				tt.path, desc.Type, desc.ID, tt.resource, tt.id)
		}
	}

	if desc := m.ResourceFromPath("/internal/debug"); desc != nil {
		t.Errorf("Expected nil descriptor for unknown path, got %+v", desc)
	}
}

func TestMapper_Mappings(t *testing.T) {
	t.Parallel()

	mappings := NewMapper().Mappings()
	if len(mappings) != 3 {
		t.Fatalf("Expected 3 route families, got %d", len(mappings))
	}

	first := mappings[0]
	if first.Prefix != "/api/v1/events" || first.Resource != ResourceEvent {
		t.Errorf("Unexpected first mapping: %+v", first)
	}
	if first.Methods[http.MethodPost] != ActionEventCreate {
		t.Errorf("Expected POST to map to %s, got %s", ActionEventCreate, first.Methods[http.MethodPost])
	}
}
