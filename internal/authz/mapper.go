// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnroutableRequest indicates a request that matched no route family
// and no public route. It is treated as a deny and logged at error
// severity: an unmapped protected route is a configuration defect, never
// a silent allow.
var ErrUnroutableRequest = errors.New("unroutable request")

// Route is the mapper's classification of a request.
type Route struct {
	// Public is true for routes that bypass authentication entirely.
	Public bool

	// Action is the permission required for the route. Empty when
	// Public is true.
	Action Action

	// Resource is the resource family the route addresses. Empty when
	// Public is true.
	Resource ResourceType
}

// publicRoutes lists the exact paths that require no credential: health
// check, metrics, the policy introspection endpoint, and the interactive
// API explorer. Everything else fails closed.
var publicRoutes = map[string]struct{}{
	"/healthz":             {},
	"/metrics":             {},
	"/api/v1/authz/policy": {},
	"/graphiql":            {},
}

// resourcePrefixes maps route-family prefixes to resource types. The
// table must be reviewed whenever a route family is added; the mapper
// denies anything it does not list.
var resourcePrefixes = []struct {
	prefix   string
	resource ResourceType
}{
	{"/api/v1/events", ResourceEvent},
	{"/api/v1/receivers", ResourceReceiver},
	{"/api/v1/groups", ResourceGroup},
}

// Mapper derives the required permission for a request from its HTTP
// method and path. It is a pure function over a static table configured
// at process start.
type Mapper struct {
	public map[string]struct{}
}

// NewMapper creates a permission mapper. extraPublic adds deployment
// specific public paths to the built-in list.
func NewMapper(extraPublic ...string) *Mapper {
	public := make(map[string]struct{}, len(publicRoutes)+len(extraPublic))
	for path := range publicRoutes {
		public[path] = struct{}{}
	}
	for _, path := range extraPublic {
		public[normalizePath(path)] = struct{}{}
	}
	return &Mapper{public: public}
}

// Map classifies a request. It returns a public Route, a Route carrying
// the required Action, or ErrUnroutableRequest.
func (m *Mapper) Map(method, path string) (*Route, error) {
	path = normalizePath(path)

	if _, ok := m.public[path]; ok {
		return &Route{Public: true}, nil
	}

	for _, family := range resourcePrefixes {
		if path == family.prefix || strings.HasPrefix(path, family.prefix+"/") {
			action, err := methodAction(method, family.resource)
			if err != nil {
				return nil, err
			}
			return &Route{Action: action, Resource: family.resource}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s %s", ErrUnroutableRequest, method, path)
}

// ResourceFromPath returns the resource descriptor implied by a path:
// the family and, for item routes, the resource id.
func (m *Mapper) ResourceFromPath(path string) *ResourceDescriptor {
	path = normalizePath(path)
	for _, family := range resourcePrefixes {
		if path == family.prefix {
			return &ResourceDescriptor{Type: family.resource}
		}
		if rest, ok := strings.CutPrefix(path, family.prefix+"/"); ok {
			id, _, _ := strings.Cut(rest, "/")
			return &ResourceDescriptor{Type: family.resource, ID: id}
		}
	}
	return nil
}

// PublicRoutes returns the public path list in no particular order, for
// the policy introspection endpoint.
func (m *Mapper) PublicRoutes() []string {
	paths := make([]string, 0, len(m.public))
	for path := range m.public {
		paths = append(paths, path)
	}
	return paths
}

// RouteMapping describes one route family for the policy introspection
// endpoint.
type RouteMapping struct {
	Prefix   string            `json:"prefix"`
	Resource ResourceType      `json:"resource"`
	Methods  map[string]Action `json:"methods"`
}

// Mappings returns the route-family table in declaration order, with the
// permission each HTTP method requires.
func (m *Mapper) Mappings() []RouteMapping {
	mappings := make([]RouteMapping, 0, len(resourcePrefixes))
	for _, family := range resourcePrefixes {
		methods := make(map[string]Action, 4)
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
			if action, err := methodAction(method, family.resource); err == nil {
				methods[method] = action
			}
		}
		mappings = append(mappings, RouteMapping{
			Prefix:   family.prefix,
			Resource: family.resource,
			Methods:  methods,
		})
	}
	return mappings
}

// methodAction maps an HTTP method onto the verb for a resource family.
// Unknown methods fail closed.
func methodAction(method string, resource ResourceType) (Action, error) {
	var verb string
	switch method {
	case http.MethodGet, http.MethodHead:
		verb = "read"
	case http.MethodPost:
		verb = "create"
	case http.MethodPut, http.MethodPatch:
		verb = "update"
	case http.MethodDelete:
		verb = "delete"
	default:
		return "", fmt.Errorf("%w: method %s", ErrUnroutableRequest, method)
	}

	action := Action(string(resource) + ":" + verb)
	if !IsValidAction(action) {
		return "", fmt.Errorf("%w: no permission for %s %s", ErrUnroutableRequest, method, resource)
	}
	return action, nil
}

// normalizePath strips trailing slashes and collapses empty paths to "/".
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
