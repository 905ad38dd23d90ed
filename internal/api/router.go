// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trailhook/trailhook/internal/authz"
)

// Router assembles the HTTP surface.
type Router struct {
	handler    *Handler
	middleware *Middleware
	engine     *authz.Engine
	resources  http.Handler
}

// NewRouter creates the router. resources handles the event, receiver,
// and group routes once a request clears authorization; pass nil to
// serve 501 placeholders.
func NewRouter(handler *Handler, middleware *Middleware, engine *authz.Engine, resources http.Handler) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		engine:     engine,
		resources:  resources,
	}
}

// Setup configures all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	// Public endpoints. These match the mapper's public route list, so
	// the authorization middleware would pass them through anyway; they
	// sit outside it to keep the hot monitoring paths cheap.
	r.Get("/healthz", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/v1/authz/policy", router.handler.Policy)

	// Resource endpoints. Every route below requires a decision from
	// the authorization engine before the handler runs, including
	// methods and paths the mapper does not know, which it denies.
	resources := router.resources
	if resources == nil {
		resources = http.HandlerFunc(router.handler.NotImplemented)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(Authorize(router.engine))

		for _, prefix := range []string{"/events", "/receivers", "/groups"} {
			r.Handle(prefix, resources)
			r.Handle(prefix+"/*", resources)
		}
	})

	return r
}
