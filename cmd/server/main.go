// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package main is the entry point for the Trailhook server.
//
// Trailhook's decision layer sits in front of the event, receiver, and
// group resources. The server initializes components in the following
// order:
//
//  1. Configuration: layered defaults, YAML file, environment (Koanf v2)
//  2. Credential validation: HMAC bearer tokens with the permission
//     taxonomy enforced at parse time
//  3. Authorization: permission mapper, decision cache, circuit-broken
//     policy client with fallback, audit emitter
//  4. HTTP server: Chi router with the authorization middleware on
//     every resource route
//
// The audit emitter and the HTTP server run under a suture supervisor
// tree and shut down gracefully on SIGINT and SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (TRAILHOOK_ prefix), a config
// file (TRAILHOOK_CONFIG), and built-in defaults. Minimal production
// setup:
//
//	export TRAILHOOK_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export TRAILHOOK_AUTHZ_POLICY_URL=http://opa:8181
//	./trailhook
//
// Without a policy URL, remote evaluation is disabled and decisions
// beyond local role evaluation follow the configured fallback rule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trailhook/trailhook/internal/api"
	"github.com/trailhook/trailhook/internal/auth"
	"github.com/trailhook/trailhook/internal/authz"
	"github.com/trailhook/trailhook/internal/config"
	"github.com/trailhook/trailhook/internal/logging"
	"github.com/trailhook/trailhook/internal/policy"
	"github.com/trailhook/trailhook/internal/stream"
	"github.com/trailhook/trailhook/internal/supervisor"
	"github.com/trailhook/trailhook/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so this uses the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr).
		Bool("remote_policy", cfg.Authz.PolicyURL != "").
		Str("fallback", cfg.Authz.Fallback).
		Msg("Starting Trailhook")

	validator, err := auth.NewValidator([]byte(cfg.Security.JWTSecret), cfg.Security.Issuer, authz.ValidPermission)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential validator")
	}

	mapper := authz.NewMapper()
	cache := authz.NewDecisionCache(cfg.Authz.CacheCapacity)
	breaker := authz.NewBreaker(authz.BreakerConfig{
		Threshold: cfg.Authz.BreakerThreshold,
		Window:    cfg.Authz.BreakerWindow,
		Cooldown:  cfg.Authz.BreakerCooldown,
	})

	var evaluator policy.Evaluator
	if cfg.Authz.PolicyURL != "" {
		evaluator, err = policy.NewHTTPClient(cfg.Authz.PolicyURL, cfg.Authz.PolicyPath, cfg.Authz.RemoteTimeout)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize policy evaluator client")
		}
		logging.Info().Str("url", cfg.Authz.PolicyURL).Str("path", cfg.Authz.PolicyPath).Msg("Remote policy evaluation enabled")
	} else {
		logging.Warn().Str("fallback", cfg.Authz.Fallback).Msg("No policy evaluator configured, decisions use the fallback rule")
	}

	policyClient := authz.NewPolicyClient(cache, breaker, evaluator, authz.FallbackByName(cfg.Authz.Fallback), authz.PolicyClientConfig{
		DefaultTTL:    cfg.Authz.CacheTTL,
		MaxTTL:        cfg.Authz.CacheMaxTTL,
		RemoteTimeout: cfg.Authz.RemoteTimeout,
	})

	auditCfg := authz.AuditEmitterConfig{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		Topic:      cfg.Audit.Subject,
	}
	if cfg.Audit.Enabled && cfg.Audit.NATSURL != "" {
		publisher, err := stream.NewNATSPublisher(stream.PublisherConfig{URL: cfg.Audit.NATSURL}, stream.NewLoggerAdapter())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize audit stream publisher")
		}
		auditCfg.Publisher = publisher
		logging.Info().Str("subject", cfg.Audit.Subject).Msg("Streaming audit sink enabled")
	}
	auditEmitter := authz.NewAuditEmitter(auditCfg)

	engine, err := authz.NewEngine(validator, mapper, policyClient, auditEmitter)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization engine")
	}

	handler := api.NewHandler(mapper, policyClient, auditEmitter)
	middleware := api.NewMiddleware(api.MiddlewareConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  cfg.Server.RateWindow,
	})
	router := api.NewRouter(handler, middleware, engine, nil)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Audit.Enabled {
		tree.AddAuditService(auditEmitter)
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr).Msg("Trailhook listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree failed")
	}

	logging.Info().Msg("Trailhook stopped")
}
