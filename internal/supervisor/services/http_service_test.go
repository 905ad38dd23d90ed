// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockServer scripts the HTTPServer lifecycle.
type mockServer struct {
	listenErr   error
	shutdownErr error

	listenStarted chan struct{}
	release       chan struct{}
	shutdownCalls int
}

func newMockServer() *mockServer {
	return &mockServer{
		listenStarted: make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (m *mockServer) ListenAndServe() error {
	close(m.listenStarted)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(context.Context) error {
	m.shutdownCalls++
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	t.Parallel()

	server := newMockServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.listenStarted
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	if server.shutdownCalls != 1 {
		t.Errorf("Expected one Shutdown call, got %d", server.shutdownCalls)
	}
}

func TestHTTPServerService_StartupFailure(t *testing.T) {
	t.Parallel()

	server := newMockServer()
	server.listenErr = errors.New("listen tcp: address already in use")
	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("Expected the listen error to propagate, got %v", err)
	}
}

func TestHTTPServerService_String(t *testing.T) {
	t.Parallel()

	if got := NewHTTPServerService(newMockServer(), 0).String(); got != "http-server" {
		t.Errorf("Unexpected service name %q", got)
	}
}
