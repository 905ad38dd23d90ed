// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trailhook/trailhook/internal/policy"
)

var errEvaluator = errors.New("evaluator unavailable")

func failingCall() (*policy.Result, error) { return nil, errEvaluator }

func succeedingCall() (*policy.Result, error) {
	return &policy.Result{Allow: true}, nil
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 3, Window: time.Minute, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		if b.State() != gobreaker.StateClosed {
			t.Fatalf("Expected closed state before failure %d", i+1)
		}
		if _, err := b.Execute(failingCall); !errors.Is(err, errEvaluator) {
			t.Fatalf("Expected evaluator error, got %v", err)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("Expected open state after 3 failures, got %v", b.State())
	}

	// An open circuit rejects without invoking the function.
	invoked := false
	_, err := b.Execute(func() (*policy.Result, error) {
		invoked = true
		return nil, nil
	})
	if !IsCircuitOpen(err) {
		t.Errorf("Expected circuit-open rejection, got %v", err)
	}
	if invoked {
		t.Error("Expected the call to be rejected without invocation")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 3, Window: time.Minute, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_, _ = b.Execute(failingCall)
	}
	if _, err := b.Execute(succeedingCall); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, _ = b.Execute(failingCall)
	}

	if b.State() != gobreaker.StateClosed {
		t.Errorf("Expected circuit to stay closed after non-consecutive failures, got %v", b.State())
	}
}

func TestBreaker_HalfOpenTrialClosesCircuit(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Window: time.Minute, Cooldown: 30 * time.Millisecond})

	_, _ = b.Execute(failingCall)
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("Expected open state, got %v", b.State())
	}

	time.Sleep(50 * time.Millisecond)

	result, err := b.Execute(succeedingCall)
	if err != nil {
		t.Fatalf("Expected half-open trial to run, got %v", err)
	}
	if !result.Allow {
		t.Error("Expected the trial result to pass through")
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("Expected circuit to close after trial success, got %v", b.State())
	}
}

func TestBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Threshold: 1, Window: time.Minute, Cooldown: 30 * time.Millisecond})

	_, _ = b.Execute(failingCall)
	time.Sleep(50 * time.Millisecond)

	if _, err := b.Execute(failingCall); !errors.Is(err, errEvaluator) {
		t.Fatalf("Expected the trial to reach the evaluator, got %v", err)
	}
	if b.State() != gobreaker.StateOpen {
		t.Errorf("Expected circuit to reopen after trial failure, got %v", b.State())
	}
}

func TestIsCircuitOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"open state", gobreaker.ErrOpenState, true},
		{"too many requests", gobreaker.ErrTooManyRequests, true},
		{"wrapped open state", errors.Join(errors.New("call"), gobreaker.ErrOpenState), true},
		{"evaluator error", errEvaluator, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		if got := IsCircuitOpen(tt.err); got != tt.want {
			t.Errorf("IsCircuitOpen(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
