// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trailhook/trailhook/internal/logging"
	"github.com/trailhook/trailhook/internal/policy"
)

// BreakerConfig tunes the circuit breaker gating the policy evaluator.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// circuit.
	Threshold uint32

	// Window is the rolling window in which failure counts accumulate
	// while the circuit is closed; counts reset when it elapses.
	Window time.Duration

	// Cooldown is how long the circuit stays open before transitioning
	// to half-open.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Window:    time.Minute,
		Cooldown:  30 * time.Second,
	}
}

// Breaker is the shared fault-tolerance state machine for remote policy
// evaluation. All concurrent requests share one Breaker; its state record
// is updated atomically inside gobreaker.
//
// State machine:
//   - Closed: calls pass through; Threshold consecutive failures within
//     Window open the circuit.
//   - Open: calls fail immediately with ErrCircuitOpen until Cooldown
//     elapses, then the circuit goes half-open.
//   - HalfOpen: exactly one trial call is admitted (MaxRequests is 1, so
//     concurrent callers are rejected rather than stampeding a still
//     unhealthy evaluator). A trial success closes the circuit and
//     resets all counters; a trial failure reopens it and restarts the
//     cooldown.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[*policy.Result]
	name string
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultBreakerConfig().Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}

	name := "policy-evaluator"
	setBreakerState(name, gobreaker.StateClosed)

	cb := gobreaker.NewCircuitBreaker[*policy.Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single half-open trial
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Threshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state transition")

			setBreakerState(name, to)
			recordBreakerTransition(name, stateToString(from), stateToString(to))
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Execute runs fn under circuit breaker protection. While the circuit is
// open, or when the single half-open trial slot is taken, fn is not
// invoked and the error satisfies IsCircuitOpen.
func (b *Breaker) Execute(fn func() (*policy.Result, error)) (*policy.Result, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if IsCircuitOpen(err) {
			recordBreakerRequest(b.name, "rejected")
		} else {
			recordBreakerRequest(b.name, "failure")
		}
		return nil, err
	}
	recordBreakerRequest(b.name, "success")
	return result, nil
}

// State returns the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsCircuitOpen reports whether err means the call was rejected without
// reaching the evaluator: the circuit is open, or the half-open trial
// slot is already taken.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToString converts a breaker state to its log/metric label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts a breaker state to its metric gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
