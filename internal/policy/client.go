// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package policy talks to the external declarative policy evaluator over
// HTTP. The evaluator is pluggable and untrusted for availability: every
// transport failure, timeout, or malformed response is surfaced as an
// error and never interpreted as an allow.
package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrMalformedResponse indicates the evaluator answered with a payload
// that does not match the decision contract.
var ErrMalformedResponse = errors.New("malformed policy evaluator response")

// Input is the structured request payload sent to the evaluator. It
// mirrors the subject, action, and resource attributes of the decision
// request.
type Input struct {
	SubjectID   string   `json:"subject_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Action      string   `json:"action"`

	ResourceType string   `json:"resource_type,omitempty"`
	ResourceID   string   `json:"resource_id,omitempty"`
	OwnerID      string   `json:"owner_id,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	MemberIDs    []string `json:"member_ids,omitempty"`
}

// Result is the evaluator's verdict.
type Result struct {
	// Allow is the boolean verdict.
	Allow bool `json:"allow"`

	// Reason optionally explains the verdict (e.g. "ownership",
	// "membership").
	Reason string `json:"reason,omitempty"`

	// TTLSeconds optionally suggests how long the verdict may be cached.
	TTLSeconds int `json:"ttl_seconds,omitempty"`

	// Revision optionally identifies the policy bundle that produced
	// the verdict.
	Revision string `json:"revision,omitempty"`
}

// TTL returns the suggested cache TTL, or zero when none was suggested.
func (r *Result) TTL() time.Duration {
	if r == nil || r.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.TTLSeconds) * time.Second
}

// Evaluator is the pluggable policy evaluation capability.
type Evaluator interface {
	// Evaluate submits the input and returns the evaluator's verdict.
	// Any error means the evaluator was unavailable or unusable; the
	// caller must treat it as a failure, never as an allow.
	Evaluate(ctx context.Context, input *Input) (*Result, error)
}

// HTTPClient evaluates policies against an OPA-style HTTP data API:
// POST {baseURL}/v1/data/{path} with {"input": ...} returns
// {"result": ...}.
type HTTPClient struct {
	baseURL string
	path    string
	client  *http.Client
}

// NewHTTPClient creates an evaluator client.
//
// Parameters:
//   - baseURL: evaluator base URL, e.g. "http://opa:8181"
//   - path: decision document path, e.g. "trailhook/authz"
//   - timeout: per-call timeout; must be positive so a slow evaluator
//     cannot stall the calling request
func NewHTTPClient(baseURL, path string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("policy evaluator URL is required")
	}
	if timeout <= 0 {
		return nil, errors.New("policy evaluator timeout must be positive")
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		path:    strings.Trim(path, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// evalRequest is the evaluator wire request envelope.
type evalRequest struct {
	Input *Input `json:"input"`
}

// evalResponse is the evaluator wire response envelope.
type evalResponse struct {
	Result *Result `json:"result"`
}

// Evaluate implements Evaluator.
func (c *HTTPClient) Evaluate(ctx context.Context, input *Input) (*Result, error) {
	body, err := json.Marshal(&evalRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}

	url := c.baseURL + "/v1/data/" + c.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build policy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy evaluator call failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		// Drain a little for connection reuse before reporting.
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		return nil, fmt.Errorf("policy evaluator returned status %d", resp.StatusCode)
	}

	var envelope evalResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if envelope.Result == nil {
		// An undefined decision document is not an implicit allow.
		return nil, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}

	return envelope.Result, nil
}
