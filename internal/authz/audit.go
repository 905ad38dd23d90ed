// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

package authz

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/trailhook/trailhook/internal/logging"
)

// AuditRecord captures one authorization decision for forensic review.
type AuditRecord struct {
	// ID is a unique identifier for this record.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// RequestID links the record to an HTTP request, if known.
	RequestID string `json:"request_id,omitempty"`

	// SubjectID is the caller the decision was made for. "anonymous"
	// for requests that failed authentication.
	SubjectID string `json:"subject_id"`

	// Action is the permission that was required.
	Action Action `json:"action,omitempty"`

	// ResourceType and ResourceID identify the resource, when known.
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Method and Path describe the request.
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`

	// Outcome and Reason are the decision.
	Outcome Outcome `json:"outcome"`
	Reason  Reason  `json:"reason,omitempty"`

	// Error names the authentication or mapping failure for requests
	// that never reached a policy decision.
	Error string `json:"error,omitempty"`

	// Latency is how long the decision took.
	Latency time.Duration `json:"latency_ns"`
}

// AuditEmitterConfig configures the audit emitter.
type AuditEmitterConfig struct {
	// Enabled controls whether records are emitted at all.
	Enabled bool

	// BufferSize bounds the async record buffer. Records beyond it are
	// dropped (counted and warned) rather than blocking the request
	// path.
	BufferSize int

	// Topic is the stream subject for published records.
	Topic string

	// Publisher, when set, receives every record as a JSON message in
	// addition to the structured log. Publish failures are best-effort.
	Publisher message.Publisher
}

// DefaultAuditEmitterConfig returns production defaults (log sink only).
func DefaultAuditEmitterConfig() AuditEmitterConfig {
	return AuditEmitterConfig{
		Enabled:    true,
		BufferSize: 1000,
		Topic:      "trailhook.audit.decisions",
	}
}

// AuditEmitter records authorization decisions asynchronously. Emit is
// non-blocking; a Serve loop (run under the process supervisor) drains
// the buffer into the structured log and the optional stream publisher.
// Emit failures never fail the authorization decision itself.
type AuditEmitter struct {
	cfg     AuditEmitterConfig
	records chan *AuditRecord

	// dropWarn throttles buffer-overflow warnings so a sustained
	// overflow cannot flood the log.
	dropWarn *rate.Limiter
}

// NewAuditEmitter creates an audit emitter.
func NewAuditEmitter(cfg AuditEmitterConfig) *AuditEmitter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultAuditEmitterConfig().Topic
	}

	return &AuditEmitter{
		cfg:      cfg,
		records:  make(chan *AuditRecord, cfg.BufferSize),
		dropWarn: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Emit queues a record. It never blocks: when the buffer is full the
// record is dropped, the drop is counted, and a rate-limited warning is
// logged.
func (e *AuditEmitter) Emit(ctx context.Context, record *AuditRecord) {
	if e == nil || !e.cfg.Enabled {
		return
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if record.RequestID == "" {
		record.RequestID = logging.RequestIDFromContext(ctx)
	}

	select {
	case e.records <- record:
		recordAuditEmitted()
	default:
		recordAuditDropped()
		if e.dropWarn.Allow() {
			logging.Warn().
				Str("subject_id", record.SubjectID).
				Str("path", record.Path).
				Msg("Audit buffer full, records dropped")
		}
	}
}

// Serve drains the record buffer until ctx is cancelled, then flushes
// whatever remains. It implements suture.Service.
func (e *AuditEmitter) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case record := <-e.records:
			e.write(record)
		}
	}
}

// drain flushes buffered records without blocking.
func (e *AuditEmitter) drain() {
	for {
		select {
		case record := <-e.records:
			e.write(record)
		default:
			return
		}
	}
}

// write emits one record to the log and, when configured, the stream.
func (e *AuditEmitter) write(record *AuditRecord) {
	event := logging.Info()
	if record.Outcome == Deny {
		// Denials are warnings for visibility.
		event = logging.Warn()
	}

	event.
		Str("event_type", "authz_decision").
		Str("audit_id", record.ID).
		Time("audit_timestamp", record.Timestamp).
		Str("subject_id", record.SubjectID).
		Str("action", string(record.Action)).
		Str("outcome", string(record.Outcome)).
		Str("reason", string(record.Reason)).
		Dur("latency", record.Latency)

	if record.RequestID != "" {
		event = event.Str("request_id", record.RequestID)
	}
	if record.ResourceType != "" {
		event = event.Str("resource_type", string(record.ResourceType))
	}
	if record.ResourceID != "" {
		event = event.Str("resource_id", record.ResourceID)
	}
	if record.Method != "" {
		event = event.Str("method", record.Method).Str("path", record.Path)
	}
	if record.Error != "" {
		event = event.Str("error", record.Error)
	}

	if record.Outcome == Deny {
		event.Msg("Authorization denied")
	} else {
		event.Msg("Authorization allowed")
	}

	e.publish(record)
}

// publish sends the record to the stream publisher, best-effort.
func (e *AuditEmitter) publish(record *AuditRecord) {
	if e.cfg.Publisher == nil {
		return
	}

	payload, err := json.Marshal(record)
	if err != nil {
		logging.Error().Err(err).Str("audit_id", record.ID).Msg("Failed to encode audit record")
		return
	}

	msg := message.NewMessage(record.ID, payload)
	if err := e.cfg.Publisher.Publish(e.cfg.Topic, msg); err != nil {
		logging.Error().Err(err).Str("audit_id", record.ID).Msg("Failed to publish audit record")
	}
}

// Pending returns the number of buffered records, for the health
// endpoint and tests.
func (e *AuditEmitter) Pending() int {
	if e == nil {
		return 0
	}
	return len(e.records)
}

// String implements fmt.Stringer; suture uses it in event logs.
func (e *AuditEmitter) String() string {
	return "audit-emitter"
}
