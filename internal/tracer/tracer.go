// Package tracer implements the append-only structured event log keyed by
// run/span IDs, per spec §4.10. Every write goes through a single mutex so
// lines never interleave (spec §5 "Tracer writes are serialised").
package tracer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracer appends JSONL events to one session's trace.jsonl, and mirrors each
// run/tool span into OpenTelemetry via the optional otelBridge (nil when no
// OTLP endpoint is configured).
type Tracer struct {
	mu    sync.Mutex
	path  string
	runID string
	otel  *otelBridge
}

// New opens a Tracer against path, creating the file lazily on first Emit.
func New(path string) *Tracer {
	return &Tracer{path: path}
}

// WithOTLP attaches an OpenTelemetry exporter; see otel.go. Safe to call
// with an empty endpoint, in which case tracing stays JSONL-only.
func (t *Tracer) WithOTLP(endpoint string) *Tracer {
	if endpoint == "" {
		return t
	}
	if b, err := newOTELBridge(endpoint); err == nil {
		t.otel = b
	}
	return t
}

// NewRunID returns an 8-hex-char random identifier, per spec §4.10.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// SetRunID seeds the run id new events are stamped with, unless the caller
// passes an explicit one via EmitRun.
func (t *Tracer) SetRunID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = id
}

// RunID returns the tracer's current run id.
func (t *Tracer) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Emit appends one event line under the run id set by SetRunID.
func (t *Tracer) Emit(event string, fields map[string]any) {
	t.mu.Lock()
	runID := t.runID
	t.mu.Unlock()
	t.EmitRun(runID, event, fields)
}

// EmitRun appends one event line stamped with an explicit run id, used by
// sub-agent and OODA spans that carry their own generated id (spec §4.10
// "sub-agent spans use their own generated id stored in the event payload").
func (t *Tracer) EmitRun(runID, event string, fields map[string]any) {
	line := map[string]any{
		"ts":     float64(time.Now().UnixNano()) / 1e9,
		"event":  event,
		"run_id": runID,
	}
	for k, v := range fields {
		line[k] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	_ = enc.Encode(line)

	if t.otel != nil {
		t.otel.record(runID, event, fields)
	}
}

// Span starts a named span: callers defer the returned func to emit the
// matching "<event>" line with a duration_ms field and close the OTEL span.
func (t *Tracer) Span(runID, startEvent, endEvent string, fields map[string]any) func(extra map[string]any) {
	start := time.Now()
	t.EmitRun(runID, startEvent, fields)
	var otelEnd func()
	if t.otel != nil {
		otelEnd = t.otel.startSpan(runID, startEvent)
	}
	return func(extra map[string]any) {
		merged := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
		for k, v := range extra {
			merged[k] = v
		}
		t.EmitRun(runID, endEvent, merged)
		if otelEnd != nil {
			otelEnd()
		}
	}
}

func formatErr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
