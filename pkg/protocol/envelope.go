package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope wraps all protocol messages with common metadata for routing.
type Envelope struct {
	RunID string      `msgpack:"runId,omitempty" json:"runId,omitempty"`
	Type  MessageType `msgpack:"type" json:"type"`
	Body  any         `msgpack:"body" json:"body"`

	// W3C Trace Context
	TraceID    string `msgpack:"trace_id,omitempty" json:"traceId,omitempty"`       // 32 hex chars
	SpanID     string `msgpack:"span_id,omitempty" json:"spanId,omitempty"`         // 16 hex chars
	TraceFlags byte   `msgpack:"trace_flags,omitempty" json:"traceFlags,omitempty"` // 0x01 = sampled
}

func NewEnvelope(runID string, msgType MessageType, body any) *Envelope {
	return &Envelope{
		RunID: runID,
		Type:  msgType,
		Body:  body,
	}
}

func (e *Envelope) HasTraceContext() bool {
	return e.TraceID != "" && e.SpanID != ""
}

// TraceParent returns the W3C traceparent format: 00-{trace_id}-{span_id}-{flags}
func (e *Envelope) TraceParent() string {
	if !e.HasTraceContext() {
		return ""
	}
	return fmt.Sprintf("00-%s-%s-%02x", e.TraceID, e.SpanID, e.TraceFlags)
}

// WithTracing attaches a trace context to the envelope
func (e *Envelope) WithTracing(traceID, spanID string, flags byte) *Envelope {
	e.TraceID = traceID
	e.SpanID = spanID
	e.TraceFlags = flags
	return e
}

func (e *Envelope) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

// DecodeBody converts an envelope body into a concrete message struct.
// Bodies arrive from the wire as map[string]any; re-encoding through
// MessagePack converts them without hand-written field copying.
func DecodeBody[T any](e *Envelope) (*T, error) {
	if typed, ok := e.Body.(T); ok {
		return &typed, nil
	}

	data, err := msgpack.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("re-encode body: %w", err)
	}

	var result T
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode body to %T: %w", result, err)
	}
	return &result, nil
}
