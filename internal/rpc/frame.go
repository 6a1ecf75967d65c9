// Package rpc implements the RPC frame contract (§6 EXTERNAL INTERFACES):
// an ndjson-framed request/response/event protocol, one JSON object per
// line (or per websocket text message), for driving an agent run from an
// external client.
package rpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FrameSchemaVersion is the only schema_version this package emits or accepts.
const FrameSchemaVersion = 1

// ProtocolVersion is returned in the capabilities response so clients can
// detect a mismatch before issuing run.start.
const ProtocolVersion = 1

// Kind identifies what a frame's payload means.
type Kind string

const (
	// Request kinds, sent by the client.
	KindCapabilitiesRequest Kind = "capabilities.request"
	KindRunStart            Kind = "run.start"
	KindRunCancel           Kind = "run.cancel"

	// Response/event kinds, sent by the server.
	KindCapabilitiesResponse Kind = "capabilities.response"
	KindRunEvent             Kind = "run.event"
	KindRunResult            Kind = "run.result"
	KindError                Kind = "error"
)

// Frame is a single ndjson-framed message in either direction.
type Frame struct {
	SchemaVersion int             `json:"schema_version"`
	RequestID     string          `json:"request_id,omitempty"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// RunStartPayload is the payload of a run.start request frame.
type RunStartPayload struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// RunCancelPayload is the payload of a run.cancel request frame.
type RunCancelPayload struct {
	RunID string `json:"run_id"`
}

// CapabilitiesPayload is the payload of a capabilities.response frame.
type CapabilitiesPayload struct {
	ProtocolVersion int      `json:"protocol_version"`
	Capabilities    []string `json:"capabilities"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SupportedCapabilities lists the capability tokens this server advertises.
func SupportedCapabilities() []string {
	return []string{
		string(KindRunStart),
		string(KindRunCancel),
		string(KindCapabilitiesRequest),
	}
}

// ParseFrame decodes a single ndjson line into a Frame and validates its
// envelope (schema_version, kind). Payload-specific validation happens in
// DecodeRunStart / DecodeRunCancel once the caller knows the frame's kind.
func ParseFrame(line []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.SchemaVersion != FrameSchemaVersion {
		return nil, fmt.Errorf("unsupported schema_version %d", f.SchemaVersion)
	}
	switch f.Kind {
	case KindCapabilitiesRequest, KindRunStart, KindRunCancel:
	default:
		return nil, fmt.Errorf("unsupported frame kind %q", f.Kind)
	}
	return &f, nil
}

// DecodeRunStart decodes and validates a run.start frame's payload.
func DecodeRunStart(f *Frame) (RunStartPayload, error) {
	var p RunStartPayload
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return p, fmt.Errorf("decode run.start payload: %w", err)
		}
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return p, fmt.Errorf("requires non-empty payload field 'prompt'")
	}
	return p, nil
}

// DecodeRunCancel decodes and validates a run.cancel frame's payload.
func DecodeRunCancel(f *Frame) (RunCancelPayload, error) {
	var p RunCancelPayload
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return p, fmt.Errorf("decode run.cancel payload: %w", err)
		}
	}
	if strings.TrimSpace(p.RunID) == "" {
		return p, fmt.Errorf("requires non-empty payload field 'run_id'")
	}
	return p, nil
}

// NewCapabilitiesResponse builds the capabilities.response frame for the
// given request_id.
func NewCapabilitiesResponse(requestID string) (*Frame, error) {
	return newFrame(requestID, KindCapabilitiesResponse, CapabilitiesPayload{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    SupportedCapabilities(),
	})
}

// NewErrorFrame builds an error response frame carrying message.
func NewErrorFrame(requestID string, message string) *Frame {
	f, err := newFrame(requestID, KindError, ErrorPayload{Message: message})
	if err != nil {
		// ErrorPayload always marshals; this path is unreachable.
		return &Frame{SchemaVersion: FrameSchemaVersion, RequestID: requestID, Kind: KindError}
	}
	return f
}

func newFrame(requestID string, kind Kind, payload any) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Frame{
		SchemaVersion: FrameSchemaVersion,
		RequestID:     requestID,
		Kind:          kind,
		Payload:       raw,
	}, nil
}
