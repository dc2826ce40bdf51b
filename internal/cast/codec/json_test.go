package codec

import (
	"encoding/json"
	"testing"
)

func TestRenameTypeToResponseType(t *testing.T) {
	in := []byte(`{"type":"PING","extra":"type"}`)
	out := RenameTypeToResponseType(in)

	var env Envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.ResponseType != "PING" {
		t.Fatalf("responseType = %q, want PING", env.ResponseType)
	}

	// Only the first occurrence is rewritten.
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("unmarshal map: %v", err)
	}
	if _, hasType := m["type"]; hasType {
		t.Fatalf("did not expect a remaining \"type\" key: %v", m)
	}
	if m["extra"] != "type" {
		t.Fatalf("second literal \"type\" text was altered: %v", m)
	}
}

func TestRenameTypeToResponseTypeNoOp(t *testing.T) {
	in := []byte(`{"foo":"bar"}`)
	out := RenameTypeToResponseType(in)
	if string(out) != string(in) {
		t.Fatalf("expected no-op, got %q", out)
	}
}

func TestRenameTypeToResponseTypeRequestID(t *testing.T) {
	in := []byte(`{"type":"RECEIVER_STATUS","requestId":42,"status":{}}`)
	out := RenameTypeToResponseType(in)

	var env Envelope
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.ResponseType != "RECEIVER_STATUS" || env.RequestID != 42 {
		t.Fatalf("got %+v", env)
	}
}
