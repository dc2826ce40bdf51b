package wire

import (
	"bytes"
	"testing"
)

func TestCastMessageRoundTripString(t *testing.T) {
	m := &CastMessage{
		ProtocolVersion: CastV2_1_0,
		SourceID:        "sender-0",
		DestinationID:   "receiver-0",
		Namespace:       "urn:x-cast:com.google.cast.tp.connection",
		PayloadType:     PayloadTypeString,
		PayloadUTF8:     `{"type":"CONNECT"}`,
	}

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := UnmarshalCastMessage(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.ProtocolVersion != m.ProtocolVersion ||
		got.SourceID != m.SourceID ||
		got.DestinationID != m.DestinationID ||
		got.Namespace != m.Namespace ||
		got.PayloadType != m.PayloadType ||
		got.PayloadUTF8 != m.PayloadUTF8 ||
		got.PayloadBinary != nil {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestCastMessageRoundTripBinary(t *testing.T) {
	m := &CastMessage{
		ProtocolVersion: CastV2_1_0,
		SourceID:        "sender-0",
		DestinationID:   "receiver-0",
		Namespace:       "urn:x-cast:com.google.cast.tp.deviceauth",
		PayloadType:     PayloadTypeBinary,
		PayloadBinary:   []byte{0x01, 0x02, 0x03, 0x00, 0xff},
	}

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := UnmarshalCastMessage(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.ProtocolVersion != m.ProtocolVersion ||
		got.SourceID != m.SourceID ||
		got.DestinationID != m.DestinationID ||
		got.Namespace != m.Namespace ||
		got.PayloadType != m.PayloadType ||
		!bytes.Equal(got.PayloadBinary, m.PayloadBinary) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestCastMessageRejectsMismatchedPayload(t *testing.T) {
	m := &CastMessage{
		PayloadType:   PayloadTypeString,
		PayloadBinary: []byte{1},
	}
	if _, err := m.Marshal(); err == nil {
		t.Fatal("expected error for STRING payload_type with payload_binary set")
	}
}

func TestCastMessageSkipsUnknownFields(t *testing.T) {
	// A well-formed message followed by field 99 (varint).
	m := &CastMessage{
		SourceID:      "sender-0",
		DestinationID: "receiver-0",
		Namespace:     "urn:x-cast:com.google.cast.receiver",
		PayloadType:   PayloadTypeString,
		PayloadUTF8:   "{}",
	}
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var withUnknown []byte
	withUnknown = append(withUnknown, data...)
	// Append an unknown varint field (number 99).
	withUnknown = append(withUnknown, 0x98, 0x06, 0x01) // tag for field 99 varint, value 1

	got, err := UnmarshalCastMessage(withUnknown)
	if err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if got.SourceID != m.SourceID || got.PayloadUTF8 != m.PayloadUTF8 {
		t.Fatalf("unknown field corrupted known fields: %+v", got)
	}
}

func TestDeviceAuthMessageRoundTripChallenge(t *testing.T) {
	m := &DeviceAuthMessage{Challenge: &AuthChallenge{}}
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalDeviceAuthMessage(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Challenge == nil || got.Response != nil || got.Error != nil {
		t.Fatalf("unexpected shape: %+v", got)
	}
}

func TestDeviceAuthMessageRoundTripResponse(t *testing.T) {
	m := &DeviceAuthMessage{Response: &AuthResponse{
		Signature:             []byte{1, 2, 3},
		ClientAuthCertificate: []byte{4, 5, 6},
	}}
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalDeviceAuthMessage(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Response == nil {
		t.Fatal("expected response")
	}
	if !bytes.Equal(got.Response.Signature, m.Response.Signature) {
		t.Fatalf("signature mismatch: got %v want %v", got.Response.Signature, m.Response.Signature)
	}
	if !bytes.Equal(got.Response.ClientAuthCertificate, m.Response.ClientAuthCertificate) {
		t.Fatalf("cert mismatch")
	}
}

func TestDeviceAuthMessageRoundTripError(t *testing.T) {
	m := &DeviceAuthMessage{Error: &AuthError{ErrorType: AuthErrorSignatureAlgorithmUnsupported}}
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalDeviceAuthMessage(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Error == nil || got.Error.ErrorType != AuthErrorSignatureAlgorithmUnsupported {
		t.Fatalf("unexpected error shape: %+v", got.Error)
	}
}
