// Package wire implements the binary protobuf envelope that rides on top
// of the length-prefixed cast channel frames (spec §6). There is no .proto
// source in this tree: the schema is small, fixed, and specified
// textually, so it is hand-encoded with the protobuf wire-format
// primitives rather than generated from a descriptor.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ProtocolVersion identifies the cast channel protocol revision.
type ProtocolVersion int32

// CastV2_1_0 is the only protocol version this client emits.
const CastV2_1_0 ProtocolVersion = 0

// PayloadType selects which payload field of CastMessage is populated.
type PayloadType int32

const (
	PayloadTypeString PayloadType = 0
	PayloadTypeBinary PayloadType = 1
)

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeString:
		return "STRING"
	case PayloadTypeBinary:
		return "BINARY"
	default:
		return fmt.Sprintf("PayloadType(%d)", int32(t))
	}
}

// Field numbers per spec §6.
const (
	fieldProtocolVersion protowire.Number = 1
	fieldSourceID        protowire.Number = 2
	fieldDestinationID   protowire.Number = 3
	fieldNamespace       protowire.Number = 4
	fieldPayloadType     protowire.Number = 5
	fieldPayloadUTF8     protowire.Number = 6
	fieldPayloadBinary   protowire.Number = 7
)

// CastMessage is the envelope carried by every frame on the wire.
type CastMessage struct {
	ProtocolVersion ProtocolVersion
	SourceID        string
	DestinationID   string
	Namespace       string
	PayloadType     PayloadType
	PayloadUTF8     string
	PayloadBinary   []byte
}

// Marshal encodes the envelope using the protobuf binary wire format.
// Exactly one of PayloadUTF8/PayloadBinary is emitted, per PayloadType.
func (m *CastMessage) Marshal() ([]byte, error) {
	if m.PayloadType == PayloadTypeString && m.PayloadBinary != nil {
		return nil, fmt.Errorf("wire: STRING payload_type with non-nil payload_binary")
	}
	if m.PayloadType == PayloadTypeBinary && m.PayloadUTF8 != "" {
		return nil, fmt.Errorf("wire: BINARY payload_type with non-empty payload_utf8")
	}

	var b []byte
	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion))
	b = protowire.AppendTag(b, fieldSourceID, protowire.BytesType)
	b = protowire.AppendString(b, m.SourceID)
	b = protowire.AppendTag(b, fieldDestinationID, protowire.BytesType)
	b = protowire.AppendString(b, m.DestinationID)
	b = protowire.AppendTag(b, fieldNamespace, protowire.BytesType)
	b = protowire.AppendString(b, m.Namespace)
	b = protowire.AppendTag(b, fieldPayloadType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.PayloadType))
	if m.PayloadType == PayloadTypeString {
		b = protowire.AppendTag(b, fieldPayloadUTF8, protowire.BytesType)
		b = protowire.AppendString(b, m.PayloadUTF8)
	} else {
		b = protowire.AppendTag(b, fieldPayloadBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, m.PayloadBinary)
	}
	return b, nil
}

// UnmarshalCastMessage decodes a CastMessage from its protobuf wire form.
// Unknown fields are skipped, matching protobuf's forward-compatibility
// rule (a newer device may add fields this client does not know about).
func UnmarshalCastMessage(data []byte) (*CastMessage, error) {
	m := &CastMessage{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldProtocolVersion:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad protocol_version: %w", protowire.ParseError(n))
			}
			m.ProtocolVersion = ProtocolVersion(v)
			b = b[n:]
		case fieldSourceID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad source_id: %w", protowire.ParseError(n))
			}
			m.SourceID = v
			b = b[n:]
		case fieldDestinationID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad destination_id: %w", protowire.ParseError(n))
			}
			m.DestinationID = v
			b = b[n:]
		case fieldNamespace:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad namespace: %w", protowire.ParseError(n))
			}
			m.Namespace = v
			b = b[n:]
		case fieldPayloadType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad payload_type: %w", protowire.ParseError(n))
			}
			m.PayloadType = PayloadType(v)
			b = b[n:]
		case fieldPayloadUTF8:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad payload_utf8: %w", protowire.ParseError(n))
			}
			m.PayloadUTF8 = v
			b = b[n:]
		case fieldPayloadBinary:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad payload_binary: %w", protowire.ParseError(n))
			}
			m.PayloadBinary = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}
