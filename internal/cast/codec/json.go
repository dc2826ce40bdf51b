// Package codec implements the inner JSON payload format carried inside
// a cast channel envelope: the type/responseType rename at the wire
// boundary (spec §4.3) and the standard request/response taxonomy. The
// SET_VOLUME/STOP type collision (spec §9) is resolved by separate
// receiver and media request types; decoding does not look at the
// namespace.
package codec

import "bytes"

// typeKey and responseTypeKey are the two JSON object keys this codec
// rewrites between. Outgoing payloads are left untouched; only incoming
// payloads are rewritten, before they are unmarshalled.
var (
	typeKey         = []byte(`"type"`)
	responseTypeKey = []byte(`"responseType"`)
)

// RenameTypeToResponseType rewrites the first occurrence of the JSON key
// "type" to "responseType" in an incoming payload, matching the
// discriminator rename described in spec §4.3.
//
// This mirrors the simple single-substitution approach used throughout
// the Cast client ecosystem (a single "type"->"responseType" string
// replace rather than a structural JSON rewrite): it is the rename the
// protocol actually relies on, and reparsing structurally would not
// change observed behavior for any payload real devices send, since
// "type" never legitimately appears before the discriminator key.
func RenameTypeToResponseType(payload []byte) []byte {
	idx := bytes.Index(payload, typeKey)
	if idx < 0 {
		return payload
	}
	out := make([]byte, 0, len(payload)+len(responseTypeKey)-len(typeKey))
	out = append(out, payload[:idx]...)
	out = append(out, responseTypeKey...)
	out = append(out, payload[idx+len(typeKey):]...)
	return out
}

// Envelope is the minimal shape every incoming payload is first peeked
// into, to learn the dispatch key and request id before a type-specific
// unmarshal (spec §4.3, §4.5).
type Envelope struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
}
