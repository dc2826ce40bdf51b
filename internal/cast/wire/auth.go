package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// AuthChallenge is the (currently empty) request body sent to start the
// device-auth handshake (spec §4.4). It is a struct rather than an alias
// for []byte so that future challenge parameters have somewhere to live.
type AuthChallenge struct{}

// Marshal encodes the (empty) challenge.
func (c *AuthChallenge) Marshal() ([]byte, error) { return nil, nil }

// AuthResponse carries the device's reply to an AuthChallenge. This core
// does not validate the signature/certificate chain (spec §1, §4.4): the
// fields are retained only so a caller can inspect or log them.
type AuthResponse struct {
	Signature             []byte
	ClientAuthCertificate []byte
}

const (
	fieldAuthResponseSignature             protowire.Number = 1
	fieldAuthResponseClientAuthCertificate protowire.Number = 2
)

func (r *AuthResponse) marshalInto(b []byte) []byte {
	if len(r.Signature) > 0 {
		b = protowire.AppendTag(b, fieldAuthResponseSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Signature)
	}
	if len(r.ClientAuthCertificate) > 0 {
		b = protowire.AppendTag(b, fieldAuthResponseClientAuthCertificate, protowire.BytesType)
		b = protowire.AppendBytes(b, r.ClientAuthCertificate)
	}
	return b
}

func unmarshalAuthResponse(data []byte) (*AuthResponse, error) {
	r := &AuthResponse{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad auth response tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldAuthResponseSignature:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad signature: %w", protowire.ParseError(n))
			}
			r.Signature = append([]byte(nil), v...)
			b = b[n:]
		case fieldAuthResponseClientAuthCertificate:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad client_auth_certificate: %w", protowire.ParseError(n))
			}
			r.ClientAuthCertificate = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad unknown auth response field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

// AuthErrorType enumerates why a device rejected an AuthChallenge.
type AuthErrorType int32

const (
	AuthErrorInternal AuthErrorType = iota
	AuthErrorNoTLS
	AuthErrorSignatureAlgorithmUnsupported
)

// AuthError is the device-reported failure submessage. Its presence in a
// DeviceAuthMessage means the handshake failed (spec §4.4).
type AuthError struct {
	ErrorType AuthErrorType
}

const fieldAuthErrorType protowire.Number = 1

func (e *AuthError) marshalInto(b []byte) []byte {
	b = protowire.AppendTag(b, fieldAuthErrorType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.ErrorType))
	return b
}

func unmarshalAuthError(data []byte) (*AuthError, error) {
	e := &AuthError{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad auth error tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldAuthErrorType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad error_type: %w", protowire.ParseError(n))
			}
			e.ErrorType = AuthErrorType(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad unknown auth error field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

const (
	fieldDeviceAuthChallenge protowire.Number = 1
	fieldDeviceAuthResponse  protowire.Number = 2
	fieldDeviceAuthError     protowire.Number = 3
)

// DeviceAuthMessage wraps exactly one of Challenge/Response/Error,
// mirroring the real protocol's oneof-like usage (only one submessage is
// ever populated in a given frame).
type DeviceAuthMessage struct {
	Challenge *AuthChallenge
	Response  *AuthResponse
	Error     *AuthError
}

// Marshal encodes the message, emitting whichever submessage is set.
func (m *DeviceAuthMessage) Marshal() ([]byte, error) {
	var b []byte
	if m.Challenge != nil {
		sub, err := m.Challenge.Marshal()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, fieldDeviceAuthChallenge, protowire.BytesType)
		b = protowire.AppendBytes(b, sub)
	}
	if m.Response != nil {
		b = protowire.AppendTag(b, fieldDeviceAuthResponse, protowire.BytesType)
		var sub []byte
		sub = m.Response.marshalInto(sub)
		b = protowire.AppendBytes(b, sub)
	}
	if m.Error != nil {
		b = protowire.AppendTag(b, fieldDeviceAuthError, protowire.BytesType)
		var sub []byte
		sub = m.Error.marshalInto(sub)
		b = protowire.AppendBytes(b, sub)
	}
	return b, nil
}

// UnmarshalDeviceAuthMessage decodes a DeviceAuthMessage.
func UnmarshalDeviceAuthMessage(data []byte) (*DeviceAuthMessage, error) {
	m := &DeviceAuthMessage{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wire: bad device auth tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldDeviceAuthChallenge:
			_, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad challenge: %w", protowire.ParseError(n))
			}
			m.Challenge = &AuthChallenge{}
			b = b[n:]
		case fieldDeviceAuthResponse:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad response: %w", protowire.ParseError(n))
			}
			resp, err := unmarshalAuthResponse(v)
			if err != nil {
				return nil, err
			}
			m.Response = resp
			b = b[n:]
		case fieldDeviceAuthError:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad error: %w", protowire.ParseError(n))
			}
			authErr, err := unmarshalAuthError(v)
			if err != nil {
				return nil, err
			}
			m.Error = authErr
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wire: bad unknown device auth field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}
