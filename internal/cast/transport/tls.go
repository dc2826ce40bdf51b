// Package transport provides the TLS byte-stream transport a cast
// channel is built on (spec §4.2). It mirrors the teacher's
// Transport-interface-plus-concrete-implementation shape (compare
// services/signaling/transport.Transport), narrowed to the one
// responsibility this spec assigns the transport layer: open a framed
// byte stream to a device and let the channel own everything above it.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Stream is a bidirectional byte stream plus a Close. *tls.Conn satisfies
// it; tests substitute an in-memory net.Pipe half.
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DialTLS opens a TCP connection to addr and wraps it in TLS.
//
// Cast devices present self-signed certificates; per spec §1/§4.2 the
// cryptographic trust is established by the in-protocol DeviceAuthMessage
// challenge, not by the TLS handshake, so certificate verification is
// intentionally disabled here. There is no SNI or ALPN requirement.
func DialTLS(ctx context.Context, addr string) (Stream, error) {
	dialer := &net.Dialer{}
	tlsDialer := tls.Dialer{
		NetDialer: dialer,
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // see package doc: trust is re-established in-protocol
		},
	}

	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return conn, nil
}
