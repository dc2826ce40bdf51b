// Package frame implements the length-prefixed framing that carries a
// binary-encoded CastMessage over a byte stream (spec §4.1).
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// MaxLength bounds the accepted frame payload size. The real protocol
// never sends anything close to this; the cap exists so a corrupt or
// hostile 32-bit length prefix cannot force an unbounded allocation.
const MaxLength = 64 * 1024

// ErrDisconnected is returned by ReadFrame when the stream ends, whether
// cleanly at a frame boundary or partway through a frame. Short reads
// that are followed by more data are not disconnects (spec §4.1).
var ErrDisconnected = errors.New("frame: disconnected")

// ErrFrameTooLarge is returned when a length prefix exceeds MaxLength.
var ErrFrameTooLarge = errors.New("frame: frame too large")

// Reader reads length-prefixed frames from an underlying stream. It is
// not safe for concurrent use: the cast channel's reader loop is the
// sole owner of the read half of the connection (spec §5).
type Reader struct {
	r io.Reader
}

// NewReader wraps r for framed reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame blocks until a full frame is available, the stream errors, or
// the peer disconnects cleanly at a frame boundary.
func (fr *Reader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrDisconnected
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// The stream ended inside the length prefix; reported as
			// ErrDisconnected, the same as a clean EOF.
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("frame: read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxLength {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrDisconnected
		}
		return nil, fmt.Errorf("frame: read payload: %w", err)
	}
	return payload, nil
}

// Writer writes length-prefixed frames to an underlying stream. A single
// mutex serializes writes so the 4-byte length prefix and payload of a
// frame are always contiguous on the wire, even with concurrent callers
// (spec §4.1, §5).
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w for framed writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes payload as a single length-prefixed frame.
func (fw *Writer) WriteFrame(payload []byte) error {
	if len(payload) > MaxLength {
		return ErrFrameTooLarge
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	// Combine into one buffer so a single Write call carries the whole
	// frame, rather than a bare length prefix followed by a separate
	// payload write.
	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)

	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("frame: write: %w", err)
	}
	return nil
}
