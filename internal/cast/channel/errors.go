package channel

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is (spec §7).
var (
	// ErrDisconnected is returned by any in-flight or new operation once
	// the underlying transport has gone away.
	ErrDisconnected = errors.New("cast: channel disconnected")

	// ErrTimeout is returned when a request's deadline elapses before a
	// matching response arrives.
	ErrTimeout = errors.New("cast: request timed out")

	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("cast: channel closed")

	// ErrFixedVolume is returned by a volume-changing call when the
	// receiver reports VolumeControlType FIXED (spec §7).
	ErrFixedVolume = errors.New("cast: device volume is fixed")

	// ErrNoApplicationRunning is returned by a media operation when no
	// application session is active (spec §7).
	ErrNoApplicationRunning = errors.New("cast: no application running")

	// ErrCancelled is returned when a caller's context is cancelled
	// before a response arrives.
	ErrCancelled = errors.New("cast: request cancelled")
)

// AuthenticationFailedError reports a rejected auth challenge (spec §4.4,
// §7), carrying the wire AuthErrorType so callers can distinguish
// "signature invalid" from "unsupported key" and so on.
type AuthenticationFailedError struct {
	ErrorType int32
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("cast: device authentication failed (error_type=%d)", e.ErrorType)
}

// InvalidRequestError reports a receiver-rejected request (spec §4.5,
// §7).
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	if e.Reason == "" {
		return "cast: invalid request"
	}
	return fmt.Sprintf("cast: invalid request: %s", e.Reason)
}

// LaunchError reports that LAUNCH failed (spec §4.5, §7).
type LaunchError struct {
	Reason string
}

func (e *LaunchError) Error() string {
	if e.Reason == "" {
		return "cast: launch failed"
	}
	return fmt.Sprintf("cast: launch failed: %s", e.Reason)
}

// LoadFailedError reports that LOAD failed outright (spec §4.7, §7).
type LoadFailedError struct{}

func (e *LoadFailedError) Error() string { return "cast: load failed" }

// LoadCancelledError reports that LOAD was superseded by a subsequent
// load, optionally naming the queue item that was cancelled.
type LoadCancelledError struct {
	ItemID *int
}

func (e *LoadCancelledError) Error() string {
	if e.ItemID != nil {
		return fmt.Sprintf("cast: load cancelled (item %d)", *e.ItemID)
	}
	return "cast: load cancelled"
}

// InvalidPlayerStateError reports an operation invalid for the media
// session's current player state (spec §4.7, §7).
type InvalidPlayerStateError struct{}

func (e *InvalidPlayerStateError) Error() string { return "cast: invalid player state" }

// ProtocolError wraps a framing or envelope violation (spec §5, §8):
// oversize frames, malformed protobuf, payload-type/payload mismatches.
type ProtocolError struct {
	Detail string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cast: protocol error: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("cast: protocol error: %s", e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }
