// Package channel implements the cast channel itself: the TLS transport,
// device-auth handshake, heartbeat keepalive, and request/response
// correlation that every higher-level concept (receiver status, media
// sessions) is built on top of (spec §4, §5).
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/caststream/castgo/internal/cast/codec"
	"github.com/caststream/castgo/internal/cast/frame"
	"github.com/caststream/castgo/internal/cast/registry"
	"github.com/caststream/castgo/internal/cast/transport"
	"github.com/caststream/castgo/internal/cast/wire"
)

const (
	// DefaultConnectTimeout bounds the dial+auth+CONNECT sequence as one
	// operation (SPEC_FULL.md Channel expansion).
	DefaultConnectTimeout = 10 * time.Second
	// DefaultRequestTimeout bounds an individual request/response
	// round trip once the channel is open.
	DefaultRequestTimeout = 5 * time.Second
	// DefaultHeartbeatInterval is how often PING is sent while open
	// (spec §4.4: every 10-30s; 30s matches the source).
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultHeartbeatTimeout is how long to wait for a PONG, or any
	// traffic, before declaring the connection dead (spec §4.4).
	DefaultHeartbeatTimeout = 60 * time.Second

	// ReceiverZeroDestination is the always-connected virtual connection
	// to the receiver platform itself (spec §4.4).
	ReceiverZeroDestination = codec.ReceiverZero
)

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Channel) { c.connectTimeout = d }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Channel) { c.requestTimeout = d }
}

// WithHeartbeat overrides the heartbeat interval/timeout.
func WithHeartbeat(interval, timeout time.Duration) Option {
	return func(c *Channel) {
		c.heartbeatInterval = interval
		c.heartbeatTimeout = timeout
	}
}

// WithLogger attaches a logger; nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithUserAgent sets the userAgent field sent on every CONNECT (spec
// §4.4).
func WithUserAgent(ua string) Option {
	return func(c *Channel) { c.userAgent = ua }
}

// WithDialer overrides how the underlying stream is opened, primarily so
// tests can substitute an in-memory transport.Stream.
func WithDialer(dial func(ctx context.Context, addr string) (transport.Stream, error)) Option {
	return func(c *Channel) { c.dial = dial }
}

// Channel is a single TLS connection to one Cast device, multiplexing
// every virtual connection and request/response exchange that rides on
// top of it (spec §3, §5).
type Channel struct {
	addr      string
	sourceID  string
	userAgent string

	connectTimeout    time.Duration
	requestTimeout    time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	logger *slog.Logger
	dial   func(ctx context.Context, addr string) (transport.Stream, error)

	mu     sync.Mutex
	state  State
	stream transport.Stream
	writer *frame.Writer
	cancel context.CancelFunc

	nextRequestID int64

	pending   *registry.Pending
	listeners *registry.Listeners
	connectSF singleflight.Group

	lastActivityNano atomic.Int64
}

// New creates a Channel for the device at addr (host:port). The channel
// starts Closed; call Connect to open it.
func New(addr, sourceID string, opts ...Option) *Channel {
	c := &Channel{
		addr:              addr,
		sourceID:          sourceID,
		connectTimeout:    DefaultConnectTimeout,
		requestTimeout:    DefaultRequestTimeout,
		heartbeatInterval: DefaultHeartbeatInterval,
		heartbeatTimeout:  DefaultHeartbeatTimeout,
		state:             StateClosed,
		dial:              transport.DialTLS,
		pending:           registry.NewPending(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.listeners = registry.NewListeners(c.logger)
	return c
}

// State reports the channel's current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Listeners exposes the event fan-out registry so callers (Session,
// Device) can subscribe to unsolicited status pushes.
func (c *Channel) Listeners() *registry.Listeners { return c.listeners }

// SourceID is the identity this channel presents on every outgoing
// envelope (spec §3: "sender id (inherited from Channel)").
func (c *Channel) SourceID() string { return c.sourceID }

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanTransitionTo(next) {
		return &StateTransitionError{From: c.state, To: next}
	}
	c.state = next
	return nil
}

// StateTransitionError reports an illegal Channel state transition.
type StateTransitionError struct {
	From State
	To   State
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cast: channel cannot transition from %s to %s", e.From, e.To)
}

// Connect dials the device, performs the device-auth handshake, sends
// the transport-level CONNECT, and starts the reader and heartbeat
// goroutines (spec §4.4).
func (c *Channel) Connect(ctx context.Context) error {
	if err := c.transition(StateConnecting); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	stream, err := c.dial(ctx, c.addr)
	if err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("cast: connect: %w", err)
	}

	// Hold the auth exchange and CONNECT to the same deadline as the dial.
	deadliner, canDeadline := stream.(interface{ SetDeadline(time.Time) error })
	if deadline, ok := ctx.Deadline(); ok && canDeadline {
		_ = deadliner.SetDeadline(deadline)
	}

	reader := frame.NewReader(stream)
	writer := frame.NewWriter(stream)

	if err := c.authenticate(reader, writer); err != nil {
		stream.Close()
		c.setState(StateClosed)
		return err
	}

	if err := c.sendConnect(writer, ReceiverZeroDestination); err != nil {
		stream.Close()
		c.setState(StateClosed)
		return err
	}
	if canDeadline {
		_ = deadliner.SetDeadline(time.Time{})
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.stream = stream
	c.writer = writer
	c.cancel = runCancel
	c.mu.Unlock()
	c.pending.Reset()

	c.setState(StateOpen)
	c.touchActivity()

	go c.run(runCtx, reader)

	return nil
}

func (c *Channel) authenticate(r *frame.Reader, w *frame.Writer) error {
	challenge := &wire.DeviceAuthMessage{Challenge: &wire.AuthChallenge{}}
	payload, err := challenge.Marshal()
	if err != nil {
		return &ProtocolError{Detail: "marshal auth challenge", Cause: err}
	}

	env := &wire.CastMessage{
		ProtocolVersion: wire.CastV2_1_0,
		SourceID:        c.sourceID,
		DestinationID:   ReceiverZeroDestination,
		Namespace:       codec.NamespaceDeviceAuth,
		PayloadType:     wire.PayloadTypeBinary,
		PayloadBinary:   payload,
	}
	raw, err := env.Marshal()
	if err != nil {
		return &ProtocolError{Detail: "marshal auth envelope", Cause: err}
	}
	if err := w.WriteFrame(raw); err != nil {
		return &ProtocolError{Detail: "write auth challenge", Cause: err}
	}

	replyRaw, err := r.ReadFrame()
	if err != nil {
		return translateFrameError(err)
	}
	replyEnv, err := wire.UnmarshalCastMessage(replyRaw)
	if err != nil {
		return &ProtocolError{Detail: "unmarshal auth reply envelope", Cause: err}
	}
	reply, err := wire.UnmarshalDeviceAuthMessage(replyEnv.PayloadBinary)
	if err != nil {
		return &ProtocolError{Detail: "unmarshal auth reply", Cause: err}
	}
	if reply.Error != nil {
		return &AuthenticationFailedError{ErrorType: int32(reply.Error.ErrorType)}
	}
	if reply.Response == nil {
		return &ProtocolError{Detail: "auth reply had neither response nor error"}
	}
	return nil
}

func (c *Channel) sendConnect(w *frame.Writer, destinationID string) error {
	var ua *string
	if c.userAgent != "" {
		ua = &c.userAgent
	}
	req := &codec.ConnectRequest{Type: codec.TypeConnect, UserAgent: ua}
	return c.writeJSON(w, destinationID, codec.NamespaceConnection, req)
}

func (c *Channel) writeJSON(w *frame.Writer, destinationID, namespace string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ProtocolError{Detail: "marshal json payload", Cause: err}
	}
	env := &wire.CastMessage{
		ProtocolVersion: wire.CastV2_1_0,
		SourceID:        c.sourceID,
		DestinationID:   destinationID,
		Namespace:       namespace,
		PayloadType:     wire.PayloadTypeString,
		PayloadUTF8:     string(body),
	}
	raw, err := env.Marshal()
	if err != nil {
		return &ProtocolError{Detail: "marshal envelope", Cause: err}
	}
	if err := w.WriteFrame(raw); err != nil {
		return translateFrameError(err)
	}
	return nil
}

// Send transmits payload to destinationID on namespace without waiting
// for a reply (spec §4.5's "fire and forget" path, e.g. heartbeats and
// CLOSE).
func (c *Channel) Send(destinationID, namespace string, payload any) error {
	c.mu.Lock()
	w := c.writer
	state := c.state
	c.mu.Unlock()
	if state != StateOpen {
		return ErrDisconnected
	}
	return c.writeJSON(w, destinationID, namespace, payload)
}

// Request transmits payload carrying requestID and blocks until a
// response correlated by that id arrives, the channel disconnects, or
// ctx is done (spec §4.5).
func (c *Channel) Request(ctx context.Context, destinationID, namespace string, requestID int64, payload any) (any, error) {
	wait, err := c.pending.Register(requestID)
	if err != nil {
		return nil, ErrDisconnected
	}
	if err := c.Send(destinationID, namespace, payload); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	msg, err := wait(reqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, err
	}
	if respErr := codec.ErrorFromResponse(msg); respErr != nil {
		return nil, translateResponseError(respErr, msg)
	}
	return msg, nil
}

// NextRequestID returns a fresh, channel-unique request id (spec §4.5).
func (c *Channel) NextRequestID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRequestID++
	return c.nextRequestID
}

// EnsureConnection sends the "inner CONNECT" to destinationID, collapsing
// concurrent calls for the same destination onto one CONNECT via
// singleflight (spec §4.6, SPEC_FULL.md Channel expansion). The channel
// keeps no record of destinations it has already connected: a call made
// after an earlier call for the same destination has returned sends
// another CONNECT.
func (c *Channel) EnsureConnection(destinationID string) error {
	_, err, _ := c.connectSF.Do(destinationID, func() (any, error) {
		c.mu.Lock()
		w := c.writer
		state := c.state
		c.mu.Unlock()
		if state != StateOpen {
			return nil, ErrDisconnected
		}
		return nil, c.sendConnect(w, destinationID)
	})
	return err
}

// CloseConnection tears down a virtual connection to destinationID
// without closing the whole channel (spec §4.7).
func (c *Channel) CloseConnection(destinationID string) error {
	return c.Send(destinationID, codec.NamespaceConnection, codec.NewClose())
}

// Close tears the channel down: cancels the reader/heartbeat group,
// closes the transport, and fails every outstanding request (spec §4.7).
func (c *Channel) Close() error {
	_ = c.transition(StateClosing) // already closed/closing is not an error for Close

	c.mu.Lock()
	cancel := c.cancel
	stream := c.stream
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.pending.Cancel(ErrDisconnected)
	var err error
	if stream != nil {
		err = stream.Close()
	}
	c.setState(StateClosed)
	return err
}

// run supervises the reader and heartbeat goroutines as a pair: either
// one failing cancels the other and tears the channel down, giving the
// "exactly one reader and one heartbeat alive while Open" invariant a
// concrete implementation (spec §3, SPEC_FULL.md Channel expansion).
func (c *Channel) run(ctx context.Context, reader *frame.Reader) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx, reader) })
	g.Go(func() error { return c.heartbeatLoop(gctx) })

	if err := g.Wait(); err != nil {
		c.logger.Warn("cast channel run loop ended", "error", err)
	}
	c.pending.Cancel(ErrDisconnected)

	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	c.setState(StateClosed)
}

func (c *Channel) readLoop(ctx context.Context, reader *frame.Reader) error {
	for {
		raw, err := reader.ReadFrame()
		if err != nil {
			return translateFrameError(err)
		}
		c.touchActivity()

		env, err := wire.UnmarshalCastMessage(raw)
		if err != nil {
			c.logger.Warn("cast: dropping malformed envelope", "error", err)
			continue
		}

		if err := c.dispatch(env); err != nil {
			c.logger.Warn("cast: dispatch failed", "error", err, "namespace", env.Namespace)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Channel) dispatch(env *wire.CastMessage) error {
	var body []byte
	if env.PayloadType == wire.PayloadTypeString {
		body = []byte(env.PayloadUTF8)
	} else {
		body = env.PayloadBinary
	}

	renamed := codec.RenameTypeToResponseType(body)
	var peek codec.Envelope
	if err := json.Unmarshal(renamed, &peek); err != nil {
		return fmt.Errorf("cast: peek response envelope: %w", err)
	}

	if peek.ResponseType == codec.ResponseTypePing {
		return c.Send(env.SourceID, env.Namespace, codec.NewPong())
	}
	if peek.ResponseType == codec.ResponseTypePong {
		return nil
	}

	msg, ok, err := codec.DecodeResponse(peek.ResponseType, renamed)
	if err != nil {
		return err
	}
	if !ok {
		// Unrecognized responseType: treat as an application-namespace
		// event rather than a standard response (spec §4.5).
		c.listeners.Dispatch(registry.Event{Namespace: env.Namespace, SourceID: env.SourceID, DestinationID: env.DestinationID, Message: renamed})
		return nil
	}

	if peek.RequestID != 0 && c.pending.Fulfill(peek.RequestID, msg) {
		return nil
	}

	c.listeners.Dispatch(registry.Event{Namespace: env.Namespace, SourceID: env.SourceID, DestinationID: env.DestinationID, Message: msg})
	return nil
}

func (c *Channel) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Since(c.lastActivity()) > c.heartbeatTimeout {
				return ErrTimeout
			}
			if err := c.Send(ReceiverZeroDestination, codec.NamespaceHeartbeat, codec.NewPing()); err != nil {
				return err
			}
		}
	}
}

func (c *Channel) touchActivity() {
	c.lastActivityNano.Store(time.Now().UnixNano())
}

func (c *Channel) lastActivity() time.Time {
	return time.Unix(0, c.lastActivityNano.Load())
}

func translateFrameError(err error) error {
	switch {
	case errors.Is(err, frame.ErrDisconnected):
		return ErrDisconnected
	case errors.Is(err, frame.ErrFrameTooLarge):
		return &ProtocolError{Detail: "frame too large"}
	default:
		return &ProtocolError{Detail: "frame read/write", Cause: err}
	}
}

// translateResponseError maps a decoded error-shaped response to one of
// the typed channel errors (spec §7), preserving the structured fields
// codec.ErrorFromResponse's generic text would otherwise discard.
func translateResponseError(genericErr error, msg any) error {
	switch m := msg.(type) {
	case *codec.InvalidRequestResponse:
		return &InvalidRequestError{Reason: m.Reason}
	case *codec.LaunchErrorResponse:
		return &LaunchError{Reason: m.Reason}
	case *codec.LoadFailedResponse:
		return &LoadFailedError{}
	case *codec.LoadCancelledResponse:
		return &LoadCancelledError{ItemID: m.ItemID}
	case *codec.InvalidPlayerStateResponse:
		return &InvalidPlayerStateError{}
	default:
		return genericErr
	}
}
