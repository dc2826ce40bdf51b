// Package device implements the application-scoped façade over a cast
// channel (spec §4.8): connect lifecycle, receiver-level controls, and
// session creation, plus the mDNS discovery-record parsing that builds a
// Device descriptor in the first place.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/caststream/castgo/internal/cast/channel"
	"github.com/caststream/castgo/internal/cast/codec"
	"github.com/caststream/castgo/internal/cast/media"
	"github.com/caststream/castgo/internal/cast/registry"
	"github.com/caststream/castgo/internal/cast/session"
)

// DefaultPort is the Cast receiver's well-known TLS port (spec §6).
const DefaultPort = 8009

// caster is the subset of *channel.Channel the façade depends on,
// narrowed the same way internal/cast/session narrows its requester
// collaborator so tests can substitute a fake channel. It is a
// superset of session's own requester interface so a Device can hand
// its channel straight to session.New.
type caster interface {
	Connect(ctx context.Context) error
	Close() error
	State() channel.State
	SourceID() string
	Request(ctx context.Context, destinationID, namespace string, requestID int64, payload any) (any, error)
	Send(destinationID, namespace string, payload any) error
	NextRequestID() int64
	EnsureConnection(destinationID string) error
	CloseConnection(destinationID string) error
	Listeners() *registry.Listeners
}

var friendlyNamePattern = regexp.MustCompile(`\s*([^\s-]+)-[A-Fa-f0-9]*\s*`)

// Device is a discovered (or manually constructed) Cast receiver,
// identified by its mDNS discovery fields, with a façade over the
// channel connected to it (spec §4.8).
type Device struct {
	ID              string
	DNSName         string
	Address         string
	Port            int
	Capabilities    Capabilities
	FriendlyName    string
	ModelName       string
	IconPath        string
	ProtocolVersion int

	autoReconnect    bool
	reconnectLimiter *rate.Limiter
	logger           *slog.Logger

	mu sync.Mutex
	ch caster
}

// Option configures a Device at construction time, matching the
// Channel package's functional-option idiom.
type Option func(*Device)

// WithAutoReconnect enables transparent single-attempt reconnection on
// any operation that finds the channel closed (spec §4.8).
func WithAutoReconnect(enabled bool) Option {
	return func(d *Device) { d.autoReconnect = enabled }
}

// WithReconnectLimiter overrides the default reconnect rate limiter (1
// attempt per 5s, burst 1), so a persistently unreachable device cannot
// spin the caller's goroutine redialing TLS (SPEC_FULL.md Device façade
// expansion).
func WithReconnectLimiter(l *rate.Limiter) Option {
	return func(d *Device) { d.reconnectLimiter = l }
}

// WithLogger sets the device's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) { d.logger = logger }
}

// New builds a Device bound to a freshly constructed Channel at
// addr (host:port), applying opts. The channel starts Closed; call
// Connect to open it.
func New(addr string, opts ...Option) *Device {
	d := &Device{Address: addr, Port: DefaultPort}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.reconnectLimiter == nil {
		d.reconnectLimiter = rate.NewLimiter(rate.Every(5*time.Second), 1)
	}
	chOpts := []channel.Option{channel.WithLogger(d.logger)}
	d.ch = channel.New(addr, uuid.New().String(), chOpts...)
	return d
}

// newWithCaster is the test seam: it skips real Channel construction
// entirely, letting tests substitute a fake caster.
func newWithCaster(ch caster, opts ...Option) *Device {
	d := &Device{ch: ch}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.reconnectLimiter == nil {
		d.reconnectLimiter = rate.NewLimiter(rate.Every(5*time.Second), 1)
	}
	return d
}

// DisplayName derives a human-readable name deterministically (spec
// §4.8): the friendly name if set, otherwise the leading token of the
// DNS name up to its trailing `-hexid` suffix, otherwise a fixed
// placeholder. The model name is appended in parentheses when present
// and distinct from the base name.
func (d *Device) DisplayName() string {
	base := d.FriendlyName
	if base == "" {
		if m := friendlyNamePattern.FindStringSubmatch(d.DNSName); len(m) == 2 {
			base = m[1]
		} else {
			base = "Unidentified cast device"
		}
	}
	if d.ModelName != "" && d.ModelName != base {
		return fmt.Sprintf("%s (%s)", base, d.ModelName)
	}
	return base
}

// Connect dials, authenticates, and opens the transport-level virtual
// connection to the device (spec §4.8).
func (d *Device) Connect(ctx context.Context) error {
	return d.ch.Connect(ctx)
}

// Disconnect closes the channel. Idempotent (spec §5).
func (d *Device) Disconnect() error {
	return d.ch.Close()
}

// IsConnected reports whether the underlying channel is Open.
func (d *Device) IsConnected() bool {
	return d.ch.State() == channel.StateOpen
}

// ensureOpen transparently reconnects once when the channel is closed
// and autoReconnect is enabled, rate-limited so a persistently
// unreachable device cannot be hammered with TLS handshakes (spec
// §4.8, SPEC_FULL.md Device façade expansion). With autoReconnect
// disabled, a closed channel fails immediately with ErrClosed.
func (d *Device) ensureOpen(ctx context.Context) error {
	if d.ch.State() == channel.StateOpen {
		return nil
	}
	if !d.autoReconnect {
		return channel.ErrClosed
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch.State() == channel.StateOpen {
		return nil
	}
	if !d.reconnectLimiter.Allow() {
		return channel.ErrDisconnected
	}
	return d.ch.Connect(ctx)
}

// GetReceiverStatus fetches the device's current status (spec §4.8).
func (d *Device) GetReceiverStatus(ctx context.Context) (*media.ReceiverStatus, error) {
	if err := d.ensureOpen(ctx); err != nil {
		return nil, err
	}
	reqID := d.ch.NextRequestID()
	resp, err := d.ch.Request(ctx, codec.ReceiverZero, codec.NamespaceReceiver, reqID, codec.NewGetStatus(reqID))
	if err != nil {
		return nil, err
	}
	status, ok := resp.(*codec.ReceiverStatusResponse)
	if !ok {
		return nil, &channel.ProtocolError{Detail: fmt.Sprintf("unexpected response type %T for GET_STATUS", resp)}
	}
	return &status.Status, nil
}

// IsApplicationAvailable reports whether appID can be launched (spec
// §4.8).
func (d *Device) IsApplicationAvailable(ctx context.Context, appID string) (bool, error) {
	if err := d.ensureOpen(ctx); err != nil {
		return false, err
	}
	reqID := d.ch.NextRequestID()
	resp, err := d.ch.Request(ctx, codec.ReceiverZero, codec.NamespaceReceiver, reqID, codec.NewGetAppAvailability(reqID, []string{appID}))
	if err != nil {
		return false, err
	}
	avail, ok := resp.(*codec.GetAppAvailabilityResponse)
	if !ok {
		return false, &channel.ProtocolError{Detail: fmt.Sprintf("unexpected response type %T for GET_APP_AVAILABILITY", resp)}
	}
	return avail.Availability[appID] == codec.AppAvailable, nil
}

// LaunchApplication starts appID on the receiver, returning the
// launched application's descriptor on success (spec §4.8).
// synchronous=false fires the request without waiting for a reply.
func (d *Device) LaunchApplication(ctx context.Context, appID string, synchronous bool) (*media.Application, error) {
	if err := d.ensureOpen(ctx); err != nil {
		return nil, err
	}
	reqID := d.ch.NextRequestID()
	req := codec.NewLaunch(reqID, appID)
	if !synchronous {
		return nil, d.ch.Send(codec.ReceiverZero, codec.NamespaceReceiver, req)
	}
	resp, err := d.ch.Request(ctx, codec.ReceiverZero, codec.NamespaceReceiver, reqID, req)
	if err != nil {
		return nil, err
	}
	status, ok := resp.(*codec.ReceiverStatusResponse)
	if !ok {
		return nil, &channel.ProtocolError{Detail: fmt.Sprintf("unexpected response type %T for LAUNCH", resp)}
	}
	for i := range status.Status.Applications {
		if status.Status.Applications[i].AppID == appID {
			return &status.Status.Applications[i], nil
		}
	}
	return nil, &channel.LaunchError{Reason: "launched application not present in receiver status"}
}

// StopApplication stops a running application (spec §4.8). It sends
// STOP on the receiver namespace, the namespace that disambiguates it
// from a session-scoped media STOP (spec §9).
func (d *Device) StopApplication(ctx context.Context, app media.Application, synchronous bool) error {
	if err := d.ensureOpen(ctx); err != nil {
		return err
	}
	reqID := d.ch.NextRequestID()
	req := codec.NewReceiverStop(reqID, app.SessionID)
	if !synchronous {
		return d.ch.Send(codec.ReceiverZero, codec.NamespaceReceiver, req)
	}
	_, err := d.ch.Request(ctx, codec.ReceiverZero, codec.NamespaceReceiver, reqID, req)
	return err
}

// ActiveApplication fetches the receiver's current status and returns
// the running application matching appID, for callers that want to
// reattach a Session to an already-launched app rather than calling
// LaunchApplication again (spec §4.8). It returns
// channel.ErrNoApplicationRunning when appID is not among the
// receiver's reported applications.
func (d *Device) ActiveApplication(ctx context.Context, appID string) (*media.Application, error) {
	status, err := d.GetReceiverStatus(ctx)
	if err != nil {
		return nil, err
	}
	for i := range status.Applications {
		if status.Applications[i].AppID == appID {
			return &status.Applications[i], nil
		}
	}
	return nil, channel.ErrNoApplicationRunning
}

// StartSession binds a Session to a running application (spec §3,
// §4.8). senderID identifies the caller for logging/correlation; the
// session itself always presents the channel's own source id on the
// wire (spec §3: "sender id (inherited from Channel)").
func (d *Device) StartSession(senderID string, app media.Application) (*session.Session, error) {
	if app.TransportID == "" {
		return nil, &channel.InvalidRequestError{Reason: "application has no transport id"}
	}
	d.logger.Debug("starting session", "sender_id", senderID, "transport_id", app.TransportID, "session_id", app.SessionID)
	return session.New(d.ch, app.TransportID, app.SessionID)
}

// SetVolume sends a caller-built media.Volume directly to the receiver
// (spec §4.8), surfacing FixedVolume if the device cannot be adjusted.
func (d *Device) SetVolume(ctx context.Context, v media.Volume) error {
	status, err := d.GetReceiverStatus(ctx)
	if err != nil {
		return err
	}
	if status.Volume.ControlType == media.VolumeControlFixed {
		return channel.ErrFixedVolume
	}
	return d.setVolume(ctx, v, true)
}

// SetVolumeLevel sets the device's master volume level, clamping to
// [0,1] and stepping the change when the receiver reports
// VolumeControlType MASTER and the jump exceeds its advertised step
// increment (spec §4.8, §8).
func (d *Device) SetVolumeLevel(ctx context.Context, level float64) error {
	level = clampUnit(level)

	status, err := d.GetReceiverStatus(ctx)
	if err != nil {
		return err
	}
	if status.Volume.ControlType == media.VolumeControlFixed {
		return channel.ErrFixedVolume
	}

	current := 0.0
	if status.Volume.Level != nil {
		current = *status.Volume.Level
	}

	if status.Volume.ControlType != media.VolumeControlMaster || status.Volume.StepInterval <= 0 {
		return d.sendVolumeLevel(ctx, level)
	}

	step := status.Volume.StepInterval
	for math.Abs(level-current) > step {
		if level > current {
			current += step
		} else {
			current -= step
		}
		if err := d.sendVolumeLevel(ctx, current); err != nil {
			return err
		}
		// Re-fetch rather than trust our own arithmetic: the device may
		// clamp or round each step differently than this client predicts.
		status, err = d.GetReceiverStatus(ctx)
		if err != nil {
			return err
		}
		if status.Volume.Level != nil {
			current = *status.Volume.Level
		}
	}
	return d.sendVolumeLevel(ctx, level)
}

func (d *Device) sendVolumeLevel(ctx context.Context, level float64) error {
	l := level
	return d.setVolume(ctx, media.Volume{Level: &l}, true)
}

// SetMuteState mutes or unmutes the device (spec §4.8).
func (d *Device) SetMuteState(ctx context.Context, muted bool) error {
	return d.setVolume(ctx, media.Volume{Muted: &muted}, true)
}

func (d *Device) setVolume(ctx context.Context, v media.Volume, synchronous bool) error {
	if err := d.ensureOpen(ctx); err != nil {
		return err
	}
	reqID := d.ch.NextRequestID()
	req := codec.NewReceiverSetVolume(reqID, v)
	if !synchronous {
		return d.ch.Send(codec.ReceiverZero, codec.NamespaceReceiver, req)
	}
	_, err := d.ch.Request(ctx, codec.ReceiverZero, codec.NamespaceReceiver, reqID, req)
	return err
}

func clampUnit(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
