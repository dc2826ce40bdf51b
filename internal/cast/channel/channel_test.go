package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/caststream/castgo/internal/cast/codec"
	"github.com/caststream/castgo/internal/cast/frame"
	"github.com/caststream/castgo/internal/cast/transport"
	"github.com/caststream/castgo/internal/cast/wire"
)

// pipeStream adapts one half of a net.Pipe to transport.Stream.
type pipeStream struct{ net.Conn }

// fakeDevice drives the other half of the pipe, performing the auth
// handshake and replying to CONNECT with nothing further required.
type fakeDevice struct {
	reader *frame.Reader
	writer *frame.Writer
}

func newFakeDevice(conn net.Conn) *fakeDevice {
	return &fakeDevice{reader: frame.NewReader(conn), writer: frame.NewWriter(conn)}
}

func (d *fakeDevice) handshake(t *testing.T) {
	t.Helper()
	raw, err := d.reader.ReadFrame()
	if err != nil {
		t.Fatalf("device read auth challenge: %v", err)
	}
	env, err := wire.UnmarshalCastMessage(raw)
	if err != nil {
		t.Fatalf("device unmarshal auth envelope: %v", err)
	}
	if env.Namespace != codec.NamespaceDeviceAuth {
		t.Fatalf("expected auth namespace, got %s", env.Namespace)
	}

	reply := &wire.DeviceAuthMessage{Response: &wire.AuthResponse{Signature: []byte("sig")}}
	payload, err := reply.Marshal()
	if err != nil {
		t.Fatalf("marshal auth reply: %v", err)
	}
	replyEnv := &wire.CastMessage{
		ProtocolVersion: wire.CastV2_1_0,
		SourceID:        "receiver-0",
		DestinationID:   env.SourceID,
		Namespace:       codec.NamespaceDeviceAuth,
		PayloadType:     wire.PayloadTypeBinary,
		PayloadBinary:   payload,
	}
	replyRaw, err := replyEnv.Marshal()
	if err != nil {
		t.Fatalf("marshal auth reply envelope: %v", err)
	}
	if err := d.writer.WriteFrame(replyRaw); err != nil {
		t.Fatalf("write auth reply: %v", err)
	}

	connRaw, err := d.reader.ReadFrame()
	if err != nil {
		t.Fatalf("device read CONNECT: %v", err)
	}
	connEnv, err := wire.UnmarshalCastMessage(connRaw)
	if err != nil {
		t.Fatalf("device unmarshal CONNECT: %v", err)
	}
	if connEnv.Namespace != codec.NamespaceConnection {
		t.Fatalf("expected connection namespace, got %s", connEnv.Namespace)
	}
}

func (d *fakeDevice) handshakeWithAuthError(t *testing.T) {
	t.Helper()
	raw, err := d.reader.ReadFrame()
	if err != nil {
		t.Fatalf("device read auth challenge: %v", err)
	}
	env, err := wire.UnmarshalCastMessage(raw)
	if err != nil {
		t.Fatalf("device unmarshal auth envelope: %v", err)
	}
	if env.Namespace != codec.NamespaceDeviceAuth {
		t.Fatalf("expected auth namespace, got %s", env.Namespace)
	}

	reply := &wire.DeviceAuthMessage{Error: &wire.AuthError{ErrorType: wire.AuthErrorSignatureAlgorithmUnsupported}}
	payload, err := reply.Marshal()
	if err != nil {
		t.Fatalf("marshal auth error reply: %v", err)
	}
	replyEnv := &wire.CastMessage{
		ProtocolVersion: wire.CastV2_1_0,
		SourceID:        "receiver-0",
		DestinationID:   env.SourceID,
		Namespace:       codec.NamespaceDeviceAuth,
		PayloadType:     wire.PayloadTypeBinary,
		PayloadBinary:   payload,
	}
	replyRaw, err := replyEnv.Marshal()
	if err != nil {
		t.Fatalf("marshal auth error envelope: %v", err)
	}
	if err := d.writer.WriteFrame(replyRaw); err != nil {
		t.Fatalf("write auth error reply: %v", err)
	}
}

func (d *fakeDevice) sendJSON(t *testing.T, sourceID, destinationID, namespace string, payload any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := &wire.CastMessage{
		ProtocolVersion: wire.CastV2_1_0,
		SourceID:        sourceID,
		DestinationID:   destinationID,
		Namespace:       namespace,
		PayloadType:     wire.PayloadTypeString,
		PayloadUTF8:     string(body),
	}
	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if err := d.writer.WriteFrame(raw); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func newConnectedChannel(t *testing.T) (*Channel, *fakeDevice, net.Conn) {
	t.Helper()
	clientConn, deviceConn := net.Pipe()

	ch := New("device:8009", "sender-0",
		WithDialer(func(ctx context.Context, addr string) (transport.Stream, error) {
			return pipeStream{clientConn}, nil
		}),
		WithHeartbeat(10*time.Second, 30*time.Second),
	)

	device := newFakeDevice(deviceConn)
	handshakeDone := make(chan struct{})
	go func() {
		device.handshake(t)
		close(handshakeDone)
	}()

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	<-handshakeDone

	return ch, device, deviceConn
}

func TestChannelConnectReachesOpenState(t *testing.T) {
	ch, _, conn := newConnectedChannel(t)
	defer conn.Close()
	defer ch.Close()

	if ch.State() != StateOpen {
		t.Fatalf("state = %s, want Open", ch.State())
	}
}

func TestChannelRequestResponseCorrelation(t *testing.T) {
	ch, device, conn := newConnectedChannel(t)
	defer conn.Close()
	defer ch.Close()

	reqID := ch.NextRequestID()
	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := ch.Request(context.Background(), "receiver-0", codec.NamespaceReceiver, reqID, codec.NewGetStatus(reqID))
		if err != nil {
			t.Errorf("request: %v", err)
			return
		}
		status, ok := resp.(*codec.ReceiverStatusResponse)
		if !ok {
			t.Errorf("got %T", resp)
			return
		}
		if status.RequestID != reqID {
			t.Errorf("requestId = %d, want %d", status.RequestID, reqID)
		}
	}()

	// Let the request land before replying, matching real round-trip
	// timing.
	time.Sleep(20 * time.Millisecond)
	device.sendJSON(t, "receiver-0", "sender-0", codec.NamespaceReceiver, map[string]any{
		"type":      "RECEIVER_STATUS",
		"requestId": reqID,
		"status":    map[string]any{},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}
}

func TestChannelPingIsAnsweredWithPong(t *testing.T) {
	ch, device, conn := newConnectedChannel(t)
	defer conn.Close()
	defer ch.Close()

	device.sendJSON(t, "receiver-0", "sender-0", codec.NamespaceHeartbeat, codec.NewPing())

	raw, err := device.reader.ReadFrame()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	env, err := wire.UnmarshalCastMessage(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var pong map[string]any
	if err := json.Unmarshal([]byte(env.PayloadUTF8), &pong); err != nil {
		t.Fatalf("unmarshal pong: %v", err)
	}
	if pong["type"] != "PONG" {
		t.Fatalf("got %v", pong)
	}
}

func TestChannelCloseFailsOutstandingRequests(t *testing.T) {
	ch, _, conn := newConnectedChannel(t)
	defer conn.Close()

	reqID := ch.NextRequestID()
	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Request(context.Background(), "receiver-0", codec.NamespaceReceiver, reqID, codec.NewGetStatus(reqID))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected an error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request never unblocked after close")
	}
}

func TestChannelDisconnectDetectedByReadLoop(t *testing.T) {
	ch, _, conn := newConnectedChannel(t)
	defer ch.Close()

	conn.Close()

	deadline := time.After(2 * time.Second)
	for ch.State() != StateClosed {
		select {
		case <-deadline:
			t.Fatalf("state never reached Closed, stuck at %s", ch.State())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func readConnectFrame(t *testing.T, device *fakeDevice) *wire.CastMessage {
	t.Helper()
	raw, err := device.reader.ReadFrame()
	if err != nil {
		t.Fatalf("device read frame: %v", err)
	}
	env, err := wire.UnmarshalCastMessage(raw)
	if err != nil {
		t.Fatalf("device unmarshal frame: %v", err)
	}
	return env
}

func TestChannelEnsureConnectionDedupesInnerConnect(t *testing.T) {
	ch, device, conn := newConnectedChannel(t)
	defer conn.Close()
	defer ch.Close()

	// Drain frames in the background rather than synchronously: a
	// net.Pipe write blocks until read, so a concurrent burst of
	// EnsureConnection calls would otherwise deadlock against a
	// single-shot reader.
	frames := make(chan *wire.CastMessage, 8)
	go func() {
		for {
			raw, err := device.reader.ReadFrame()
			if err != nil {
				return
			}
			env, err := wire.UnmarshalCastMessage(raw)
			if err != nil {
				return
			}
			frames <- env
		}
	}()

	const dest = "web-1"
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			if err := ch.EnsureConnection(dest); err != nil {
				t.Errorf("ensure connection: %v", err)
			}
		}()
	}
	wg.Wait()

	var first *wire.CastMessage
	select {
	case first = <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inner CONNECT")
	}
	if first.Namespace != codec.NamespaceConnection || first.DestinationID != dest {
		t.Fatalf("got namespace=%s destination=%s, want connection/%s", first.Namespace, first.DestinationID, dest)
	}

	select {
	case extra := <-frames:
		t.Fatalf("unexpected extra CONNECT frame for a deduped destination: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}

	// A second, distinct destination still gets its own inner CONNECT:
	// dedup is keyed per destination, not global.
	if err := ch.EnsureConnection("web-2"); err != nil {
		t.Fatalf("ensure connection (second dest): %v", err)
	}
	select {
	case second := <-frames:
		if second.DestinationID != "web-2" {
			t.Fatalf("got destination=%s, want web-2", second.DestinationID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second inner CONNECT")
	}
}

func TestChannelCloseConnectionSendsInnerClose(t *testing.T) {
	ch, device, conn := newConnectedChannel(t)
	defer conn.Close()
	defer ch.Close()

	const dest = "web-1"
	if err := ch.CloseConnection(dest); err != nil {
		t.Fatalf("close connection: %v", err)
	}

	env := readConnectFrame(t, device)
	if env.Namespace != codec.NamespaceConnection || env.DestinationID != dest {
		t.Fatalf("got namespace=%s destination=%s, want connection/%s", env.Namespace, env.DestinationID, dest)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(env.PayloadUTF8), &body); err != nil {
		t.Fatalf("unmarshal close payload: %v", err)
	}
	if body["type"] != "CLOSE" {
		t.Fatalf("got %v, want type=CLOSE", body)
	}
}

func TestChannelConnectFailsOnAuthenticationError(t *testing.T) {
	clientConn, deviceConn := net.Pipe()
	defer clientConn.Close()
	defer deviceConn.Close()

	ch := New("device:8009", "sender-0",
		WithDialer(func(ctx context.Context, addr string) (transport.Stream, error) {
			return pipeStream{clientConn}, nil
		}),
	)

	device := newFakeDevice(deviceConn)
	handshakeDone := make(chan struct{})
	go func() {
		device.handshakeWithAuthError(t)
		close(handshakeDone)
	}()

	err := ch.Connect(context.Background())
	<-handshakeDone

	var authErr *AuthenticationFailedError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v (%T), want *AuthenticationFailedError", err, err)
	}
	if authErr.ErrorType != int32(wire.AuthErrorSignatureAlgorithmUnsupported) {
		t.Fatalf("errorType = %d, want %d", authErr.ErrorType, wire.AuthErrorSignatureAlgorithmUnsupported)
	}
	if ch.State() != StateClosed {
		t.Fatalf("state = %s, want Closed", ch.State())
	}
}
