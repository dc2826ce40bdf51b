// Package session implements the virtual-connection/media-control
// façade that sits on top of a cast channel (spec §4.7). A Session binds
// a destination id (the running application's transport id) and a
// session id assigned by the receiver at LAUNCH time, and exposes the
// media operations scoped to that one running application.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/caststream/castgo/internal/cast/channel"
	"github.com/caststream/castgo/internal/cast/codec"
	"github.com/caststream/castgo/internal/cast/media"
	"github.com/caststream/castgo/internal/cast/registry"
)

// requester is the subset of *channel.Channel a Session depends on. It
// exists so tests can substitute a fake without standing up a real TLS
// handshake (compare the teacher's narrow collaborator interfaces, e.g.
// internal/signaling/b2bua's dial/transfer seams).
type requester interface {
	Request(ctx context.Context, destinationID, namespace string, requestID int64, payload any) (any, error)
	Send(destinationID, namespace string, payload any) error
	NextRequestID() int64
	EnsureConnection(destinationID string) error
	CloseConnection(destinationID string) error
	Listeners() *registry.Listeners
}

// ClosedByPeerFunc is invoked at most once, only when the receiver
// initiated the teardown rather than the local caller (spec §4.7).
type ClosedByPeerFunc func()

// Session is a virtual connection to one running receiver application
// (spec §3's "Session" type). It holds a non-owning reference to its
// Channel: the Channel never tracks Session objects and keeps no
// per-destination record of them (spec §4.7's cyclic-reference note), so
// a Session going out of scope never leaks through the Channel.
type Session struct {
	ch            requester
	destinationID string
	sessionID     string

	mu             sync.Mutex
	closed         bool
	closedByPeer   ClosedByPeerFunc
	listenerHandle int
	hasListener    bool
}

// New binds a Session to destinationID/sessionID over ch, sending the
// inner CONNECT that establishes the virtual connection (spec §4.6,
// §4.7).
func New(ch requester, destinationID, sessionID string) (*Session, error) {
	if err := ch.EnsureConnection(destinationID); err != nil {
		return nil, err
	}
	s := &Session{ch: ch, destinationID: destinationID, sessionID: sessionID}
	s.listenerHandle = ch.Listeners().Add(registry.ListenerFunc(s.receive))
	s.hasListener = true
	return s, nil
}

// DestinationID is the running application's transport id.
func (s *Session) DestinationID() string { return s.destinationID }

// SessionID is the id the receiver assigned at LAUNCH time.
func (s *Session) SessionID() string { return s.sessionID }

// OnClosedByPeer registers the listener invoked when the receiver closes
// this session unilaterally (spec §4.7). Only the most recently
// registered callback is kept.
func (s *Session) OnClosedByPeer(fn ClosedByPeerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closedByPeer = fn
}

func (s *Session) receive(e registry.Event) {
	if _, ok := e.Message.(*codec.CloseMessage); !ok {
		return
	}
	// The channel's listener registry is shared by every Session bound to
	// it (spec §4.7's non-owning Channel<->Session relationship), so a
	// CLOSE addressed to one application's virtual connection must not be
	// mistaken for a peer close of another concurrently open Session.
	// The receiver always names the closing application's own transport
	// id as the envelope's source (spec §4.4, §6's source_id/destination_id
	// addressing): only react when that matches this session's
	// destination id.
	if e.SourceID != s.destinationID {
		return
	}
	s.markClosed(true)
}

func (s *Session) markClosed(byPeer bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	fn := s.closedByPeer
	if s.hasListener {
		s.ch.Listeners().Remove(s.listenerHandle)
		s.hasListener = false
	}
	s.mu.Unlock()

	if byPeer && fn != nil {
		fn()
	}
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return channel.ErrClosed
	}
	return nil
}

// Load loads media into this session (spec §4.7). When synchronous is
// false the frame is sent without registering a waiter and Load returns
// (nil, nil) immediately.
func (s *Session) Load(ctx context.Context, m media.Media, autoplay bool, currentTime float64, customData []byte, synchronous bool) (*media.MediaStatus, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	reqID := s.ch.NextRequestID()
	req := &codec.LoadRequest{
		Type:        codec.TypeLoad,
		Media:       m,
		Autoplay:    autoplay,
		CurrentTime: currentTime,
		CustomData:  customData,
		RequestID:   reqID,
		SessionID:   s.sessionID,
	}
	if !synchronous {
		return nil, s.ch.Send(s.destinationID, codec.NamespaceMedia, req)
	}
	resp, err := s.ch.Request(ctx, s.destinationID, codec.NamespaceMedia, reqID, req)
	if err != nil {
		return nil, err
	}
	return firstMediaStatus(resp)
}

// Play resumes playback of mediaSessionID (spec §4.7).
func (s *Session) Play(ctx context.Context, mediaSessionID int64, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return codec.NewPlay(reqID, mediaSessionID)
	})
}

// Pause pauses playback of mediaSessionID (spec §4.7).
func (s *Session) Pause(ctx context.Context, mediaSessionID int64, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return codec.NewPause(reqID, mediaSessionID)
	})
}

// Seek moves playback of mediaSessionID to currentTime (spec §4.7).
func (s *Session) Seek(ctx context.Context, mediaSessionID int64, currentTime float64, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return codec.NewSeek(reqID, mediaSessionID, currentTime)
	})
}

// Stop stops playback of mediaSessionID. It sends STOP on the media
// namespace, which the receiver distinguishes from a receiver-level STOP
// purely by which namespace it arrived on (spec §4.7, §9).
func (s *Session) Stop(ctx context.Context, mediaSessionID int64, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return codec.NewMediaStop(reqID, mediaSessionID)
	})
}

// SetVolume adjusts the volume of mediaSessionID's stream. It sends
// SET_VOLUME on the media namespace, disambiguated from the receiver's
// device-wide SET_VOLUME by namespace (spec §4.7, §9).
func (s *Session) SetVolume(ctx context.Context, mediaSessionID int64, volume media.Volume, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return codec.NewMediaSetVolume(reqID, mediaSessionID, volume)
	})
}

func (s *Session) mediaAction(ctx context.Context, synchronous bool, build func(reqID int64) any) (*media.MediaStatus, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	reqID := s.ch.NextRequestID()
	req := build(reqID)
	if !synchronous {
		return nil, s.ch.Send(s.destinationID, codec.NamespaceMedia, req)
	}
	resp, err := s.ch.Request(ctx, s.destinationID, codec.NamespaceMedia, reqID, req)
	if err != nil {
		return nil, err
	}
	return firstMediaStatus(resp)
}

// GetMediaStatus blocks for the newest MediaStatus (spec §4.7).
func (s *Session) GetMediaStatus(ctx context.Context) (*media.MediaStatus, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	reqID := s.ch.NextRequestID()
	resp, err := s.ch.Request(ctx, s.destinationID, codec.NamespaceMedia, reqID, codec.NewGetStatus(reqID))
	if err != nil {
		return nil, err
	}
	return firstMediaStatus(resp)
}

// QueueLoad replaces the session's queue and starts playback at
// startIndex (SPEC_FULL.md Session expansion).
func (s *Session) QueueLoad(ctx context.Context, items []media.QueueItem, startIndex int, repeatMode string, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return &codec.QueueLoadRequest{
			Type:       codec.TypeQueueLoad,
			Items:      items,
			StartIndex: startIndex,
			RepeatMode: repeatMode,
			RequestID:  reqID,
			SessionID:  s.sessionID,
		}
	})
}

// QueueNext advances to the next queue item (SPEC_FULL.md Session
// expansion).
func (s *Session) QueueNext(ctx context.Context, synchronous bool) (*media.MediaStatus, error) {
	return s.queueJump(ctx, 1, synchronous)
}

// QueuePrev returns to the previous queue item (SPEC_FULL.md Session
// expansion).
func (s *Session) QueuePrev(ctx context.Context, synchronous bool) (*media.MediaStatus, error) {
	return s.queueJump(ctx, -1, synchronous)
}

func (s *Session) queueJump(ctx context.Context, jump int, synchronous bool) (*media.MediaStatus, error) {
	return s.mediaAction(ctx, synchronous, func(reqID int64) any {
		return &codec.QueueUpdateRequest{Type: codec.TypeQueueUpdate, Jump: jump, RequestID: reqID}
	})
}

// Close tears the session down: sends CLOSE to the destination, and
// fires no peer-close callback since this teardown was locally
// initiated (spec §4.7).
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.ch.CloseConnection(s.destinationID)
	s.markClosed(false)
	return err
}

func firstMediaStatus(resp any) (*media.MediaStatus, error) {
	status, ok := resp.(*codec.MediaStatusResponse)
	if !ok {
		return nil, errors.New("cast: expected a MEDIA_STATUS response")
	}
	if len(status.Status) == 0 {
		return nil, nil
	}
	return &status.Status[0], nil
}
