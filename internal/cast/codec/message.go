package codec

import (
	"encoding/json"
	"fmt"

	"github.com/caststream/castgo/internal/cast/media"
)

// Well-known namespaces (spec §6).
const (
	NamespaceDeviceAuth = "urn:x-cast:com.google.cast.tp.deviceauth"
	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	NamespaceMedia      = "urn:x-cast:com.google.cast.media"
)

// Fixed identities (spec §6).
const (
	ReceiverZero = "receiver-0"
	SenderZero   = "sender-0"
)

// Outgoing message type discriminators (spec §4.3).
const (
	TypePing               = "PING"
	TypePong               = "PONG"
	TypeConnect            = "CONNECT"
	TypeClose              = "CLOSE"
	TypeGetStatus          = "GET_STATUS"
	TypeGetAppAvailability = "GET_APP_AVAILABILITY"
	TypeLaunch             = "LAUNCH"
	TypeStop               = "STOP"
	TypeLoad               = "LOAD"
	TypePlay               = "PLAY"
	TypePause              = "PAUSE"
	TypeSeek               = "SEEK"
	TypeSetVolume          = "SET_VOLUME"
	TypeQueueLoad          = "QUEUE_LOAD"
	TypeQueueUpdate        = "QUEUE_UPDATE"
)

// Incoming responseType discriminators (spec §4.3, §4.5).
const (
	ResponseTypePing                = "PING"
	ResponseTypePong                = "PONG"
	ResponseTypeReceiverStatus      = "RECEIVER_STATUS"
	ResponseTypeMediaStatus         = "MEDIA_STATUS"
	ResponseTypeGetAppAvailability  = "GET_APP_AVAILABILITY"
	ResponseTypeClose               = "CLOSE"
	ResponseTypeLaunchError         = "LAUNCH_ERROR"
	ResponseTypeInvalidPlayerState  = "INVALID_PLAYER_STATE"
	ResponseTypeInvalidRequest      = "INVALID_REQUEST"
	ResponseTypeLoadFailed          = "LOAD_FAILED"
	ResponseTypeLoadCancelled       = "LOAD_CANCELLED"
	ResponseTypeMultizoneStatus     = "MULTIZONE_STATUS"
	ResponseTypeDeviceAdded         = "DEVICE_ADDED"
	ResponseTypeDeviceUpdated       = "DEVICE_UPDATED"
	ResponseTypeDeviceRemoved       = "DEVICE_REMOVED"
)

// PingMessage/PongMessage are the heartbeat namespace's only payloads.
type PingMessage struct {
	Type string `json:"type"`
}

type PongMessage struct {
	Type string `json:"type"`
}

// NewPing and NewPong build the heartbeat payloads; each call returns a
// new value.
func NewPing() *PingMessage { return &PingMessage{Type: TypePing} }
func NewPong() *PongMessage { return &PongMessage{Type: TypePong} }

// ConnectOrigin is always an empty object on the wire (spec §4.4).
type ConnectOrigin struct{}

// ConnectRequest opens a virtual connection to a destination (spec §4.4,
// §4.6).
type ConnectRequest struct {
	Type      string        `json:"type"`
	UserAgent *string       `json:"userAgent"`
	Origin    ConnectOrigin `json:"origin"`
}

// NewConnect builds the CONNECT payload sent on the transport-connection
// namespace, whether to receiver-0 (spec §4.4) or to an app's
// destination id (the "inner CONNECT", spec §4.6).
func NewConnect() *ConnectRequest {
	return &ConnectRequest{Type: TypeConnect, Origin: ConnectOrigin{}}
}

// CloseRequest tears down a virtual connection (spec §4.7).
type CloseRequest struct {
	Type string `json:"type"`
}

func NewClose() *CloseRequest { return &CloseRequest{Type: TypeClose} }

// GetStatusRequest asks the receiver for its current status.
type GetStatusRequest struct {
	Type      string `json:"type"`
	RequestID int64  `json:"requestId"`
}

func NewGetStatus(requestID int64) *GetStatusRequest {
	return &GetStatusRequest{Type: TypeGetStatus, RequestID: requestID}
}

// GetAppAvailabilityRequest asks whether one or more app ids can be
// launched on the device.
type GetAppAvailabilityRequest struct {
	Type      string   `json:"type"`
	AppID     []string `json:"appId"`
	RequestID int64    `json:"requestId"`
}

func NewGetAppAvailability(requestID int64, appIDs []string) *GetAppAvailabilityRequest {
	return &GetAppAvailabilityRequest{Type: TypeGetAppAvailability, AppID: appIDs, RequestID: requestID}
}

// LaunchRequest starts a receiver application.
type LaunchRequest struct {
	Type      string `json:"type"`
	AppID     string `json:"appId"`
	RequestID int64  `json:"requestId"`
}

func NewLaunch(requestID int64, appID string) *LaunchRequest {
	return &LaunchRequest{Type: TypeLaunch, AppID: appID, RequestID: requestID}
}

// ReceiverStopRequest stops the currently running application. It is the
// receiver-namespace sibling of MediaStopRequest: both serialize their
// Type field as "STOP", disambiguated only by which namespace they are
// sent on (spec §9) — callers never decode one as the other because the
// Device façade only ever constructs ReceiverStopRequest and the Session
// façade only ever constructs MediaStopRequest.
type ReceiverStopRequest struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId,omitempty"`
	RequestID   int64  `json:"requestId"`
}

func NewReceiverStop(requestID int64, sessionID string) *ReceiverStopRequest {
	return &ReceiverStopRequest{Type: TypeStop, SessionID: sessionID, RequestID: requestID}
}

// MediaStopRequest stops playback of a loaded media session. See
// ReceiverStopRequest for the namespace-disambiguation note.
type MediaStopRequest struct {
	Type           string          `json:"type"`
	MediaSessionID int64           `json:"mediaSessionId"`
	CustomData     json.RawMessage `json:"customData,omitempty"`
	RequestID      int64           `json:"requestId"`
}

func NewMediaStop(requestID, mediaSessionID int64) *MediaStopRequest {
	return &MediaStopRequest{Type: TypeStop, MediaSessionID: mediaSessionID, RequestID: requestID}
}

// LoadRequest loads a piece of media into an application session (spec
// §4.7).
type LoadRequest struct {
	Type        string          `json:"type"`
	Media       media.Media     `json:"media"`
	Autoplay    bool            `json:"autoplay"`
	CurrentTime float64         `json:"currentTime"`
	CustomData  json.RawMessage `json:"customData,omitempty"`
	RequestID   int64           `json:"requestId"`
	SessionID   string          `json:"sessionId,omitempty"`
}

// PlayRequest / PauseRequest / SeekRequest act on an already-loaded media
// session, identified by MediaSessionID (spec §4.7).
type PlayRequest struct {
	Type           string `json:"type"`
	MediaSessionID int64  `json:"mediaSessionId"`
	RequestID      int64  `json:"requestId"`
}

func NewPlay(requestID, mediaSessionID int64) *PlayRequest {
	return &PlayRequest{Type: TypePlay, MediaSessionID: mediaSessionID, RequestID: requestID}
}

type PauseRequest struct {
	Type           string `json:"type"`
	MediaSessionID int64  `json:"mediaSessionId"`
	RequestID      int64  `json:"requestId"`
}

func NewPause(requestID, mediaSessionID int64) *PauseRequest {
	return &PauseRequest{Type: TypePause, MediaSessionID: mediaSessionID, RequestID: requestID}
}

type SeekRequest struct {
	Type           string  `json:"type"`
	MediaSessionID int64   `json:"mediaSessionId"`
	CurrentTime    float64 `json:"currentTime"`
	RequestID      int64   `json:"requestId"`
}

func NewSeek(requestID, mediaSessionID int64, currentTime float64) *SeekRequest {
	return &SeekRequest{Type: TypeSeek, MediaSessionID: mediaSessionID, CurrentTime: currentTime, RequestID: requestID}
}

// ReceiverSetVolumeRequest adjusts the device's overall output volume.
// See ReceiverStopRequest for the namespace-disambiguation note that
// also applies to SET_VOLUME.
type ReceiverSetVolumeRequest struct {
	Type      string       `json:"type"`
	Volume    media.Volume `json:"volume"`
	RequestID int64        `json:"requestId"`
}

func NewReceiverSetVolume(requestID int64, volume media.Volume) *ReceiverSetVolumeRequest {
	return &ReceiverSetVolumeRequest{Type: TypeSetVolume, Volume: volume, RequestID: requestID}
}

// MediaSetVolumeRequest adjusts a single media stream's volume.
type MediaSetVolumeRequest struct {
	Type           string       `json:"type"`
	MediaSessionID int64        `json:"mediaSessionId"`
	Volume         media.Volume `json:"volume"`
	RequestID      int64        `json:"requestId"`
}

func NewMediaSetVolume(requestID, mediaSessionID int64, volume media.Volume) *MediaSetVolumeRequest {
	return &MediaSetVolumeRequest{Type: TypeSetVolume, MediaSessionID: mediaSessionID, Volume: volume, RequestID: requestID}
}

// QueueLoadRequest and QueueUpdateRequest round out the media façade
// with the queueing operations the real protocol's media namespace
// supports (SPEC_FULL.md "Session" expansion).
type QueueLoadRequest struct {
	Type        string            `json:"type"`
	Items       []media.QueueItem `json:"items"`
	StartIndex  int               `json:"startIndex,omitempty"`
	RepeatMode  string            `json:"repeatMode,omitempty"`
	RequestID   int64             `json:"requestId"`
	SessionID   string            `json:"sessionId,omitempty"`
}

type QueueUpdateRequest struct {
	Type      string            `json:"type"`
	Items     []media.QueueItem `json:"items,omitempty"`
	Jump      int               `json:"jump,omitempty"`
	RequestID int64             `json:"requestId"`
}

// ReceiverStatusResponse carries a device's full status (spec §3).
type ReceiverStatusResponse struct {
	ResponseType string               `json:"responseType"`
	RequestID    int64                `json:"requestId"`
	Status       media.ReceiverStatus `json:"status"`
}

// MediaStatusResponse normalizes the three wire shapes of "status"
// described in spec §4.3 into a slice.
type MediaStatusResponse struct {
	ResponseType string
	RequestID    int64
	Status       []media.MediaStatus
}

// UnmarshalJSON implements the absent/single/array normalization.
func (r *MediaStatusResponse) UnmarshalJSON(data []byte) error {
	var shadow struct {
		ResponseType string          `json:"responseType"`
		RequestID    int64           `json:"requestId"`
		Status       json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	list, err := media.NormalizeMediaStatusList(shadow.Status, data)
	if err != nil {
		return err
	}
	r.ResponseType = shadow.ResponseType
	r.RequestID = shadow.RequestID
	r.Status = list
	return nil
}

// GetAppAvailabilityResponse reports per-app-id launchability.
type GetAppAvailabilityResponse struct {
	ResponseType string            `json:"responseType"`
	RequestID    int64             `json:"requestId"`
	Availability map[string]string `json:"availability"`
}

// AppAvailable is the value GetAppAvailabilityResponse.Availability maps
// an app id to when it can be launched.
const AppAvailable = "APP_AVAILABLE"

// CloseMessage signals that a virtual connection (or the whole channel,
// when unaddressed) should be torn down (spec §4.5, §4.7).
type CloseMessage struct {
	ResponseType string `json:"responseType"`
}

// LaunchErrorResponse reports that LAUNCH failed.
type LaunchErrorResponse struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
	Reason       string `json:"reason,omitempty"`
}

// InvalidRequestResponse reports that the receiver rejected a request.
type InvalidRequestResponse struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
	Reason       string `json:"reason,omitempty"`
}

// InvalidPlayerStateResponse reports an operation was invalid for the
// media session's current player state.
type InvalidPlayerStateResponse struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
}

// LoadFailedResponse reports that LOAD failed outright.
type LoadFailedResponse struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
}

// LoadCancelledResponse reports that LOAD was superseded by another.
type LoadCancelledResponse struct {
	ResponseType string `json:"responseType"`
	RequestID    int64  `json:"requestId"`
	ItemID       *int   `json:"itemId,omitempty"`
}

// MultizoneStatusResponse and the DEVICE_* notifications are recognized
// so the reader can route them (spec §4.3 lists them as known incoming
// types), but their domain-specific fields are outside spec §3's data
// model, so the body is kept as raw JSON for callers who need it.
type MultizoneStatusResponse struct {
	ResponseType string          `json:"responseType"`
	RequestID    int64           `json:"requestId"`
	Raw          json.RawMessage `json:"-"`
}

func (r *MultizoneStatusResponse) UnmarshalJSON(data []byte) error {
	type shadow MultizoneStatusResponse
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = MultizoneStatusResponse(s)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type DeviceAddedResponse struct {
	ResponseType string          `json:"responseType"`
	Raw          json.RawMessage `json:"-"`
}

func (r *DeviceAddedResponse) UnmarshalJSON(data []byte) error {
	type shadow DeviceAddedResponse
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = DeviceAddedResponse(s)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type DeviceUpdatedResponse struct {
	ResponseType string          `json:"responseType"`
	Raw          json.RawMessage `json:"-"`
}

func (r *DeviceUpdatedResponse) UnmarshalJSON(data []byte) error {
	type shadow DeviceUpdatedResponse
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = DeviceUpdatedResponse(s)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type DeviceRemovedResponse struct {
	ResponseType string          `json:"responseType"`
	Raw          json.RawMessage `json:"-"`
}

func (r *DeviceRemovedResponse) UnmarshalJSON(data []byte) error {
	type shadow DeviceRemovedResponse
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = DeviceRemovedResponse(s)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// DecodeResponse unmarshals a rename-adjusted incoming payload into the
// Go type matching responseType (spec §4.3, §4.5). An unrecognized
// responseType is reported via ok=false so the caller can treat the
// payload as an application event instead.
func DecodeResponse(responseType string, raw []byte) (msg any, ok bool, err error) {
	switch responseType {
	case ResponseTypePing:
		var m PingMessage
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypePong:
		var m PongMessage
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeReceiverStatus:
		var m ReceiverStatusResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeMediaStatus:
		var m MediaStatusResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeGetAppAvailability:
		var m GetAppAvailabilityResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeClose:
		var m CloseMessage
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeLaunchError:
		var m LaunchErrorResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeInvalidPlayerState:
		var m InvalidPlayerStateResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeInvalidRequest:
		var m InvalidRequestResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeLoadFailed:
		var m LoadFailedResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeLoadCancelled:
		var m LoadCancelledResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeMultizoneStatus:
		var m MultizoneStatusResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeDeviceAdded:
		var m DeviceAddedResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeDeviceUpdated:
		var m DeviceUpdatedResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	case ResponseTypeDeviceRemoved:
		var m DeviceRemovedResponse
		err = json.Unmarshal(raw, &m)
		return &m, true, err
	default:
		return nil, false, nil
	}
}

// ErrorFromResponse inspects a decoded response for the error variants
// listed in spec §4.5/§7 and returns a descriptive error if the response
// represents one, or nil if the response is a normal result.
func ErrorFromResponse(msg any) error {
	switch m := msg.(type) {
	case *InvalidRequestResponse:
		return fmt.Errorf("cast: invalid request: %s", m.Reason)
	case *LoadFailedResponse:
		return fmt.Errorf("cast: load failed")
	case *LoadCancelledResponse:
		if m.ItemID != nil {
			return fmt.Errorf("cast: load cancelled (item %d)", *m.ItemID)
		}
		return fmt.Errorf("cast: load cancelled")
	case *LaunchErrorResponse:
		return fmt.Errorf("cast: launch error: %s", m.Reason)
	case *InvalidPlayerStateResponse:
		return fmt.Errorf("cast: invalid player state")
	default:
		return nil
	}
}
