// Package media defines the subset of the Cast media domain model needed
// for routing, identity, and state (spec §3); the domain-specific JSON
// fields of every metadata flavor are left as opaque maps/raw messages,
// per spec.md §1's explicit scope note.
package media

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StreamType classifies how a piece of content is delivered. The wire
// form is case-insensitive (spec §4.3: "BUFFERED" or "buffered" must both
// parse); a decoded value is stored in canonical upper case and so
// marshals back out that way. There is no custom MarshalJSON: a value set
// directly in Go marshals exactly as stored.
type StreamType string

const (
	StreamTypeBuffered StreamType = "BUFFERED"
	StreamTypeLive     StreamType = "LIVE"
	StreamTypeNone     StreamType = "NONE"
)

// UnmarshalJSON accepts any case and canonicalizes to upper case.
func (s *StreamType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = StreamType(strings.ToUpper(raw))
	return nil
}

// PlayerState reflects the receiver's media playback state. BUFFERING
// extends the core IDLE/PLAYING/PAUSED set (spec §3); LOADING is a
// further receiver-reported extension carried through unmodified.
type PlayerState string

const (
	PlayerStateIdle       PlayerState = "IDLE"
	PlayerStatePlaying    PlayerState = "PLAYING"
	PlayerStatePaused     PlayerState = "PAUSED"
	PlayerStateBuffering  PlayerState = "BUFFERING"
	PlayerStateLoading    PlayerState = "LOADING"
)

// UnmarshalJSON accepts any case and canonicalizes to upper case.
func (s *PlayerState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = PlayerState(strings.ToUpper(raw))
	return nil
}

// IdleReason explains why PlayerState became IDLE.
type IdleReason string

const (
	IdleReasonCancelled   IdleReason = "CANCELLED"
	IdleReasonInterrupted IdleReason = "INTERRUPTED"
	IdleReasonFinished    IdleReason = "FINISHED"
	IdleReasonError       IdleReason = "ERROR"
)

// UnmarshalJSON accepts any case and canonicalizes to upper case.
func (s *IdleReason) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = IdleReason(strings.ToUpper(raw))
	return nil
}

// VolumeControlType describes how a device's volume may be adjusted.
type VolumeControlType string

const (
	VolumeControlMaster      VolumeControlType = "MASTER"
	VolumeControlAttenuation VolumeControlType = "ATTENUATION"
	VolumeControlFixed       VolumeControlType = "FIXED"
)

// UnmarshalJSON accepts any case and canonicalizes to upper case.
func (s *VolumeControlType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = VolumeControlType(strings.ToUpper(raw))
	return nil
}

// Volume describes a device's or media stream's audio level.
type Volume struct {
	Level       *float64           `json:"level,omitempty"`
	Muted       *bool              `json:"muted,omitempty"`
	StepInterval float64           `json:"stepInterval,omitempty"`
	ControlType VolumeControlType  `json:"controlType,omitempty"`
}

// Application describes a running receiver application (spec §3).
type Application struct {
	AppID       string   `json:"appId"`
	SessionID   string   `json:"sessionId"`
	DisplayName string   `json:"displayName,omitempty"`
	StatusText  string   `json:"statusText,omitempty"`
	TransportID string   `json:"transportId"`
	Namespaces  []AppNamespace `json:"namespaces,omitempty"`
	IsIdleScreen bool    `json:"isIdleScreen,omitempty"`
}

// AppNamespace is one namespace a running application supports.
type AppNamespace struct {
	Name string `json:"name"`
}

// ReceiverStatus is the device-level status reported in RECEIVER_STATUS
// responses (spec §3).
type ReceiverStatus struct {
	Volume       Volume        `json:"volume"`
	Applications []Application `json:"applications,omitempty"`
	IsActiveInput *bool        `json:"isActiveInput,omitempty"`
}

// Media identifies a piece of content (spec §3). Only the fields that
// participate in routing, identity, or state are modeled; everything
// else domain-specific rides along in Metadata/CustomData.
type Media struct {
	ContentID      string            `json:"contentId"`
	ContentURL     string            `json:"contentUrl,omitempty"`
	ContentType    string            `json:"contentType,omitempty"`
	StreamType     StreamType        `json:"streamType,omitempty"`
	Duration       float64           `json:"duration,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	Tracks         []json.RawMessage `json:"tracks,omitempty"`
	TextTrackStyle json.RawMessage   `json:"textTrackStyle,omitempty"`
	CustomData     json.RawMessage   `json:"customData,omitempty"`
}

// QueueItem is one entry of a media session's queue (spec §3).
type QueueItem struct {
	ItemID       int             `json:"itemId,omitempty"`
	Media        *Media          `json:"media,omitempty"`
	Autoplay     bool            `json:"autoplay,omitempty"`
	CustomData   json.RawMessage `json:"customData,omitempty"`
	StartTime    float64         `json:"startTime,omitempty"`
	PreloadTime  float64         `json:"preloadTime,omitempty"`
}

// MediaStatus is one entry of a MEDIA_STATUS response (spec §3).
//
// mediaSessionId is modeled as a 64-bit signed integer on the wire
// regardless of what a given receiver firmware emits, per the explicit
// instruction in spec §9 (the source's own int-vs-long uncertainty must
// not be carried into this client).
type MediaStatus struct {
	MediaSessionID int64       `json:"mediaSessionId"`
	PlayerState    PlayerState `json:"playerState"`
	IdleReason     IdleReason  `json:"idleReason,omitempty"`
	CurrentTime    float64     `json:"currentTime,omitempty"`
	Volume         Volume      `json:"volume,omitempty"`
	Media          *Media      `json:"media,omitempty"`
	Items          []QueueItem `json:"items,omitempty"`
	RepeatMode     string      `json:"repeatMode,omitempty"`
}

// NormalizeMediaStatusList accepts the three shapes a MEDIA_STATUS
// response's "status" field may take on the wire — absent, a single
// object, or an array — and always returns a slice (spec §4.3, §8).
// When status is absent, the envelope itself is treated as the single
// status object, matching real receiver firmware that sometimes flattens
// a one-item MEDIA_STATUS onto the top-level response object.
func NormalizeMediaStatusList(raw json.RawMessage, fallback json.RawMessage) ([]MediaStatus, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		if len(bytes.TrimSpace(fallback)) == 0 {
			return nil, nil
		}
		var single MediaStatus
		if err := json.Unmarshal(fallback, &single); err != nil {
			return nil, err
		}
		return []MediaStatus{single}, nil
	}

	if trimmed[0] == '[' {
		var list []MediaStatus
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var single MediaStatus
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []MediaStatus{single}, nil
}
