package device

import (
	"net"
	"strconv"
)

// DiscoveryRecord models the output of the external mDNS collaborator
// (spec §6): a `_googlecast._tcp.local.` service instance with its
// advertised TXT record.
type DiscoveryRecord struct {
	DNSName string
	IP      string
	Port    int
	TXT     map[string]string
}

// Capabilities is the bitmask a device advertises in its `ca` TXT
// record entry, describing input/output abilities (spec §6, §9's
// glossary).
type Capabilities uint32

// Individual capability bits, in the order real Cast firmware reports
// them in the `ca` field.
const (
	CapabilityVideoOut Capabilities = 1 << iota
	CapabilityVideoIn
	CapabilityAudioOut
	CapabilityAudioIn
	CapabilityMultizoneGroup
	CapabilityMasterVolumeControl
	CapabilityAttenuationVolumeControl
)

// Has reports whether flag is set.
func (c Capabilities) Has(flag Capabilities) bool {
	return c&flag != 0
}

// String renders the set bits for logging, matching the teacher's
// LegState.String() idiom of a fixed name per flag.
func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	names := []struct {
		flag Capabilities
		name string
	}{
		{CapabilityVideoOut, "video_out"},
		{CapabilityVideoIn, "video_in"},
		{CapabilityAudioOut, "audio_out"},
		{CapabilityAudioIn, "audio_in"},
		{CapabilityMultizoneGroup, "multizone_group"},
		{CapabilityMasterVolumeControl, "master_volume_control"},
		{CapabilityAttenuationVolumeControl, "attenuation_volume_control"},
	}
	s := ""
	for _, n := range names {
		if c.Has(n.flag) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "unknown(" + strconv.FormatUint(uint64(c), 10) + ")"
	}
	return s
}

// NewDeviceFromRecord builds a Device descriptor from a discovered
// record, applying the TXT-record defaulting rules of spec §6/§8:
// a missing or non-numeric `ca` or `ve` defaults to 0 / -1 rather than
// failing the discovery.
func NewDeviceFromRecord(rec DiscoveryRecord) *Device {
	caps, _ := strconv.ParseUint(rec.TXT["ca"], 10, 32)

	protocolVersion := -1
	if raw, ok := rec.TXT["ve"]; ok && raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			protocolVersion = v
		}
	}

	port := resolvePort(rec.Port)
	d := New(net.JoinHostPort(rec.IP, strconv.Itoa(port)))
	d.ID = rec.TXT["id"]
	d.DNSName = rec.DNSName
	d.Address = rec.IP
	d.Port = port
	d.Capabilities = Capabilities(caps)
	d.FriendlyName = rec.TXT["fn"]
	d.ModelName = rec.TXT["md"]
	d.IconPath = rec.TXT["ic"]
	d.ProtocolVersion = protocolVersion
	return d
}

func resolvePort(port int) int {
	if port == 0 {
		return DefaultPort
	}
	return port
}
