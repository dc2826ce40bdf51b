package device

import "testing"

func TestNewDeviceFromRecordDefaultsMissingFields(t *testing.T) {
	d := NewDeviceFromRecord(DiscoveryRecord{
		DNSName: "Chromecast-abcdef01.local.",
		IP:      "192.168.1.50",
		TXT:     map[string]string{"id": "abc123", "fn": "Living Room TV"},
	})

	if d.Capabilities != 0 {
		t.Fatalf("ca default = %v, want 0", d.Capabilities)
	}
	if d.ProtocolVersion != -1 {
		t.Fatalf("ve default = %d, want -1", d.ProtocolVersion)
	}
	if d.Port != DefaultPort {
		t.Fatalf("port = %d, want %d", d.Port, DefaultPort)
	}
	if d.FriendlyName != "Living Room TV" {
		t.Fatalf("friendly name = %q", d.FriendlyName)
	}
}

func TestNewDeviceFromRecordNonNumericFieldsDefault(t *testing.T) {
	d := NewDeviceFromRecord(DiscoveryRecord{
		TXT: map[string]string{"ca": "not-a-number", "ve": ""},
	})
	if d.Capabilities != 0 {
		t.Fatalf("ca = %v, want 0", d.Capabilities)
	}
	if d.ProtocolVersion != -1 {
		t.Fatalf("ve = %d, want -1", d.ProtocolVersion)
	}
}

func TestNewDeviceFromRecordParsesNumericFields(t *testing.T) {
	d := NewDeviceFromRecord(DiscoveryRecord{
		Port: 8010,
		TXT:  map[string]string{"ca": "5", "ve": "2", "md": "Chromecast Ultra"},
	})
	if d.Capabilities != Capabilities(5) {
		t.Fatalf("ca = %v, want 5", d.Capabilities)
	}
	if !d.Capabilities.Has(CapabilityVideoOut) || !d.Capabilities.Has(CapabilityAudioOut) {
		t.Fatalf("expected video_out|audio_out bits set, got %s", d.Capabilities)
	}
	if d.ProtocolVersion != 2 {
		t.Fatalf("ve = %d, want 2", d.ProtocolVersion)
	}
	if d.Port != 8010 {
		t.Fatalf("port = %d, want 8010", d.Port)
	}
	if d.ModelName != "Chromecast Ultra" {
		t.Fatalf("model = %q", d.ModelName)
	}
}

func TestCapabilitiesStringNamesVolumeControlBits(t *testing.T) {
	c := CapabilityMasterVolumeControl | CapabilityAttenuationVolumeControl
	got := c.String()
	if got != "master_volume_control|attenuation_volume_control" {
		t.Fatalf("got %q", got)
	}
}

func TestCapabilitiesStringNoneAndUnknownBits(t *testing.T) {
	if got := Capabilities(0).String(); got != "none" {
		t.Fatalf("got %q", got)
	}
	if got := Capabilities(1 << 20).String(); got == "none" {
		t.Fatalf("expected a non-none rendering for an unrecognized bit, got %q", got)
	}
}
