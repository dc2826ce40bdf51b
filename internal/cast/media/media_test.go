package media

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStreamTypeCaseInsensitive(t *testing.T) {
	var m Media
	if err := json.Unmarshal([]byte(`{"contentId":"x","streamType":"buffered"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.StreamType != StreamTypeBuffered {
		t.Fatalf("got %q, want %q", m.StreamType, StreamTypeBuffered)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"streamType":"BUFFERED"`) {
		t.Fatalf("expected canonical upper case in %s", data)
	}
}

func TestNormalizeMediaStatusListAbsent(t *testing.T) {
	fallback := json.RawMessage(`{"mediaSessionId":7,"playerState":"PLAYING"}`)
	got, err := NormalizeMediaStatusList(nil, fallback)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 1 || got[0].MediaSessionID != 7 {
		t.Fatalf("got %+v", got)
	}
}

func TestNormalizeMediaStatusListSingleObject(t *testing.T) {
	raw := json.RawMessage(`{"mediaSessionId":1,"playerState":"PAUSED"}`)
	got, err := NormalizeMediaStatusList(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 1 || got[0].PlayerState != PlayerStatePaused {
		t.Fatalf("got %+v", got)
	}
}

func TestNormalizeMediaStatusListArray(t *testing.T) {
	raw := json.RawMessage(`[{"mediaSessionId":1},{"mediaSessionId":2},{"mediaSessionId":3}]`)
	got, err := NormalizeMediaStatusList(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
}

func TestNormalizeMediaStatusListEmptyArray(t *testing.T) {
	raw := json.RawMessage(`[]`)
	got, err := NormalizeMediaStatusList(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}

func TestMediaSessionIDIs64Bit(t *testing.T) {
	// A value that would truncate if decoded into int32.
	raw := json.RawMessage(`{"mediaSessionId":9007199254740991,"playerState":"IDLE"}`)
	got, err := NormalizeMediaStatusList(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got[0].MediaSessionID != 9007199254740991 {
		t.Fatalf("got %d", got[0].MediaSessionID)
	}
}
