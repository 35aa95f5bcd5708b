package story

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"15s", 15 * time.Second, false},
		{"30s", 30 * time.Second, false},
		{"1min", time.Minute, false},
		{"2min", 2 * time.Minute, false},
		{"15 seconds", 15 * time.Second, false},
		{"1 minute", time.Minute, false},
		{"1m30s", 90 * time.Second, false},
		{"0s", 0, true},
		{"1ms", time.Millisecond, false},
		{"0.000001ms", 0, true},
		{"0.0001s", 0, true},
		{"0.5ms", 0, true},
		{"999us", 0, true},
		{"", 0, true},
		{"forever", 0, true},
		{"30", 0, true},
		{"10 hours", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLength(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDurationFallsBackToDefault(t *testing.T) {
	req := DefaultRequest()
	req.Length = "a while"

	d, cerr := req.Duration()
	if d != DefaultDuration {
		t.Errorf("Expected default %v, got %v", DefaultDuration, d)
	}
	if cerr == nil || cerr.Field != "length" {
		t.Errorf("Expected ConfigError for length, got %v", cerr)
	}
	if req.DurationMs() != 30000 {
		t.Errorf("Expected 30000 ms, got %d", req.DurationMs())
	}

	req.Length = "0.000001ms"
	if d, cerr := req.Duration(); d != DefaultDuration || cerr == nil {
		t.Errorf("Expected sub-millisecond length to fall back, got %v, %v", d, cerr)
	}
}

func TestRequestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	preset := []byte(`prompt: A lighthouse keeper befriends a whale
voice: Female (Calm)
aspect_ratio: "9:16"
quality: 4K
subtitles: false
`)
	if err := os.WriteFile(path, preset, 0644); err != nil {
		t.Fatal(err)
	}

	req, err := LoadRequest(path)
	if err != nil {
		t.Fatalf("LoadRequest failed: %v", err)
	}
	if req.Voice != VoiceFemaleCalm || req.AspectRatio != Aspect9x16 || req.Quality != Quality4K {
		t.Errorf("Unexpected enums: voice=%s aspect=%s quality=%s", req.Voice, req.AspectRatio, req.Quality)
	}
	if req.Subtitles {
		t.Error("Expected subtitles to be disabled")
	}
	// untouched fields keep their defaults
	if req.Length != "30s" || req.Language != English {
		t.Errorf("Expected defaults for missing fields, got length=%q language=%s", req.Length, req.Language)
	}

	out := filepath.Join(t.TempDir(), "out.yaml")
	if err := WriteRequest(req, out); err != nil {
		t.Fatalf("WriteRequest failed: %v", err)
	}
	again, err := LoadRequest(out)
	if err != nil {
		t.Fatalf("LoadRequest failed: %v", err)
	}
	if again != req {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", again, req)
	}
}

func TestLoadRequestRejectsUnknownOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("aspect_ratio: \"21:9\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRequest(path); err == nil {
		t.Error("Expected error for unknown aspect ratio")
	}
}

func TestEnumJSON(t *testing.T) {
	var req GenerationRequest
	body := `{"voice":"male-news","aspect_ratio":"Instagram","music_style":"upbeat"}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if req.Voice != VoiceMaleNews {
		t.Errorf("Expected %s, got %s", VoiceMaleNews, req.Voice)
	}
	if req.AspectRatio != Aspect1x1 || req.AspectRatio.Label() != "Instagram" {
		t.Errorf("Expected 1:1 Instagram, got %s %s", req.AspectRatio, req.AspectRatio.Label())
	}
	if req.MusicStyle != MusicUpbeat {
		t.Errorf("Expected Upbeat, got %s", req.MusicStyle)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back["voice"] != "Male (News-style)" {
		t.Errorf("Expected canonical voice name, got %v", back["voice"])
	}
}
