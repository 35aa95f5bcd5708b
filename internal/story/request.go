package story

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDuration is used whenever a requested length cannot be understood.
const DefaultDuration = 30 * time.Second

// LengthPresets are the lengths offered by the configuration form.
var LengthPresets = []string{"15s", "30s", "1min", "2min"}

// GenerationRequest is everything a caller chooses before a run. It is not modified during a run.
type GenerationRequest struct {
	Prompt        string        `yaml:"prompt" json:"prompt"`
	Language      Language      `yaml:"language" json:"language"`
	Voice         Voice         `yaml:"voice" json:"voice"`
	Length        string        `yaml:"length" json:"length"`
	AspectRatio   AspectRatio   `yaml:"aspect_ratio" json:"aspect_ratio"`
	Quality       Quality       `yaml:"quality" json:"quality"`
	MusicStyle    MusicStyle    `yaml:"music_style" json:"music_style"`
	Subtitles     bool          `yaml:"subtitles" json:"subtitles"`
	SubtitleStyle SubtitleStyle `yaml:"subtitle_style" json:"subtitle_style"`
}

// DefaultRequest mirrors the initial state of the configuration form.
func DefaultRequest() GenerationRequest {
	return GenerationRequest{
		Prompt:        "A young girl discovers a hidden village in the mountains at sunset, filled with magical creatures.",
		Language:      English,
		Voice:         VoiceMaleYoung,
		Length:        "30s",
		AspectRatio:   Aspect16x9,
		Quality:       Quality1080p,
		MusicStyle:    MusicCinematic,
		Subtitles:     true,
		SubtitleStyle: SubtitleCinematic,
	}
}

// ConfigError reports a request field that could not be used as given.
// It is recovered locally by substituting a default.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var lengthPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]*)$`)

// ParseLength converts a semantic length ("15s", "30 seconds", "1min", "2 minutes", "1m30s")
// into a duration of at least one millisecond.
func ParseLength(s string) (time.Duration, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty length")
	}

	if m := lengthPattern.FindStringSubmatch(v); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		var unit time.Duration
		switch m[2] {
		case "s", "sec", "secs", "second", "seconds":
			unit = time.Second
		case "m", "min", "mins", "minute", "minutes":
			unit = time.Minute
		case "ms":
			unit = time.Millisecond
		default:
			return 0, fmt.Errorf("unknown unit %q", m[2])
		}
		d := time.Duration(n * float64(unit))
		if d < time.Millisecond {
			return 0, fmt.Errorf("length must be at least 1ms")
		}
		return d, nil
	}

	d, err := time.ParseDuration(strings.ReplaceAll(v, " ", ""))
	if err != nil {
		return 0, err
	}
	if d < time.Millisecond {
		return 0, fmt.Errorf("length must be at least 1ms")
	}
	return d, nil
}

// Duration is the nominal playback length. An unusable Length yields DefaultDuration and a
// ConfigError describing what was replaced; the duration is valid either way.
func (r GenerationRequest) Duration() (time.Duration, *ConfigError) {
	d, err := ParseLength(r.Length)
	if err != nil {
		return DefaultDuration, &ConfigError{Field: "length", Value: r.Length, Err: err}
	}
	return d, nil
}

// DurationMs is Duration in whole milliseconds.
func (r GenerationRequest) DurationMs() int64 {
	d, _ := r.Duration()
	return d.Milliseconds()
}

// LoadRequest reads a YAML request preset. Fields missing from the file keep DefaultRequest values.
func LoadRequest(path string) (GenerationRequest, error) {
	req := DefaultRequest()

	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

// WriteRequest writes a request as YAML.
func WriteRequest(req GenerationRequest, path string) error {
	data, err := yaml.Marshal(req)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
