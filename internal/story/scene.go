package story

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Scene is one narrated, illustrated beat of the story.
// Number is both its identity and its playback position; it never changes after creation.
type Scene struct {
	Number            int    `json:"scene_number" yaml:"scene_number"`
	VisualDescription string `json:"visual_description" yaml:"visual_description"`
	Narration         string `json:"narration" yaml:"narration"`
	ImageURL          string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// GeneratedAssets is the output of a successful run: scenes in playback order and one
// base64 audio payload carrying the narration of all scenes in order.
type GeneratedAssets struct {
	Script    []Scene `json:"script"`
	AudioData string  `json:"audioData"`
}

var ErrNoScenes = errors.New("script has no scenes")

// CloneScript returns a detached copy of a scene list.
func CloneScript(script []Scene) []Scene {
	if script == nil {
		return nil
	}
	out := make([]Scene, len(script))
	copy(out, script)
	return out
}

// Clone returns a detached copy of the assets.
func (a *GeneratedAssets) Clone() *GeneratedAssets {
	if a == nil {
		return nil
	}
	return &GeneratedAssets{Script: CloneScript(a.Script), AudioData: a.AudioData}
}

// LastScene returns the scene with the highest position.
func (a *GeneratedAssets) LastScene() (Scene, error) {
	if a == nil || len(a.Script) == 0 {
		return Scene{}, ErrNoScenes
	}
	last := a.Script[0]
	for _, s := range a.Script[1:] {
		if s.Number > last.Number {
			last = s
		}
	}
	return last, nil
}

// FullNarration joins every narration in scene order with a single space.
func FullNarration(script []Scene) string {
	parts := make([]string, len(script))
	for i, s := range script {
		parts[i] = s.Narration
	}
	return strings.Join(parts, " ")
}

// SortScript orders scenes by position.
func SortScript(script []Scene) {
	sort.SliceStable(script, func(i, j int) bool {
		return script[i].Number < script[j].Number
	})
}

// ValidateScript checks that positions run 1..n in order with no gaps and that every narration
// is non-empty. With requireImages, every scene must also carry an image.
func ValidateScript(script []Scene, requireImages bool) error {
	if len(script) == 0 {
		return ErrNoScenes
	}
	for i, s := range script {
		if s.Number != i+1 {
			return fmt.Errorf("scene at index %d has position %d, want %d", i, s.Number, i+1)
		}
		if strings.TrimSpace(s.Narration) == "" {
			return fmt.Errorf("scene %d has empty narration", s.Number)
		}
		if requireImages && s.ImageURL == "" {
			return fmt.Errorf("scene %d has no image", s.Number)
		}
	}
	return nil
}

// ApplyEdits builds the script committed by an edit. Only narration and visual description are
// taken from edited; positions and images come from base, so scene identity is preserved.
func ApplyEdits(base, edited []Scene) ([]Scene, error) {
	if len(edited) != len(base) {
		return nil, fmt.Errorf("edited script has %d scenes, want %d", len(edited), len(base))
	}
	out := CloneScript(base)
	for i := range out {
		if edited[i].Number != out[i].Number {
			return nil, fmt.Errorf("edited scene at index %d has position %d, want %d", i, edited[i].Number, out[i].Number)
		}
		if strings.TrimSpace(edited[i].Narration) == "" {
			return nil, fmt.Errorf("scene %d has empty narration", out[i].Number)
		}
		out[i].Narration = edited[i].Narration
		out[i].VisualDescription = edited[i].VisualDescription
	}
	return out, nil
}

// ImageDataURL wraps raw image bytes as a data URL.
func ImageDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL splits a base64 data URL into its MIME type and decoded bytes.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URL has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URL is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}
