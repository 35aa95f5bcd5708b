package playback

import (
	"time"

	"github.com/ivlev/story2video/internal/story"
)

// State is the observable playback state. Exactly one of Ended, Playing or paused holds.
type State struct {
	Index      int  `json:"index"`
	Playing    bool `json:"playing"`
	Ended      bool `json:"ended"`
	AudioReady bool `json:"audio_ready"`
}

// Paused reports the state that is neither playing nor ended.
func (s State) Paused() bool { return !s.Playing && !s.Ended }

// SlotDuration is the time each scene stays on screen.
func SlotDuration(total time.Duration, scenes int) time.Duration {
	if scenes <= 0 {
		return 0
	}
	return total / time.Duration(scenes)
}

// Cue is one subtitle line on the playback timeline.
type Cue struct {
	Scene int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Cues lays narrations out on the slot grid, one cue per scene.
func Cues(script []story.Scene, total time.Duration) []Cue {
	slot := SlotDuration(total, len(script))
	cues := make([]Cue, len(script))
	for i, s := range script {
		cues[i] = Cue{
			Scene: s.Number,
			Start: time.Duration(i) * slot,
			End:   time.Duration(i+1) * slot,
			Text:  s.Narration,
		}
	}
	return cues
}
