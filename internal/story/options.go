package story

import (
	"fmt"
	"strings"
)

// choice is one member of a closed enumeration: its canonical name and UI label.
type choice struct {
	name  string
	label string
}

func nameOf(table []choice, i int) string {
	if i < 0 || i >= len(table) {
		return fmt.Sprintf("invalid(%d)", i)
	}
	return table[i].name
}

func labelOf(table []choice, i int) string {
	if i < 0 || i >= len(table) {
		return ""
	}
	return table[i].label
}

func indexOf(table []choice, kind, s string) (int, error) {
	s = strings.TrimSpace(s)
	for i, c := range table {
		if strings.EqualFold(c.name, s) || (c.label != "" && strings.EqualFold(c.label, s)) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// names lists the canonical names of a table in declaration order.
func names(table []choice) []string {
	out := make([]string, len(table))
	for i, c := range table {
		out[i] = c.name
	}
	return out
}

type Language int

const (
	English Language = iota
	Swahili
)

var languages = []choice{
	{"English", ""},
	{"Swahili", ""},
}

func (l Language) String() string { return nameOf(languages, int(l)) }

func (l Language) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Language) UnmarshalText(b []byte) error {
	i, err := indexOf(languages, "language", string(b))
	if err != nil {
		return err
	}
	*l = Language(i)
	return nil
}

type Voice int

const (
	VoiceMaleYoung Voice = iota
	VoiceFemaleMature
	VoiceMaleNews
	VoiceFemaleCalm
)

var voices = []choice{
	{"Male (Young)", "male-young"},
	{"Female (Mature)", "female-mature"},
	{"Male (News-style)", "male-news"},
	{"Female (Calm)", "female-calm"},
}

func (v Voice) String() string { return nameOf(voices, int(v)) }

// Slug is the short flag-friendly form, e.g. "female-calm".
func (v Voice) Slug() string { return labelOf(voices, int(v)) }

func (v Voice) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Voice) UnmarshalText(b []byte) error {
	i, err := indexOf(voices, "voice", string(b))
	if err != nil {
		return err
	}
	*v = Voice(i)
	return nil
}

type AspectRatio int

const (
	Aspect16x9 AspectRatio = iota
	Aspect9x16
	Aspect1x1
	Aspect4x3
	Aspect3x4
)

var aspectRatios = []choice{
	{"16:9", "YouTube"},
	{"9:16", "TikTok/Reels"},
	{"1:1", "Instagram"},
	{"4:3", "Classic TV"},
	{"3:4", "Portrait"},
}

func (a AspectRatio) String() string { return nameOf(aspectRatios, int(a)) }

// Label is the platform the ratio is meant for.
func (a AspectRatio) Label() string { return labelOf(aspectRatios, int(a)) }

// Size returns width and height of the ratio in its smallest integer form.
func (a AspectRatio) Size() (w, h int) {
	switch a {
	case Aspect9x16:
		return 9, 16
	case Aspect1x1:
		return 1, 1
	case Aspect4x3:
		return 4, 3
	case Aspect3x4:
		return 3, 4
	default:
		return 16, 9
	}
}

func (a AspectRatio) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AspectRatio) UnmarshalText(b []byte) error {
	i, err := indexOf(aspectRatios, "aspect ratio", string(b))
	if err != nil {
		return err
	}
	*a = AspectRatio(i)
	return nil
}

type Quality int

const (
	Quality1080p Quality = iota
	Quality720p
	Quality4K
)

var qualities = []choice{
	{"1080p", ""},
	{"720p", ""},
	{"4K", ""},
}

func (q Quality) String() string { return nameOf(qualities, int(q)) }

// Height is the vertical resolution of the quality tier.
func (q Quality) Height() int {
	switch q {
	case Quality720p:
		return 720
	case Quality4K:
		return 2160
	default:
		return 1080
	}
}

func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *Quality) UnmarshalText(b []byte) error {
	i, err := indexOf(qualities, "quality", string(b))
	if err != nil {
		return err
	}
	*q = Quality(i)
	return nil
}

type MusicStyle int

const (
	MusicCinematic MusicStyle = iota
	MusicEmotional
	MusicUpbeat
	MusicAmbient
)

var musicStyles = []choice{
	{"Cinematic", ""},
	{"Emotional", ""},
	{"Upbeat", ""},
	{"Ambient", ""},
}

func (m MusicStyle) String() string { return nameOf(musicStyles, int(m)) }

func (m MusicStyle) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MusicStyle) UnmarshalText(b []byte) error {
	i, err := indexOf(musicStyles, "music style", string(b))
	if err != nil {
		return err
	}
	*m = MusicStyle(i)
	return nil
}

type SubtitleStyle int

const (
	SubtitleCinematic SubtitleStyle = iota
	SubtitleMinimal
	SubtitleBold
)

var subtitleStyles = []choice{
	{"Cinematic", ""},
	{"Minimal", ""},
	{"Bold", ""},
}

func (s SubtitleStyle) String() string { return nameOf(subtitleStyles, int(s)) }

func (s SubtitleStyle) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SubtitleStyle) UnmarshalText(b []byte) error {
	i, err := indexOf(subtitleStyles, "subtitle style", string(b))
	if err != nil {
		return err
	}
	*s = SubtitleStyle(i)
	return nil
}

// Option lists every enumeration with its accepted names, for help output and the options endpoint.
type Option struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

func Options() []Option {
	return []Option{
		{"language", names(languages)},
		{"voice", names(voices)},
		{"length", LengthPresets},
		{"aspect_ratio", names(aspectRatios)},
		{"quality", names(qualities)},
		{"music_style", names(musicStyles)},
		{"subtitle_style", names(subtitleStyles)},
	}
}
