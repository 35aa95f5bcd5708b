package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
)

// File is one entry of an exported package. Name is a slash separated relative path.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Package is the downloadable form of a finished video.
type Package struct {
	Name  string
	Files []File
}

// Options controls the optional extras of a package.
type Options struct {
	// Scene is the position used for the thumbnail and the share card. Zero means the first scene.
	Scene int
	// ThumbnailWidth defaults to 480.
	ThumbnailWidth int
	// SkipExtras leaves out thumbnail, cover, subtitles and share card.
	SkipExtras bool
}

// Build lays out assets as images/scene_<n>.jpg, script.json and voiceover.pcm plus
// request.yaml, thumbnail.jpg, cover.jpg, subtitles.srt and share.png. The script must be complete.
func Build(name string, req story.GenerationRequest, assets *story.GeneratedAssets, opts Options) (*Package, error) {
	if assets == nil {
		return nil, story.ErrNoScenes
	}
	if err := story.ValidateScript(assets.Script, true); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if name == "" {
		name = "story_" + time.Now().Format("20060102_150405")
	}
	pkg := &Package{Name: name}

	images := make(map[int][]byte, len(assets.Script))
	for _, scene := range assets.Script {
		mime, data, err := story.ParseDataURL(scene.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("export: scene %d image: %w", scene.Number, err)
		}
		if mime != "image/jpeg" && mime != "image/jpg" {
			if data, err = ToJPEG(data); err != nil {
				return nil, fmt.Errorf("export: scene %d image: %w", scene.Number, err)
			}
		}
		images[scene.Number] = data
		pkg.Files = append(pkg.Files, File{
			Name:        fmt.Sprintf("images/scene_%d.jpg", scene.Number),
			ContentType: "image/jpeg",
			Data:        data,
		})
	}

	script, err := json.MarshalIndent(assets.Script, "", "  ")
	if err != nil {
		return nil, err
	}
	pkg.Files = append(pkg.Files, File{Name: "script.json", ContentType: "application/json", Data: script})

	if assets.AudioData != "" {
		audio, err := base64.StdEncoding.DecodeString(assets.AudioData)
		if err != nil {
			return nil, fmt.Errorf("export: audio payload: %w", err)
		}
		pkg.Files = append(pkg.Files, File{Name: "voiceover.pcm", ContentType: "audio/L16; rate=24000; channels=1", Data: audio})
	}

	reqYAML, err := yaml.Marshal(req)
	if err != nil {
		return nil, err
	}
	pkg.Files = append(pkg.Files, File{Name: "request.yaml", ContentType: "application/yaml", Data: reqYAML})

	if opts.SkipExtras {
		return pkg, nil
	}

	current := assets.Script[0]
	for _, s := range assets.Script {
		if s.Number == opts.Scene {
			current = s
		}
	}

	thumb, err := Thumbnail(images[current.Number], opts.ThumbnailWidth)
	if err != nil {
		return nil, fmt.Errorf("export: thumbnail: %w", err)
	}
	pkg.Files = append(pkg.Files, File{Name: "thumbnail.jpg", ContentType: "image/jpeg", Data: thumb})

	cover, err := Cover(images[current.Number], 0)
	if err != nil {
		return nil, fmt.Errorf("export: cover: %w", err)
	}
	pkg.Files = append(pkg.Files, File{Name: "cover.jpg", ContentType: "image/jpeg", Data: cover})

	if req.Subtitles {
		total, _ := req.Duration()
		pkg.Files = append(pkg.Files, File{
			Name:        "subtitles.srt",
			ContentType: "application/x-subrip",
			Data:        []byte(SRT(playback.Cues(assets.Script, total))),
		})
	}

	card, err := ShareCard(current.Narration, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("export: share card: %w", err)
	}
	pkg.Files = append(pkg.Files, File{Name: "share.png", ContentType: "image/png", Data: card})

	return pkg, nil
}

// SRT renders cues in SubRip format.
func SRT(cues []playback.Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), c.Text)
	}
	return sb.String()
}

func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
