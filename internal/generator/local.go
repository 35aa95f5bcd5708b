package generator

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
	"github.com/ivlev/story2video/internal/system"
)

// Local produces placeholder assets without any network access: a script cut from the prompt,
// title cards for images and a quiet tone track for the narration.
type Local struct {
	// SceneLength is the nominal screen time per scene used to pick the scene count.
	SceneLength float64
	// CardWidth is the width of generated cards; the height follows the aspect ratio.
	CardWidth int
}

func NewLocal() *Local {
	return &Local{SceneLength: 5, CardWidth: 640}
}

func (l *Local) Close() error { return nil }

func (l *Local) GenerateScript(ctx context.Context, req story.GenerationRequest) ([]story.Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total, _ := req.Duration()
	count := int(math.Round(total.Seconds() / l.SceneLength))
	count = max(3, min(count, 24))

	sentences := splitSentences(req.Prompt)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("prompt is empty")
	}

	scenes := make([]story.Scene, count)
	for i := range scenes {
		line := sentences[i%len(sentences)]
		scenes[i] = story.Scene{
			Number:            i + 1,
			VisualDescription: fmt.Sprintf("Scene %d of %d: %s", i+1, count, line),
			Narration:         line,
		}
	}
	return scenes, nil
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p+".")
		}
	}
	return out
}

func (l *Local) GenerateImage(ctx context.Context, description string, aspect story.AspectRatio) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w, h := aspect.Size()
	width := l.CardWidth
	height := width * h / w

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cardColor(description)}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	lineHeight := basicfont.Face7x13.Metrics().Height.Ceil() + 4
	maxChars := (width - 40) / 7
	lines := wrapText(description, maxChars)
	y := (height - len(lines)*lineHeight) / 2
	for _, line := range lines {
		adv := d.MeasureString(line).Ceil()
		d.Dot = fixed.P((width-adv)/2, y+lineHeight)
		d.DrawString(line)
		y += lineHeight
	}

	buf := system.GetBuffer(width * height / 4)
	defer system.PutBuffer(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return story.ImageDataURL("image/jpeg", buf.Bytes()), nil
}

// cardColor derives a dark background from the text so cards differ between scenes.
func cardColor(text string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(text))
	sum := h.Sum32()
	return color.RGBA{
		R: uint8(40 + sum%60),
		G: uint8(40 + (sum>>8)%60),
		B: uint8(60 + (sum>>16)%80),
		A: 255,
	}
}

func wrapText(text string, width int) []string {
	if width < 8 {
		width = 8
	}
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// wordDuration is the spoken length assumed per word of narration.
const wordDuration = 0.35

func (l *Local) GenerateVoiceover(ctx context.Context, narration string, voice story.Voice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	words := strings.FieldsFunc(narration, func(r rune) bool { return unicode.IsSpace(r) })
	if len(words) == 0 {
		return "", fmt.Errorf("voiceover generation returned no audio data")
	}

	// one soft tone per word, pitch by voice, short gap between words
	pitch := 180.0 + 40*float64(voice)
	perWord := int(wordDuration * playback.SampleRate)
	gap := perWord / 5
	samples := make([]float32, 0, len(words)*perWord)
	for range words {
		for i := 0; i < perWord; i++ {
			if i >= perWord-gap {
				samples = append(samples, 0)
				continue
			}
			t := float64(i) / playback.SampleRate
			env := math.Sin(math.Pi * float64(i) / float64(perWord-gap))
			samples = append(samples, float32(0.2*env*math.Sin(2*math.Pi*pitch*t)))
		}
	}
	return playback.EncodePCM16(samples), nil
}
