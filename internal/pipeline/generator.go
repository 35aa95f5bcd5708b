package pipeline

import (
	"context"

	"github.com/ivlev/story2video/internal/story"
)

// Generator is the external generation service. Implementations live in internal/generator.
type Generator interface {
	// GenerateScript returns the scenes of the story with narration and visual description
	// but no image.
	GenerateScript(ctx context.Context, req story.GenerationRequest) ([]story.Scene, error)
	// GenerateImage returns an image reference (a data URL) for one scene.
	GenerateImage(ctx context.Context, visualDescription string, aspect story.AspectRatio) (string, error)
	// GenerateVoiceover returns the base64 PCM16 payload narrating text.
	GenerateVoiceover(ctx context.Context, narration string, voice story.Voice) (string, error)
}
