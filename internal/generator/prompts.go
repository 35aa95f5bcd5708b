package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ivlev/story2video/internal/story"
)

// ScriptPrompt asks for a scene breakdown of the request.
func ScriptPrompt(req story.GenerationRequest) string {
	return fmt.Sprintf(
		"Based on the user prompt %q, create a script for a video approximately %s long. "+
			"The story should be broken down into distinct scenes. For each scene, provide a detailed, photorealistic "+
			"visual description suitable for an AI image generator, and a short narration text in %s. "+
			"The tone should be %s. Return the output as a JSON array of objects.",
		req.Prompt, req.Length, req.Language, strings.ToLower(req.MusicStyle.String()),
	)
}

// ImagePrompt prefixes a scene description with the rendering style and frame shape.
func ImagePrompt(description string, aspect story.AspectRatio) string {
	return fmt.Sprintf("Photorealistic, cinematic, high-detail, %s aspect ratio. %s", aspect, description)
}

// parseScript accepts a JSON array of scenes, optionally inside a markdown code fence or an
// object with a "scenes" field.
func parseScript(text string) ([]story.Scene, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var scenes []story.Scene
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Scenes []story.Scene `json:"scenes"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		scenes = wrapped.Scenes
	} else if err := json.Unmarshal([]byte(text), &scenes); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(scenes) == 0 {
		return nil, story.ErrNoScenes
	}
	return scenes, nil
}
