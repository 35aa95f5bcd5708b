package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	aigo "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/genai"

	"github.com/ivlev/story2video/internal/logger"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/story"
)

const (
	geminiScriptModel = "gemini-2.5-pro"
	geminiImageModel  = "gemini-2.5-flash-image"
	geminiSpeechModel = "gemini-2.5-flash-preview-tts"
	geminiTimeout     = 120 * time.Second
)

// GeminiVoices maps request voices to prebuilt Gemini speech voices.
var GeminiVoices = map[story.Voice]string{
	story.VoiceMaleYoung:    "Kore",
	story.VoiceFemaleMature: "Puck",
	story.VoiceMaleNews:     "Charon",
	story.VoiceFemaleCalm:   "Zephyr",
}

// Gemini writes scripts with a JSON schema through the generative-ai-go client and produces
// images and speech through the genai client, which carries response modalities and voices.
type Gemini struct {
	script *aigo.Client
	media  *genai.Client

	scriptModel string
	imageModel  string
	speechModel string
}

type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the endpoint of image and speech calls.
	BaseURL     string
	ScriptModel string
	ImageModel  string
	SpeechModel string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is not set")
	}
	script, err := aigo.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	g, err := newGemini(ctx, script, cfg)
	if err != nil {
		script.Close()
		return nil, err
	}
	return g, nil
}

// newGemini wires the media client; script may be nil when only images and speech are used.
func newGemini(ctx context.Context, script *aigo.Client, cfg GeminiConfig) (*Gemini, error) {
	media, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
		HTTPClient:  &http.Client{Timeout: geminiTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create media client: %w", err)
	}
	return &Gemini{
		script:      script,
		media:       media,
		scriptModel: orDefault(cfg.ScriptModel, geminiScriptModel),
		imageModel:  orDefault(cfg.ImageModel, geminiImageModel),
		speechModel: orDefault(cfg.SpeechModel, geminiSpeechModel),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (g *Gemini) Close() error {
	if g.script == nil {
		return nil
	}
	return g.script.Close()
}

func sceneSchema(language story.Language) *aigo.Schema {
	return &aigo.Schema{
		Type: aigo.TypeArray,
		Items: &aigo.Schema{
			Type: aigo.TypeObject,
			Properties: map[string]*aigo.Schema{
				"scene_number": {
					Type:        aigo.TypeInteger,
					Description: "The sequence number of the scene.",
				},
				"visual_description": {
					Type:        aigo.TypeString,
					Description: "A detailed prompt for an AI image generator to create a photorealistic, cinematic image for this scene.",
				},
				"narration": {
					Type:        aigo.TypeString,
					Description: fmt.Sprintf("The narration script for this scene, in %s.", language),
				},
			},
			Required: []string{"scene_number", "visual_description", "narration"},
		},
	}
}

func (g *Gemini) GenerateScript(ctx context.Context, req story.GenerationRequest) ([]story.Scene, error) {
	if g.script == nil {
		return nil, fmt.Errorf("gemini script: client is not configured")
	}
	model := g.script.GenerativeModel(g.scriptModel)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = sceneSchema(req.Language)

	resp, err := model.GenerateContent(ctx, aigo.Text(ScriptPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("gemini script: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(aigo.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return parseScript(sb.String())
}

// generateMedia runs one generateContent call and returns the first inline payload.
func (g *Gemini) generateMedia(ctx context.Context, model, text string, cfg *genai.GenerateContentConfig) (*genai.Blob, error) {
	start := time.Now()
	resp, err := g.media.Models.GenerateContent(ctx, model, genai.Text(text), cfg)
	logger.Debug("gemini call",
		logger.String("model", model),
		logger.Duration("elapsed", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData, nil
		}
	}
	return nil, nil
}

func (g *Gemini) GenerateImage(ctx context.Context, description string, aspect story.AspectRatio) (string, error) {
	blob, err := g.generateMedia(ctx, g.imageModel, ImagePrompt(description, aspect), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	})
	if err != nil {
		return "", pipeline.NewGenerationError("Failed to generate image. Reason: "+err.Error(), err)
	}
	if blob == nil {
		return "", pipeline.NewGenerationError(
			"Failed to generate image. Reason: No image was generated. The prompt may have been blocked by safety policies.", nil)
	}
	return story.ImageDataURL(blob.MIMEType, blob.Data), nil
}

func (g *Gemini) GenerateVoiceover(ctx context.Context, narration string, voice story.Voice) (string, error) {
	name, ok := GeminiVoices[voice]
	if !ok {
		name = GeminiVoices[story.VoiceMaleYoung]
	}
	blob, err := g.generateMedia(ctx, g.speechModel, narration, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
			},
		},
	})
	if err != nil {
		return "", err
	}
	if blob == nil {
		return "", fmt.Errorf("voiceover generation returned no audio data")
	}
	return base64.StdEncoding.EncodeToString(blob.Data), nil
}
