package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/story"
)

// OpenAIVoices maps request voices to OpenAI speech voices.
var OpenAIVoices = map[story.Voice]openai.SpeechVoice{
	story.VoiceMaleYoung:    openai.VoiceOnyx,
	story.VoiceFemaleMature: openai.VoiceShimmer,
	story.VoiceMaleNews:     openai.VoiceEcho,
	story.VoiceFemaleCalm:   openai.VoiceNova,
}

// speechFormatPCM is 24 kHz mono PCM16, the same layout the player expects.
const speechFormatPCM = openai.SpeechResponseFormat("pcm")

type OpenAI struct {
	client      *openai.Client
	scriptModel string
	imageModel  string
	speechModel openai.SpeechModel
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ScriptModel string
	ImageModel  string
	SpeechModel string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		scriptModel: orDefault(cfg.ScriptModel, openai.GPT4o),
		imageModel:  orDefault(cfg.ImageModel, openai.CreateImageModelDallE3),
		speechModel: openai.SpeechModel(orDefault(cfg.SpeechModel, string(openai.TTSModel1))),
	}, nil
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) GenerateScript(ctx context.Context, req story.GenerationRequest) ([]story.Scene, error) {
	functionDescription := openai.FunctionDefinition{
		Name:        "write_script",
		Description: "Write the scene breakdown of a short narrated video",
		Parameters: json.RawMessage(fmt.Sprintf(`{
			"type": "object",
			"properties": {
				"scenes": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"scene_number": {"type": "integer", "description": "The sequence number of the scene."},
							"visual_description": {"type": "string", "description": "A detailed prompt for an AI image generator to create a photorealistic, cinematic image for this scene."},
							"narration": {"type": "string", "description": "The narration script for this scene, in %s."}
						},
						"required": ["scene_number", "visual_description", "narration"]
					}
				}
			},
			"required": ["scenes"]
		}`, req.Language)),
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.scriptModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a screenwriter for short narrated videos. You break stories into scenes with vivid visual descriptions and concise narration.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: ScriptPrompt(req),
			},
		},
		Functions:    []openai.FunctionDefinition{functionDescription},
		FunctionCall: openai.FunctionCall{Name: functionDescription.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("openai script: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.FunctionCall == nil {
		return nil, fmt.Errorf("openai script: no function call returned")
	}
	return parseScript(resp.Choices[0].Message.FunctionCall.Arguments)
}

func imageSize(aspect story.AspectRatio) string {
	w, h := aspect.Size()
	switch {
	case w > h:
		return openai.CreateImageSize1792x1024
	case h > w:
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}

func (o *OpenAI) GenerateImage(ctx context.Context, description string, aspect story.AspectRatio) (string, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         ImagePrompt(description, aspect),
		Model:          o.imageModel,
		N:              1,
		Size:           imageSize(aspect),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", pipeline.NewGenerationError("Failed to generate image. Reason: "+err.Error(), err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", pipeline.NewGenerationError(
			"Failed to generate image. Reason: No image was generated. The prompt may have been blocked by safety policies.", nil)
	}
	return "data:image/png;base64," + resp.Data[0].B64JSON, nil
}

func (o *OpenAI) GenerateVoiceover(ctx context.Context, narration string, voice story.Voice) (string, error) {
	name, ok := OpenAIVoices[voice]
	if !ok {
		name = openai.VoiceOnyx
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.speechModel,
		Input:          narration,
		Voice:          name,
		ResponseFormat: speechFormatPCM,
	})
	if err != nil {
		return "", fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("openai speech read: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("voiceover generation returned no audio data")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
