package generator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/playback"
	"github.com/ivlev/story2video/internal/story"
)

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{"array", `[{"scene_number":1,"visual_description":"v","narration":"n"}]`, 1, false},
		{"fenced", "```json\n[{\"scene_number\":1,\"narration\":\"a\"},{\"scene_number\":2,\"narration\":\"b\"}]\n```", 2, false},
		{"wrapped", `{"scenes":[{"scene_number":1,"narration":"a"}]}`, 1, false},
		{"empty array", `[]`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes, err := parseScript(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unexpected error state: %v", err)
			}
			if len(scenes) != tt.want {
				t.Errorf("Expected %d scenes, got %d", tt.want, len(scenes))
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	got := ImagePrompt("A lighthouse at dawn.", story.Aspect9x16)
	if got != "Photorealistic, cinematic, high-detail, 9:16 aspect ratio. A lighthouse at dawn." {
		t.Errorf("Unexpected image prompt %q", got)
	}

	req := story.DefaultRequest()
	req.Language = story.Swahili
	script := ScriptPrompt(req)
	for _, want := range []string{req.Prompt, "30s", "Swahili", "cinematic"} {
		if !strings.Contains(script, want) {
			t.Errorf("Script prompt misses %q: %s", want, script)
		}
	}
}

func TestLocalGenerator(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	req := story.DefaultRequest()
	req.Length = "1min"
	scenes, err := l.GenerateScript(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 12 {
		t.Errorf("Expected 12 scenes for a minute, got %d", len(scenes))
	}
	if err := story.ValidateScript(scenes, false); err != nil {
		t.Errorf("Invalid local script: %v", err)
	}

	ref, err := l.GenerateImage(ctx, scenes[0].VisualDescription, story.Aspect16x9)
	if err != nil {
		t.Fatal(err)
	}
	mime, data, err := story.ParseDataURL(ref)
	if err != nil || mime != "image/jpeg" || len(data) == 0 {
		t.Errorf("Unexpected image %q (%d bytes): %v", mime, len(data), err)
	}

	audio, err := l.GenerateVoiceover(ctx, story.FullNarration(scenes), req.Voice)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := playback.DecodePCM16(audio)
	if err != nil {
		t.Fatalf("Local audio must decode: %v", err)
	}
	if len(samples) == 0 {
		t.Error("Expected samples")
	}

	if _, err := l.GenerateVoiceover(ctx, "   ", req.Voice); err == nil {
		t.Error("Expected an error for empty narration")
	}
}

func TestLocalRunsThroughPipeline(t *testing.T) {
	orch := pipeline.NewOrchestrator(NewLocal(), pipeline.SimulatedPostProduction{Scale: 0})
	assets, err := orch.Run(context.Background(), story.DefaultRequest(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := story.ValidateScript(assets.Script, true); err != nil {
		t.Errorf("Invalid assets: %v", err)
	}
}

// geminiRequest is the part of a generateContent body the tests inspect.
type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       *struct {
			VoiceConfig struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

func newGeminiTestServer(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := newGemini(context.Background(), nil, GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGeminiImage(t *testing.T) {
	var got geminiRequest
	g := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash-image:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("API key header missing")
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":"AAEC"}}]}}]}`)
	})

	ref, err := g.GenerateImage(context.Background(), "A fox", story.Aspect1x1)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "data:image/png;base64,AAEC" {
		t.Errorf("Unexpected image ref %q", ref)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 1 ||
		got.Contents[0].Parts[0].Text != "Photorealistic, cinematic, high-detail, 1:1 aspect ratio. A fox" {
		t.Errorf("Unexpected contents %+v", got.Contents)
	}
	if len(got.GenerationConfig.ResponseModalities) != 1 || got.GenerationConfig.ResponseModalities[0] != "IMAGE" {
		t.Errorf("Unexpected modalities %v", got.GenerationConfig.ResponseModalities)
	}
}

func TestGeminiImageBlocked(t *testing.T) {
	g := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`)
	})
	_, err := g.GenerateImage(context.Background(), "A fox", story.Aspect16x9)
	var gerr *pipeline.GenerationError
	if !errors.As(err, &gerr) || !strings.Contains(gerr.Message, "safety policies") {
		t.Errorf("Expected a safety GenerationError, got %v", err)
	}
}

func TestGeminiVoiceover(t *testing.T) {
	tests := []struct {
		voice story.Voice
		want  string
	}{
		{story.VoiceMaleYoung, "Kore"},
		{story.VoiceFemaleMature, "Puck"},
		{story.VoiceMaleNews, "Charon"},
		{story.VoiceFemaleCalm, "Zephyr"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var got geminiRequest
			g := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&got)
				io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":"AAAA"}}]}}]}`)
			})
			audio, err := g.GenerateVoiceover(context.Background(), "Hello there.", tt.voice)
			if err != nil {
				t.Fatal(err)
			}
			if audio != "AAAA" {
				t.Errorf("Unexpected audio %q", audio)
			}
			if got.GenerationConfig.SpeechConfig == nil ||
				got.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != tt.want {
				t.Errorf("Expected voice %s, got %+v", tt.want, got.GenerationConfig.SpeechConfig)
			}
		})
	}
}

func TestGeminiAPIError(t *testing.T) {
	g := newGeminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	})
	_, err := g.GenerateVoiceover(context.Background(), "Hello.", story.VoiceMaleYoung)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected quota error, got %v", err)
	}
}

func newOpenAITestServer(t *testing.T, mux *http.ServeMux) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestOpenAIScript(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		args := `{"scenes":[{"scene_number":1,"visual_description":"v1","narration":"n1"},{"scene_number":2,"visual_description":"v2","narration":"n2"}]}`
		resp := map[string]any{
			"id": "chatcmpl-1",
			"choices": []map[string]any{{
				"index": 0,
				"message": map[string]any{
					"role":          "assistant",
					"function_call": map[string]any{"name": "write_script", "arguments": args},
				},
				"finish_reason": "function_call",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	o := newOpenAITestServer(t, mux)

	scenes, err := o.GenerateScript(context.Background(), story.DefaultRequest())
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 2 || scenes[1].Narration != "n2" {
		t.Errorf("Unexpected scenes %+v", scenes)
	}
}

func TestOpenAIImageAndSpeech(t *testing.T) {
	pcm := []byte{0, 0, 0xff, 0x7f}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["size"] != "1024x1792" || req["response_format"] != "b64_json" {
			t.Errorf("Unexpected image request %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":1,"data":[{"b64_json":"iVBO"}]}`)
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["voice"] != "nova" || req["response_format"] != "pcm" {
			t.Errorf("Unexpected speech request %v", req)
		}
		w.Header().Set("Content-Type", "audio/pcm")
		w.Write(pcm)
	})
	o := newOpenAITestServer(t, mux)

	ref, err := o.GenerateImage(context.Background(), "A fox", story.Aspect9x16)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "data:image/png;base64,iVBO" {
		t.Errorf("Unexpected image ref %q", ref)
	}

	audio, err := o.GenerateVoiceover(context.Background(), "Hello.", story.VoiceFemaleCalm)
	if err != nil {
		t.Fatal(err)
	}
	if audio != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("Unexpected audio %q", audio)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(context.Background(), &config.Config{Provider: config.ProviderLocal})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*Local); !ok {
		t.Errorf("Expected local provider, got %T", p)
	}

	if _, err := New(context.Background(), &config.Config{Provider: config.ProviderOpenAI}); err == nil {
		t.Error("Expected an error without an API key")
	}
	if _, err := New(context.Background(), &config.Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("Expected an error for an unknown provider")
	}
}
