package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names accepted by PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

type Config struct {
	Provider     string
	GeminiAPIKey string
	OpenAIAPIKey string
	ScriptModel  string
	ImageModel   string
	SpeechModel  string

	LogLevel string
	LogFile  string
	LogJSON  bool

	ExportDir  string
	HTTPAddr   string
	FFplayPath string

	// DelayScale multiplies the simulated post-production waits. 0 disables them.
	DelayScale float64

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	BuildVersion string
}

// MinioEnabled reports whether an object storage sink is configured.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioBucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Load reads .env (if present) and the environment. Existing variables win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	provider := strings.ToLower(getEnv("PROVIDER", ""))
	if provider == "" {
		// pick the first provider that has credentials
		switch {
		case os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("API_KEY") != "":
			provider = ProviderGemini
		case os.Getenv("OPENAI_API_KEY") != "":
			provider = ProviderOpenAI
		default:
			provider = ProviderLocal
		}
	}

	return &Config{
		Provider:     provider,
		GeminiAPIKey: getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		ScriptModel:  getEnv("SCRIPT_MODEL", ""),
		ImageModel:   getEnv("IMAGE_MODEL", ""),
		SpeechModel:  getEnv("SPEECH_MODEL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "logs/story2video.log"),
		LogJSON:  getEnvBool("LOG_CONSOLE", false),

		ExportDir:  getEnv("EXPORT_DIR", "output"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		FFplayPath: getEnv("FFPLAY_PATH", "ffplay"),

		DelayScale: getEnvFloat("STAGE_DELAY_SCALE", 1.0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", ""),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),
	}, nil
}
