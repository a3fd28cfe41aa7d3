// Package config loads the server configuration from flags and the
// environment, with a .env file picked up when present.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	LLM      LLMConfig
	Journal  JournalConfig
	Artifact ArtifactConfig

	// PromptsPath optionally overrides the built-in stage prompts.
	PromptsPath string
}

type LLMConfig struct {
	// Provider selects the completion backend: "openrouter" (default)
	// or "gemini".
	Provider         string
	OpenRouterAPIKey string
	GeminiAPIKey     string

	JournalModel string
	DetailModel  string
	YamlModel    string
}

type JournalConfig struct {
	// Dir holds the per-day JSONL files for the file backend.
	Dir string
	// PostgresDSN switches the journal to Postgres when set.
	PostgresDSN string
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        *port,
		Env:         env,
		LLM:         loadLLMConfig(),
		Journal:     loadJournalConfig(),
		Artifact:    loadArtifactConfig(env),
		PromptsPath: strings.TrimSpace(os.Getenv("DAGGY_PROMPTS_PATH")),
	}, nil
}

func loadLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:         firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_PROVIDER")), "openrouter"),
		OpenRouterAPIKey: strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		GeminiAPIKey:     firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_API_KEY")), strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))),
		JournalModel:     strings.TrimSpace(os.Getenv("DAGGY_JOURNAL_MODEL")),
		DetailModel:      strings.TrimSpace(os.Getenv("DAGGY_DETAIL_MODEL")),
		YamlModel:        strings.TrimSpace(os.Getenv("DAGGY_YAML_MODEL")),
	}
}

func loadJournalConfig() JournalConfig {
	return JournalConfig{
		Dir:         firstNonEmpty(strings.TrimSpace(os.Getenv("DAGGY_JOURNAL_DIR")), "data/journal"),
		PostgresDSN: strings.TrimSpace(os.Getenv("JOURNAL_STORE_PG_DSN")),
	}
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "daggy-artifacts"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
