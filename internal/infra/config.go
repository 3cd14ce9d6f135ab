package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	Port    string
	DataDir string

	// Acquisition.
	DownloadRetries  int
	SleepIntervalMin time.Duration
	SleepIntervalMax time.Duration
	DownloadRateHz   float64

	// Transcription.
	TranscribeWindow  time.Duration
	TranscribeRetries int
	WhisperModel      string

	// Indexing and retrieval.
	EmbeddingProvider string
	LLMProvider       string
	RetrievalK        int
	MinSimilarity     float64
	PassageChars      int
	PassageOverlap    int
	EmbedRetries      int

	// Provider endpoints.
	GeminiModel   string
	GeminiBaseURL string
	OpenAIModel   string
	OpenAIBaseURL string

	// Timeouts.
	ExternalCallTimeout time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration

	// Credential cooldown schedule.
	CooldownBase time.Duration
	CooldownMax  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Every knob named in the processing contract is a
// plain key/value option with a documented default.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "8080"),
		DataDir: getEnv("DATA_DIR", "./data"),

		DownloadRetries:  getEnvInt("DOWNLOAD_RETRIES", 3),
		SleepIntervalMin: time.Millisecond * time.Duration(getEnvInt("SLEEP_INTERVAL_MIN_MS", 1000)),
		SleepIntervalMax: time.Millisecond * time.Duration(getEnvInt("SLEEP_INTERVAL_MAX_MS", 5000)),
		DownloadRateHz:   getEnvFloat("DOWNLOAD_RATE_HZ", 0.5),

		TranscribeWindow:  time.Second * time.Duration(getEnvInt("TRANSCRIBE_WINDOW_SECONDS", 600)),
		TranscribeRetries: getEnvInt("TRANSCRIBE_RETRIES", 3),
		WhisperModel:      getEnv("WHISPER_MODEL", "whisper-1"),

		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
		LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
		RetrievalK:        getEnvInt("RETRIEVAL_K", 4),
		MinSimilarity:     getEnvFloat("MIN_SIMILARITY", 0.3),
		PassageChars:      getEnvInt("PASSAGE_CHARS", 800),
		PassageOverlap:    getEnvInt("PASSAGE_OVERLAP", 100),
		EmbedRetries:      getEnvInt("EMBED_RETRIES", 3),

		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		ExternalCallTimeout: time.Second * time.Duration(getEnvInt("EXTERNAL_CALL_TIMEOUT_SECONDS", 120)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		CooldownBase: time.Second * time.Duration(getEnvInt("CREDENTIAL_COOLDOWN_BASE_SECONDS", 30)),
		CooldownMax:  time.Second * time.Duration(getEnvInt("CREDENTIAL_COOLDOWN_MAX_SECONDS", 900)),
	}

	if cfg.SleepIntervalMax < cfg.SleepIntervalMin {
		return nil, fmt.Errorf("SLEEP_INTERVAL_MAX_MS must be >= SLEEP_INTERVAL_MIN_MS")
	}
	if cfg.PassageOverlap >= cfg.PassageChars {
		return nil, fmt.Errorf("PASSAGE_OVERLAP must be smaller than PASSAGE_CHARS")
	}
	if cfg.RetrievalK < 1 {
		return nil, fmt.Errorf("RETRIEVAL_K must be at least 1")
	}
	switch cfg.EmbeddingProvider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("unsupported EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
	}
	switch cfg.LLMProvider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
