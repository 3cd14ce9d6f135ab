package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.DownloadRetries != 3 {
		t.Fatalf("expected default download retries 3, got %d", cfg.DownloadRetries)
	}
	if cfg.RetrievalK != 4 {
		t.Fatalf("expected default k=4, got %d", cfg.RetrievalK)
	}
	if cfg.MinSimilarity != 0.3 {
		t.Fatalf("expected default threshold 0.3, got %v", cfg.MinSimilarity)
	}
	if cfg.PassageChars != 800 || cfg.PassageOverlap != 100 {
		t.Fatalf("unexpected passage defaults %d/%d", cfg.PassageChars, cfg.PassageOverlap)
	}
	if cfg.TranscribeWindow != 10*time.Minute {
		t.Fatalf("unexpected window %v", cfg.TranscribeWindow)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DOWNLOAD_RETRIES", "7")
	t.Setenv("MIN_SIMILARITY", "0.55")
	t.Setenv("LLM_PROVIDER", "openai")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.DownloadRetries != 7 {
		t.Fatalf("expected 7, got %d", cfg.DownloadRetries)
	}
	if cfg.MinSimilarity != 0.55 {
		t.Fatalf("expected 0.55, got %v", cfg.MinSimilarity)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected openai, got %s", cfg.LLMProvider)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("PASSAGE_CHARS", "100")
	t.Setenv("PASSAGE_OVERLAP", "100")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected overlap >= chars to be rejected")
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "huggingface")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected unknown embedding provider to be rejected")
	}
}
