package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"vidqa/internal/acquire"
	"vidqa/internal/answer"
	"vidqa/internal/credentials"
	"vidqa/internal/http/handlers"
	"vidqa/internal/http/httpapi"
	"vidqa/internal/index"
	"vidqa/internal/infra"
	"vidqa/internal/jobstore"
	"vidqa/internal/pipeline"
	"vidqa/internal/storage"
	"vidqa/internal/transcribe"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare data directory")
	}
	jobs, err := jobstore.Open(store.JobDBPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job store")
	}
	defer jobs.Close()

	pool := credentials.NewPool(credentials.WithCooldown(cfg.CooldownBase, cfg.CooldownMax))
	pool.Register(credentials.ProviderGemini, credentials.SecretsFromEnv("GEMINI_API_KEY"), false)
	pool.Register(credentials.ProviderOpenAI, credentials.SecretsFromEnv("OPENAI_API_KEY"), false)
	logger.Info().
		Int("gemini", pool.Size(credentials.ProviderGemini)).
		Int("openai", pool.Size(credentials.ProviderOpenAI)).
		Msg("credential pool loaded")

	runner := &acquire.YTDLPRunner{}
	if err := runner.CheckBinary(); err != nil {
		logger.Fatal().Err(err).Msg("acquisition tooling missing")
	}
	audio := transcribe.FFmpegTool{}
	if err := audio.CheckBinaries(); err != nil {
		logger.Fatal().Err(err).Msg("audio tooling missing")
	}

	httpClient := &http.Client{Timeout: cfg.ExternalCallTimeout}

	fetcher := acquire.New(acquire.Options{
		Runner:             runner,
		Store:              store,
		Logger:             logger,
		RetriesPerStrategy: cfg.DownloadRetries,
		SleepMin:           cfg.SleepIntervalMin,
		SleepMax:           cfg.SleepIntervalMax,
		RateHz:             cfg.DownloadRateHz,
	})

	whisper, err := transcribe.NewWhisperBackend(transcribe.WhisperOptions{
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.WhisperModel,
		Pool:       pool,
		HTTPClient: httpClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build speech-to-text backend")
	}
	transcriber := transcribe.New(transcribe.Options{
		Backend:          whisper,
		Audio:            audio,
		Logger:           logger,
		Window:           cfg.TranscribeWindow,
		RetriesPerWindow: cfg.TranscribeRetries,
	})

	embedders, err := buildEmbedders(cfg, pool, httpClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build embedding backends")
	}
	builder := index.NewBuilder(index.BuilderOptions{
		Embedder: embedders[cfg.EmbeddingProvider],
		Logger:   logger,
		Split: index.SplitConfig{
			TargetChars:  cfg.PassageChars,
			OverlapChars: cfg.PassageOverlap,
		},
		RetriesPerPassage: cfg.EmbedRetries,
	})

	chat, err := buildChat(cfg, pool, httpClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build chat backend")
	}
	registry := index.NewRegistry(store)
	qa := answer.New(answer.Options{
		Registry:      registry,
		Embedders:     embedders,
		Chat:          chat,
		Logger:        logger,
		K:             cfg.RetrievalK,
		MinSimilarity: cfg.MinSimilarity,
	})
	summarizer := answer.NewSummarizer(answer.SummarizerOptions{
		Chat:   chat,
		Logger: logger,
	})

	svc := pipeline.New(pipeline.Options{
		Jobs:        jobs,
		Store:       store,
		Registry:    registry,
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Builder:     builder,
		QA:          qa,
		Summarizer:  summarizer,
		Logger:      logger,
	})
	if err := svc.RecoverInterrupted(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to recover interrupted jobs")
	}

	app := handlers.NewApp(svc, logger)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop running pipelines")
	}
	logger.Info().Msg("server stopped")
}

func buildEmbedders(cfg *infra.Config, pool *credentials.Pool, client *http.Client) (map[string]index.Embedder, error) {
	openai, err := index.NewOpenAIEmbedder(index.OpenAIEmbedderOptions{
		BaseURL:    cfg.OpenAIBaseURL,
		Pool:       pool,
		HTTPClient: client,
	})
	if err != nil {
		return nil, err
	}
	gemini, err := index.NewGeminiEmbedder(index.GeminiEmbedderOptions{
		BaseURL:    cfg.GeminiBaseURL,
		Pool:       pool,
		HTTPClient: client,
	})
	if err != nil {
		return nil, err
	}
	return map[string]index.Embedder{
		credentials.ProviderOpenAI: openai,
		credentials.ProviderGemini: gemini,
	}, nil
}

func buildChat(cfg *infra.Config, pool *credentials.Pool, client *http.Client) (answer.ChatBackend, error) {
	if cfg.LLMProvider == "openai" {
		return answer.NewOpenAIChat(answer.OpenAIChatOptions{
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			Pool:       pool,
			HTTPClient: client,
		})
	}
	return answer.NewGeminiChat(answer.GeminiChatOptions{
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		Pool:       pool,
		HTTPClient: client,
	})
}
