package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vidqa/internal/credentials"
)

// OpenAIEmbedderOptions configures the OpenAI embedding backend.
type OpenAIEmbedderOptions struct {
	Model      string
	BaseURL    string
	Pool       *credentials.Pool
	HTTPClient *http.Client
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	model   string
	baseURL string
	pool    *credentials.Pool
	client  *http.Client
}

// NewOpenAIEmbedder constructs the backend, applying defaults.
func NewOpenAIEmbedder(opts OpenAIEmbedderOptions) (*OpenAIEmbedder, error) {
	if opts.Pool == nil {
		return nil, errors.New("openai embedder: credential pool is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenAIEmbedder{model: model, baseURL: baseURL, pool: opts.Pool, client: client}, nil
}

func (e *OpenAIEmbedder) Provider() string { return credentials.ProviderOpenAI }

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cred, err := e.pool.Acquire(credentials.ProviderOpenAI)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(openAIEmbedRequest{Model: e.model, Input: text}); err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("openai embed: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", &buf)
	if err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("openai embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Secret)

	resp, err := e.client.Do(req)
	if err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("openai embed: %v: %w", err, errTransientEmbed)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.pool.Report(cred, credentials.OutcomeQuotaExceeded)
		return nil, fmt.Errorf("openai embed quota: %w", errTransientEmbed)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.pool.Report(cred, credentials.OutcomeInvalidCredential)
		return nil, fmt.Errorf("openai embed credential rejected: %w", errTransientEmbed)
	case resp.StatusCode >= 500:
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("openai embed status %d: %w", resp.StatusCode, errTransientEmbed)
	case resp.StatusCode >= 300:
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("openai embed status %d", resp.StatusCode)
	}
	e.pool.Report(cred, credentials.OutcomeSuccess)

	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai embed: decode response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding")
	}
	return out.Data[0].Embedding, nil
}
