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

// GeminiEmbedderOptions configures the Gemini embedding backend.
type GeminiEmbedderOptions struct {
	Model      string
	BaseURL    string
	Pool       *credentials.Pool
	HTTPClient *http.Client
}

// GeminiEmbedder calls the Generative Language embedContent endpoint.
type GeminiEmbedder struct {
	model   string
	baseURL string
	pool    *credentials.Pool
	client  *http.Client
}

// NewGeminiEmbedder constructs the backend, applying defaults.
func NewGeminiEmbedder(opts GeminiEmbedderOptions) (*GeminiEmbedder, error) {
	if opts.Pool == nil {
		return nil, errors.New("gemini embedder: credential pool is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "text-embedding-004"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiEmbedder{model: model, baseURL: baseURL, pool: opts.Pool, client: client}, nil
}

func (e *GeminiEmbedder) Provider() string { return credentials.ProviderGemini }

type geminiEmbedRequest struct {
	Content geminiEmbedContent `json:"content"`
}

type geminiEmbedContent struct {
	Parts []geminiEmbedPart `json:"parts"`
}

type geminiEmbedPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cred, err := e.pool.Acquire(credentials.ProviderGemini)
	if err != nil {
		return nil, err
	}

	payload := geminiEmbedRequest{Content: geminiEmbedContent{Parts: []geminiEmbedPart{{Text: text}}}}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("gemini embed: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("gemini embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", cred.Secret)

	resp, err := e.client.Do(req)
	if err != nil {
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("gemini embed: %v: %w", err, errTransientEmbed)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.pool.Report(cred, credentials.OutcomeQuotaExceeded)
		return nil, fmt.Errorf("gemini embed quota: %w", errTransientEmbed)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		e.pool.Report(cred, credentials.OutcomeInvalidCredential)
		return nil, fmt.Errorf("gemini embed credential rejected: %w", errTransientEmbed)
	case resp.StatusCode >= 500:
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("gemini embed status %d: %w", resp.StatusCode, errTransientEmbed)
	case resp.StatusCode >= 300:
		e.pool.Report(cred, credentials.OutcomeSuccess)
		return nil, fmt.Errorf("gemini embed status %d", resp.StatusCode)
	}
	e.pool.Report(cred, credentials.OutcomeSuccess)

	var out geminiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("gemini embed: decode response: %w", err)
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty embedding")
	}
	return out.Embedding.Values, nil
}
