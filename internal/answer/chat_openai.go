package answer

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

// OpenAIChatOptions configures the OpenAI generation backend.
type OpenAIChatOptions struct {
	Model      string
	BaseURL    string
	Pool       *credentials.Pool
	HTTPClient *http.Client
}

// OpenAIChat calls the OpenAI chat completions endpoint.
type OpenAIChat struct {
	model   string
	baseURL string
	pool    *credentials.Pool
	client  *http.Client
}

// NewOpenAIChat constructs the backend, applying defaults.
func NewOpenAIChat(opts OpenAIChatOptions) (*OpenAIChat, error) {
	if opts.Pool == nil {
		return nil, errors.New("openai chat: credential pool is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIChat{model: model, baseURL: baseURL, pool: opts.Pool, client: client}, nil
}

func (c *OpenAIChat) Provider() string { return credentials.ProviderOpenAI }

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	cred, err := c.pool.Acquire(credentials.ProviderOpenAI)
	if err != nil {
		return "", err
	}

	payload := openAIChatRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("openai chat: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("openai chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("openai chat: %v: %w", err, errTransientChat)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.pool.Report(cred, credentials.OutcomeQuotaExceeded)
		return "", fmt.Errorf("openai chat quota: %w", errTransientChat)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.pool.Report(cred, credentials.OutcomeInvalidCredential)
		return "", fmt.Errorf("openai chat credential rejected: %w", errTransientChat)
	case resp.StatusCode >= 500:
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("openai chat status %d: %w", resp.StatusCode, errTransientChat)
	case resp.StatusCode >= 300:
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("openai chat status %d", resp.StatusCode)
	}
	c.pool.Report(cred, credentials.OutcomeSuccess)

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai chat: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai chat: empty answer text")
	}
	return text, nil
}
