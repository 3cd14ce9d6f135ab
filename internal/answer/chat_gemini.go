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

// GeminiChatOptions configures the Gemini generation backend.
type GeminiChatOptions struct {
	Model      string
	BaseURL    string
	Pool       *credentials.Pool
	HTTPClient *http.Client
}

// GeminiChat calls the Generative Language generateContent endpoint.
type GeminiChat struct {
	model   string
	baseURL string
	pool    *credentials.Pool
	client  *http.Client
}

// NewGeminiChat constructs the backend, applying defaults.
func NewGeminiChat(opts GeminiChatOptions) (*GeminiChat, error) {
	if opts.Pool == nil {
		return nil, errors.New("gemini chat: credential pool is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &GeminiChat{model: model, baseURL: baseURL, pool: opts.Pool, client: client}, nil
}

func (c *GeminiChat) Provider() string { return credentials.ProviderGemini }

type geminiGenerateRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiChat) Complete(ctx context.Context, system, user string) (string, error) {
	cred, err := c.pool.Acquire(credentials.ProviderGemini)
	if err != nil {
		return "", err
	}

	payload := geminiGenerateRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("gemini chat: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("gemini chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", cred.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("gemini chat: %v: %w", err, errTransientChat)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.pool.Report(cred, credentials.OutcomeQuotaExceeded)
		return "", fmt.Errorf("gemini chat quota: %w", errTransientChat)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.pool.Report(cred, credentials.OutcomeInvalidCredential)
		return "", fmt.Errorf("gemini chat credential rejected: %w", errTransientChat)
	case resp.StatusCode >= 500:
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("gemini chat status %d: %w", resp.StatusCode, errTransientChat)
	case resp.StatusCode >= 300:
		c.pool.Report(cred, credentials.OutcomeSuccess)
		return "", fmt.Errorf("gemini chat status %d", resp.StatusCode)
	}
	c.pool.Report(cred, credentials.OutcomeSuccess)

	var out geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini chat: decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini chat: empty candidate")
	}
	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini chat: empty answer text")
	}
	return text, nil
}
