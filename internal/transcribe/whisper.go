package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidqa/internal/credentials"
	"vidqa/internal/domain"
)

// SpeechToText transcribes one bounded-duration window of audio into
// time-aligned segments local to that window.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string) ([]domain.Segment, error)
}

// errTransientBackend marks backend failures worth another attempt.
var errTransientBackend = errors.New("transient speech-to-text failure")

// IsTransient reports whether a backend error should be retried.
func IsTransient(err error) bool { return errors.Is(err, errTransientBackend) }

// WhisperOptions configures the hosted Whisper backend.
type WhisperOptions struct {
	BaseURL    string
	Model      string
	Pool       *credentials.Pool
	HTTPClient *http.Client
}

// WhisperBackend calls the OpenAI audio transcription endpoint with
// verbose JSON output. Credentials come from the rotation pool so quota
// failures cool the key down instead of stalling the job.
type WhisperBackend struct {
	baseURL string
	model   string
	pool    *credentials.Pool
	client  *http.Client
}

// NewWhisperBackend constructs the backend, applying defaults.
func NewWhisperBackend(opts WhisperOptions) (*WhisperBackend, error) {
	if opts.Pool == nil {
		return nil, errors.New("whisper: credential pool is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "whisper-1"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &WhisperBackend{baseURL: baseURL, model: model, pool: opts.Pool, client: client}, nil
}

type whisperResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperBackend) Transcribe(ctx context.Context, audioPath string) ([]domain.Segment, error) {
	cred, err := w.pool.Acquire(credentials.ProviderOpenAI)
	if err != nil {
		return nil, err
	}

	segments, err := w.call(ctx, audioPath, cred.Secret)
	switch {
	case err == nil:
		w.pool.Report(cred, credentials.OutcomeSuccess)
	case errors.Is(err, errQuota):
		w.pool.Report(cred, credentials.OutcomeQuotaExceeded)
		return nil, fmt.Errorf("whisper quota: %w", errTransientBackend)
	case errors.Is(err, errUnauthorized):
		w.pool.Report(cred, credentials.OutcomeInvalidCredential)
		return nil, fmt.Errorf("whisper credential rejected: %w", errTransientBackend)
	default:
		w.pool.Report(cred, credentials.OutcomeSuccess)
	}
	return segments, err
}

var (
	errQuota        = errors.New("quota exceeded")
	errUnauthorized = errors.New("unauthorized")
)

func (w *WhisperBackend) call(ctx context.Context, audioPath, apiKey string) ([]domain.Segment, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: open audio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("whisper: build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("whisper: copy audio: %w", err)
	}
	_ = form.WriteField("model", w.model)
	_ = form.WriteField("response_format", "verbose_json")
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close form: %w", err)
	}

	endpoint := w.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: %v: %w", err, errTransientBackend)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errQuota
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("whisper status %d: %w", resp.StatusCode, errTransientBackend)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("whisper status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}
	segments := make([]domain.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{StartSec: seg.Start, EndSec: seg.End, Text: text})
	}
	return segments, nil
}
