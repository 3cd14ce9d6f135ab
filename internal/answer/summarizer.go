package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/internal/metrics"
	"vidqa/internal/retry"
)

const summarySystemPrompt = "You summarize video transcripts. Write a concise prose summary " +
	"of the main points in the order they appear. Use only the transcript " +
	"text; do not add outside knowledge."

const combineSystemPrompt = "You combine partial summaries of consecutive parts of one video " +
	"transcript into a single coherent summary. Preserve the order of the " +
	"parts and do not add outside knowledge."

// SummarizerOptions configures transcript summarization.
type SummarizerOptions struct {
	Chat   ChatBackend
	Logger infra.Logger

	// ChunkChars bounds how much transcript text one generation call
	// receives. A transcript longer than this is summarized part by part
	// and the partial summaries are combined in a final call.
	ChunkChars int
	BaseDelay  time.Duration
}

// Summarizer produces a whole-transcript summary through the configured
// chat backend.
type Summarizer struct {
	chat       ChatBackend
	logger     infra.Logger
	chunkChars int
	policy     retry.Policy
}

// NewSummarizer constructs the summarizer, applying defaults.
func NewSummarizer(opts SummarizerOptions) *Summarizer {
	chunkChars := opts.ChunkChars
	if chunkChars < 1 {
		chunkChars = 4000
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Summarizer{
		chat:       opts.Chat,
		logger:     opts.Logger,
		chunkChars: chunkChars,
		policy: retry.Policy{
			// One retry per call; the backend draws a fresh credential
			// each attempt.
			MaxAttempts: 2,
			BaseDelay:   baseDelay,
			MaxDelay:    10 * time.Second,
			Jitter:      250 * time.Millisecond,
			Retryable:   IsTransient,
		},
	}
}

// Summarize condenses the transcript into prose. Short transcripts go to
// the backend in one call; long ones are summarized per chunk and the
// partial summaries combined.
func (s *Summarizer) Summarize(ctx context.Context, transcript domain.Transcript) (string, error) {
	text := strings.TrimSpace(transcript.FullText())
	if text == "" {
		return "", &domain.SummarizationError{VideoID: transcript.VideoID, Reason: "transcript is empty"}
	}

	chunks := chunkText(text, s.chunkChars)
	if len(chunks) == 1 {
		summary, err := s.complete(ctx, summarySystemPrompt, chunks[0])
		if err != nil {
			return "", s.wrap(transcript.VideoID, err)
		}
		metrics.Summaries.WithLabelValues("success").Inc()
		return summary, nil
	}

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := fmt.Sprintf("Transcript part %d of %d:\n\n%s", i+1, len(chunks), chunk)
		partial, err := s.complete(ctx, summarySystemPrompt, prompt)
		if err != nil {
			return "", s.wrap(transcript.VideoID, err)
		}
		partials = append(partials, partial)
	}
	summary, err := s.complete(ctx, combineSystemPrompt, strings.Join(partials, "\n\n"))
	if err != nil {
		return "", s.wrap(transcript.VideoID, err)
	}
	s.logger.Info().Str("video_id", transcript.VideoID).Int("chunks", len(chunks)).Msg("answer: transcript summarized")
	metrics.Summaries.WithLabelValues("success").Inc()
	return summary, nil
}

func (s *Summarizer) complete(ctx context.Context, system, user string) (string, error) {
	var out string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var chatErr error
		out, chatErr = s.chat.Complete(ctx, system, user)
		return chatErr
	})
	return out, err
}

func (s *Summarizer) wrap(videoID string, err error) error {
	metrics.Summaries.WithLabelValues("failure").Inc()
	if errors.Is(err, domain.ErrPoolExhausted) {
		return err
	}
	return &domain.SummarizationError{VideoID: videoID, Reason: err.Error()}
}

// chunkText splits text into pieces of at most chunkChars, cutting at a
// space when one is near the boundary.
func chunkText(text string, chunkChars int) []string {
	if len(text) <= chunkChars {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkChars {
			chunks = append(chunks, text)
			break
		}
		cut := chunkChars
		if idx := strings.LastIndexByte(text[:chunkChars], ' '); idx > chunkChars/2 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
