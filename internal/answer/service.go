package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/index"
	"vidqa/internal/infra"
	"vidqa/internal/metrics"
	"vidqa/internal/retry"
)

const systemPrompt = "You answer questions about a video using only the transcript excerpts " +
	"provided. If the excerpts do not contain the answer, say so plainly. " +
	"Do not use outside knowledge and do not speculate."

// Options configures the retrieval-QA service.
type Options struct {
	Registry *index.Registry
	// Embedders maps provider name to the embedding backend, so a query is
	// always embedded by the provider that built the video's index.
	Embedders map[string]index.Embedder
	Chat      ChatBackend
	Logger    infra.Logger

	// K is how many passages are retrieved per question.
	K int
	// MinSimilarity is the relevance floor. When no passage clears it the
	// service returns the designated insufficient-context answer without
	// calling the language model.
	MinSimilarity float64

	BaseDelay time.Duration
}

// Service answers questions against built passage indexes.
type Service struct {
	registry  *index.Registry
	embedders map[string]index.Embedder
	chat      ChatBackend
	logger    infra.Logger
	k         int
	minSim    float64
	policy    retry.Policy
}

// New constructs the service, applying defaults.
func New(opts Options) *Service {
	k := opts.K
	if k < 1 {
		k = 4
	}
	minSim := opts.MinSimilarity
	if minSim <= 0 {
		minSim = 0.3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Service{
		registry:  opts.Registry,
		embedders: opts.Embedders,
		chat:      opts.Chat,
		logger:    opts.Logger,
		k:         k,
		minSim:    minSim,
		policy: retry.Policy{
			// One retry: the backend acquires a fresh credential per call,
			// so the second attempt runs on a rotated credential.
			MaxAttempts: 2,
			BaseDelay:   baseDelay,
			MaxDelay:    10 * time.Second,
			Jitter:      250 * time.Millisecond,
			Retryable:   IsTransient,
		},
	}
}

// Answer retrieves the most relevant passages for the question and
// generates a grounded answer. Identical questions against an unchanged
// index retrieve the identical passage set.
func (s *Service) Answer(ctx context.Context, videoID, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, &domain.AnswerError{VideoID: videoID, Reason: "question is empty"}
	}

	ix, err := s.registry.Get(videoID)
	if err != nil {
		return domain.Answer{}, err
	}
	embedder, ok := s.embedders[ix.Provider]
	if !ok {
		return domain.Answer{}, &domain.AnswerError{
			VideoID: videoID,
			Reason:  fmt.Sprintf("no embedding backend for provider %q", ix.Provider),
		}
	}

	var query []float32
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		var embErr error
		query, embErr = index.EmbedQuery(ctx, embedder, question)
		return embErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrPoolExhausted) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, &domain.AnswerError{VideoID: videoID, Reason: "embedding the question failed: " + err.Error()}
	}

	retrieved := ix.Search(query, s.k)
	cited := make([]domain.ScoredPassage, 0, len(retrieved))
	for _, sp := range retrieved {
		if sp.Score >= s.minSim {
			cited = append(cited, sp)
		}
	}
	if len(cited) == 0 {
		metrics.Answers.WithLabelValues("insufficient_context").Inc()
		s.logger.Info().Str("video_id", videoID).Msg("answer: no passage cleared the similarity floor")
		return domain.Answer{
			VideoID:             videoID,
			Question:            question,
			Text:                domain.InsufficientContextAnswer,
			CitedPassages:       []domain.ScoredPassage{},
			InsufficientContext: true,
		}, nil
	}

	prompt := buildPrompt(question, cited)
	var text string
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		var chatErr error
		text, chatErr = s.chat.Complete(ctx, systemPrompt, prompt)
		return chatErr
	})
	if err != nil {
		metrics.Answers.WithLabelValues("failure").Inc()
		if errors.Is(err, domain.ErrPoolExhausted) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, &domain.AnswerError{VideoID: videoID, Reason: err.Error()}
	}

	metrics.Answers.WithLabelValues("success").Inc()
	return domain.Answer{
		VideoID:       videoID,
		Question:      question,
		Text:          text,
		CitedPassages: cited,
	}, nil
}

// buildPrompt lays retrieved passages out with their timestamps so the
// model can anchor its answer to moments in the video.
func buildPrompt(question string, cited []domain.ScoredPassage) string {
	var sb strings.Builder
	sb.WriteString("Transcript excerpts:\n\n")
	for i, sp := range cited {
		fmt.Fprintf(&sb, "[%d] (%s to %s)\n%s\n\n",
			i+1, formatTimestamp(sp.Passage.StartSec), formatTimestamp(sp.Passage.EndSec), sp.Passage.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func formatTimestamp(sec float64) string {
	total := int(sec)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
