// Package index builds and queries the per-video retrieval structure:
// overlapping transcript passages, their embedding vectors, and an exact
// top-k similarity search over them.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/internal/metrics"
	"vidqa/internal/retry"
)

// PassageIndex is the complete retrieval unit for one video. Vectors are
// stored normalized, so similarity is a plain dot product. The structure
// is immutable after build; a rebuild produces a new value that replaces
// the old one atomically.
type PassageIndex struct {
	VideoID   string
	Provider  string
	Dimension int
	CreatedAt time.Time
	Passages  []domain.Passage
}

// Search returns the k most similar passages to a normalized query
// vector, similarity-descending. Exact ties are broken by passage ordinal
// so repeated calls over a fixed index are deterministic. Unembedded
// passages never participate.
func (ix *PassageIndex) Search(query []float32, k int) []domain.ScoredPassage {
	if k < 1 || len(query) != ix.Dimension {
		return nil
	}
	scored := make([]domain.ScoredPassage, 0, len(ix.Passages))
	for _, p := range ix.Passages {
		if !p.Embedded {
			continue
		}
		scored = append(scored, domain.ScoredPassage{Passage: p, Score: dot(query, p.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Passage.Ordinal < scored[j].Passage.Ordinal
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// BuilderOptions configures index construction.
type BuilderOptions struct {
	Embedder Embedder
	Logger   infra.Logger
	Split    SplitConfig

	// RetriesPerPassage bounds embedding attempts for one passage before
	// it is kept unembedded.
	RetriesPerPassage int
	BaseDelay         time.Duration
}

// Builder turns transcripts into passage indexes.
type Builder struct {
	embedder Embedder
	logger   infra.Logger
	split    SplitConfig
	policy   retry.Policy
}

// NewBuilder constructs a Builder, applying defaults.
func NewBuilder(opts BuilderOptions) *Builder {
	retries := opts.RetriesPerPassage
	if retries < 1 {
		retries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Builder{
		embedder: opts.Embedder,
		logger:   opts.Logger,
		split:    opts.Split,
		policy: retry.Policy{
			MaxAttempts: retries,
			BaseDelay:   baseDelay,
			MaxDelay:    20 * time.Second,
			Jitter:      250 * time.Millisecond,
			Retryable:   IsTransient,
		},
	}
}

// Build splits the transcript, embeds every passage, and assembles the
// index. A passage whose embedding fails after retries is retained
// unembedded; the build as a whole fails only when no passage embeds.
func (b *Builder) Build(ctx context.Context, transcript domain.Transcript) (*PassageIndex, error) {
	passages := Split(transcript, b.split)
	if len(passages) == 0 {
		return nil, &domain.IndexBuildError{VideoID: transcript.VideoID, Reason: "transcript produced no passages"}
	}

	dim := 0
	embedded := 0
	for i := range passages {
		var vec []float32
		err := b.policy.Do(ctx, func(ctx context.Context) error {
			raw, embErr := b.embedder.Embed(ctx, passages[i].Text)
			if embErr != nil {
				return embErr
			}
			var normErr error
			vec, normErr = normalize(raw)
			return normErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.Embeddings.WithLabelValues("failure").Inc()
			b.logger.Warn().Str("video_id", transcript.VideoID).Int("passage", i).Err(err).Msg("index: passage left unembedded")
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return nil, &domain.IndexBuildError{
				VideoID: transcript.VideoID,
				Reason:  fmt.Sprintf("embedding dimensionality drifted: %d then %d", dim, len(vec)),
			}
		}
		passages[i].Vector = vec
		passages[i].Embedded = true
		embedded++
		metrics.Embeddings.WithLabelValues("success").Inc()
	}

	if embedded == 0 {
		return nil, &domain.IndexBuildError{VideoID: transcript.VideoID, Reason: "embedding backend unusable: no passage embedded"}
	}

	b.logger.Info().
		Str("video_id", transcript.VideoID).
		Int("passages", len(passages)).
		Int("embedded", embedded).
		Msg("index: built")
	return &PassageIndex{
		VideoID:   transcript.VideoID,
		Provider:  b.embedder.Provider(),
		Dimension: dim,
		CreatedAt: time.Now().UTC(),
		Passages:  passages,
	}, nil
}
