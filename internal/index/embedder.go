package index

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Embedder computes a vector for one piece of text. The provider name is
// recorded in the index manifest; queries must be embedded by the same
// provider that built the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Provider() string
}

var errTransientEmbed = errors.New("transient embedding failure")

// IsTransient reports whether an embedding error is worth another attempt.
func IsTransient(err error) bool { return errors.Is(err, errTransientEmbed) }

// EmbedQuery embeds one query text and normalizes it, producing a vector
// comparable against an index built by the same provider.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	raw, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return normalize(raw)
}

// normalize scales a vector to unit length so cosine similarity reduces
// to a dot product. A zero vector is rejected.
func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, fmt.Errorf("embedding is a zero vector")
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
