package domain

// SegmentRange is the inclusive span of transcript segments a passage
// covers, kept for citation back to the source timeline.
type SegmentRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// Passage is the unit of retrieval: a contiguous, length-bounded excerpt
// of the transcript with its embedding vector. Passages are never mutated
// in place; an index rebuild replaces the whole set.
type Passage struct {
	ID       string       `json:"id"`
	Ordinal  int          `json:"ordinal"`
	Text     string       `json:"text"`
	Segments SegmentRange `json:"segments"`
	StartSec float64      `json:"start_sec"`
	EndSec   float64      `json:"end_sec"`

	// Embedded is false when every embedding attempt for this passage
	// failed; such passages are retained for metadata and export but
	// excluded from similarity search.
	Embedded bool      `json:"embedded"`
	Vector   []float32 `json:"-"`
}

// ScoredPassage pairs a passage with its similarity to a query vector.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}
