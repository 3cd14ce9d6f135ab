package domain

// InsufficientContextAnswer is returned when no retrieved passage clears
// the similarity threshold. It is a deliberate policy outcome, not an
// error, and it never involves a language-model call.
const InsufficientContextAnswer = "The video transcript does not contain enough relevant material to answer that question."

// Answer is the result of a retrieval-QA call: generated text plus the
// passages it was grounded in, similarity-descending.
type Answer struct {
	VideoID       string          `json:"video_id"`
	Question      string          `json:"question"`
	Text          string          `json:"answer"`
	CitedPassages []ScoredPassage `json:"cited_passages"`

	// InsufficientContext marks the designated fallback answer.
	InsufficientContext bool `json:"insufficient_context"`
}
