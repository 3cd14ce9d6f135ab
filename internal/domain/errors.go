package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means no job exists for the requested video id.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyInProgress rejects a duplicate submission for a video id
	// whose pipeline is still running. The running pipeline is unaffected.
	ErrAlreadyInProgress = errors.New("already in progress")
	// ErrNotReady rejects an ask against a job that has not reached Ready.
	ErrNotReady = errors.New("video is not ready")
	// ErrNoTranscript rejects a transcript read before transcription completed.
	ErrNoTranscript = errors.New("transcript not available")
	// ErrPoolExhausted means every credential is cooling down or exhausted.
	ErrPoolExhausted = errors.New("credential pool exhausted")
)

// AcquisitionError reports that every download strategy was exhausted.
type AcquisitionError struct {
	VideoID         string
	Reason          string
	TriedStrategies []StrategyOutcome
}

func (e *AcquisitionError) Error() string {
	names := make([]string, 0, len(e.TriedStrategies))
	for _, t := range e.TriedStrategies {
		names = append(names, fmt.Sprintf("%s(%s)", t.Strategy, t.Outcome))
	}
	return fmt.Sprintf("acquisition failed for %s: %s (tried %s)", e.VideoID, e.Reason, strings.Join(names, ", "))
}

// TranscriptionError reports that the speech-to-text stage failed for the
// whole asset. No partial transcript is ever surfaced.
type TranscriptionError struct {
	VideoID string
	Reason  string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for %s: %s", e.VideoID, e.Reason)
}

// IndexBuildError reports that the embedding backend was unusable for the
// whole build, as opposed to a tolerated single-passage embedding miss.
type IndexBuildError struct {
	VideoID string
	Reason  string
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("index build failed for %s: %s", e.VideoID, e.Reason)
}

// SummarizationError reports that summary generation failed for the
// whole transcript, after per-call retries.
type SummarizationError struct {
	VideoID string
	Reason  string
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed for %s: %s", e.VideoID, e.Reason)
}

// AnswerError reports that the language-model call failed even after
// retrying with a different credential. It is distinct from the
// insufficient-context outcome, which is not an error.
type AnswerError struct {
	VideoID string
	Reason  string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answer failed for %s: %s", e.VideoID, e.Reason)
}
