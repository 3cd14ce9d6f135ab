package domain

import "time"

// JobState enumerates the video processing lifecycle states.
type JobState string

const (
	StateQueued       JobState = "queued"
	StateDownloading  JobState = "downloading"
	StateTranscribing JobState = "transcribing"
	StateIndexing     JobState = "indexing"
	StateReady        JobState = "ready"
	StateFailed       JobState = "failed"
)

// Terminal reports whether a job in this state makes no further progress.
func (s JobState) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// VideoJob is one unit of work: a single video moving through the pipeline.
// At most one active pipeline exists per VideoID at any time.
type VideoJob struct {
	VideoID   string
	State     JobState
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
