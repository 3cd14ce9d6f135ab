package jobstore

import (
	"fmt"

	"vidqa/internal/domain"
)

// allowedTransitions encodes the forward-only lifecycle. Failed is
// reachable from every non-terminal state and is terminal together with
// Ready; leaving a terminal state requires deleting the record first.
var allowedTransitions = map[domain.JobState]map[domain.JobState]bool{
	domain.StateQueued: {
		domain.StateDownloading: true,
		domain.StateFailed:      true,
	},
	domain.StateDownloading: {
		domain.StateTranscribing: true,
		domain.StateFailed:       true,
	},
	domain.StateTranscribing: {
		domain.StateIndexing: true,
		domain.StateFailed:   true,
	},
	domain.StateIndexing: {
		domain.StateReady:  true,
		domain.StateFailed: true,
	},
	domain.StateReady:  {},
	domain.StateFailed: {},
}

func canTransition(from, to domain.JobState) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func transitionError(videoID string, from, to domain.JobState) error {
	return fmt.Errorf("invalid job state transition %q -> %q (video_id=%s)", from, to, videoID)
}
