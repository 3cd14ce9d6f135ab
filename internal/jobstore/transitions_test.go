package jobstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vidqa/internal/domain"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to domain.JobState
		allowed  bool
	}{
		{domain.StateQueued, domain.StateDownloading, true},
		{domain.StateQueued, domain.StateFailed, true},
		{domain.StateQueued, domain.StateTranscribing, false},
		{domain.StateQueued, domain.StateIndexing, false},
		{domain.StateQueued, domain.StateReady, false},

		{domain.StateDownloading, domain.StateTranscribing, true},
		{domain.StateDownloading, domain.StateFailed, true},
		{domain.StateDownloading, domain.StateQueued, false},
		{domain.StateDownloading, domain.StateReady, false},

		{domain.StateTranscribing, domain.StateIndexing, true},
		{domain.StateTranscribing, domain.StateFailed, true},
		{domain.StateTranscribing, domain.StateDownloading, false},

		{domain.StateIndexing, domain.StateReady, true},
		{domain.StateIndexing, domain.StateFailed, true},
		{domain.StateIndexing, domain.StateTranscribing, false},

		{domain.StateReady, domain.StateQueued, false},
		{domain.StateReady, domain.StateFailed, false},
		{domain.StateFailed, domain.StateQueued, false},
		{domain.StateFailed, domain.StateDownloading, false},
		{domain.StateFailed, domain.StateReady, false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.allowed, canTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestUnknownStateNeverTransitions(t *testing.T) {
	require.False(t, canTransition(domain.JobState("bogus"), domain.StateDownloading))
}
