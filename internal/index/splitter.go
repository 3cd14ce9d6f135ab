package index

import (
	"strings"

	"github.com/google/uuid"

	"vidqa/internal/domain"
)

// SplitConfig bounds passage formation.
type SplitConfig struct {
	// TargetChars is the length a passage accumulates toward.
	TargetChars int
	// OverlapChars is how much of a passage's tail is repeated at the
	// head of the next one, preserving cross-boundary context.
	OverlapChars int
}

// Split forms passages by greedily accumulating consecutive transcript
// segments until the target length is reached. Each passage records the
// span of segments it covers for citation.
func Split(transcript domain.Transcript, cfg SplitConfig) []domain.Passage {
	target := cfg.TargetChars
	if target <= 0 {
		target = 800
	}
	overlap := cfg.OverlapChars
	if overlap < 0 || overlap >= target {
		overlap = 0
	}

	var passages []domain.Passage
	segments := transcript.Segments
	start := 0
	for start < len(segments) {
		length := 0
		end := start
		for end < len(segments) {
			length += len(segments[end].Text) + 1
			end++
			if length >= target {
				break
			}
		}

		passages = append(passages, buildPassage(segments, start, end-1, len(passages)))

		if end >= len(segments) {
			break
		}
		start = overlapStart(segments, start, end, overlap)
	}
	return passages
}

// overlapStart backs up from the passage boundary until roughly
// overlapChars of text would be repeated, always making forward progress.
func overlapStart(segments []domain.Segment, prevStart, boundary, overlapChars int) int {
	next := boundary
	carried := 0
	for next > prevStart+1 {
		carried += len(segments[next-1].Text)
		if carried > overlapChars {
			break
		}
		next--
	}
	if next <= prevStart {
		next = prevStart + 1
	}
	return next
}

func buildPassage(segments []domain.Segment, first, last, ordinal int) domain.Passage {
	texts := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		texts = append(texts, segments[i].Text)
	}
	return domain.Passage{
		ID:       uuid.NewString(),
		Ordinal:  ordinal,
		Text:     strings.Join(texts, " "),
		Segments: domain.SegmentRange{First: first, Last: last},
		StartSec: segments[first].StartSec,
		EndSec:   segments[last].EndSec,
	}
}
