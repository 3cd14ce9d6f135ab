package index

import (
	"strings"
	"testing"

	"vidqa/internal/domain"
)

func segmentsOf(texts ...string) []domain.Segment {
	segs := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segs[i] = domain.Segment{
			StartSec: float64(i * 5),
			EndSec:   float64(i*5 + 5),
			Text:     text,
		}
	}
	return segs
}

func TestSplitAccumulatesTowardTarget(t *testing.T) {
	transcript := domain.Transcript{
		VideoID:  "vid1",
		Segments: segmentsOf("aaaa", "bbbb", "cccc", "dddd", "eeee"),
	}
	passages := Split(transcript, SplitConfig{TargetChars: 10, OverlapChars: 0})
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(passages))
	}
	for i, p := range passages {
		if p.Ordinal != i {
			t.Fatalf("passage %d has ordinal %d", i, p.Ordinal)
		}
		if p.Text == "" {
			t.Fatalf("passage %d has empty text", i)
		}
	}
	// Concatenation covers every segment at least once.
	joined := " "
	for _, p := range passages {
		joined += p.Text + " "
	}
	for _, seg := range transcript.Segments {
		if !strings.Contains(joined, seg.Text) {
			t.Fatalf("segment %q missing from passages", seg.Text)
		}
	}
}

func TestSplitOverlapRepeatsBoundaryText(t *testing.T) {
	transcript := domain.Transcript{
		VideoID:  "vid1",
		Segments: segmentsOf("one", "two", "three", "four", "five", "six"),
	}
	passages := Split(transcript, SplitConfig{TargetChars: 12, OverlapChars: 5})
	if len(passages) < 2 {
		t.Fatalf("expected multiple passages, got %d", len(passages))
	}
	for i := 1; i < len(passages); i++ {
		prev, cur := passages[i-1], passages[i]
		if cur.Segments.First > prev.Segments.Last+1 {
			t.Fatalf("passage %d skips segments: prev last %d, cur first %d",
				i, prev.Segments.Last, cur.Segments.First)
		}
		if cur.Segments.First <= prev.Segments.First {
			t.Fatalf("passage %d does not make forward progress", i)
		}
	}
}

func TestSplitRecordsSegmentSpanAndTimes(t *testing.T) {
	transcript := domain.Transcript{
		VideoID:  "vid1",
		Segments: segmentsOf("alpha", "beta", "gamma"),
	}
	passages := Split(transcript, SplitConfig{TargetChars: 1000, OverlapChars: 0})
	if len(passages) != 1 {
		t.Fatalf("expected one passage for a short transcript, got %d", len(passages))
	}
	p := passages[0]
	if p.Segments.First != 0 || p.Segments.Last != 2 {
		t.Fatalf("unexpected segment span %+v", p.Segments)
	}
	if p.StartSec != 0 || p.EndSec != 15 {
		t.Fatalf("unexpected passage times [%v,%v]", p.StartSec, p.EndSec)
	}
	if p.ID == "" {
		t.Fatalf("passage id not assigned")
	}
}

func TestSplitEmptyTranscript(t *testing.T) {
	passages := Split(domain.Transcript{VideoID: "vid1"}, SplitConfig{TargetChars: 800})
	if len(passages) != 0 {
		t.Fatalf("expected no passages, got %d", len(passages))
	}
}

func TestSplitRejectsDegenerateOverlap(t *testing.T) {
	transcript := domain.Transcript{
		VideoID:  "vid1",
		Segments: segmentsOf("aa", "bb", "cc", "dd", "ee", "ff", "gg", "hh"),
	}
	// Overlap >= target would stall; the splitter must still terminate
	// and cover all segments.
	passages := Split(transcript, SplitConfig{TargetChars: 6, OverlapChars: 6})
	if len(passages) == 0 {
		t.Fatalf("expected passages")
	}
	last := passages[len(passages)-1]
	if last.Segments.Last != len(transcript.Segments)-1 {
		t.Fatalf("final passage does not reach last segment: %+v", last.Segments)
	}
}
