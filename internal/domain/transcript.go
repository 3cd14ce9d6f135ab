package domain

import "fmt"

// Segment is one time-aligned piece of transcript text.
type Segment struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Text     string  `json:"text"`
}

// Transcript is the ordered, time-aligned text for one video. It is
// immutable once produced; regenerating one requires a fresh
// acquisition and transcription pass.
type Transcript struct {
	VideoID  string    `json:"video_id"`
	Segments []Segment `json:"segments"`
}

// FullText concatenates all segment texts in order.
func (t Transcript) FullText() string {
	var out string
	for i, seg := range t.Segments {
		if i > 0 {
			out += " "
		}
		out += seg.Text
	}
	return out
}

// Validate checks the ordering invariants: segment start times are
// non-decreasing and segments do not overlap.
func (t Transcript) Validate() error {
	for i, seg := range t.Segments {
		if seg.EndSec < seg.StartSec {
			return fmt.Errorf("transcript %s: segment %d ends (%.2f) before it starts (%.2f)", t.VideoID, i, seg.EndSec, seg.StartSec)
		}
		if i == 0 {
			continue
		}
		prev := t.Segments[i-1]
		if seg.StartSec < prev.StartSec {
			return fmt.Errorf("transcript %s: segment %d starts (%.2f) before segment %d (%.2f)", t.VideoID, i, seg.StartSec, i-1, prev.StartSec)
		}
		if seg.StartSec < prev.EndSec {
			return fmt.Errorf("transcript %s: segment %d overlaps segment %d", t.VideoID, i, i-1)
		}
	}
	return nil
}
