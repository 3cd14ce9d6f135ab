package domain

import "time"

// Summary is the condensed overview of one video's transcript. It is
// generated once from the full transcript and cached as an artifact in
// the video workspace.
type Summary struct {
	VideoID     string    `json:"video_id"`
	Text        string    `json:"summary"`
	GeneratedAt time.Time `json:"generated_at"`
}
