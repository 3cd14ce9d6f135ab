package domain

// MediaFormat distinguishes the kind of track the acquirer produced.
type MediaFormat string

const (
	FormatAudio MediaFormat = "audio"
	FormatVideo MediaFormat = "video"
)

// MediaAsset is the downloaded artifact for a video. It is owned by the
// VideoJob that produced it and lives inside that job's workspace until
// cleanup.
type MediaAsset struct {
	VideoID         string
	LocalPath       string
	CaptionsPath    string
	Format          MediaFormat
	DurationSeconds float64
	StrategyUsed    string
}

// StrategyOutcome records how a single acquisition strategy fared.
type StrategyOutcome struct {
	Strategy string
	Outcome  string // "success", "exhausted", or "skipped: <reason>"
}
