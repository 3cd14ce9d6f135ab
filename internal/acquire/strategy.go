package acquire

import "vidqa/internal/domain"

// Strategy is one complete, self-consistent way of fetching media: a
// client profile, a quality target, and a captions preference. Strategies
// are ordered best-first; later entries trade fidelity for a better chance
// of getting past upstream throttling.
type Strategy struct {
	Name         string
	PlayerClient string
	UserAgent    string
	Format       string
	WantCaptions bool
	MediaFormat  domain.MediaFormat
}

// DefaultStrategies is the three-tier ladder the service ships with. The
// count and order are configuration, not protocol; deployments can swap
// in their own ladder.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:         "web",
			PlayerClient: "web",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Format:       "bestaudio[ext=m4a]/bestaudio",
			WantCaptions: true,
			MediaFormat:  domain.FormatAudio,
		},
		{
			Name:         "android",
			PlayerClient: "android",
			UserAgent:    "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip",
			Format:       "bestaudio",
			WantCaptions: false,
			MediaFormat:  domain.FormatAudio,
		},
		{
			Name:         "tv_embedded",
			PlayerClient: "tv_embedded",
			UserAgent:    "Mozilla/5.0 (SMART-TV; Linux; Tizen 5.0) AppleWebKit/537.36",
			Format:       "worstaudio/worst",
			WantCaptions: false,
			MediaFormat:  domain.FormatAudio,
		},
	}
}
