package acquire

import (
	"errors"
	"strings"
)

// errRateLimited wraps an upstream throttling signal; the same strategy is
// retried with randomized backoff.
var errRateLimited = errors.New("upstream rate limit")

// errUnavailable wraps signals that retrying the same strategy cannot fix
// (removed content, geo restriction, private video); the acquirer advances
// to the next strategy immediately.
var errUnavailable = errors.New("content unavailable for this strategy")

var rateLimitMarkers = []string{
	"429",
	"too many requests",
	"rate-limit",
	"rate limited",
	"throttl",
}

var unavailableMarkers = []string{
	"video unavailable",
	"has been removed",
	"private video",
	"not available in your country",
	"geo restriction",
	"account associated with this video has been terminated",
	"sign in to confirm your age",
}

// classifyOutput maps raw downloader output onto the retry taxonomy.
func classifyOutput(output string) error {
	lower := strings.ToLower(output)
	for _, marker := range unavailableMarkers {
		if strings.Contains(lower, marker) {
			return errUnavailable
		}
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return errRateLimited
		}
	}
	return nil
}

// IsRateLimited reports whether the error is an upstream throttle signal.
func IsRateLimited(err error) bool { return errors.Is(err, errRateLimited) }

// IsUnavailable reports whether the error means the strategy can never
// succeed for this video.
func IsUnavailable(err error) bool { return errors.Is(err, errUnavailable) }
