// Package transcribe turns an acquired media asset into a time-aligned
// transcript. Long audio is cut into bounded windows, each window is
// transcribed independently, and the results are stitched back together on
// the global timeline. The operation is all-or-nothing per job.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/internal/metrics"
	"vidqa/internal/retry"
)

// Options configures a Transcriber.
type Options struct {
	Backend SpeechToText
	Audio   AudioTool
	Logger  infra.Logger

	// Window bounds how much audio one backend call may receive.
	Window time.Duration
	// RetriesPerWindow is the attempt budget for one window's transient
	// failures before the whole operation fails.
	RetriesPerWindow int
	// BaseDelay seeds the backoff between window retries.
	BaseDelay time.Duration
}

// Transcriber orchestrates windowed speech-to-text.
type Transcriber struct {
	backend SpeechToText
	audio   AudioTool
	logger  infra.Logger
	window  time.Duration
	policy  retry.Policy
}

// New constructs a Transcriber, applying defaults.
func New(opts Options) *Transcriber {
	window := opts.Window
	if window <= 0 {
		window = 10 * time.Minute
	}
	retries := opts.RetriesPerWindow
	if retries < 1 {
		retries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &Transcriber{
		backend: opts.Backend,
		audio:   opts.Audio,
		logger:  opts.Logger,
		window:  window,
		policy: retry.Policy{
			MaxAttempts: retries,
			BaseDelay:   baseDelay,
			MaxDelay:    30 * time.Second,
			Jitter:      500 * time.Millisecond,
			Retryable:   IsTransient,
		},
	}
}

// Transcribe converts the asset's audio into a transcript whose segments
// are globally time-ordered and non-overlapping.
func (t *Transcriber) Transcribe(ctx context.Context, asset domain.MediaAsset) (domain.Transcript, error) {
	duration := asset.DurationSeconds
	if duration <= 0 {
		probed, err := t.audio.Duration(ctx, asset.LocalPath)
		if err != nil {
			return domain.Transcript{}, &domain.TranscriptionError{VideoID: asset.VideoID, Reason: fmt.Sprintf("unreadable audio track: %v", err)}
		}
		duration = probed
	}
	if duration <= 0 {
		return domain.Transcript{}, &domain.TranscriptionError{VideoID: asset.VideoID, Reason: "audio track is empty"}
	}

	windows, cleanup, err := t.splitWindows(ctx, asset, duration)
	if err != nil {
		return domain.Transcript{}, &domain.TranscriptionError{VideoID: asset.VideoID, Reason: err.Error()}
	}
	defer cleanup()

	transcript := domain.Transcript{VideoID: asset.VideoID}
	for i, win := range windows {
		var segments []domain.Segment
		err := t.policy.Do(ctx, func(ctx context.Context) error {
			var callErr error
			segments, callErr = t.backend.Transcribe(ctx, win.path)
			if callErr != nil {
				t.logger.Warn().Str("video_id", asset.VideoID).Int("window", i).Err(callErr).Msg("transcribe: window attempt failed")
			}
			return callErr
		})
		if err != nil {
			metrics.TranscriptionWindows.WithLabelValues("failure").Inc()
			// No partial transcript on failure.
			return domain.Transcript{}, &domain.TranscriptionError{
				VideoID: asset.VideoID,
				Reason:  fmt.Sprintf("window %d/%d: %v", i+1, len(windows), err),
			}
		}
		metrics.TranscriptionWindows.WithLabelValues("success").Inc()
		transcript.Segments = append(transcript.Segments, shift(segments, win, transcript.Segments)...)
	}

	if len(transcript.Segments) == 0 {
		return domain.Transcript{}, &domain.TranscriptionError{VideoID: asset.VideoID, Reason: "no speech recognized in any window"}
	}
	if err := transcript.Validate(); err != nil {
		return domain.Transcript{}, &domain.TranscriptionError{VideoID: asset.VideoID, Reason: err.Error()}
	}
	t.logger.Info().Str("video_id", asset.VideoID).Int("segments", len(transcript.Segments)).Int("windows", len(windows)).Msg("transcribe: transcript produced")
	return transcript, nil
}

type window struct {
	path     string
	startSec float64
	endSec   float64
}

// splitWindows cuts the asset into bounded windows when it exceeds the
// backend's input budget. A short asset is passed through uncut.
func (t *Transcriber) splitWindows(ctx context.Context, asset domain.MediaAsset, duration float64) ([]window, func(), error) {
	windowSec := t.window.Seconds()
	if duration <= windowSec {
		return []window{{path: asset.LocalPath, startSec: 0, endSec: duration}}, func() {}, nil
	}

	dir := filepath.Join(filepath.Dir(asset.LocalPath), "windows")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("window dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	var windows []window
	ext := filepath.Ext(asset.LocalPath)
	for start := 0.0; start < duration; start += windowSec {
		length := windowSec
		if start+length > duration {
			length = duration - start
		}
		dest := filepath.Join(dir, fmt.Sprintf("win-%03d%s", len(windows), ext))
		if err := t.audio.Cut(ctx, asset.LocalPath, start, length, dest); err != nil {
			cleanup()
			return nil, nil, err
		}
		windows = append(windows, window{path: dest, startSec: start, endSec: start + length})
	}
	return windows, cleanup, nil
}

// shift moves window-local segment timestamps onto the global timeline,
// clamping at window bounds and at the previous segment's end so the
// stitched transcript stays ordered and non-overlapping.
func shift(segments []domain.Segment, win window, prior []domain.Segment) []domain.Segment {
	floor := 0.0
	if len(prior) > 0 {
		floor = prior[len(prior)-1].EndSec
	}
	out := make([]domain.Segment, 0, len(segments))
	for _, seg := range segments {
		start := seg.StartSec + win.startSec
		end := seg.EndSec + win.startSec
		if end > win.endSec {
			end = win.endSec
		}
		if start < floor {
			start = floor
		}
		if end < start {
			end = start
		}
		out = append(out, domain.Segment{StartSec: start, EndSec: end, Text: seg.Text})
		floor = end
	}
	return out
}
