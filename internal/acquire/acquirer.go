// Package acquire fetches raw media for a video through an ordered ladder
// of download strategies, degrading quality before giving up. Upstream
// throttling is adversarial and strategy-dependent, so each strategy gets
// its own client profile, pacing, and retry budget.
package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/internal/metrics"
	"vidqa/internal/retry"
	"vidqa/internal/storage"
)

// Options configures an Acquirer.
type Options struct {
	Strategies []Strategy
	Runner     Runner
	Store      *storage.FileStore
	Logger     infra.Logger

	// RetriesPerStrategy is the attempt budget for one strategy before
	// the ladder advances.
	RetriesPerStrategy int
	// SleepMin/SleepMax bound the randomized pause between attempts.
	SleepMin, SleepMax time.Duration
	// RateHz paces requests against the upstream host.
	RateHz float64
}

// Acquirer runs the strategy ladder. Downloads are serialized process-wide:
// parallel requests measurably worsen upstream rate limiting, so the single
// in-flight slot is a correctness throttle, not a tuning knob.
type Acquirer struct {
	strategies []Strategy
	runner     Runner
	store      *storage.FileStore
	logger     infra.Logger
	policy     retry.Policy
	limiter    *rate.Limiter
	gate       *semaphore.Weighted
}

// New constructs an Acquirer from options, applying defaults.
func New(opts Options) *Acquirer {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	retries := opts.RetriesPerStrategy
	if retries < 1 {
		retries = 3
	}
	sleepMin := opts.SleepMin
	if sleepMin <= 0 {
		sleepMin = time.Second
	}
	sleepMax := opts.SleepMax
	if sleepMax < sleepMin {
		sleepMax = sleepMin
	}
	hz := opts.RateHz
	if hz <= 0 {
		hz = 0.5
	}
	jitter := sleepMax - sleepMin
	if jitter <= 0 {
		jitter = time.Millisecond
	}
	return &Acquirer{
		strategies: strategies,
		runner:     opts.Runner,
		store:      opts.Store,
		logger:     opts.Logger,
		policy: retry.Policy{
			MaxAttempts: retries,
			BaseDelay:   sleepMin,
			MaxDelay:    sleepMax,
			Jitter:      jitter,
			Retryable:   func(err error) bool { return !IsUnavailable(err) },
		},
		limiter: rate.NewLimiter(rate.Limit(hz), 1),
		gate:    semaphore.NewWeighted(1),
	}
}

// Fetch acquires media for a video, walking the strategy ladder in order.
// It fails only after every strategy is exhausted, reporting which
// strategies were tried and how each ended.
func (a *Acquirer) Fetch(ctx context.Context, videoID string) (domain.MediaAsset, error) {
	if err := a.gate.Acquire(ctx, 1); err != nil {
		return domain.MediaAsset{}, err
	}
	defer a.gate.Release(1)

	workspace, err := a.store.EnsureWorkspace(videoID)
	if err != nil {
		return domain.MediaAsset{}, err
	}

	var tried []domain.StrategyOutcome
	var lastErr error
	for _, strategy := range a.strategies {
		attemptDir := filepath.Join(workspace, "dl-"+strategy.Name)
		if err := os.MkdirAll(attemptDir, 0o755); err != nil {
			return domain.MediaAsset{}, fmt.Errorf("acquire: attempt dir: %w", err)
		}

		var res FetchResult
		err := a.policy.Do(ctx, func(ctx context.Context) error {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
			var fetchErr error
			res, fetchErr = a.runner.Fetch(ctx, videoID, strategy, attemptDir)
			if fetchErr != nil {
				a.logger.Warn().Str("video_id", videoID).Str("strategy", strategy.Name).Err(fetchErr).Msg("acquire: attempt failed")
			}
			return fetchErr
		})
		if err == nil {
			asset, promoteErr := a.promote(videoID, workspace, strategy, res)
			if promoteErr != nil {
				return domain.MediaAsset{}, promoteErr
			}
			tried = append(tried, domain.StrategyOutcome{Strategy: strategy.Name, Outcome: "success"})
			metrics.Downloads.WithLabelValues(strategy.Name, "success").Inc()
			a.logger.Info().Str("video_id", videoID).Str("strategy", strategy.Name).Msg("acquire: media fetched")
			return asset, nil
		}

		lastErr = err
		// Partial artifacts from the failed strategy must not leak into
		// the next attempt.
		_ = os.RemoveAll(attemptDir)
		if ctx.Err() != nil {
			return domain.MediaAsset{}, ctx.Err()
		}
		outcome := "exhausted"
		if IsUnavailable(err) {
			outcome = "skipped: " + err.Error()
		}
		tried = append(tried, domain.StrategyOutcome{Strategy: strategy.Name, Outcome: outcome})
		metrics.Downloads.WithLabelValues(strategy.Name, "failure").Inc()
	}

	reason := "all strategies exhausted"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return domain.MediaAsset{}, &domain.AcquisitionError{
		VideoID:         videoID,
		Reason:          reason,
		TriedStrategies: tried,
	}
}

// promote moves a successful attempt's files to their final names in the
// workspace and tears down the attempt directory.
func (a *Acquirer) promote(videoID, workspace string, strategy Strategy, res FetchResult) (domain.MediaAsset, error) {
	mediaDest := filepath.Join(workspace, "media"+filepath.Ext(res.MediaPath))
	if err := os.Rename(res.MediaPath, mediaDest); err != nil {
		return domain.MediaAsset{}, fmt.Errorf("acquire: promote media: %w", err)
	}
	captionsDest := ""
	if res.CaptionsPath != "" {
		captionsDest = filepath.Join(workspace, "captions"+filepath.Ext(res.CaptionsPath))
		if err := os.Rename(res.CaptionsPath, captionsDest); err != nil {
			captionsDest = ""
		}
	}
	_ = os.RemoveAll(filepath.Dir(res.MediaPath))
	return domain.MediaAsset{
		VideoID:         videoID,
		LocalPath:       mediaDest,
		CaptionsPath:    captionsDest,
		Format:          strategy.MediaFormat,
		DurationSeconds: res.DurationSeconds,
		StrategyUsed:    strategy.Name,
	}, nil
}
