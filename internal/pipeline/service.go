// Package pipeline drives a submitted video through acquisition,
// transcription, and indexing, recording lifecycle state in the job store
// and serving queries once the video is ready.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/index"
	"vidqa/internal/infra"
	"vidqa/internal/jobstore"
	"vidqa/internal/metrics"
	"vidqa/internal/storage"
	"vidqa/pkg/archive"
)

const (
	transcriptFileName = "transcript.json"
	summaryFileName    = "summary.json"
)

// Fetcher acquires raw media for a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (domain.MediaAsset, error)
}

// SpeechTranscriber turns an acquired asset into a transcript.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, asset domain.MediaAsset) (domain.Transcript, error)
}

// IndexBuilder turns a transcript into a searchable passage index.
type IndexBuilder interface {
	Build(ctx context.Context, transcript domain.Transcript) (*index.PassageIndex, error)
}

// QA answers a question against a ready video's index.
type QA interface {
	Answer(ctx context.Context, videoID, question string) (domain.Answer, error)
}

// Summarizer condenses a full transcript into prose.
type Summarizer interface {
	Summarize(ctx context.Context, transcript domain.Transcript) (string, error)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Jobs        *jobstore.Store
	Store       *storage.FileStore
	Registry    *index.Registry
	Fetcher     Fetcher
	Transcriber SpeechTranscriber
	Builder     IndexBuilder
	QA          QA
	Summarizer  Summarizer
	Logger      infra.Logger
}

// Service owns per-video pipeline runs. Each submitted video gets one
// goroutine; at most one run exists per video id at any time.
type Service struct {
	jobs        *jobstore.Store
	store       *storage.FileStore
	registry    *index.Registry
	fetcher     Fetcher
	transcriber SpeechTranscriber
	builder     IndexBuilder
	qa          QA
	summarizer  Summarizer
	logger      infra.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	running map[string]*activeRun

	// summaryMu serializes lazy summary generation so concurrent requests
	// for the same video cost one backend pass, not several.
	summaryMu sync.Mutex
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs the pipeline service.
func New(opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		jobs:        opts.Jobs,
		store:       opts.Store,
		registry:    opts.Registry,
		fetcher:     opts.Fetcher,
		transcriber: opts.Transcriber,
		builder:     opts.Builder,
		qa:          opts.QA,
		summarizer:  opts.Summarizer,
		logger:      opts.Logger,
		baseCtx:     ctx,
		cancelBase:  cancel,
		running:     make(map[string]*activeRun),
	}
}

// RecoverInterrupted marks jobs that were mid-flight when the process
// last stopped as failed. Their artifacts stay on disk until cleanup or
// re-submission.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.State.Terminal() {
			continue
		}
		if err := s.jobs.Transition(ctx, job.VideoID, domain.StateFailed, "interrupted by restart"); err != nil {
			return err
		}
		s.logger.Warn().Str("video_id", job.VideoID).Str("was", string(job.State)).Msg("pipeline: interrupted job marked failed")
	}
	return nil
}

// Submit registers a video and starts its pipeline. Submission is
// idempotent per video id: a queued or ready video is returned as-is, an
// actively processing one is rejected, and a failed one is torn down and
// restarted from scratch.
func (s *Service) Submit(ctx context.Context, videoID string) (domain.VideoJob, error) {
	if _, err := s.store.Workspace(videoID); err != nil {
		return domain.VideoJob{}, err
	}

	job, err := s.jobs.Get(ctx, videoID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// fresh submission
	case err != nil:
		return domain.VideoJob{}, err
	case job.State == domain.StateQueued || job.State == domain.StateReady:
		return job, nil
	case job.State == domain.StateFailed:
		if err := s.teardown(ctx, videoID); err != nil {
			return domain.VideoJob{}, err
		}
	default:
		return job, fmt.Errorf("submit %s: %w", videoID, domain.ErrAlreadyInProgress)
	}

	job, err = s.jobs.Create(ctx, videoID)
	if err != nil {
		return domain.VideoJob{}, err
	}
	s.start(videoID)
	return job, nil
}

// Status reports the current lifecycle state of a video.
func (s *Service) Status(ctx context.Context, videoID string) (domain.VideoJob, error) {
	return s.jobs.Get(ctx, videoID)
}

// Transcript returns the stored transcript for a video. It is available
// as soon as the transcription stage completed, even while indexing is
// still running.
func (s *Service) Transcript(ctx context.Context, videoID string) (domain.Transcript, error) {
	if _, err := s.jobs.Get(ctx, videoID); err != nil {
		return domain.Transcript{}, err
	}
	data, err := s.store.ReadFile(videoID, transcriptFileName)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("transcript %s: %w", videoID, domain.ErrNoTranscript)
	}
	var transcript domain.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return domain.Transcript{}, fmt.Errorf("transcript %s: parse: %w", videoID, err)
	}
	return transcript, nil
}

// Summary returns the condensed overview of a video's transcript. It is
// generated on first request once the transcript exists and then served
// from the cached artifact.
func (s *Service) Summary(ctx context.Context, videoID string) (domain.Summary, error) {
	transcript, err := s.Transcript(ctx, videoID)
	if err != nil {
		return domain.Summary{}, err
	}

	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()

	if data, err := s.store.ReadFile(videoID, summaryFileName); err == nil {
		var summary domain.Summary
		if err := json.Unmarshal(data, &summary); err == nil {
			return summary, nil
		}
		// Unreadable artifact; regenerate it below.
	}

	text, err := s.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return domain.Summary{}, err
	}
	summary := domain.Summary{VideoID: videoID, Text: text, GeneratedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summary %s: marshal: %w", videoID, err)
	}
	if _, err := s.store.WriteFile(videoID, summaryFileName, data); err != nil {
		return domain.Summary{}, err
	}
	s.logger.Info().Str("video_id", videoID).Msg("pipeline: summary generated")
	return summary, nil
}

// Ask answers a question against a ready video.
func (s *Service) Ask(ctx context.Context, videoID, question string) (domain.Answer, error) {
	job, err := s.jobs.Get(ctx, videoID)
	if err != nil {
		return domain.Answer{}, err
	}
	if job.State != domain.StateReady {
		return domain.Answer{}, fmt.Errorf("ask %s in state %s: %w", videoID, job.State, domain.ErrNotReady)
	}
	return s.qa.Answer(ctx, videoID, question)
}

// Export collects a ready video's portable artifacts: the transcript and
// the index passages with their citation spans.
func (s *Service) Export(ctx context.Context, videoID string) ([]archive.Entry, error) {
	job, err := s.jobs.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if job.State != domain.StateReady {
		return nil, fmt.Errorf("export %s in state %s: %w", videoID, job.State, domain.ErrNotReady)
	}
	transcript, err := s.store.ReadFile(videoID, transcriptFileName)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", videoID, err)
	}
	entries := []archive.Entry{
		{Name: transcriptFileName, Data: transcript, Modified: job.UpdatedAt},
	}
	if passages, err := s.store.ReadFile(videoID, filepath.Join("index", "passages.json")); err == nil {
		entries = append(entries, archive.Entry{Name: "passages.json", Data: passages, Modified: job.UpdatedAt})
	}
	if summary, err := s.store.ReadFile(videoID, summaryFileName); err == nil {
		entries = append(entries, archive.Entry{Name: summaryFileName, Data: summary, Modified: job.UpdatedAt})
	}
	return entries, nil
}

// Cleanup cancels any running pipeline for the video and removes its job
// record and every artifact as one unit.
func (s *Service) Cleanup(ctx context.Context, videoID string) error {
	if _, err := s.jobs.Get(ctx, videoID); err != nil {
		return err
	}
	s.cancelRun(videoID)
	return s.teardown(ctx, videoID)
}

// Shutdown cancels all running pipelines and waits for them to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancelBase()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) start(videoID string) {
	runCtx, cancel := context.WithCancel(s.baseCtx)
	active := &activeRun{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.running[videoID] = active
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, videoID)
			s.mu.Unlock()
			cancel()
			close(active.done)
		}()
		s.run(runCtx, videoID)
	}()
}

// cancelRun stops a video's run and waits for the goroutine to exit, so
// a teardown that follows never races a stage still writing artifacts.
func (s *Service) cancelRun(videoID string) {
	s.mu.Lock()
	active, ok := s.running[videoID]
	s.mu.Unlock()
	if !ok {
		return
	}
	active.cancel()
	<-active.done
}

// run walks one video through the stages. Any stage error moves the job
// to failed with the stage's reason; cancellation leaves whatever state
// was last recorded.
func (s *Service) run(ctx context.Context, videoID string) {
	if err := s.advance(ctx, videoID, domain.StateDownloading); err != nil {
		return
	}
	asset, err := s.fetcher.Fetch(ctx, videoID)
	if err != nil {
		s.fail(videoID, err)
		return
	}

	if err := s.advance(ctx, videoID, domain.StateTranscribing); err != nil {
		return
	}
	transcript, err := s.transcriber.Transcribe(ctx, asset)
	if err != nil {
		s.fail(videoID, err)
		return
	}
	if err := s.persistTranscript(transcript); err != nil {
		s.fail(videoID, err)
		return
	}

	if err := s.advance(ctx, videoID, domain.StateIndexing); err != nil {
		return
	}
	ix, err := s.builder.Build(ctx, transcript)
	if err != nil {
		s.fail(videoID, err)
		return
	}
	if err := index.Save(s.store, ix); err != nil {
		s.fail(videoID, err)
		return
	}
	s.registry.Swap(ix)

	if err := s.advance(ctx, videoID, domain.StateReady); err != nil {
		return
	}
	metrics.JobsCompleted.WithLabelValues(string(domain.StateReady)).Inc()
	s.logger.Info().Str("video_id", videoID).Msg("pipeline: video ready")
}

func (s *Service) advance(ctx context.Context, videoID string, to domain.JobState) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// State writes survive the run's cancellation.
	if err := s.jobs.Transition(context.Background(), videoID, to, ""); err != nil {
		s.logger.Error().Str("video_id", videoID).Str("to", string(to)).Err(err).Msg("pipeline: transition rejected")
		return err
	}
	return nil
}

func (s *Service) fail(videoID string, cause error) {
	if errors.Is(cause, context.Canceled) {
		s.logger.Info().Str("video_id", videoID).Msg("pipeline: run canceled")
		return
	}
	if err := s.jobs.Transition(context.Background(), videoID, domain.StateFailed, cause.Error()); err != nil {
		s.logger.Error().Str("video_id", videoID).Err(err).Msg("pipeline: could not record failure")
		return
	}
	metrics.JobsCompleted.WithLabelValues(string(domain.StateFailed)).Inc()
	s.logger.Error().Str("video_id", videoID).Err(cause).Msg("pipeline: run failed")
}

func (s *Service) persistTranscript(transcript domain.Transcript) error {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal transcript: %w", err)
	}
	_, err = s.store.WriteFile(transcript.VideoID, transcriptFileName, data)
	return err
}

func (s *Service) teardown(ctx context.Context, videoID string) error {
	s.registry.Drop(videoID)
	if err := s.store.RemoveWorkspace(videoID); err != nil {
		return err
	}
	return s.jobs.Delete(ctx, videoID)
}
