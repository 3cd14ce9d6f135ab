// Package handlers exposes the pipeline over a thin JSON HTTP surface.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"vidqa/internal/domain"
	"vidqa/internal/infra"
	"vidqa/pkg/archive"
)

// Pipeline is the slice of the pipeline service the handlers need.
type Pipeline interface {
	Submit(ctx context.Context, videoID string) (domain.VideoJob, error)
	Status(ctx context.Context, videoID string) (domain.VideoJob, error)
	Transcript(ctx context.Context, videoID string) (domain.Transcript, error)
	Summary(ctx context.Context, videoID string) (domain.Summary, error)
	Ask(ctx context.Context, videoID, question string) (domain.Answer, error)
	Cleanup(ctx context.Context, videoID string) error
	Export(ctx context.Context, videoID string) ([]archive.Entry, error)
}

type App struct {
	Pipeline Pipeline
	Logger   infra.Logger
}

func NewApp(p Pipeline, logger infra.Logger) *App {
	return &App{Pipeline: p, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, map[string]string{"error": slug, "message": msg})
}

// fail maps domain errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "video not found")
	case errors.Is(err, domain.ErrAlreadyInProgress):
		a.error(w, http.StatusConflict, "in_progress", "video is already being processed")
	case errors.Is(err, domain.ErrNotReady):
		a.error(w, http.StatusConflict, "not_ready", "video is not ready")
	case errors.Is(err, domain.ErrNoTranscript):
		a.error(w, http.StatusConflict, "no_transcript", "transcript is not available yet")
	case errors.Is(err, domain.ErrPoolExhausted):
		a.error(w, http.StatusServiceUnavailable, "credentials_exhausted", "all provider credentials are cooling down")
	default:
		a.Logger.Error().Err(err).Msg("handlers: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
