package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vidqa/internal/domain"
	"vidqa/pkg/archive"
)

type submitRequest struct {
	VideoID string `json:"video_id"`
}

type jobResponse struct {
	VideoID   string    `json:"video_id"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toJobResponse(job domain.VideoJob) jobResponse {
	return jobResponse{
		VideoID:   job.VideoID,
		State:     string(job.State),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (a *App) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.VideoID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "video_id required")
		return
	}
	job, err := a.Pipeline.Submit(r.Context(), req.VideoID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toJobResponse(job))
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	job, err := a.Pipeline.Status(r.Context(), videoID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

func (a *App) VideoTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	transcript, err := a.Pipeline.Transcript(r.Context(), videoID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, transcript)
}

func (a *App) VideoSummary(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	summary, err := a.Pipeline.Summary(r.Context(), videoID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, summary)
}

type askRequest struct {
	Question string `json:"question"`
}

func (a *App) AskVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Question == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "question required")
		return
	}
	answer, err := a.Pipeline.Ask(r.Context(), videoID, req.Question)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, answer)
}

func (a *App) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	if err := a.Pipeline.Cleanup(r.Context(), videoID); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ExportVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	entries, err := a.Pipeline.Export(r.Context(), videoID)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", videoID+".zip"))
	if err := archive.Write(w, entries); err != nil {
		a.Logger.Error().Str("video_id", videoID).Err(err).Msg("handlers: export stream failed")
	}
}
