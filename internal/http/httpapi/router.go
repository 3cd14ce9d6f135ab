// Package httpapi assembles the service's HTTP routes.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidqa/internal/http/handlers"
	"vidqa/internal/infra"
	"vidqa/internal/middleware"
)

func NewRouter(app *handlers.App, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/videos", func(r chi.Router) {
		r.Post("/", app.SubmitVideo)
		r.Route("/{video_id}", func(r chi.Router) {
			r.Get("/", app.VideoStatus)
			r.Get("/transcript", app.VideoTranscript)
			r.Get("/summary", app.VideoSummary)
			r.Post("/ask", app.AskVideo)
			r.Get("/export", app.ExportVideo)
			r.Delete("/", app.DeleteVideo)
		})
	})

	return r
}
