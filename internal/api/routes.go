package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/applications", h.StartApplication)
		r.Get("/applications", h.ListApplications)
		r.Get("/reviews/pending", h.PendingReviews)
		r.Get("/stats", h.Stats)
		r.Route("/applications/{workflowId}", func(r chi.Router) {
			r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
				h.GetStatus(w, r, chi.URLParam(r, "workflowId"))
			})
			r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
				h.GetSummary(w, r, chi.URLParam(r, "workflowId"))
			})
			r.Get("/final", func(w http.ResponseWriter, r *http.Request) {
				h.GetFinal(w, r, chi.URLParam(r, "workflowId"))
			})
			r.Post("/review", func(w http.ResponseWriter, r *http.Request) {
				h.SubmitReview(w, r, chi.URLParam(r, "workflowId"))
			})
			r.Post("/notify", func(w http.ResponseWriter, r *http.Request) {
				h.Notify(w, r, chi.URLParam(r, "workflowId"))
			})
		})
	})

	return r
}
