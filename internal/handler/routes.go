package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the optional surfaces mounted next to the API
type RouterOptions struct {
	Events     http.Handler // SSE stream
	Metrics    http.Handler // Prometheus scrape endpoint
	Middleware []func(http.Handler) http.Handler
}

// Routes configures all routes and middleware
func (h *Handler) Routes(opts RouterOptions) http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(h.logger))
	for _, mw := range opts.Middleware {
		router.Use(mw)
	}

	router.Get("/health", h.Health)
	if opts.Events != nil {
		router.Handle("/events", opts.Events)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/instances", func(r chi.Router) {
			r.Get("/", h.ListInstances)
			r.Post("/", h.CreateInstance)

			r.Route("/{instanceID}", func(r chi.Router) {
				r.Get("/", h.GetInstance)
				r.Delete("/", h.CloseInstance)
				r.Post("/save", h.SaveInstance)
				r.Post("/reset", h.ResetInstance)

				r.Get("/session", h.GetSession)
				r.Put("/session", h.LoadSession)
				r.Patch("/session", h.UpdateSession)
				r.Post("/actions", h.RecordUserAction)

				r.Post("/events", h.ApplyEvent)
				r.Get("/execution", h.ExecutionState)
				r.Get("/qom", h.QOMLayout)

				r.Get("/controls", h.GetControls)
				r.Put("/thresholds", h.SetThresholds)
				r.Put("/selection", h.SelectItem)
				r.Delete("/selection", h.ClearSelection)
				r.Put("/zoom", h.SetZoom)

				r.Get("/graph", h.FilteredGraph)
				r.Get("/sankey", h.SankeyData)
				r.Get("/questions", h.SortedPendingQuestions)
				r.Get("/nodes/{nodeID}/path", h.CalculatePath)
				r.Get("/nodes/{nodeID}/questions", h.QuestionsForNode)
				r.Get("/nodes/{nodeID}/alerts", h.AlertsForNode)
			})
		})

		r.Route("/live", func(r chi.Router) {
			r.Get("/", h.GetLive)
			r.Post("/{sessionID}/events", h.ApplyLiveEvent)
			r.Patch("/{sessionID}/session", h.UpdateLiveSession)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", h.ListSnapshots)
			r.Post("/", h.ImportSnapshot)
			r.Get("/{sessionID}", h.ExportSnapshot)
			r.Delete("/{sessionID}", h.DeleteSnapshot)
			r.Post("/{sessionID}/replay", h.ReplaySnapshot)
		})
	})

	return router
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
