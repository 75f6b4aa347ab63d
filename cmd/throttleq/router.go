package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/throttleq/internal/api"
	apiMiddleware "github.com/phrazzld/throttleq/internal/api/middleware"
)

// setupRouter creates the admin API router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	queueHandler := api.NewQueueHandler(app.queue, app.journal)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api/queue", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/status", queueHandler.Status)
		r.Post("/block", queueHandler.Block)
		r.Post("/unblock", queueHandler.Unblock)
		r.Get("/tasks", queueHandler.Tasks)
		r.Get("/journal", queueHandler.Journal)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
