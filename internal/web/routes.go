package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-index/internal/web/handlers"
	"github.com/kozaktomas/face-index/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	indexHandler := handlers.NewIndexHandler(s.pipeline, s.config.ASCIIIDs, s.logger)

	// Health check (no token required)
	s.router.Get("/health", indexHandler.Health)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.API.Header, s.config.API.Key))

		r.Post("/AddImageToIndex", indexHandler.AddImage)
		r.Delete("/DeleteImageFromIndex", indexHandler.DeleteImage)
		r.Post("/ValidateImage", indexHandler.ValidateImage)
		r.Post("/ReplaceImage", indexHandler.ReplaceImage)
	})
}
