package server

import (
	"log"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkpage/internal/engine"
	"linkpage/internal/handlers"
	"linkpage/internal/middleware"
	"linkpage/internal/resolver"
)

// RegisterRoutes registers all application routes. Authoring routes exist
// only when the node holds a signing key; without one the node serves
// reads and redirects.
func (s *Server) RegisterRoutes(manager *engine.Manager, res *resolver.Resolver) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(manager)
	pagesHandler := handlers.NewPagesHandler(res, manager)
	slugsHandler := handlers.NewSlugsHandler(res)
	redirectHandler := handlers.NewRedirectHandler(res, manager)

	s.App.Get("/healthz", healthHandler.Healthz)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Public read routes
	s.App.Get("/api/page/*", pagesHandler.GetPage)
	s.App.Get("/api/resolve/*", pagesHandler.ResolveAddress)
	s.App.Get("/api/slugs/:slug/availability", slugsHandler.CheckAvailability)
	s.App.Get("/go/:linkID", redirectHandler.Redirect)

	if !manager.CanWrite() {
		log.Println("No SECRET_KEY configured; authoring routes are disabled")
		return
	}
	if s.Cfg.APIToken == "" {
		log.Println("API_TOKEN is empty; authoring routes accept unauthenticated requests")
	}

	authMiddleware := middleware.NewAuthMiddleware(s.Cfg.APIToken)
	authoringHandler := handlers.NewAuthoringHandler(manager)

	// Authoring routes
	s.App.Post("/api/my/pages/:slug", authMiddleware.RequireToken, authoringHandler.CreatePage)
	s.App.Get("/api/my/pages/:slug", authMiddleware.RequireToken, authoringHandler.GetSession)
	s.App.Delete("/api/my/pages/:slug", authMiddleware.RequireToken, authoringHandler.DeletePage)
	s.App.Post("/api/my/pages/:slug/links", authMiddleware.RequireToken, authoringHandler.AddLink)
	s.App.Put("/api/my/pages/:slug/links/:id", authMiddleware.RequireToken, authoringHandler.UpdateLink)
	s.App.Delete("/api/my/pages/:slug/links/:id", authMiddleware.RequireToken, authoringHandler.DeleteLink)
	s.App.Post("/api/my/pages/:slug/links/:id/move", authMiddleware.RequireToken, authoringHandler.MoveLink)
	s.App.Post("/api/my/pages/:slug/links/:id/visibility", authMiddleware.RequireToken, authoringHandler.ToggleVisibility)
	s.App.Post("/api/my/pages/:slug/groups", authMiddleware.RequireToken, authoringHandler.AddGroup)
	s.App.Put("/api/my/pages/:slug/groups/:id", authMiddleware.RequireToken, authoringHandler.UpdateGroup)
	s.App.Delete("/api/my/pages/:slug/groups/:id", authMiddleware.RequireToken, authoringHandler.DeleteGroup)
	s.App.Post("/api/my/pages/:slug/groups/:id/reorder", authMiddleware.RequireToken, authoringHandler.ReorderGroup)
	s.App.Post("/api/my/pages/:slug/reorder", authMiddleware.RequireToken, authoringHandler.Reorder)
	s.App.Put("/api/my/pages/:slug/theme", authMiddleware.RequireToken, authoringHandler.UpdateTheme)
	s.App.Put("/api/my/pages/:slug/meta", authMiddleware.RequireToken, authoringHandler.UpdateMeta)
	s.App.Put("/api/my/pages/:slug/profile", authMiddleware.RequireToken, authoringHandler.UpdateProfileOverride)
	s.App.Put("/api/my/pages/:slug/socials", authMiddleware.RequireToken, authoringHandler.UpdateSocials)
}
