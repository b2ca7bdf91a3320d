package routes

import (
	"github.com/analyticshub/gatekeeper/internal/auth"
	"github.com/analyticshub/gatekeeper/internal/handlers"
	"github.com/analyticshub/gatekeeper/internal/middleware"
	"github.com/analyticshub/gatekeeper/internal/repositories"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	blacklistHandler *handlers.BlacklistHandler,
	tokenManager *auth.TokenManager,
	userRepo *repositories.UserRepository,
) {
	// Rate limiting config for auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)

	// Admin-only blacklist management
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(auth.RequireRole(userRepo, "admin"))

		r.Get("/admin/blacklist", blacklistHandler.List)
		r.Post("/admin/blacklist", blacklistHandler.Block)
		r.Delete("/admin/blacklist/{ip}", blacklistHandler.Unblock)
	})
}
