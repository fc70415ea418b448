package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"photoflow-web/internal/config"
	"photoflow-web/internal/handler"
	"photoflow-web/internal/middleware"
)

func New(
	cfg *config.Config,
	render middleware.ErrorRenderer,
	guardMiddleware *middleware.GuardMiddleware,
	cookies middleware.SessionCookies,
	static http.Handler,
	authHandler *handler.AuthHandler,
	dashboardHandler *handler.DashboardHandler,
	profileHandler *handler.ProfileHandler,
	tenantHandler *handler.TenantHandler,
	avatarHandler *handler.AvatarHandler,
	eventsHandler *handler.EventsHandler,
	healthHandler *handler.HealthHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, render)

	r.Use(middleware.Recovery(render))
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(guardMiddleware.Handler)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		render(w, req, http.StatusNotFound, "The page you are looking for does not exist.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		render(w, req, http.StatusMethodNotAllowed, "That action is not supported here.")
	})

	r.Get("/health", healthHandler.Check)
	r.Handle("/static/*", static)
	r.Get("/avatar/{initials}.png", avatarHandler.Show)
	// Long-lived, so kept out of the page timeout.
	r.With(middleware.BrowserSession(cookies)).Get("/events", eventsHandler.Stream)

	r.Group(func(pages chi.Router) {
		pages.Use(middleware.Timeout(cfg.RequestTimeout))
		pages.Use(middleware.BrowserSession(cookies))

		pages.Get("/", dashboardHandler.Home)

		pages.Get("/login", authHandler.ShowLogin)
		pages.Post("/login", authHandler.Login)
		pages.Get("/register", authHandler.ShowRegister)
		pages.Post("/register", authHandler.Register)
		pages.Post("/logout", authHandler.Logout)
		pages.Get("/verify-email", authHandler.VerifyEmail)
		pages.Post("/verify-email/resend", authHandler.ResendVerification)
		pages.Get("/forgot-password", authHandler.ShowForgotPassword)
		pages.Post("/forgot-password", authHandler.ForgotPassword)
		pages.Get("/reset-password", authHandler.ShowResetPassword)
		pages.Post("/reset-password", authHandler.ResetPassword)

		pages.Get("/dashboard", dashboardHandler.Dashboard)
		pages.Get("/profile", profileHandler.Show)
		pages.Post("/profile", profileHandler.Update)
		pages.Post("/profile/password", profileHandler.ChangePassword)
		pages.Get("/tenant", tenantHandler.Show)
		pages.Post("/tenant", tenantHandler.Update)
		pages.Get("/admin", dashboardHandler.Admin)
	})

	return r
}
