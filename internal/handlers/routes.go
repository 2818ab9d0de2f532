package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/auth"
	"github.com/jjenkins/readiness/internal/export"
	"github.com/jjenkins/readiness/internal/service"
)

// Deps are the services the routes are built from
type Deps struct {
	Responses     *service.ResponseService
	Exporter      *export.Exporter
	Auth          *auth.Authenticator
	Location      *time.Location
	SecureCookies bool
	Logger        *slog.Logger
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	requireAdmin := auth.RequireAdmin(d.Auth)
	svc := d.Responses
	logr := d.Logger
	if logr == nil {
		logr = slog.Default()
	}

	// Questionnaire client routes
	app.Get("/api/questionnaire", QuestionnaireHandler(svc.Catalog()))
	app.Post("/api/answers", SaveAnswersHandler(svc, logr))
	app.Post("/api/responses", SaveMetadataHandler(svc, logr))
	app.Get("/api/responses", ResumeHandler(svc, logr), requireAdmin, ListResponsesHandler(svc, logr))

	// Admin API routes
	app.Post("/api/responses/export", requireAdmin, ExportHandler(svc, d.Exporter, logr))
	app.Get("/api/responses/:id", requireAdmin, GetResponseHandler(svc, logr))
	app.Patch("/api/responses/:id", requireAdmin, UpdateResponseHandler(svc, logr))
	app.Delete("/api/responses/:id", requireAdmin, DeleteResponseHandler(svc, logr))
	app.Post("/api/responses/:id/progress-override", requireAdmin, ProgressOverrideHandler(svc, logr))

	// Auth routes
	app.Post("/api/auth/login", LoginHandler(d.Auth, d.SecureCookies, logr))
	app.Post("/api/auth/logout", LogoutHandler(d.Auth, logr))
	app.Get("/api/auth/check", CheckHandler(d.Auth, logr))

	// Admin pages
	app.Get("/admin/login", LoginPageHandler(d.Auth))
	app.Post("/admin/login", LoginFormHandler(d.Auth, d.SecureCookies, logr))
	app.Post("/admin/logout", LogoutPageHandler(d.Auth, logr))
	app.Get("/admin", requireAdmin, DashboardHandler(svc, d.Location, logr))
	app.Get("/admin/:id", requireAdmin, DetailHandler(svc, d.Location, logr))
	app.Get("/admin/:id/export", requireAdmin, ExportOneHandler(svc, d.Exporter, logr))
}
