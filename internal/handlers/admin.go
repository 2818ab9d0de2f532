package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/auth"
	"github.com/jjenkins/readiness/internal/service"
	"github.com/jjenkins/readiness/internal/templates"
)

// LoginPageHandler shows the sign-in form, or the dashboard when the admin is
// already signed in
func LoginPageHandler(a *auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := a.ParseToken(c.UserContext(), c.Cookies(auth.CookieName)); err == nil {
			return c.Redirect("/admin", fiber.StatusFound)
		}
		return render(c, templates.Login(""), fiber.StatusOK)
	}
}

// LoginFormHandler handles the sign-in form post
func LoginFormHandler(a *auth.Authenticator, secureCookies bool, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.FormValue("username")
		password := c.FormValue("password")
		if username == "" || password == "" {
			return render(c, templates.Login(msgMissingCredentials), fiber.StatusBadRequest)
		}

		token, expires, err := a.Login(username, password)
		if err != nil {
			logr.Warn("admin login rejected", slog.String("ip", c.IP()))
			return render(c, templates.Login(msgInvalidCredentials), fiber.StatusUnauthorized)
		}

		auth.SetSessionCookie(c, token, expires, secureCookies)
		return c.Redirect("/admin", fiber.StatusSeeOther)
	}
}

// LogoutPageHandler signs the admin out and returns to the login page
func LogoutPageHandler(a *auth.Authenticator, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.Revoke(c.UserContext(), c.Cookies(auth.CookieName)); err != nil {
			logr.Error("admin logout failed", slog.String("error", err.Error()))
		}
		auth.ClearSessionCookie(c)
		return c.Redirect(auth.LoginPath, fiber.StatusSeeOther)
	}
}

// DashboardHandler renders the response list. HTMX filter requests get only
// the table body.
func DashboardHandler(svc *service.ResponseService, loc *time.Location, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		params := listParams(c)

		page, err := svc.ListResponses(ctx, params)
		if service.CodeOf(err) == service.ErrorInvalid {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}
		if err != nil {
			logr.Error("dashboard list failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading responses")
		}

		data := templates.DashboardData{
			Page:           page,
			Params:         params,
			TotalQuestions: svc.Catalog().TotalQuestions(),
			Location:       loc,
		}

		// Check if this is an HTMX request for just the table body
		if c.Get("HX-Request") == "true" {
			return render(c, templates.DashboardTableBody(data), fiber.StatusOK)
		}

		data.Stats, err = svc.Stats(ctx)
		if err != nil {
			logr.Error("dashboard stats failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading stats")
		}

		return render(c, templates.Dashboard(data), fiber.StatusOK)
	}
}

// DetailHandler renders one response grouped by section
func DetailHandler(svc *service.ResponseService, loc *time.Location, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := svc.GetRecord(c.UserContext(), c.Params("id"))
		if service.CodeOf(err) == service.ErrorNotFound {
			return c.Status(fiber.StatusNotFound).SendString("Response not found")
		}
		if err != nil {
			logr.Error("response detail failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).SendString("Error loading response")
		}

		cat := svc.Catalog()
		page := templates.ResponseDetail(templates.DetailData{
			Record:         rec,
			Sections:       service.GroupBySection(cat, *rec),
			TotalQuestions: cat.TotalQuestions(),
			Location:       loc,
		})
		return render(c, page, fiber.StatusOK)
	}
}
