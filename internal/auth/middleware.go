package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const claimsKey = "admin_claims"

// LoginPath is where unauthenticated page requests are sent
const LoginPath = "/admin/login"

// RequireAdmin rejects requests without a valid admin session. API requests
// get a 401 JSON body; page requests are redirected to the login page.
func RequireAdmin(a *Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := a.ParseToken(c.UserContext(), c.Cookies(CookieName))
		if err != nil {
			if strings.HasPrefix(c.Path(), "/api/") {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"status": fiber.StatusUnauthorized,
					"error":  "Unauthorized",
				})
			}
			return c.Redirect(LoginPath, fiber.StatusFound)
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// ClaimsFrom returns the session claims RequireAdmin stored on the request
func ClaimsFrom(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*Claims)
	return claims, ok
}

// SetSessionCookie writes the session token cookie
func SetSessionCookie(c *fiber.Ctx, token string, expires time.Time, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session token cookie
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
