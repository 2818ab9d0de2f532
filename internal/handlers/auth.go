package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/readiness/internal/auth"
)

const (
	msgMissingCredentials = "กรุณากรอกชื่อผู้ใช้และรหัสผ่าน"
	msgInvalidCredentials = "ชื่อผู้ใช้หรือรหัสผ่านไม่ถูกต้อง"
	msgLoginSuccess       = "เข้าสู่ระบบสำเร็จ"
	msgLoginFailed        = "เกิดข้อผิดพลาดในการเข้าสู่ระบบ"
	msgLogoutSuccess      = "ออกจากระบบสำเร็จ"
	msgLogoutFailed       = "เกิดข้อผิดพลาดในการออกจากระบบ"
	msgCheckFailed        = "เกิดข้อผิดพลาด"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginHandler signs an admin in and sets the session cookie
func LoginHandler(a *auth.Authenticator, secureCookies bool, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgMissingCredentials})
		}

		token, expires, err := a.Login(req.Username, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logr.Warn("admin login rejected", slog.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msgInvalidCredentials})
		}
		if err != nil {
			logr.Error("admin login failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgLoginFailed})
		}

		auth.SetSessionCookie(c, token, expires, secureCookies)
		return c.JSON(fiber.Map{"success": true, "message": msgLoginSuccess})
	}
}

// LogoutHandler revokes the current session and clears its cookie
func LogoutHandler(a *auth.Authenticator, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := a.Revoke(c.UserContext(), c.Cookies(auth.CookieName)); err != nil {
			logr.Error("admin logout failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgLogoutFailed})
		}

		auth.ClearSessionCookie(c)
		return c.JSON(fiber.Map{"success": true, "message": msgLogoutSuccess})
	}
}

// CheckHandler reports whether the request carries a valid admin session
func CheckHandler(a *auth.Authenticator, logr *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := a.ParseToken(c.UserContext(), c.Cookies(auth.CookieName))
		if errors.Is(err, auth.ErrInvalidToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"authenticated": false})
		}
		if err != nil {
			logr.Error("session check failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"authenticated": false,
				"error":         msgCheckFailed,
			})
		}

		return c.JSON(fiber.Map{"authenticated": true, "username": claims.Username})
	}
}
