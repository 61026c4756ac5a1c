package middleware

import (
	"family-service/internal/apperror"
	"family-service/pkg/jwtutil"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by Auth for downstream handlers.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	RolesKey  = "roles"
)

// Auth authenticates the request from the signed token in the HTTP-only
// cookie set at login and stores the caller's identity in the echo context.
func Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		cookie, err := c.Cookie(jwtutil.CookieName())
		if err != nil || cookie.Value == "" {
			log.Warn("Missing access token cookie")
			prometheus.RecordAuthError("missing_token")
			return apperror.Unauthorized("no token provided")
		}

		claims, err := jwtutil.ValidateToken(cookie.Value)
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return apperror.Unauthorized("not authorized to access this route")
		}

		// Store user info in context for later use
		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(RolesKey, claims.Roles)

		return next(c)
	}
}

// CallerID extracts the authenticated user's id from the echo context.
func CallerID(c echo.Context) (uint, bool) {
	id, ok := c.Get(UserIDKey).(uint)
	return id, ok
}
