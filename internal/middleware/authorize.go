package middleware

import (
	"errors"
	"fmt"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/model"
	"family-service/internal/permission"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CheckPermission loads the caller's persisted permission snapshot and
// decides the (entity, action) pair. It is read-only and side-effect-free so
// it can gate any number of endpoints uniformly. Outcomes: nil (allow),
// 404 when the caller no longer exists, 403 otherwise.
func CheckPermission(db *gorm.DB, userID uint, entity permission.Entity, action permission.Action) error {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("user not found")
		}
		return err
	}

	if !user.Permissions.Allows(entity, action) {
		prometheus.RecordPermissionDenied(string(entity), string(action))
		return apperror.Forbidden(fmt.Sprintf("you do not have permission to %s %s", action, entity))
	}
	return nil
}

// RequirePermission gates a route on the caller's permission snapshot. It
// must run after Auth.
func RequirePermission(db *gorm.DB, entity permission.Entity, action permission.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := CallerID(c)
			if !ok {
				prometheus.RecordAuthError("missing_identity")
				return apperror.Unauthorized("unauthorized")
			}

			if err := CheckPermission(db, userID, entity, action); err != nil {
				logger.FromContext(c).Warn("Permission denied",
					zap.Uint("user_id", userID),
					zap.String("entity", string(entity)),
					zap.String("action", string(action)))
				return err
			}

			return next(c)
		}
	}
}
