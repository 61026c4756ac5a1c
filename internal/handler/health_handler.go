package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db      *gorm.DB
	started time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// Check answers 200 when the service and its database are up, 503 otherwise.
func (h *HealthHandler) Check(c echo.Context) error {
	dbStatus := "up"
	overall := "healthy"
	status := http.StatusOK

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "down"
		overall = "degraded"
		status = http.StatusServiceUnavailable
	}

	return c.JSON(status, echo.Map{
		"status":   overall,
		"database": dbStatus,
		"uptime":   time.Since(h.started).String(),
	})
}
