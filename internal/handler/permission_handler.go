package handler

import (
	"errors"
	"net/http"

	"family-service/internal/apperror"
	"family-service/internal/middleware"
	"family-service/internal/permission"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// PermissionHandler answers capability questions for the UI.
type PermissionHandler struct {
	db    *gorm.DB
	perms *permission.Service
}

// NewPermissionHandler creates a PermissionHandler.
func NewPermissionHandler(db *gorm.DB, perms *permission.Service) *PermissionHandler {
	return &PermissionHandler{db: db, perms: perms}
}

// CheckRequest names the (entity, action) pair to probe.
type CheckRequest struct {
	Entity string `json:"entity" form:"entity"`
	Action string `json:"action" form:"action"`
}

// Check reports whether the caller's snapshot grants the requested pair.
// Unlike the gating middleware it always answers 200, with the verdict in
// the body, so the frontend can hide controls without triggering 403s.
func (h *PermissionHandler) Check(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	entity, ok := permission.ParseEntity(req.Entity)
	if !ok {
		return apperror.BadRequest("invalid entity")
	}
	action, ok := permission.ParseAction(req.Action)
	if !ok {
		return apperror.BadRequest("invalid action")
	}

	err := middleware.CheckPermission(h.db, callerID, entity, action)
	allowed := err == nil
	if err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) || appErr.Code != http.StatusForbidden {
			return err
		}
	}

	return respond(c, http.StatusOK, echo.Map{
		"entity":  entity,
		"action":  action,
		"allowed": allowed,
	}, "permission check completed")
}

// Template returns the stored capability set for a role.
func (h *PermissionHandler) Template(c echo.Context) error {
	role := c.Param("role")
	if role == "" {
		return apperror.BadRequest("role is required")
	}

	set, err := h.perms.Template(role)
	if err != nil {
		return err
	}
	if set == nil {
		return apperror.NotFound("role not found")
	}

	return respond(c, http.StatusOK, echo.Map{
		"role":        role,
		"permissions": set,
	}, "role permissions retrieved successfully")
}
