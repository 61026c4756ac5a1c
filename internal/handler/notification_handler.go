package handler

import (
	"errors"
	"net/http"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/middleware"
	"family-service/internal/model"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationHandler serves each user's own notification feed. Every route
// is scoped to the authenticated caller; there is no cross-user access.
type NotificationHandler struct {
	db *gorm.DB
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{db: db}
}

// List returns the caller's notifications, newest first, paginated. The
// read=true|false query parameter filters by read state.
func (h *NotificationHandler) List(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	page, limit, offset := pageParams(c)

	query := h.db.Model(&model.Notification{}).Where("recipient_id = ?", callerID)
	switch c.QueryParam("read") {
	case "true":
		query = query.Where("read = ?", true)
	case "false":
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var notifications []model.Notification
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&notifications).Error; err != nil {
		return err
	}

	return respondPage(c, http.StatusOK, notifications,
		newPagination(total, page, limit, len(notifications)),
		"notifications retrieved successfully")
}

// UnreadCount returns how many of the caller's notifications are unread.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var count int64
	if err := h.db.Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", callerID, false).
		Count(&count).Error; err != nil {
		return err
	}

	return respond(c, http.StatusOK, echo.Map{"unreadCount": count},
		"unread count retrieved successfully")
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	log := logger.FromContext(c)

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid notification id")
	}

	var n model.Notification
	err := h.db.Where("recipient_id = ?", callerID).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("notification not found")
	}
	if err != nil {
		return err
	}

	if !n.Read {
		now := time.Now()
		n.Read = true
		n.ReadAt = &now
		if err := h.db.Save(&n).Error; err != nil {
			log.Error("Failed to mark notification read", zap.Uint("id", id), zap.Error(err))
			return err
		}
	}

	return respond(c, http.StatusOK, n, "notification marked as read")
}

// MarkAllRead marks every unread notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	log := logger.FromContext(c)

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	now := time.Now()
	defer prometheus.TrackDBOperation("update")(time.Now())
	res := h.db.Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", callerID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": now,
		})
	if res.Error != nil {
		log.Error("Failed to mark notifications read", zap.Error(res.Error))
		return res.Error
	}

	return respond(c, http.StatusOK, echo.Map{"modifiedCount": res.RowsAffected},
		"all notifications marked as read")
}

// Delete removes one of the caller's notifications.
func (h *NotificationHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid notification id")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := h.db.Where("recipient_id = ?", callerID).Delete(&model.Notification{}, id)
	if res.Error != nil {
		log.Error("Failed to delete notification", zap.Uint("id", id), zap.Error(res.Error))
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("notification not found")
	}

	return respond(c, http.StatusOK, nil, "notification deleted successfully")
}
