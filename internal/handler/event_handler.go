package handler

import (
	"errors"
	"net/http"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/middleware"
	"family-service/internal/model"
	"family-service/internal/notify"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventHandler serves family event CRUD.
type EventHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *EventHandler {
	return &EventHandler{db: db, notifier: notifier, cfg: cfg}
}

// EventRequest is the create/update payload.
type EventRequest struct {
	Address     string     `json:"address" form:"address"`
	Description string     `json:"description" form:"description"`
	Location    string     `json:"location" form:"location"`
	StartDate   *time.Time `json:"start_date" form:"start_date"`
	EndDate     *time.Time `json:"end_date" form:"end_date"`
}

// Create adds an event owned by the caller.
func (h *EventHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("event", "create")

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}
	if req.Address == "" || req.Description == "" || req.Location == "" {
		return apperror.BadRequest("address, description and location are required")
	}
	if req.StartDate == nil || req.EndDate == nil {
		return apperror.BadRequest("start date and end date are required")
	}
	if req.EndDate.Before(*req.StartDate) {
		return apperror.BadRequest("end date cannot be before start date")
	}

	event := model.Event{
		UserID:      callerID,
		Address:     req.Address,
		Description: req.Description,
		Location:    req.Location,
		StartDate:   *req.StartDate,
		EndDate:     *req.EndDate,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&event).Error; err != nil {
		log.Error("Failed to create event", zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityEvent,
		EntityID: &event.ID,
		Message:  "a new event was added at " + event.Location,
	})

	log.Info("Event created", zap.Uint("id", event.ID))
	return respond(c, http.StatusCreated, event, "event created successfully")
}

// List returns events, paginated, newest start date first.
func (h *EventHandler) List(c echo.Context) error {
	page, limit, offset := pageParams(c)

	var total int64
	if err := h.db.Model(&model.Event{}).Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var events []model.Event
	if err := h.db.Order("start_date DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		return err
	}

	return respondPage(c, http.StatusOK, events,
		newPagination(total, page, limit, len(events)),
		"events retrieved successfully")
}

// Get returns one event.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid event id")
	}

	var event model.Event
	err := h.db.First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("event not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, event, "event retrieved successfully")
}

// Update applies a partial update to an event. The merged dates must still
// form a valid range.
func (h *EventHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("event", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid event id")
	}

	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	var event model.Event
	err := h.db.First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("event not found")
	}
	if err != nil {
		return err
	}

	if req.Address != "" {
		event.Address = req.Address
	}
	if req.Description != "" {
		event.Description = req.Description
	}
	if req.Location != "" {
		event.Location = req.Location
	}
	if req.StartDate != nil {
		event.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		event.EndDate = *req.EndDate
	}
	if event.EndDate.Before(event.StartDate) {
		return apperror.BadRequest("end date cannot be before start date")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&event).Error; err != nil {
		log.Error("Failed to update event", zap.Uint("id", event.ID), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityEvent,
		EntityID: &event.ID,
		Message:  "an event was updated",
	})

	log.Info("Event updated", zap.Uint("id", event.ID))
	return respond(c, http.StatusOK, event, "event updated successfully")
}

// Delete removes an event.
func (h *EventHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("event", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid event id")
	}

	var event model.Event
	err := h.db.First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("event not found")
	}
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&event).Error; err != nil {
		log.Error("Failed to delete event", zap.Uint("id", id), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityEvent,
		Message:  "an event was removed",
	})

	log.Info("Event deleted", zap.Uint("id", id))
	return respond(c, http.StatusOK, nil, "event deleted successfully")
}
