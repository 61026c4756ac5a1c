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

// AdvertisementHandler serves family announcements.
type AdvertisementHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewAdvertisementHandler creates an AdvertisementHandler.
func NewAdvertisementHandler(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *AdvertisementHandler {
	return &AdvertisementHandler{db: db, notifier: notifier, cfg: cfg}
}

// AdvertisementRequest is the create/update payload.
type AdvertisementRequest struct {
	Title   string `json:"title" form:"title"`
	Type    string `json:"type" form:"type"`
	Content string `json:"content" form:"content"`
	Image   string `json:"image" form:"image"`
}

// Create posts an advertisement.
func (h *AdvertisementHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("advertisement", "create")

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req AdvertisementRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}
	if req.Title == "" || req.Content == "" {
		return apperror.BadRequest("title and content are required")
	}
	if !model.ValidAdType(req.Type) {
		return apperror.Newf(400, "advertisement type %q is not supported", req.Type)
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}

	ad := model.Advertisement{
		UserID:  callerID,
		Title:   req.Title,
		Type:    req.Type,
		Content: req.Content,
		Image:   imageOrDefault(uploaded, req.Image, h.cfg.Upload.DefaultImage),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&ad).Error; err != nil {
		log.Error("Failed to create advertisement", zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityAdvertisement,
		EntityID: &ad.ID,
		Message:  "a new announcement was posted: " + ad.Title,
		Priority: adPriority(ad.Type),
	})

	log.Info("Advertisement created", zap.Uint("id", ad.ID), zap.String("type", ad.Type))
	return respond(c, http.StatusCreated, ad, "advertisement created successfully")
}

// adPriority maps an advertisement type to a notification priority.
func adPriority(adType string) string {
	if adType == model.AdTypeImportant {
		return model.PriorityHigh
	}
	return model.PriorityMedium
}

// List returns advertisements, optionally filtered by type, paginated.
func (h *AdvertisementHandler) List(c echo.Context) error {
	page, limit, offset := pageParams(c)

	query := h.db.Model(&model.Advertisement{})
	if t := c.QueryParam("type"); t != "" {
		if !model.ValidAdType(t) {
			return apperror.Newf(400, "advertisement type %q is not supported", t)
		}
		query = query.Where("type = ?", t)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var ads []model.Advertisement
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&ads).Error; err != nil {
		return err
	}

	return respondPage(c, http.StatusOK, ads,
		newPagination(total, page, limit, len(ads)),
		"advertisements retrieved successfully")
}

// Get returns one advertisement.
func (h *AdvertisementHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid advertisement id")
	}

	var ad model.Advertisement
	err := h.db.First(&ad, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("advertisement not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, ad, "advertisement retrieved successfully")
}

// Update applies a partial update.
func (h *AdvertisementHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("advertisement", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid advertisement id")
	}

	var req AdvertisementRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	var ad model.Advertisement
	err := h.db.First(&ad, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("advertisement not found")
	}
	if err != nil {
		return err
	}

	if req.Title != "" {
		ad.Title = req.Title
	}
	if req.Type != "" {
		if !model.ValidAdType(req.Type) {
			return apperror.Newf(400, "advertisement type %q is not supported", req.Type)
		}
		ad.Type = req.Type
	}
	if req.Content != "" {
		ad.Content = req.Content
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}
	if uploaded != "" {
		ad.Image = uploaded
	} else if req.Image != "" {
		ad.Image = req.Image
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&ad).Error; err != nil {
		log.Error("Failed to update advertisement", zap.Uint("id", ad.ID), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityAdvertisement,
		EntityID: &ad.ID,
		Message:  "the announcement " + ad.Title + " was updated",
	})

	return respond(c, http.StatusOK, ad, "advertisement updated successfully")
}

// Delete removes one advertisement.
func (h *AdvertisementHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("advertisement", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid advertisement id")
	}

	var ad model.Advertisement
	err := h.db.First(&ad, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("advertisement not found")
	}
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&ad).Error; err != nil {
		log.Error("Failed to delete advertisement", zap.Uint("id", id), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityAdvertisement,
		Message:  "an announcement was removed",
	})

	log.Info("Advertisement deleted", zap.Uint("id", id))
	return respond(c, http.StatusOK, nil, "advertisement deleted successfully")
}

// DeleteAll removes every advertisement.
func (h *AdvertisementHandler) DeleteAll(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := h.db.Where("1 = 1").Delete(&model.Advertisement{})
	if res.Error != nil {
		log.Error("Failed to delete advertisements", zap.Error(res.Error))
		return res.Error
	}

	log.Info("All advertisements deleted", zap.Int64("count", res.RowsAffected))
	return respond(c, http.StatusOK, echo.Map{"deletedCount": res.RowsAffected},
		"all advertisements deleted successfully")
}
