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

// AlbumHandler serves albums and their images.
type AlbumHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewAlbumHandler creates an AlbumHandler.
func NewAlbumHandler(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *AlbumHandler {
	return &AlbumHandler{db: db, notifier: notifier, cfg: cfg}
}

// AlbumRequest is the create/update payload.
type AlbumRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

// Create adds an album.
func (h *AlbumHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("album", "create")

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req AlbumRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}
	if req.Name == "" {
		return apperror.BadRequest("album name is required")
	}

	album := model.Album{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   callerID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&album).Error; err != nil {
		log.Error("Failed to create album", zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityAlbum,
		EntityID: &album.ID,
		Message:  "a new album was created: " + album.Name,
	})

	log.Info("Album created", zap.Uint("id", album.ID), zap.String("name", album.Name))
	return respond(c, http.StatusCreated, album, "album created successfully")
}

// List returns albums with their images, paginated.
func (h *AlbumHandler) List(c echo.Context) error {
	page, limit, offset := pageParams(c)

	var total int64
	if err := h.db.Model(&model.Album{}).Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var albums []model.Album
	if err := h.db.Preload("Images").Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&albums).Error; err != nil {
		return err
	}

	return respondPage(c, http.StatusOK, albums,
		newPagination(total, page, limit, len(albums)),
		"albums retrieved successfully")
}

// Get returns one album with its images.
func (h *AlbumHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid album id")
	}

	var album model.Album
	err := h.db.Preload("Images").First(&album, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("album not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, album, "album retrieved successfully")
}

// Update renames or redescribes an album.
func (h *AlbumHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("album", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid album id")
	}

	var req AlbumRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	var album model.Album
	err := h.db.First(&album, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("album not found")
	}
	if err != nil {
		return err
	}

	if req.Name != "" {
		album.Name = req.Name
	}
	if req.Description != "" {
		album.Description = req.Description
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&album).Error; err != nil {
		log.Error("Failed to update album", zap.Uint("id", album.ID), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityAlbum,
		EntityID: &album.ID,
		Message:  "the album " + album.Name + " was updated",
	})

	return respond(c, http.StatusOK, album, "album updated successfully")
}

// Delete removes an album and its image records in one transaction.
func (h *AlbumHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("album", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid album id")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var album model.Album
		if err := tx.First(&album, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("album not found")
			}
			return err
		}
		if err := tx.Where("album_id = ?", id).Delete(&model.Image{}).Error; err != nil {
			return err
		}
		return tx.Delete(&album).Error
	})
	if err != nil {
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityAlbum,
		Message:  "an album was removed",
	})

	log.Info("Album deleted", zap.Uint("id", id))
	return respond(c, http.StatusOK, nil, "album deleted successfully")
}

// AddImage uploads an image into an album. The file arrives as multipart
// form data under the "image" field.
func (h *AlbumHandler) AddImage(c echo.Context) error {
	log := logger.FromContext(c)

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid album id")
	}

	var album model.Album
	err := h.db.First(&album, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("album not found")
	}
	if err != nil {
		return err
	}

	path, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}
	if path == "" {
		return apperror.BadRequest("an image file is required")
	}

	image := model.Image{
		AlbumID:     album.ID,
		Path:        path,
		Description: c.FormValue("description"),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&image).Error; err != nil {
		log.Error("Failed to save image", zap.Error(err))
		return err
	}

	log.Info("Image added", zap.Uint("album_id", album.ID), zap.Uint("image_id", image.ID))
	return respond(c, http.StatusCreated, image, "image added successfully")
}

// DeleteImage removes one image from an album.
func (h *AlbumHandler) DeleteImage(c echo.Context) error {
	log := logger.FromContext(c)

	albumID, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid album id")
	}
	imageID, err := pathParamID(c, "imageId")
	if err != nil {
		return apperror.BadRequest("invalid image id")
	}

	var image model.Image
	dberr := h.db.Where("album_id = ?", albumID).First(&image, imageID).Error
	if errors.Is(dberr, gorm.ErrRecordNotFound) {
		return apperror.NotFound("image not found in this album")
	}
	if dberr != nil {
		return dberr
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&image).Error; err != nil {
		log.Error("Failed to delete image", zap.Uint("id", imageID), zap.Error(err))
		return err
	}

	log.Info("Image deleted", zap.Uint("album_id", albumID), zap.Uint("image_id", imageID))
	return respond(c, http.StatusOK, nil, "image deleted successfully")
}
