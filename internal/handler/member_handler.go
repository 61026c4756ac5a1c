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

// MemberHandler serves the genealogy resource.
type MemberHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *MemberHandler {
	return &MemberHandler{db: db, notifier: notifier, cfg: cfg}
}

// MemberRequest is the create/update payload. Pointer fields distinguish
// "absent" from "zero" on update.
type MemberRequest struct {
	FirstName          *string    `json:"fname" form:"fname"`
	LastName           *string    `json:"lname" form:"lname"`
	Gender             *string    `json:"gender" form:"gender"`
	FamilyBranch       *string    `json:"family_branch" form:"family_branch"`
	FamilyRelationship *string    `json:"family_relationship" form:"family_relationship"`
	Birthday           *time.Time `json:"birthday" form:"birthday"`
	DeathDate          *time.Time `json:"death_date" form:"death_date"`
	Summary            *string    `json:"summary" form:"summary"`
	HusbandID          *uint      `json:"husband_id" form:"husband_id"`
	WifeIDs            []uint     `json:"wives" form:"wives"`
	Image              string     `json:"image" form:"image"`
}

func strOr(p *string, fallback string) string {
	if p != nil {
		return *p
	}
	return fallback
}

// Create validates the relationship rules and persists a new member. Any
// supplied wives are re-pointed at the new member in the same transaction.
func (h *MemberHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("member", "create")

	var req MemberRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid member payload", zap.Error(err))
		return apperror.BadRequest("invalid request data")
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}

	fields := memberFields{
		FirstName:          strOr(req.FirstName, ""),
		LastName:           strOr(req.LastName, ""),
		Gender:             strOr(req.Gender, ""),
		FamilyBranch:       strOr(req.FamilyBranch, ""),
		FamilyRelationship: strOr(req.FamilyRelationship, ""),
		HusbandID:          req.HusbandID,
		WifeIDs:            req.WifeIDs,
	}
	if err := validateMemberRules(h.db, fields, 0, ""); err != nil {
		return err
	}

	member := model.Member{
		FirstName:          fields.FirstName,
		LastName:           fields.LastName,
		Gender:             fields.Gender,
		FamilyBranch:       fields.FamilyBranch,
		FamilyRelationship: fields.FamilyRelationship,
		Birthday:           req.Birthday,
		DeathDate:          req.DeathDate,
		Summary:            strOr(req.Summary, ""),
		HusbandID:          req.HusbandID,
		Image:              imageOrDefault(uploaded, req.Image, h.cfg.Upload.DefaultImage),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		if len(req.WifeIDs) > 0 {
			return tx.Model(&model.Member{}).
				Where("id IN ?", req.WifeIDs).
				Update("husband_id", member.ID).Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create member", zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityMember,
		EntityID: &member.ID,
		Message:  "a new member was added",
	})

	log.Info("Member created",
		zap.Uint("id", member.ID),
		zap.String("branch", member.FamilyBranch),
		zap.String("relationship", member.FamilyRelationship))
	return respond(c, http.StatusCreated, member, "member created successfully")
}

// Update applies a partial update after re-validating the relationship rules
// against the record's effective state.
func (h *MemberHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("member", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid member id")
	}

	var req MemberRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid member payload", zap.Error(err))
		return apperror.BadRequest("invalid request data")
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var member model.Member
	if err := h.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("member not found")
		}
		return err
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}

	// Effective post-update state for rule checking.
	fields := memberFields{
		FirstName:          strOr(req.FirstName, member.FirstName),
		LastName:           strOr(req.LastName, member.LastName),
		Gender:             strOr(req.Gender, member.Gender),
		FamilyBranch:       strOr(req.FamilyBranch, member.FamilyBranch),
		FamilyRelationship: strOr(req.FamilyRelationship, member.FamilyRelationship),
		HusbandID:          req.HusbandID,
		WifeIDs:            req.WifeIDs,
	}
	if fields.HusbandID == nil {
		fields.HusbandID = member.HusbandID
	}
	if err := validateMemberRules(h.db, fields, member.ID, member.FamilyRelationship); err != nil {
		return err
	}

	member.FirstName = fields.FirstName
	member.LastName = fields.LastName
	member.Gender = fields.Gender
	member.FamilyBranch = fields.FamilyBranch
	member.FamilyRelationship = fields.FamilyRelationship
	member.HusbandID = fields.HusbandID
	if req.Birthday != nil {
		member.Birthday = req.Birthday
	}
	if req.DeathDate != nil {
		member.DeathDate = req.DeathDate
	}
	if req.Summary != nil {
		member.Summary = *req.Summary
	}
	if uploaded != "" {
		member.Image = uploaded
	} else if req.Image != "" {
		member.Image = req.Image
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&member).Error; err != nil {
			return err
		}
		if len(req.WifeIDs) > 0 {
			return tx.Model(&model.Member{}).
				Where("id IN ?", req.WifeIDs).
				Update("husband_id", member.ID).Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to update member", zap.Uint("id", member.ID), zap.Error(err))
		return err
	}

	if err := h.db.Preload("User").Preload("Husband").Preload("Wives").First(&member, member.ID).Error; err != nil {
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityMember,
		EntityID: &member.ID,
		Message:  "a member was updated",
	})

	log.Info("Member updated", zap.Uint("id", member.ID))
	return respond(c, http.StatusOK, member, "member updated successfully")
}

// List returns members with optional branch/relationship filters, paginated.
func (h *MemberHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	page, limit, offset := pageParams(c)

	query := h.db.Model(&model.Member{})
	if branch := c.QueryParam("family_branch"); branch != "" {
		query = query.Where("family_branch = ?", branch)
	}
	if rel := c.QueryParam("family_relationship"); rel != "" {
		query = query.Where("family_relationship = ?", rel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var members []model.Member
	if err := query.
		Preload("User").
		Preload("Husband").
		Preload("Wives").
		Limit(limit).
		Offset(offset).
		Find(&members).Error; err != nil {
		log.Error("Failed to list members", zap.Error(err))
		return err
	}

	return respondPage(c, http.StatusOK, members,
		newPagination(total, page, limit, len(members)),
		"members retrieved successfully")
}

// Get returns one member with its user, husband and wives populated.
func (h *MemberHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid member id")
	}

	var member model.Member
	err := h.db.Preload("User").Preload("Husband").Preload("Wives").First(&member, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("member not found")
	}
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, member, "member retrieved successfully")
}

// Delete removes a member. A member that represents a user account cascades
// to that user inside one transaction: either both records go or neither
// does.
func (h *MemberHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("member", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid member id")
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var hadUser bool
	defer prometheus.TrackDBOperation("delete")(time.Now())
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var member model.Member
		if err := tx.First(&member, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("member not found")
			}
			return err
		}

		if member.UserID != nil {
			hadUser = true
			if err := tx.Delete(&model.User{}, *member.UserID).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&model.Member{}, id).Error
	})
	if err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			log.Error("Failed to delete member", zap.Uint("id", id), zap.Error(err))
		}
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityMember,
		Message:  "a member was removed",
	})

	message := "member deleted successfully"
	if hadUser {
		message = "member and user deleted successfully"
	}
	log.Info("Member deleted", zap.Uint("id", id), zap.Bool("cascaded_user", hadUser))
	return respond(c, http.StatusOK, nil, message)
}
