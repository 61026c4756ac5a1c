package handler

import (
	"errors"
	"net/http"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/mailer"
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

// UserHandler serves user accounts, roles and permission snapshots.
type UserHandler struct {
	db       *gorm.DB
	perms    *permission.Service
	mail     *mailer.Mailer
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(db *gorm.DB, perms *permission.Service, mail *mailer.Mailer, notifier *notify.Notifier, cfg *config.Config) *UserHandler {
	return &UserHandler{db: db, perms: perms, mail: mail, notifier: notifier, cfg: cfg}
}

// UserRequest is the create payload for administrative user creation and
// registration.
type UserRequest struct {
	FirstName          string   `json:"fname" form:"fname"`
	LastName           string   `json:"lname" form:"lname"`
	Email              string   `json:"email" form:"email"`
	Password           string   `json:"password" form:"password"`
	Phone              string   `json:"phone" form:"phone"`
	FamilyBranch       string   `json:"family_branch" form:"family_branch"`
	FamilyRelationship string   `json:"family_relationship" form:"family_relationship"`
	Status             string   `json:"status" form:"status"`
	Address            string   `json:"address" form:"address"`
	Image              string   `json:"image" form:"image"`
	Role               string   `json:"role" form:"role"`
	Roles              []string `json:"roles" form:"roles"`
}

func (r *UserRequest) roleList() []string {
	roles := append([]string(nil), r.Roles...)
	if r.Role != "" && !containsRole(roles, r.Role) {
		roles = append(roles, r.Role)
	}
	return roles
}

// Create provisions a user together with its companion member record.
func (h *UserHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "create")

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid user payload", zap.Error(err))
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

	user, member, err := createUserWithMember(h.db, h.perms, h.cfg, CreateUserInput{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Password:           req.Password,
		Phone:              req.Phone,
		FamilyBranch:       req.FamilyBranch,
		FamilyRelationship: req.FamilyRelationship,
		Status:             req.Status,
		Address:            req.Address,
		Image:              imageOrDefault(uploaded, req.Image, ""),
		Roles:              req.roleList(),
	})
	if err != nil {
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityUser,
		EntityID: &user.ID,
		Message:  "a new user was created",
	})

	log.Info("User created", zap.Uint("id", user.ID), zap.String("email", user.Email))
	return respond(c, http.StatusCreated, echo.Map{"user": user, "member": member},
		"user created successfully")
}

// List returns the tenant's users, paginated.
func (h *UserHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	page, limit, offset := pageParams(c)

	var total int64
	if err := h.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if err := h.db.Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return err
	}

	return respondPage(c, http.StatusOK, users,
		newPagination(total, page, limit, len(users)),
		"users retrieved successfully")
}

// Get returns one user by id.
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid user id")
	}

	var user model.User
	err := h.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user not found")
	}
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, user, "user retrieved successfully")
}

// GetAuthUser returns the calling user with its member record populated.
func (h *UserHandler) GetAuthUser(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var user model.User
	err := h.db.First(&user, callerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user not found")
	}
	if err != nil {
		return err
	}

	if user.MemberID != nil {
		var member model.Member
		if err := h.db.First(&member, *user.MemberID).Error; err == nil {
			user.Member = &member
		}
	}

	return respond(c, http.StatusOK, user, "authenticated user retrieved successfully")
}

// UserPatch is the partial-update payload.
type UserPatch struct {
	FirstName          *string  `json:"fname" form:"fname"`
	LastName           *string  `json:"lname" form:"lname"`
	Phone              *string  `json:"phone" form:"phone"`
	FamilyBranch       *string  `json:"family_branch" form:"family_branch"`
	FamilyRelationship *string  `json:"family_relationship" form:"family_relationship"`
	Status             *string  `json:"status" form:"status"`
	Address            *string  `json:"address" form:"address"`
	Image              *string  `json:"image" form:"image"`
	Role               *string  `json:"role" form:"role"`
	Roles              []string `json:"roles" form:"roles"`
}

// Update applies a partial update. Super admin records are only mutable by
// themselves and the super admin role cannot be granted through this path.
// A role change recomputes the permission snapshot; a status transition to
// accepted or rejected triggers the status email.
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid user id")
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req UserPatch
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid user payload", zap.Error(err))
		return apperror.BadRequest("invalid request data")
	}

	var user model.User
	err := h.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user not found")
	}
	if err != nil {
		return err
	}

	if user.IsSuperAdmin() && callerID != user.ID {
		return apperror.Forbidden("you are not allowed to update this account")
	}

	roles := append([]string(nil), req.Roles...)
	if req.Role != nil && *req.Role != "" && !containsRole(roles, *req.Role) {
		roles = append(roles, *req.Role)
	}
	if containsRole(roles, permission.RoleSuperAdmin) {
		return apperror.Forbidden("the super admin role cannot be assigned")
	}

	previousStatus := user.Status

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.FamilyBranch != nil {
		if !model.ValidBranch(*req.FamilyBranch) {
			return apperror.Newf(400, "family branch %q is not supported", *req.FamilyBranch)
		}
		user.FamilyBranch = *req.FamilyBranch
	}
	if req.FamilyRelationship != nil {
		if !model.ValidRelationship(*req.FamilyRelationship) {
			return apperror.Newf(400, "family relationship %q is not supported", *req.FamilyRelationship)
		}
		user.FamilyRelationship = *req.FamilyRelationship
	}
	if req.Status != nil {
		if *req.Status != model.StatusPending && *req.Status != model.StatusAccepted && *req.Status != model.StatusRejected {
			return apperror.Newf(400, "status %q is not supported", *req.Status)
		}
		user.Status = *req.Status
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}
	if uploaded != "" {
		user.Image = uploaded
	} else if req.Image != nil && *req.Image != "" {
		user.Image = *req.Image
	}

	// A role change re-snapshots permissions from the new role's template.
	if len(roles) > 0 {
		snapshot, err := h.perms.Resolve(roles)
		if err != nil {
			return err
		}
		user.Roles = roles
		user.Permissions = snapshot
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&user).Error; err != nil {
		log.Error("Failed to update user", zap.Uint("id", user.ID), zap.Error(err))
		return err
	}

	if user.Status != previousStatus &&
		(user.Status == model.StatusAccepted || user.Status == model.StatusRejected) {
		go h.mail.SendAccountStatus(&user)
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityUser,
		EntityID: &user.ID,
		Message:  "a user was updated",
	})

	log.Info("User updated", zap.Uint("id", user.ID))
	return respond(c, http.StatusOK, user, "user updated successfully")
}

// Delete removes a user account. Super admin accounts can never be deleted.
func (h *UserHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("user", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid user id")
	}

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var user model.User
	err := h.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user not found")
	}
	if err != nil {
		return err
	}

	if user.IsSuperAdmin() {
		return apperror.Forbidden("super admin accounts cannot be deleted")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&user).Error; err != nil {
		log.Error("Failed to delete user", zap.Uint("id", id), zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityUser,
		Message:  "a user was removed",
	})

	log.Info("User deleted", zap.Uint("id", id))
	return respond(c, http.StatusOK, nil, "user deleted successfully")
}

// PermissionPatch flips one (entity, action) boolean.
type PermissionPatch struct {
	Entity string `json:"entity" form:"entity"`
	Action string `json:"action" form:"action"`
	Value  *bool  `json:"value" form:"value"`
}

// UpdatePermissions overwrites a single boolean in the target user's
// permission snapshot. The snapshot is normalized first, so a tuple missing
// from a legacy snapshot is inserted rather than silently skipped.
func (h *UserHandler) UpdatePermissions(c echo.Context) error {
	log := logger.FromContext(c)

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid user id")
	}

	var req PermissionPatch
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
	if req.Value == nil {
		return apperror.BadRequest("value must be a boolean")
	}

	var user model.User
	err := h.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("user not found")
	}
	if err != nil {
		return err
	}

	snapshot := user.Permissions.Normalized()
	snapshot.Find(entity).Apply(action, *req.Value)
	user.Permissions = snapshot

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&user).Error; err != nil {
		log.Error("Failed to update permissions", zap.Uint("id", user.ID), zap.Error(err))
		return err
	}

	log.Info("Permission updated",
		zap.Uint("user_id", user.ID),
		zap.String("entity", string(entity)),
		zap.String("action", string(action)),
		zap.Bool("value", *req.Value))
	return respond(c, http.StatusOK, user.Permissions,
		"permission '"+string(action)+"' for '"+string(entity)+"' updated successfully")
}

// UpdateRolePermissions flips one boolean on a role template and propagates
// the change to every user currently holding that role.
func (h *UserHandler) UpdateRolePermissions(c echo.Context) error {
	log := logger.FromContext(c)

	role := c.Param("role")
	if role == "" {
		return apperror.BadRequest("role is required")
	}

	var req PermissionPatch
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
	if req.Value == nil {
		return apperror.BadRequest("value must be a boolean")
	}

	template, err := h.perms.UpdateTemplate(role, entity, action, *req.Value)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("role not found")
	}
	if err != nil {
		return err
	}

	// Propagate to everyone currently holding the role.
	var users []model.User
	if err := h.db.Find(&users).Error; err != nil {
		return err
	}
	updated := 0
	for i := range users {
		if !users[i].HasRole(role) {
			continue
		}
		snapshot := users[i].Permissions.Normalized()
		snapshot.Find(entity).Apply(action, *req.Value)
		users[i].Permissions = snapshot
		if err := h.db.Save(&users[i]).Error; err != nil {
			return err
		}
		updated++
	}

	log.Info("Role template updated",
		zap.String("role", role),
		zap.String("entity", string(entity)),
		zap.String("action", string(action)),
		zap.Int("users_updated", updated))
	return respond(c, http.StatusOK, echo.Map{
		"role":         role,
		"permissions":  template,
		"usersUpdated": updated,
	}, "role permissions updated successfully")
}

// RoleRequest names a role for tenant-wide removal.
type RoleRequest struct {
	Role string `json:"role" form:"role"`
}

// DeleteRoleFromAllUsers strips a role from every user holding it. Users
// left without any role fall back to the base "user" role. The super admin
// and base user roles are irrevocable.
func (h *UserHandler) DeleteRoleFromAllUsers(c echo.Context) error {
	log := logger.FromContext(c)

	var req RoleRequest
	if err := c.Bind(&req); err != nil || req.Role == "" {
		return apperror.BadRequest("role name is required")
	}

	if req.Role == permission.RoleSuperAdmin || req.Role == permission.RoleUser {
		return apperror.Forbidden("cannot remove the super admin or base user role from the system")
	}

	var users []model.User
	if err := h.db.Find(&users).Error; err != nil {
		return err
	}

	modified := 0
	for i := range users {
		if !users[i].HasRole(req.Role) {
			continue
		}

		remaining := make([]string, 0, len(users[i].Roles))
		for _, r := range users[i].Roles {
			if r != req.Role {
				remaining = append(remaining, r)
			}
		}
		if len(remaining) == 0 {
			remaining = []string{permission.RoleUser}
		}

		snapshot, err := h.perms.Resolve(remaining)
		if err != nil {
			return err
		}

		users[i].Roles = remaining
		users[i].Permissions = snapshot
		if err := h.db.Save(&users[i]).Error; err != nil {
			return err
		}
		modified++
	}

	if modified == 0 {
		return apperror.Newf(404, "no users found with the role %q", req.Role)
	}

	log.Info("Role removed from users", zap.String("role", req.Role), zap.Int("modified", modified))
	return respond(c, http.StatusOK, echo.Map{
		"roleRemoved":   req.Role,
		"modifiedCount": modified,
	}, "role removed successfully")
}

// ListRoles returns every role that has a stored template.
func (h *UserHandler) ListRoles(c echo.Context) error {
	roles, err := h.perms.Roles()
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, roles, "roles retrieved successfully")
}

// Stats returns the user totals for the dashboard.
func (h *UserHandler) Stats(c echo.Context) error {
	var total int64
	if err := h.db.Model(&model.User{}).Count(&total).Error; err != nil {
		return err
	}

	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	var recent int64
	if err := h.db.Model(&model.User{}).
		Where("created_at >= ?", sevenDaysAgo).
		Count(&recent).Error; err != nil {
		return err
	}

	return respond(c, http.StatusOK, echo.Map{
		"totalUsers":        total,
		"newUsers":          recent,
		"newUsersTimeframe": "last 7 days",
	}, "user stats retrieved successfully")
}
