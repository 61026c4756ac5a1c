package handler

import (
	"errors"
	"net/http"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/mailer"
	"family-service/internal/model"
	"family-service/internal/notify"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/pkg/jwtutil"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	db       *gorm.DB
	perms    *permission.Service
	mail     *mailer.Mailer
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(db *gorm.DB, perms *permission.Service, mail *mailer.Mailer, notifier *notify.Notifier, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, perms: perms, mail: mail, notifier: notifier, cfg: cfg}
}

func (h *AuthHandler) setAuthCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     jwtutil.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(jwtutil.Expiration()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register creates a self-service account in pending status, issues a token
// cookie and sends the welcome email.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid registration payload", zap.Error(err))
		return apperror.BadRequest("invalid request data")
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}

	// Self-registration never picks its own roles or status.
	user, member, err := createUserWithMember(h.db, h.perms, h.cfg, CreateUserInput{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Password:           req.Password,
		Phone:              req.Phone,
		FamilyBranch:       req.FamilyBranch,
		FamilyRelationship: req.FamilyRelationship,
		Address:            req.Address,
		Image:              imageOrDefault(uploaded, req.Image, ""),
	})
	if err != nil {
		return err
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Email, user.Roles)
	if err != nil {
		log.Error("Failed to sign token", zap.Error(err))
		return err
	}
	h.setAuthCookie(c, token)
	prometheus.ActiveTokensGauge.Inc()

	go h.mail.SendWelcome(user)

	h.notifier.FanOutAsync(notify.Event{
		SenderID: user.ID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityUser,
		EntityID: &user.ID,
		Message:  "a new member registered and is awaiting approval",
		Priority: model.PriorityHigh,
	})

	log.Info("User registered", zap.Uint("id", user.ID), zap.String("email", user.Email))
	return respond(c, http.StatusCreated, echo.Map{"user": user, "member": member},
		"registered successfully")
}

// LoginRequest carries the login credentials. The identifier may be an email
// address or a phone number.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
}

// Login authenticates by email or phone and sets the token cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		return apperror.BadRequest("identifier and password are required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := h.db.Where("email = ? OR phone = ?", identifier, identifier).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prometheus.RecordAuthError("unknown_identifier")
		return apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		prometheus.RecordAuthError("bad_password")
		log.Warn("Password mismatch", zap.String("identifier", identifier))
		return apperror.Unauthorized("invalid credentials")
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Email, user.Roles)
	if err != nil {
		log.Error("Failed to sign token", zap.Error(err))
		return err
	}
	h.setAuthCookie(c, token)

	prometheus.LoginCounter.Inc()
	prometheus.ActiveTokensGauge.Inc()
	log.Info("User logged in", zap.Uint("id", user.ID))
	return respond(c, http.StatusOK, user, "logged in successfully")
}

// Logout clears the token cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     jwtutil.CookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	prometheus.ActiveTokensGauge.Dec()
	return respond(c, http.StatusOK, nil, "logged out successfully")
}
