package handler

import (
	"net/http"
	"testing"

	"family-service/internal/mailer"
	"family-service/internal/model"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/pkg/jwtutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *gorm.DB) {
	t.Helper()
	jwtutil.Initialize(&config.JWTConfig{
		SigningKey:      "test-signing-key",
		ExpirationHours: 1,
		CookieName:      "accessToken",
	})
	db := openTestDB(t)
	cfg := testConfig()
	perms := seededPerms(t, db)
	return NewAuthHandler(db, perms, mailer.New(cfg, zap.NewNop()), testNotifier(db), cfg), db
}

func TestRegisterSetsCookieAndDefaults(t *testing.T) {
	h, db := newTestAuthHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/auth/register", UserRequest{
		FirstName:          "Ahmed",
		LastName:           "Elsaqar",
		Email:              "new@example.com",
		Password:           "secret123",
		Phone:              "0100000000",
		FamilyBranch:       "branch_1",
		FamilyRelationship: model.RelationshipSon,
		// Self-registration input that must be ignored.
		Role:   permission.RoleSuperAdmin,
		Status: model.StatusAccepted,
	}, 0)

	require.NoError(t, h.Register(c))
	requireStatus(t, rec, http.StatusCreated)

	cookieSet := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == jwtutil.CookieName() {
			cookieSet = true
			assert.True(t, ck.HttpOnly)
			assert.NotEmpty(t, ck.Value)

			claims, err := jwtutil.ValidateToken(ck.Value)
			require.NoError(t, err)
			assert.Equal(t, "new@example.com", claims.Email)
		}
	}
	assert.True(t, cookieSet, "token cookie must be set")

	var user model.User
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
	assert.Equal(t, model.StatusPending, user.Status)
	assert.Equal(t, []string{permission.RoleUser}, user.Roles)
}

func TestLoginByEmailAndPhone(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	_, _, err := createUserWithMember(h.db, h.perms, h.cfg, baseInput("login@example.com"))
	require.NoError(t, err)

	for _, identifier := range []string{"login@example.com", "0100000000"} {
		c, rec := jsonContext(t, http.MethodPost, "/auth/login", LoginRequest{
			Identifier: identifier,
			Password:   "secret123",
		}, 0)
		require.NoError(t, h.Login(c))
		requireStatus(t, rec, http.StatusOK)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _ := newTestAuthHandler(t)
	_, _, err := createUserWithMember(h.db, h.perms, h.cfg, baseInput("login@example.com"))
	require.NoError(t, err)

	c, _ := jsonContext(t, http.MethodPost, "/auth/login", LoginRequest{
		Identifier: "login@example.com",
		Password:   "wrong",
	}, 0)
	assert.Equal(t, 401, appErrCode(t, h.Login(c)))

	c, _ = jsonContext(t, http.MethodPost, "/auth/login", LoginRequest{
		Identifier: "nobody@example.com",
		Password:   "secret123",
	}, 0)
	assert.Equal(t, 401, appErrCode(t, h.Login(c)))
}

func TestLogoutExpiresCookie(t *testing.T) {
	h, _ := newTestAuthHandler(t)

	c, rec := jsonContext(t, http.MethodPost, "/auth/logout", nil, 0)
	require.NoError(t, h.Logout(c))
	requireStatus(t, rec, http.StatusOK)

	found := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == jwtutil.CookieName() {
			found = true
			assert.Empty(t, ck.Value)
			assert.True(t, ck.MaxAge < 0 || ck.Expires.Unix() <= 0)
		}
	}
	assert.True(t, found)
}
