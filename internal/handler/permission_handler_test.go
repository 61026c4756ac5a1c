package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"family-service/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionCheckAnswersInBody(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	h := NewPermissionHandler(db, perms)

	in := baseInput("checker@example.com")
	in.Roles = []string{permission.RoleFinancialManager}
	user, _, err := createUserWithMember(db, perms, testConfig(), in)
	require.NoError(t, err)

	probe := func(entity, action string) bool {
		c, rec := jsonContext(t, http.MethodPost, "/permissions/check", CheckRequest{
			Entity: entity,
			Action: action,
		}, user.ID)
		require.NoError(t, h.Check(c))
		requireStatus(t, rec, http.StatusOK)

		env := decodeEnvelope(t, rec)
		var payload struct {
			Allowed bool `json:"allowed"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &payload))
		return payload.Allowed
	}

	// Denied pairs still answer 200 with allowed=false.
	assert.True(t, probe("financial", "delete"))
	assert.False(t, probe("event", "view"))
}

func TestPermissionCheckRejectsUnknownPair(t *testing.T) {
	db := openTestDB(t)
	h := NewPermissionHandler(db, seededPerms(t, db))

	c, _ := jsonContext(t, http.MethodPost, "/permissions/check", CheckRequest{
		Entity: "documents",
		Action: "view",
	}, 1)
	assert.Equal(t, 400, appErrCode(t, h.Check(c)))
}

func TestPermissionTemplateEndpoint(t *testing.T) {
	db := openTestDB(t)
	h := NewPermissionHandler(db, seededPerms(t, db))

	c, rec := jsonContext(t, http.MethodGet, "/permissions/roles", nil, 1)
	c.SetParamNames("role")
	c.SetParamValues(permission.RoleSocialManager)
	require.NoError(t, h.Template(c))
	requireStatus(t, rec, http.StatusOK)

	c, _ = jsonContext(t, http.MethodGet, "/permissions/roles", nil, 1)
	c.SetParamNames("role")
	c.SetParamValues("janitor")
	assert.Equal(t, 404, appErrCode(t, h.Template(c)))
}
