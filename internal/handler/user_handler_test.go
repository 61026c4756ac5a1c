package handler

import (
	"net/http"
	"testing"

	"family-service/internal/mailer"
	"family-service/internal/model"
	"family-service/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestUserHandler(t *testing.T) (*UserHandler, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	cfg := testConfig()
	perms := seededPerms(t, db)
	return NewUserHandler(db, perms, mailer.New(cfg, zap.NewNop()), testNotifier(db), cfg), db
}

func createTestUser(t *testing.T, h *UserHandler, email string, roles ...string) *model.User {
	t.Helper()
	in := baseInput(email)
	in.Roles = roles
	user, _, err := createUserWithMember(h.db, h.perms, h.cfg, in)
	require.NoError(t, err)
	return user
}

func TestUpdatePermissionsOverwritesOneBoolean(t *testing.T) {
	h, db := newTestUserHandler(t)
	target := createTestUser(t, h, "target@example.com")
	admin := createTestUser(t, h, "admin@example.com", permission.RoleSuperAdmin)

	value := true
	c, rec := jsonContext(t, http.MethodPatch, "/users/1/permissions", PermissionPatch{
		Entity: "event",
		Action: "view",
		Value:  &value,
	}, admin.ID)
	setPathID(c, itoa(target.ID))

	require.NoError(t, h.UpdatePermissions(c))
	requireStatus(t, rec, http.StatusOK)

	var stored model.User
	require.NoError(t, db.First(&stored, target.ID).Error)
	assert.True(t, stored.Permissions.Allows(permission.EntityEvent, permission.ActionView))
	assert.False(t, stored.Permissions.Allows(permission.EntityEvent, permission.ActionCreate))
}

// A snapshot missing the targeted tuple gets the tuple inserted rather than
// the update being dropped.
func TestUpdatePermissionsInsertsMissingTuple(t *testing.T) {
	h, db := newTestUserHandler(t)
	target := createTestUser(t, h, "legacy@example.com")

	// Degrade the snapshot to a single-tuple legacy shape.
	target.Permissions = permission.Set{{Entity: permission.EntityAlbum, View: true}}
	require.NoError(t, db.Save(target).Error)

	value := true
	c, _ := jsonContext(t, http.MethodPatch, "/users/1/permissions", PermissionPatch{
		Entity: "member",
		Action: "update",
		Value:  &value,
	}, 0)
	setPathID(c, itoa(target.ID))

	require.NoError(t, h.UpdatePermissions(c))

	var stored model.User
	require.NoError(t, db.First(&stored, target.ID).Error)
	assert.Len(t, stored.Permissions, len(permission.Entities()))
	assert.True(t, stored.Permissions.Allows(permission.EntityMember, permission.ActionUpdate))
	assert.True(t, stored.Permissions.Allows(permission.EntityAlbum, permission.ActionView))
}

func TestUpdatePermissionsRejectsBadInput(t *testing.T) {
	h, _ := newTestUserHandler(t)
	target := createTestUser(t, h, "t2@example.com")

	value := true
	c, _ := jsonContext(t, http.MethodPatch, "/", PermissionPatch{
		Entity: "documents", Action: "view", Value: &value,
	}, 0)
	setPathID(c, itoa(target.ID))
	assert.Equal(t, 400, appErrCode(t, h.UpdatePermissions(c)))

	c, _ = jsonContext(t, http.MethodPatch, "/", PermissionPatch{
		Entity: "event", Action: "view", Value: nil,
	}, 0)
	setPathID(c, itoa(target.ID))
	assert.Equal(t, 400, appErrCode(t, h.UpdatePermissions(c)))
}

func TestUpdateRolePermissionsPropagates(t *testing.T) {
	h, db := newTestUserHandler(t)
	holder := createTestUser(t, h, "elder@example.com", permission.RoleFamilyElders)
	bystander := createTestUser(t, h, "bystander@example.com")

	value := true
	c, _ := jsonContext(t, http.MethodPatch, "/", PermissionPatch{
		Entity: "financial", Action: "create", Value: &value,
	}, 0)
	c.SetParamNames("role")
	c.SetParamValues(permission.RoleFamilyElders)

	require.NoError(t, h.UpdateRolePermissions(c))

	tpl, err := h.perms.Template(permission.RoleFamilyElders)
	require.NoError(t, err)
	assert.True(t, tpl.Allows(permission.EntityFinancial, permission.ActionCreate))

	var stored model.User
	require.NoError(t, db.First(&stored, holder.ID).Error)
	assert.True(t, stored.Permissions.Allows(permission.EntityFinancial, permission.ActionCreate))

	stored = model.User{}
	require.NoError(t, db.First(&stored, bystander.ID).Error)
	assert.False(t, stored.Permissions.Allows(permission.EntityFinancial, permission.ActionCreate))
}

func TestDeleteRoleFromAllUsers(t *testing.T) {
	h, db := newTestUserHandler(t)
	single := createTestUser(t, h, "single@example.com", permission.RoleSocialManager)
	double := createTestUser(t, h, "double@example.com", permission.RoleSocialManager, permission.RoleFinancialManager)

	c, _ := jsonContext(t, http.MethodDelete, "/users/roles", RoleRequest{
		Role: permission.RoleSocialManager,
	}, 0)
	require.NoError(t, h.DeleteRoleFromAllUsers(c))

	// A user left roleless falls back to the base role and an all-deny
	// snapshot.
	var stored model.User
	require.NoError(t, db.First(&stored, single.ID).Error)
	assert.Equal(t, []string{permission.RoleUser}, stored.Roles)
	assert.False(t, stored.Permissions.Allows(permission.EntityEvent, permission.ActionView))

	// A user keeping other roles keeps their capabilities.
	stored = model.User{}
	require.NoError(t, db.First(&stored, double.ID).Error)
	assert.Equal(t, []string{permission.RoleFinancialManager}, stored.Roles)
	assert.True(t, stored.Permissions.Allows(permission.EntityFinancial, permission.ActionView))
	assert.False(t, stored.Permissions.Allows(permission.EntityEvent, permission.ActionView))
}

func TestDeleteRoleGuardsIrrevocableRoles(t *testing.T) {
	h, _ := newTestUserHandler(t)

	for _, role := range []string{permission.RoleSuperAdmin, permission.RoleUser} {
		c, _ := jsonContext(t, http.MethodDelete, "/users/roles", RoleRequest{Role: role}, 0)
		assert.Equal(t, 403, appErrCode(t, h.DeleteRoleFromAllUsers(c)))
	}
}

func TestUpdateGuardsSuperAdmin(t *testing.T) {
	h, _ := newTestUserHandler(t)
	admin := createTestUser(t, h, "root@example.com", permission.RoleSuperAdmin)
	other := createTestUser(t, h, "other@example.com")

	// Someone else cannot touch the super admin record.
	c, _ := jsonContext(t, http.MethodPatch, "/", UserPatch{}, other.ID)
	setPathID(c, itoa(admin.ID))
	assert.Equal(t, 403, appErrCode(t, h.Update(c)))

	// Nobody can grant the super admin role through update.
	role := permission.RoleSuperAdmin
	c, _ = jsonContext(t, http.MethodPatch, "/", UserPatch{Role: &role}, admin.ID)
	setPathID(c, itoa(other.ID))
	assert.Equal(t, 403, appErrCode(t, h.Update(c)))
}

func TestUpdateRoleRecomputesSnapshot(t *testing.T) {
	h, db := newTestUserHandler(t)
	admin := createTestUser(t, h, "root@example.com", permission.RoleSuperAdmin)
	target := createTestUser(t, h, "member@example.com")

	role := permission.RoleFinancialManager
	c, _ := jsonContext(t, http.MethodPatch, "/", UserPatch{Role: &role}, admin.ID)
	setPathID(c, itoa(target.ID))
	require.NoError(t, h.Update(c))

	var stored model.User
	require.NoError(t, db.First(&stored, target.ID).Error)
	assert.Equal(t, []string{permission.RoleFinancialManager}, stored.Roles)
	assert.True(t, stored.Permissions.Allows(permission.EntityFinancial, permission.ActionUpdate))
}

func TestDeleteRefusesSuperAdmin(t *testing.T) {
	h, _ := newTestUserHandler(t)
	admin := createTestUser(t, h, "root@example.com", permission.RoleSuperAdmin)
	caller := createTestUser(t, h, "caller@example.com")

	c, _ := jsonContext(t, http.MethodDelete, "/", nil, caller.ID)
	setPathID(c, itoa(admin.ID))
	assert.Equal(t, 403, appErrCode(t, h.Delete(c)))
}
