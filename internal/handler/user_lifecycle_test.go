package handler

import (
	"testing"

	"family-service/internal/model"
	"family-service/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func baseInput(email string) CreateUserInput {
	return CreateUserInput{
		FirstName:          "Ahmed",
		LastName:           "Elsaqar",
		Email:              email,
		Password:           "secret123",
		Phone:              "0100000000",
		FamilyBranch:       "branch_1",
		FamilyRelationship: model.RelationshipSon,
	}
}

func TestCreateUserWithMember(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	user, member, err := createUserWithMember(db, perms, cfg, baseInput("ahmed@example.com"))
	require.NoError(t, err)

	// Bidirectional linking inside one transaction.
	require.NotNil(t, user.MemberID)
	require.NotNil(t, member.UserID)
	assert.Equal(t, member.ID, *user.MemberID)
	assert.Equal(t, user.ID, *member.UserID)
	assert.True(t, member.IsUser)

	// Defaults: pending status, base user role, all-deny snapshot.
	assert.Equal(t, model.StatusPending, user.Status)
	assert.Equal(t, []string{permission.RoleUser}, user.Roles)
	assert.Len(t, user.Permissions, len(permission.Entities()))
	assert.False(t, user.Permissions.Allows(permission.EntityEvent, permission.ActionView))

	// Password stored hashed.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret123")))

	// Member gender inferred from the relationship.
	assert.Equal(t, model.GenderMale, member.Gender)

	// The tenant is bootstrapped lazily.
	var tenant model.Tenant
	require.NoError(t, db.Where("family_name = ?", cfg.FamilyName).First(&tenant).Error)
	assert.Equal(t, tenant.ID, user.TenantID)
}

func TestCreateUserValidation(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	in := baseInput("x@example.com")
	in.Email = ""
	_, _, err := createUserWithMember(db, perms, cfg, in)
	assert.Equal(t, 400, appErrCode(t, err))

	in = baseInput("not-an-email")
	_, _, err = createUserWithMember(db, perms, cfg, in)
	assert.Equal(t, 400, appErrCode(t, err))

	in = baseInput("x@example.com")
	in.FamilyBranch = "branch_9"
	_, _, err = createUserWithMember(db, perms, cfg, in)
	assert.Equal(t, 400, appErrCode(t, err))

	in = baseInput("x@example.com")
	in.Status = "archived"
	_, _, err = createUserWithMember(db, perms, cfg, in)
	assert.Equal(t, 400, appErrCode(t, err))
}

func TestDuplicateEmailConflicts(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	_, _, err := createUserWithMember(db, perms, cfg, baseInput("dup@example.com"))
	require.NoError(t, err)

	_, _, err = createUserWithMember(db, perms, cfg, baseInput("dup@example.com"))
	assert.Equal(t, 409, appErrCode(t, err))
}

func TestOnlyOneSuperAdmin(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	first := baseInput("root@example.com")
	first.Roles = []string{permission.RoleSuperAdmin}
	user, _, err := createUserWithMember(db, perms, cfg, first)
	require.NoError(t, err)
	assert.True(t, user.IsSuperAdmin())
	assert.True(t, user.Permissions.Allows(permission.EntityFinancial, permission.ActionDelete))

	second := baseInput("root2@example.com")
	second.Roles = []string{permission.RoleSuperAdmin}
	_, _, err = createUserWithMember(db, perms, cfg, second)
	assert.Equal(t, 409, appErrCode(t, err))
	assert.Contains(t, err.Error(), "super admin")
}

func TestAcceptedHeadPerBranch(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	first := baseInput("head1@example.com")
	first.FamilyRelationship = model.RelationshipHusband
	first.Status = model.StatusAccepted
	_, _, err := createUserWithMember(db, perms, cfg, first)
	require.NoError(t, err)

	// A second head in the same branch conflicts and names the incumbent.
	second := baseInput("head2@example.com")
	second.FamilyRelationship = model.RelationshipHusband
	_, _, err = createUserWithMember(db, perms, cfg, second)
	assert.Equal(t, 409, appErrCode(t, err))
	assert.Contains(t, err.Error(), "Ahmed Elsaqar")

	// A head in another branch is fine.
	third := baseInput("head3@example.com")
	third.FamilyRelationship = model.RelationshipHusband
	third.FamilyBranch = "branch_2"
	_, _, err = createUserWithMember(db, perms, cfg, third)
	assert.NoError(t, err)
}

func TestPendingHeadDoesNotBlockBranch(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	first := baseInput("pending-head@example.com")
	first.FamilyRelationship = model.RelationshipHusband
	_, _, err := createUserWithMember(db, perms, cfg, first)
	require.NoError(t, err)

	// Only an accepted head reserves the branch.
	second := baseInput("another-head@example.com")
	second.FamilyRelationship = model.RelationshipHusband
	_, _, err = createUserWithMember(db, perms, cfg, second)
	assert.NoError(t, err)
}

func TestMemberNameFallbacks(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	in := baseInput("noname@example.com")
	in.FirstName = ""
	in.LastName = ""
	user, member, err := createUserWithMember(db, perms, cfg, in)
	require.NoError(t, err)

	assert.Equal(t, "noname", member.FirstName)
	assert.Equal(t, cfg.FamilyName, member.LastName)
	assert.Equal(t, member.FirstName, user.FirstName)
}

func TestRoleSnapshotUnion(t *testing.T) {
	db := openTestDB(t)
	perms := seededPerms(t, db)
	cfg := testConfig()

	in := baseInput("manager@example.com")
	in.Roles = []string{permission.RoleFinancialManager, permission.RoleSocialManager}
	user, _, err := createUserWithMember(db, perms, cfg, in)
	require.NoError(t, err)

	assert.True(t, user.Permissions.Allows(permission.EntityFinancial, permission.ActionCreate))
	assert.True(t, user.Permissions.Allows(permission.EntityEvent, permission.ActionDelete))
	assert.False(t, user.Permissions.Allows(permission.EntityUser, permission.ActionView))
}
