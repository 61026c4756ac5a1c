package handler

import (
	"net/http"
	"testing"

	"family-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestMemberHandler(t *testing.T) (*MemberHandler, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewMemberHandler(db, testNotifier(db), testConfig()), db
}

func strPtr(s string) *string { return &s }

func TestMemberCreateRePointsWives(t *testing.T) {
	h, db := newTestMemberHandler(t)

	wife := model.Member{
		FirstName:          "Laila",
		LastName:           "Elsaqar",
		Gender:             model.GenderFemale,
		FamilyBranch:       "branch_1",
		FamilyRelationship: model.RelationshipWife,
	}
	require.NoError(t, db.Create(&wife).Error)

	c, rec := jsonContext(t, http.MethodPost, "/members", MemberRequest{
		FirstName:          strPtr("Ahmed"),
		LastName:           strPtr("Elsaqar"),
		Gender:             strPtr(model.GenderMale),
		FamilyBranch:       strPtr("branch_1"),
		FamilyRelationship: strPtr(model.RelationshipHusband),
		WifeIDs:            []uint{wife.ID},
	}, 1)

	require.NoError(t, h.Create(c))
	requireStatus(t, rec, http.StatusCreated)

	var head model.Member
	require.NoError(t, db.Where("family_relationship = ?", model.RelationshipHusband).First(&head).Error)

	var storedWife model.Member
	require.NoError(t, db.First(&storedWife, wife.ID).Error)
	require.NotNil(t, storedWife.HusbandID)
	assert.Equal(t, head.ID, *storedWife.HusbandID)
}

func TestMemberCreateRejectsSecondHead(t *testing.T) {
	h, db := newTestMemberHandler(t)
	head := maleHead("branch_1")
	require.NoError(t, db.Create(&head).Error)

	c, _ := jsonContext(t, http.MethodPost, "/members", MemberRequest{
		FirstName:          strPtr("Omar"),
		LastName:           strPtr("Elsaqar"),
		Gender:             strPtr(model.GenderMale),
		FamilyBranch:       strPtr("branch_1"),
		FamilyRelationship: strPtr(model.RelationshipHusband),
	}, 1)

	assert.Equal(t, 400, appErrCode(t, h.Create(c)))
}

// Deleting a member that backs a user account removes both records in one
// transaction.
func TestMemberDeleteCascadesToUser(t *testing.T) {
	h, db := newTestMemberHandler(t)
	perms := seededPerms(t, db)

	user, member, err := createUserWithMember(db, perms, testConfig(), baseInput("linked@example.com"))
	require.NoError(t, err)

	c, rec := jsonContext(t, http.MethodDelete, "/members", nil, user.ID)
	setPathID(c, itoa(member.ID))
	require.NoError(t, h.Delete(c))
	requireStatus(t, rec, http.StatusOK)

	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Message, "member and user deleted")

	var count int64
	require.NoError(t, db.Model(&model.Member{}).Where("id = ?", member.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestMemberDeleteWithoutUser(t *testing.T) {
	h, db := newTestMemberHandler(t)

	member := model.Member{
		FirstName:          "Huda",
		LastName:           "Elsaqar",
		Gender:             model.GenderFemale,
		FamilyBranch:       "branch_1",
		FamilyRelationship: model.RelationshipDaughter,
	}
	require.NoError(t, db.Create(&member).Error)

	c, rec := jsonContext(t, http.MethodDelete, "/members", nil, 1)
	setPathID(c, itoa(member.ID))
	require.NoError(t, h.Delete(c))

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "member deleted successfully", env.Message)
}

func TestMemberDeleteNotFound(t *testing.T) {
	h, _ := newTestMemberHandler(t)

	c, _ := jsonContext(t, http.MethodDelete, "/members", nil, 1)
	setPathID(c, "424242")
	assert.Equal(t, 404, appErrCode(t, h.Delete(c)))
}

func TestMemberUpdateKeepsHeadRole(t *testing.T) {
	h, db := newTestMemberHandler(t)
	head := maleHead("branch_1")
	require.NoError(t, db.Create(&head).Error)

	c, rec := jsonContext(t, http.MethodPatch, "/members", MemberRequest{
		Summary: strPtr("founder of the branch"),
	}, 1)
	setPathID(c, itoa(head.ID))
	require.NoError(t, h.Update(c))
	requireStatus(t, rec, http.StatusOK)

	var stored model.Member
	require.NoError(t, db.First(&stored, head.ID).Error)
	assert.Equal(t, "founder of the branch", stored.Summary)
	assert.Equal(t, model.RelationshipHusband, stored.FamilyRelationship)
}

func TestMemberListFilters(t *testing.T) {
	h, db := newTestMemberHandler(t)
	require.NoError(t, db.Create(&model.Member{
		FirstName: "A", LastName: "E", Gender: model.GenderMale,
		FamilyBranch: "branch_1", FamilyRelationship: model.RelationshipSon,
	}).Error)
	require.NoError(t, db.Create(&model.Member{
		FirstName: "B", LastName: "E", Gender: model.GenderMale,
		FamilyBranch: "branch_2", FamilyRelationship: model.RelationshipSon,
	}).Error)

	c, rec := jsonContext(t, http.MethodGet, "/members?family_branch=branch_1", nil, 1)
	require.NoError(t, h.List(c))
	requireStatus(t, rec, http.StatusOK)

	var resp struct {
		Data       []model.Member `json:"data"`
		Pagination Pagination     `json:"pagination"`
	}
	require.NoError(t, decodeInto(rec, &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "branch_1", resp.Data[0].FamilyBranch)
	assert.Equal(t, int64(1), resp.Pagination.Total)
}
