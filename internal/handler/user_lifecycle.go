package handler

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/model"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/prometheus"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)

// CreateUserInput is the common input for registration and administrative
// user creation.
type CreateUserInput struct {
	FirstName          string
	LastName           string
	Email              string
	Password           string
	Phone              string
	FamilyBranch       string
	FamilyRelationship string
	Status             string
	Address            string
	Image              string
	Roles              []string
}

// createUserWithMember runs the full user lifecycle: tenant bootstrap,
// uniqueness invariants, permission snapshot resolution, then the user and
// its companion member created inside one transaction with bidirectional
// linking.
func createUserWithMember(db *gorm.DB, perms *permission.Service, cfg *config.Config, in CreateUserInput) (*model.User, *model.Member, error) {
	if in.Email == "" || in.Password == "" || in.Phone == "" ||
		in.FamilyBranch == "" || in.FamilyRelationship == "" {
		return nil, nil, apperror.BadRequest("email, password, phone, family branch and family relationship are required")
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, nil, apperror.BadRequest("please provide a valid email address")
	}
	if !model.ValidBranch(in.FamilyBranch) {
		return nil, nil, apperror.Newf(400, "family branch %q is not supported", in.FamilyBranch)
	}
	if !model.ValidRelationship(in.FamilyRelationship) {
		return nil, nil, apperror.Newf(400, "family relationship %q is not supported", in.FamilyRelationship)
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	if in.Status != model.StatusPending && in.Status != model.StatusAccepted && in.Status != model.StatusRejected {
		return nil, nil, apperror.Newf(400, "status %q is not supported", in.Status)
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{permission.RoleUser}
	}

	// Only one super admin can ever exist.
	if containsRole(roles, permission.RoleSuperAdmin) {
		var users []model.User
		if err := db.Find(&users).Error; err != nil {
			return nil, nil, err
		}
		for _, u := range users {
			if u.IsSuperAdmin() {
				return nil, nil, apperror.Conflict("only one super admin can exist in the system")
			}
		}
	}

	// One accepted head per branch, mirrored against the user collection.
	if in.FamilyRelationship == model.RelationshipHusband {
		var existing model.User
		err := db.Where("family_branch = ? AND family_relationship = ? AND status = ?",
			in.FamilyBranch, model.RelationshipHusband, model.StatusAccepted).
			First(&existing).Error
		if err == nil {
			return nil, nil, apperror.Newf(409, "branch %s already has an approved head (%s %s)",
				in.FamilyBranch, existing.FirstName, existing.LastName)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}

	var existing model.User
	err := db.Where("email = ?", in.Email).First(&existing).Error
	if err == nil {
		return nil, nil, apperror.Conflict("email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	snapshot, err := perms.Resolve(roles)
	if err != nil {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	image := in.Image
	if image == "" {
		image = cfg.Upload.DefaultImage
	}

	memberFirst := in.FirstName
	if memberFirst == "" {
		memberFirst = strings.Split(in.Email, "@")[0]
	}
	memberLast := in.LastName
	if memberLast == "" {
		memberLast = cfg.FamilyName
	}

	user := model.User{
		FirstName:          memberFirst,
		LastName:           memberLast,
		Email:              in.Email,
		Password:           string(hashed),
		Phone:              in.Phone,
		Image:              image,
		Roles:              roles,
		FamilyBranch:       in.FamilyBranch,
		FamilyRelationship: in.FamilyRelationship,
		Permissions:        snapshot,
		Status:             in.Status,
		Address:            in.Address,
	}

	member := model.Member{
		FirstName:          memberFirst,
		LastName:           memberLast,
		Gender:             model.GenderForRelationship(in.FamilyRelationship),
		FamilyBranch:       in.FamilyBranch,
		FamilyRelationship: in.FamilyRelationship,
		IsUser:             true,
		Image:              image,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = db.Transaction(func(tx *gorm.DB) error {
		tenant, err := ensureTenant(tx, cfg.FamilyName)
		if err != nil {
			return err
		}
		user.TenantID = tenant.ID

		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		member.UserID = &user.ID
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		user.MemberID = &member.ID
		return tx.Model(&user).Update("member_id", member.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, apperror.Conflict("email already exists")
		}
		return nil, nil, err
	}

	user.Member = &member
	return &user, &member, nil
}

// ensureTenant lazily creates the single organizational namespace.
func ensureTenant(db *gorm.DB, familyName string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := db.Where("family_name = ?", familyName).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tenant = model.Tenant{
		FamilyName: familyName,
		Slug:       model.Slugify(familyName),
	}
	if err := db.Create(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
