package model

import (
	"time"

	"family-service/internal/permission"

	"gorm.io/gorm"
)

// User account statuses. New accounts start pending until an administrator
// accepts or rejects them.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// User represents a tenant-scoped identity stored in the database. The
// Permissions column is the account's snapshot of entity/action capabilities,
// copied from role templates when the account is created or its role changes.
type User struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	TenantID           uint           `json:"tenant_id" gorm:"index;not null"`
	FirstName          string         `json:"fname" gorm:"type:varchar(100);not null"`
	LastName           string         `json:"lname" gorm:"type:varchar(100);not null"`
	Email              string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password           string         `json:"-" gorm:"type:varchar(255);not null"`
	Phone              string         `json:"phone" gorm:"type:varchar(20)"`
	Image              string         `json:"image" gorm:"type:varchar(255)"`
	Roles              []string       `json:"role" gorm:"serializer:json;type:jsonb"`
	FamilyBranch       string         `json:"family_branch" gorm:"type:varchar(20);index;not null"`
	FamilyRelationship string         `json:"family_relationship" gorm:"type:varchar(20);not null"`
	Permissions        permission.Set `json:"permissions" gorm:"serializer:json;type:jsonb"`
	Status             string         `json:"status" gorm:"type:varchar(20);default:'pending'"`
	Address            string         `json:"address" gorm:"type:varchar(255)"`
	MemberID           *uint          `json:"member_id,omitempty" gorm:"index"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	// Loaded explicitly where a handler needs the companion genealogy record.
	Member *Member `json:"member,omitempty" gorm:"-"`
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the user holds the irrevocable super admin
// role.
func (u *User) IsSuperAdmin() bool {
	return u.HasRole(permission.RoleSuperAdmin)
}
