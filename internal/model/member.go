package model

import (
	"time"

	"gorm.io/gorm"
)

// Member genders.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Family relationships. RelationshipHusband marks the head of a branch,
// enforced unique per branch.
const (
	RelationshipSon        = "son"
	RelationshipDaughter   = "daughter"
	RelationshipWife       = "wife"
	RelationshipHusband    = "husband"
	RelationshipGrandchild = "grandchild"
	RelationshipOther      = "other"
)

// FamilyBranches enumerates the five recognized branches of the family.
var FamilyBranches = []string{"branch_1", "branch_2", "branch_3", "branch_4", "branch_5"}

// ValidBranch reports whether s names a recognized family branch.
func ValidBranch(s string) bool {
	for _, b := range FamilyBranches {
		if b == s {
			return true
		}
	}
	return false
}

// ValidRelationship reports whether s names a recognized family relationship.
func ValidRelationship(s string) bool {
	switch s {
	case RelationshipSon, RelationshipDaughter, RelationshipWife,
		RelationshipHusband, RelationshipGrandchild, RelationshipOther:
		return true
	}
	return false
}

// ValidGender reports whether s names a recognized gender.
func ValidGender(s string) bool {
	return s == GenderMale || s == GenderFemale
}

// GenderForRelationship infers a member's gender from their family
// relationship: wives and daughters are female, everyone else male.
func GenderForRelationship(relationship string) string {
	if relationship == RelationshipWife || relationship == RelationshipDaughter {
		return GenderFemale
	}
	return GenderMale
}

// Member is a genealogical node. A wife points at her husband through
// HusbandID; a husband's wives are the members whose HusbandID references
// him.
type Member struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	UserID             *uint          `json:"user_id,omitempty" gorm:"index"`
	FirstName          string         `json:"fname" gorm:"type:varchar(100);not null"`
	LastName           string         `json:"lname" gorm:"type:varchar(100);not null"`
	Gender             string         `json:"gender" gorm:"type:varchar(10);not null"`
	FamilyBranch       string         `json:"family_branch" gorm:"type:varchar(20);index;not null"`
	FamilyRelationship string         `json:"family_relationship" gorm:"type:varchar(20);not null"`
	Birthday           *time.Time     `json:"birthday,omitempty"`
	DeathDate          *time.Time     `json:"death_date,omitempty"`
	Summary            string         `json:"summary" gorm:"type:text"`
	HusbandID          *uint          `json:"husband_id,omitempty" gorm:"index"`
	IsUser             bool           `json:"is_user" gorm:"default:false"`
	Image              string         `json:"image" gorm:"type:varchar(255)"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-" gorm:"index"`

	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Husband *Member  `json:"husband,omitempty" gorm:"foreignKey:HusbandID"`
	Wives   []Member `json:"wives,omitempty" gorm:"foreignKey:HusbandID"`
}
