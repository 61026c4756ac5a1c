package handler

import (
	"errors"
	"fmt"

	"family-service/internal/apperror"
	"family-service/internal/model"

	"gorm.io/gorm"
)

// memberFields is the effective state a member record would hold after a
// create or update, as far as the relationship rules care.
type memberFields struct {
	FirstName          string
	LastName           string
	Gender             string
	FamilyBranch       string
	FamilyRelationship string
	HusbandID          *uint
	WifeIDs            []uint
}

// validateMemberRules enforces the family-relationship invariants before any
// write. selfID is zero on create. prevRelationship is the stored
// relationship on update, so a head keeping the role is not re-checked
// against itself. Rules run in order and the first failure aborts.
func validateMemberRules(db *gorm.DB, f memberFields, selfID uint, prevRelationship string) error {
	// Rule 1: required fields and recognized enum values.
	if f.FirstName == "" || f.LastName == "" || f.Gender == "" ||
		f.FamilyBranch == "" || f.FamilyRelationship == "" {
		return apperror.BadRequest("first name, last name, gender, family branch and family relationship are required")
	}
	if !model.ValidGender(f.Gender) {
		return apperror.Newf(400, "gender %q is not supported", f.Gender)
	}
	if !model.ValidBranch(f.FamilyBranch) {
		return apperror.Newf(400, "family branch %q is not supported", f.FamilyBranch)
	}
	if !model.ValidRelationship(f.FamilyRelationship) {
		return apperror.Newf(400, "family relationship %q is not supported", f.FamilyRelationship)
	}

	// Rule 2: at most one head per branch, and the head must be male. The
	// check only runs when the record is entering the head role.
	if f.FamilyRelationship == model.RelationshipHusband && prevRelationship != model.RelationshipHusband {
		var existing model.Member
		q := db.Where("family_branch = ? AND family_relationship = ?",
			f.FamilyBranch, model.RelationshipHusband)
		if selfID != 0 {
			q = q.Where("id <> ?", selfID)
		}
		err := q.First(&existing).Error
		if err == nil {
			return apperror.Newf(400, "this family branch already has a head (%s %s)",
				existing.FirstName, existing.LastName)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if f.Gender != model.GenderMale {
			return apperror.BadRequest("family head must be male")
		}
	}

	// Rule 3: every supplied wife must resolve and be female.
	if len(f.WifeIDs) > 0 {
		var wives []model.Member
		if err := db.Where("id IN ?", f.WifeIDs).Find(&wives).Error; err != nil {
			return err
		}
		if len(wives) != len(f.WifeIDs) {
			return apperror.BadRequest("one or more wives not found")
		}
		for _, w := range wives {
			if w.Gender != model.GenderFemale {
				return apperror.BadRequest(fmt.Sprintf("all wives must be female (%s %s is not)",
					w.FirstName, w.LastName))
			}
		}
	}

	// Rule 4: a wife's husband must resolve, be male and share her branch.
	// Applies on update as well as create.
	if f.FamilyRelationship == model.RelationshipWife && f.HusbandID != nil {
		var husband model.Member
		err := db.First(&husband, *f.HusbandID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.BadRequest("husband not found")
		}
		if err != nil {
			return err
		}
		if husband.Gender != model.GenderMale {
			return apperror.BadRequest("husband must be male")
		}
		if husband.FamilyBranch != f.FamilyBranch {
			return apperror.BadRequest("husband must be from the same family branch")
		}
	}

	return nil
}
