package permission

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RoleTemplate is the persisted form of a role's capability matrix. User
// snapshots are copied from templates at account-creation or role-change
// time; editing a template does not rewrite snapshots already issued.
type RoleTemplate struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Role        string    `json:"role" gorm:"type:varchar(50);uniqueIndex;not null"`
	Permissions Set       `json:"permissions" gorm:"serializer:json;type:jsonb"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service resolves role names to capability sets. It is constructed once in
// main and handed to the components that need it, so the template tables are
// explicit dependencies rather than ambient package state.
type Service struct {
	db *gorm.DB
}

// NewService creates a permission service backed by the given database.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Seed inserts the built-in role templates that are not already present.
// Existing rows are left alone so operator edits survive restarts.
func (s *Service) Seed() error {
	for role, set := range DefaultTemplates() {
		var existing RoleTemplate
		err := s.db.Where("role = ?", role).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		tpl := RoleTemplate{Role: role, Permissions: set.Normalized()}
		if err := s.db.Create(&tpl).Error; err != nil {
			return err
		}
	}
	return nil
}

// Template returns the stored capability set for a role, or nil when the
// role has no template.
func (s *Service) Template(role string) (Set, error) {
	var tpl RoleTemplate
	err := s.db.Where("role = ?", role).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tpl.Permissions, nil
}

// Resolve produces the permission snapshot for a list of role names: the
// per-tuple OR of every matching template. When no role matches, or none is
// supplied, the "user" template applies.
func (s *Service) Resolve(roles []string) (Set, error) {
	out := NewSet()
	matched := false
	for _, role := range roles {
		tpl, err := s.Template(role)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			continue
		}
		matched = true
		out = out.Merge(tpl)
	}

	if !matched {
		tpl, err := s.Template(RoleUser)
		if err != nil {
			return nil, err
		}
		if tpl != nil {
			out = out.Merge(tpl)
		}
	}
	return out, nil
}

// UpdateTemplate flips one (entity, action) boolean on a role's template and
// returns the updated set. A tuple missing from the stored template is
// inserted.
func (s *Service) UpdateTemplate(role string, entity Entity, action Action, value bool) (Set, error) {
	var tpl RoleTemplate
	if err := s.db.Where("role = ?", role).First(&tpl).Error; err != nil {
		return nil, err
	}

	set := tpl.Permissions.Normalized()
	set.Find(entity).Apply(action, value)
	tpl.Permissions = set

	if err := s.db.Save(&tpl).Error; err != nil {
		return nil, err
	}
	return set, nil
}

// Roles lists every role that has a stored template.
func (s *Service) Roles() ([]string, error) {
	var roles []string
	if err := s.db.Model(&RoleTemplate{}).Order("role").Pluck("role", &roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
