package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Tenant is the single organizational namespace all records belong to. It is
// created lazily on the first registration.
type Tenant struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	FamilyName string         `json:"family_name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Slug       string         `json:"slug" gorm:"type:varchar(100)"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// Slugify derives a tenant slug from its family name.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
