package model

import (
	"time"

	"gorm.io/gorm"
)

// Advertisement kinds.
const (
	AdTypeImportant = "important"
	AdTypeGeneral   = "general"
	AdTypeSocial    = "social"
)

// ValidAdType reports whether s names a recognized advertisement type.
func ValidAdType(s string) bool {
	return s == AdTypeImportant || s == AdTypeGeneral || s == AdTypeSocial
}

// Advertisement is an announcement posted by a user.
type Advertisement struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index;not null"`
	Title     string         `json:"title" gorm:"type:varchar(255);not null"`
	Type      string         `json:"type" gorm:"type:varchar(20);not null"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Image     string         `json:"image" gorm:"type:varchar(255)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
