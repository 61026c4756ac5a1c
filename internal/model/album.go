package model

import (
	"time"

	"gorm.io/gorm"
)

// Album groups uploaded images.
type Album struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedBy   uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	Images []Image `json:"images,omitempty" gorm:"foreignKey:AlbumID"`
}

// Image is a stored picture belonging to an album. Path references the file
// under the uploads directory.
type Image struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	AlbumID     uint      `json:"album_id" gorm:"index;not null"`
	Path        string    `json:"path" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
