package model

import (
	"time"
)

// Notification actions.
const (
	NotificationActionCreate   = "create"
	NotificationActionUpdate   = "update"
	NotificationActionDelete   = "delete"
	NotificationActionView     = "view"
	NotificationActionApprove  = "approve"
	NotificationActionReject   = "reject"
	NotificationActionReminder = "reminder"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Notification delivery statuses.
const (
	NotificationPending   = "pending"
	NotificationSent      = "sent"
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
)

// Notification is a message to one recipient, created as a side effect of a
// mutating operation on a permission-gated entity.
type Notification struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	RecipientID uint       `json:"recipient_id" gorm:"index;not null"`
	SenderID    uint       `json:"sender_id" gorm:"index"`
	Message     string     `json:"message" gorm:"type:varchar(255)"`
	Action      string     `json:"action" gorm:"type:varchar(20);not null"`
	EntityType  string     `json:"entity_type" gorm:"type:varchar(20);not null"`
	EntityID    *uint      `json:"entity_id,omitempty"`
	Priority    string     `json:"priority" gorm:"type:varchar(10);default:'medium'"`
	Status      string     `json:"status" gorm:"type:varchar(10);default:'pending'"`
	Read        bool       `json:"read" gorm:"default:false;index"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
