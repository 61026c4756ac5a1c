package model

import (
	"time"

	"gorm.io/gorm"
)

// Financial transaction kinds.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// ValidTransactionType reports whether s names a recognized transaction type.
func ValidTransactionType(s string) bool {
	return s == TransactionIncome || s == TransactionExpense
}

// Transaction is a financial record (donation, expense, subscription and so
// on) with an optional receipt image.
type Transaction struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Amount      float64        `json:"amount" gorm:"not null"`
	Type        string         `json:"type" gorm:"type:varchar(10);not null"`
	Category    string         `json:"category" gorm:"type:varchar(50);not null"`
	Date        time.Time      `json:"date" gorm:"not null"`
	Description string         `json:"description" gorm:"type:text"`
	Image       string         `json:"image" gorm:"type:varchar(255)"`
	CreatedBy   uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:CreatedBy"`
}
