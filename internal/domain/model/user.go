package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const RoleAdmin = "admin"

// User carries the live credit balance. The balance is mutated only through
// the credit repository's atomic debit/credit operations; it must always
// equal the signed running sum of the user's ledger entries.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Role          string         `gorm:"not null;default:'user';size:20" json:"role"`
	CreditBalance int64          `gorm:"not null;default:0;check:credit_balance >= 0" json:"credit_balance"`
	CreatedAt     time.Time      `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
