package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResumeVisibility controls whether a resume is publicly hosted.
type ResumeVisibility string

const (
	ResumeVisibilityPrivate ResumeVisibility = "private"
	ResumeVisibilityPublic  ResumeVisibility = "public"
)

// Scan implements sql.Scanner interface
func (v *ResumeVisibility) Scan(src interface{}) error {
	switch s := src.(type) {
	case string:
		*v = ResumeVisibility(s)
	case []byte:
		*v = ResumeVisibility(s)
	default:
		*v = ResumeVisibilityPrivate
	}
	return nil
}

// Value implements driver.Valuer interface
func (v ResumeVisibility) Value() (driver.Value, error) {
	return string(v), nil
}

// Resume is the billing core's view of user content: only ownership and
// visibility matter here. Public hosting is subscription-gated, so expiry
// flips every public resume back to private.
type Resume struct {
	ID         int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Title      string           `gorm:"not null;size:255" json:"title"`
	Slug       string           `gorm:"uniqueIndex;size:120" json:"slug"`
	Visibility ResumeVisibility `gorm:"type:resume_visibility;not null;default:'private';index" json:"visibility"`
	CreatedAt  time.Time        `gorm:"default:now()" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (Resume) TableName() string {
	return "resumes"
}
