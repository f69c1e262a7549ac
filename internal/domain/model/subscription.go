package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusExpired    SubscriptionStatus = "expired"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusIncomplete
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// SubscriptionPlan is the local plan key, inferred from the billing interval.
type SubscriptionPlan string

const (
	SubscriptionPlanMonthly SubscriptionPlan = "monthly"
	SubscriptionPlanYearly  SubscriptionPlan = "yearly"
)

// Scan implements sql.Scanner interface
func (p *SubscriptionPlan) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*p = SubscriptionPlan(v)
	case []byte:
		*p = SubscriptionPlan(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (p SubscriptionPlan) Value() (driver.Value, error) {
	return string(p), nil
}

// Subscription mirrors the processor's subscription object. A record can sit
// in the store with a stale status; "the active subscription for a user" is
// always the derived query: status in (active, trialing) AND period end in
// the future. Records are upserted keyed by (user, stripe subscription id),
// so a resubscribe after expiry produces a new row rather than reviving an
// old one.
type Subscription struct {
	ID                   int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               uuid.UUID          `gorm:"type:uuid;not null;index" json:"user_id"`
	StripeCustomerID     string             `gorm:"not null;size:100;index" json:"stripe_customer_id"`
	StripeSubscriptionID *string            `gorm:"unique;size:100" json:"stripe_subscription_id,omitempty"`
	Plan                 SubscriptionPlan   `gorm:"type:subscription_plan;not null;default:'monthly'" json:"plan"`
	Status               SubscriptionStatus `gorm:"type:subscription_status;not null;default:'incomplete'" json:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `gorm:"index" json:"current_period_end"`
	CancelAtPeriodEnd    bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	StripeData           JSONB              `gorm:"type:jsonb" json:"stripe_data,omitempty"`
	CreatedAt            time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"default:now()" json:"updated_at"`
}

// IsActiveAt reports whether the record grants entitlements at the given
// instant. Expiry is derived from the period end, not just the status.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
