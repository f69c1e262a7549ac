package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of a financial transaction
type TransactionType string

const (
	TransactionTypeCreditPurchase      TransactionType = "credit_purchase"
	TransactionTypeCreditUsage         TransactionType = "credit_usage"
	TransactionTypeSubscriptionPayment TransactionType = "subscription_payment"
	TransactionTypeSubscriptionRenewal TransactionType = "subscription_renewal"
	TransactionTypeSubscriptionSwitch  TransactionType = "subscription_switch"
	TransactionTypeRefund              TransactionType = "refund"
)

// Scan implements sql.Scanner interface
func (t *TransactionType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = TransactionType(v)
	case []byte:
		*t = TransactionType(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

// TransactionStatus represents the status of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Scan implements sql.Scanner interface
func (s *TransactionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = TransactionStatus(v)
	case []byte:
		*s = TransactionStatus(v)
	default:
		*s = TransactionStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Transaction is one immutable row of the financial journal. The processor
// identifiers double as idempotency keys (session id for checkout
// completions, invoice id for renewals, payment intent id for sync imports);
// each is uniquely constrained so concurrent deliveries cannot journal the
// same event twice.
type Transaction struct {
	ID                    int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                uuid.UUID         `gorm:"type:uuid;not null;index:idx_transactions_user_created" json:"user_id"`
	StripeSessionID       *string           `gorm:"size:200;uniqueIndex:idx_transactions_session,where:stripe_session_id IS NOT NULL" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string           `gorm:"size:200;uniqueIndex:idx_transactions_payment_intent,where:stripe_payment_intent_id IS NOT NULL" json:"stripe_payment_intent_id,omitempty"`
	StripeSubscriptionID  *string           `gorm:"size:200" json:"stripe_subscription_id,omitempty"`
	StripeInvoiceID       *string           `gorm:"size:200;uniqueIndex:idx_transactions_invoice,where:stripe_invoice_id IS NOT NULL" json:"stripe_invoice_id,omitempty"`
	Type                  TransactionType   `gorm:"type:transaction_type;not null;index" json:"type"`
	Status                TransactionStatus `gorm:"type:transaction_status;not null;default:'pending';index" json:"status"`
	Amount                decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency              string            `gorm:"not null;size:10;default:'usd'" json:"currency"`
	CreditsAdded          int64             `gorm:"not null;default:0" json:"credits_added"`
	Plan                  *string           `gorm:"size:20" json:"plan,omitempty"`
	Description           string            `gorm:"not null" json:"description"`
	Metadata              JSONB             `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt             time.Time         `gorm:"default:now();index:idx_transactions_user_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}
