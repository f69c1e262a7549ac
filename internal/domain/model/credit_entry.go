package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// CreditEntryKind represents the kind of a credit ledger entry. The kind
// encodes the direction of the balance change; Amount is always positive.
type CreditEntryKind string

const (
	CreditEntryKindUsage           CreditEntryKind = "usage"
	CreditEntryKindAddition        CreditEntryKind = "addition"
	CreditEntryKindInitial         CreditEntryKind = "initial"
	CreditEntryKindAdminAdjustment CreditEntryKind = "admin_adjustment"
	CreditEntryKindPurchase        CreditEntryKind = "purchase"
	CreditEntryKindRefund          CreditEntryKind = "refund"
)

// Scan implements sql.Scanner interface
func (k *CreditEntryKind) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*k = CreditEntryKind(v)
	case []byte:
		*k = CreditEntryKind(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (k CreditEntryKind) Value() (driver.Value, error) {
	return string(k), nil
}

// Signed returns the ledger delta of an entry of this kind for a positive
// amount. Only usage entries decrease the balance.
func (k CreditEntryKind) Signed(amount int64) int64 {
	if k == CreditEntryKindUsage {
		return -amount
	}
	return amount
}

// CreditEntry is one immutable row of the credit ledger. Entries are created
// once and never updated or deleted; BalanceAfter snapshots the balance
// produced by the same atomic update that wrote the row.
type CreditEntry struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_credit_entries_user_created" json:"user_id"`
	Kind         CreditEntryKind `gorm:"type:credit_entry_kind;not null" json:"kind"`
	Action       *string         `gorm:"size:100" json:"action,omitempty"`
	Amount       int64           `gorm:"not null;check:amount >= 0" json:"amount"`
	BalanceAfter int64           `gorm:"not null" json:"balance_after"`
	Description  string          `gorm:"not null" json:"description"`
	Metadata     JSONB           `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	// ReferenceID carries the processor identifier (session, invoice) that
	// caused the entry. The partial unique index makes reference-keyed
	// idempotency hold under concurrent deliveries, not just sequentially.
	ReferenceID *string   `gorm:"size:200;uniqueIndex:idx_credit_entries_reference,where:reference_id IS NOT NULL" json:"reference_id,omitempty"`
	CreatedAt   time.Time `gorm:"default:now();index:idx_credit_entries_user_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CreditEntry) TableName() string {
	return "credit_entries"
}
