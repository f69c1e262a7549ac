package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resumeforge/resumeforge-backend/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	logger.Info("Creating PostgreSQL extensions...")
	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types have to exist BEFORE auto-migrate
	logger.Info("Creating custom PostgreSQL types...")
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	logger.Info("Running GORM auto-migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.CreditEntry{},
		&model.Subscription{},
		&model.Transaction{},
		&model.Resume{},
		&model.StripeWebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	logger.Info("Creating custom indexes...")
	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle
// automatically. The idempotency-key indexes (ledger reference id, journal
// session/invoice/payment-intent ids) are partial unique indexes declared on
// the model tags; auto-migrate owns those.
func createCustomIndexes(db *gorm.DB) error {
	// Webhook replay scans only look at unfinished events
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON stripe_webhook_events (created_at) WHERE status IN ('pending', 'failed')`).Error; err != nil {
		return err
	}

	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error; err != nil {
		return err
	}
	return nil
}

// createCustomTypes creates custom PostgreSQL types
func createCustomTypes(db *gorm.DB) error {
	types := []struct {
		name   string
		values string
	}{
		{"credit_entry_kind", `'usage', 'addition', 'initial', 'admin_adjustment', 'purchase', 'refund'`},
		{"subscription_plan", `'monthly', 'yearly'`},
		{"subscription_status", `'incomplete', 'trialing', 'active', 'past_due', 'canceled', 'expired'`},
		{"transaction_type", `'credit_purchase', 'credit_usage', 'subscription_payment', 'subscription_renewal', 'subscription_switch', 'refund'`},
		{"transaction_status", `'pending', 'completed', 'failed', 'refunded'`},
		{"webhook_status", `'pending', 'processing', 'completed', 'failed'`},
		{"resume_visibility", `'private', 'public'`},
	}

	for _, t := range types {
		var exists bool
		db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = ?)`, t.name).Scan(&exists)
		if exists {
			continue
		}
		if err := db.Exec(`CREATE TYPE ` + t.name + ` AS ENUM (` + t.values + `)`).Error; err != nil {
			return err
		}
	}

	return nil
}
