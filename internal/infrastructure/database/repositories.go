package database

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/resumeforge/resumeforge-backend/internal/adapter/repository"
	domainRepo "github.com/resumeforge/resumeforge-backend/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Credit       domainRepo.CreditRepository
	Subscription domainRepo.SubscriptionRepository
	Transaction  domainRepo.TransactionRepository
	User         domainRepo.UserRepository
	Resume       domainRepo.ResumeRepository
	Webhook      repository.WebhookRepository
}

// NewRepositories creates new repository instances with database connection.
// When cache is non-nil the active-subscription lookup goes through redis.
func NewRepositories(db *gorm.DB, cache *redis.Client, logger *zap.Logger) *Repositories {
	subscriptions := repository.NewSubscriptionRepository(db, logger)
	if cache != nil {
		subscriptions = repository.NewCachedSubscriptionRepository(subscriptions, cache, logger)
	}

	return &Repositories{
		Credit:       repository.NewCreditRepository(db, logger),
		Subscription: subscriptions,
		Transaction:  repository.NewTransactionRepository(db, logger),
		User:         repository.NewUserRepository(db, logger),
		Resume:       repository.NewResumeRepository(db, logger),
		Webhook:      repository.NewWebhookRepository(db, logger),
	}
}
