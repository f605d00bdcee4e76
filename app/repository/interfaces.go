package repository

import (
	"time"

	"github.com/subsyncio/subsync/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// ConnectionRepository defines the interface for ESP connection operations
type ConnectionRepository interface {
	Create(conn *models.EspConnection) error
	GetByID(id uint) (*models.EspConnection, error)
	ListByUser(userID uint) ([]models.EspConnection, error)
	ListByStatus(status string) ([]models.EspConnection, error)
	Update(conn *models.EspConnection) error
	UpdateCredentials(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error
	UpdateLastSyncStatus(id uint, status string, syncedAt time.Time) error
	UpdateStatus(id uint, status string) error
	Delete(id uint) error
	Count() (int64, error)
	CountByStatus(status string) (int64, error)
}

// SubscriberRepository defines the interface for subscriber persistence.
// Upsert must be safe under concurrent writers on the unique
// (esp_connection_id, external_id) key.
type SubscriberRepository interface {
	Upsert(sub *models.Subscriber) error
	GetByExternalID(connectionID uint, externalID string) (*models.Subscriber, error)
	ListByConnection(connectionID uint, offset, limit int) ([]models.Subscriber, error)
	CountByConnection(connectionID uint) (int64, error)
	CountByPublication(connectionID uint, publicationID string) (int64, error)
	Count() (int64, error)
	DeleteByConnection(connectionID uint) error
}

// SyncHistoryRepository defines the interface for sync run records
type SyncHistoryRepository interface {
	Create(h *models.SyncHistory) error
	GetByID(id uint) (*models.SyncHistory, error)
	ListByConnection(connectionID uint, offset, limit int) ([]models.SyncHistory, error)
	MarkCompleted(id uint, subscriberCount int, completedAt time.Time) error
	MarkFailed(id uint, errorMessage string, completedAt time.Time) error
	MaxSubscriberCount(connectionID uint, publicationID string, from, to time.Time) (int, bool, error)
	CountSince(since time.Time) (int64, error)
	DeleteByConnection(connectionID uint) error
}

// BillingRepository defines the interface for billing-period usage persistence
type BillingRepository interface {
	GetSubscriptionByUser(userID uint) (*models.BillingSubscription, error)
	UpsertSubscription(sub *models.BillingSubscription) error
	GetUsage(userID uint, periodStart time.Time) (*models.BillingUsage, error)
	GetLatestUsage(userID uint) (*models.BillingUsage, error)
	UpsertUsageMax(usage *models.BillingUsage) error
	UpdateUsageAmount(id uint, cents int64) error
	MarkUsageReported(id uint, invoiceRef string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Connection  ConnectionRepository
	Subscriber  SubscriberRepository
	SyncHistory SyncHistoryRepository
	Billing     BillingRepository
}
