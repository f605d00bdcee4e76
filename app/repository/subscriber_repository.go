package repository

import (
	"github.com/subsyncio/subsync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriberRepository implements the SubscriberRepository interface
type subscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository creates a new subscriber repository instance
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

// Upsert creates or fully overwrites a subscriber keyed by
// (esp_connection_id, external_id). The database-level unique constraint plus
// ON CONFLICT keeps concurrent writers from producing duplicates.
func (r *subscriberRepository) Upsert(sub *models.Subscriber) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "esp_connection_id"},
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"publication_id",
			"email_enc",
			"email_masked",
			"status",
			"first_name",
			"last_name",
			"subscribed_at",
			"unsubscribed_at",
			"metadata_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("esp_connection_id = ? AND external_id = ?", sub.EspConnectionID, sub.ExternalID).
		First(sub).Error
}

// GetByExternalID retrieves one subscriber by its natural key
func (r *subscriberRepository) GetByExternalID(connectionID uint, externalID string) (*models.Subscriber, error) {
	var sub models.Subscriber
	err := r.db.Where("esp_connection_id = ? AND external_id = ?", connectionID, externalID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByConnection retrieves subscribers for a connection with pagination
func (r *subscriberRepository) ListByConnection(connectionID uint, offset, limit int) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.Where("esp_connection_id = ?", connectionID).
		Order("id ASC").Offset(offset).Limit(limit).Find(&subs).Error
	return subs, err
}

// CountByConnection returns the number of stored subscribers for a connection
func (r *subscriberRepository) CountByConnection(connectionID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscriber{}).Where("esp_connection_id = ?", connectionID).Count(&count).Error
	return count, err
}

// CountByPublication returns the live subscriber count for one publication
func (r *subscriberRepository) CountByPublication(connectionID uint, publicationID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscriber{}).
		Where("esp_connection_id = ? AND publication_id = ?", connectionID, publicationID).
		Count(&count).Error
	return count, err
}

// Count returns the total number of stored subscribers
func (r *subscriberRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Subscriber{}).Count(&count).Error
	return count, err
}

// DeleteByConnection removes all subscribers belonging to a connection
func (r *subscriberRepository) DeleteByConnection(connectionID uint) error {
	return r.db.Where("esp_connection_id = ?", connectionID).Delete(&models.Subscriber{}).Error
}
