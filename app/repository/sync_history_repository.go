package repository

import (
	"time"

	"github.com/subsyncio/subsync/app/models"
	"gorm.io/gorm"
)

// syncHistoryRepository implements the SyncHistoryRepository interface
type syncHistoryRepository struct {
	db *gorm.DB
}

// NewSyncHistoryRepository creates a new sync history repository instance
func NewSyncHistoryRepository(db *gorm.DB) SyncHistoryRepository {
	return &syncHistoryRepository{db: db}
}

// Create creates a new sync history row
func (r *syncHistoryRepository) Create(h *models.SyncHistory) error {
	return r.db.Create(h).Error
}

// GetByID retrieves a sync history row by ID
func (r *syncHistoryRepository) GetByID(id uint) (*models.SyncHistory, error) {
	var h models.SyncHistory
	err := r.db.First(&h, id).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListByConnection retrieves sync history for a connection, newest first
func (r *syncHistoryRepository) ListByConnection(connectionID uint, offset, limit int) ([]models.SyncHistory, error) {
	var rows []models.SyncHistory
	err := r.db.Where("esp_connection_id = ?", connectionID).
		Order("started_at DESC").Offset(offset).Limit(limit).Find(&rows).Error
	return rows, err
}

// MarkCompleted sets the terminal success state. The completed_at guard keeps
// the terminal transition a one-shot.
func (r *syncHistoryRepository) MarkCompleted(id uint, subscriberCount int, completedAt time.Time) error {
	return r.db.Model(&models.SyncHistory{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"completed_at":     &completedAt,
			"subscriber_count": subscriberCount,
		}).Error
}

// MarkFailed sets the terminal failed state
func (r *syncHistoryRepository) MarkFailed(id uint, errorMessage string, completedAt time.Time) error {
	return r.db.Model(&models.SyncHistory{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"status":        models.SyncStatusFailed,
			"completed_at":  &completedAt,
			"error_message": errorMessage,
		}).Error
}

// MaxSubscriberCount returns the highest subscriber count among completed
// successful runs for one (connection, publication) started within [from, to).
// The bool reports whether any such run exists. Rows still in flight carry the
// optimistic success status and must not count.
func (r *syncHistoryRepository) MaxSubscriberCount(connectionID uint, publicationID string, from, to time.Time) (int, bool, error) {
	var row struct {
		Max   *int
		Count int64
	}
	err := r.db.Model(&models.SyncHistory{}).
		Select("MAX(subscriber_count) AS max, COUNT(*) AS count").
		Where("esp_connection_id = ? AND publication_id = ? AND status = ? AND completed_at IS NOT NULL AND started_at >= ? AND started_at < ?",
			connectionID, publicationID, models.SyncStatusSuccess, from, to).
		Scan(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.Count == 0 || row.Max == nil {
		return 0, false, nil
	}
	return *row.Max, true, nil
}

// CountSince returns the number of sync runs started since the given time
func (r *syncHistoryRepository) CountSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.SyncHistory{}).Where("started_at >= ?", since).Count(&count).Error
	return count, err
}

// DeleteByConnection removes all history rows belonging to a connection
func (r *syncHistoryRepository) DeleteByConnection(connectionID uint) error {
	return r.db.Where("esp_connection_id = ?", connectionID).Delete(&models.SyncHistory{}).Error
}
