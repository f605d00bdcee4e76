package repository

import (
	"time"

	"github.com/subsyncio/subsync/app/models"
	"gorm.io/gorm"
)

// connectionRepository implements the ConnectionRepository interface
type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new connection repository instance
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

// Create creates a new ESP connection
func (r *connectionRepository) Create(conn *models.EspConnection) error {
	return r.db.Create(conn).Error
}

// GetByID retrieves a connection by its ID
func (r *connectionRepository) GetByID(id uint) (*models.EspConnection, error) {
	var conn models.EspConnection
	err := r.db.First(&conn, id).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListByUser retrieves all connections belonging to a user
func (r *connectionRepository) ListByUser(userID uint) ([]models.EspConnection, error) {
	var conns []models.EspConnection
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&conns).Error
	return conns, err
}

// ListByStatus retrieves all connections in the given status
func (r *connectionRepository) ListByStatus(status string) ([]models.EspConnection, error) {
	var conns []models.EspConnection
	err := r.db.Where("status = ?", status).Order("id ASC").Find(&conns).Error
	return conns, err
}

// Update updates an existing connection
func (r *connectionRepository) Update(conn *models.EspConnection) error {
	return r.db.Save(conn).Error
}

// UpdateCredentials rotates the stored OAuth credential material after a
// token refresh.
func (r *connectionRepository) UpdateCredentials(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error {
	updates := map[string]interface{}{
		"access_token_enc": accessTokenEnc,
		"token_expires_at": expiresAt,
	}
	if refreshTokenEnc != "" {
		updates["refresh_token_enc"] = refreshTokenEnc
	}
	return r.db.Model(&models.EspConnection{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateLastSyncStatus records the outcome of the most recent sync run
func (r *connectionRepository) UpdateLastSyncStatus(id uint, status string, syncedAt time.Time) error {
	return r.db.Model(&models.EspConnection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_sync_status": status,
		"last_synced_at":   &syncedAt,
	}).Error
}

// UpdateStatus updates the overall connection status
func (r *connectionRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.EspConnection{}).Where("id = ?", id).Update("status", status).Error
}

// Delete removes a connection and cascades its subscribers and sync history
func (r *connectionRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("esp_connection_id = ?", id).Delete(&models.Subscriber{}).Error; err != nil {
			return err
		}
		if err := tx.Where("esp_connection_id = ?", id).Delete(&models.SyncHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.EspConnection{}, id).Error
	})
}

// Count returns the total number of connections
func (r *connectionRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.EspConnection{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of connections with the given status
func (r *connectionRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.EspConnection{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
