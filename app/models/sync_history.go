package models

import "time"

// SyncHistory records one sync attempt for one (connection, publication) pair.
// CompletedAt is set exactly once, at the terminal transition; a row never
// moves back from failed to success.
type SyncHistory struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EspConnectionID uint       `gorm:"not null;index:idx_sync_histories_conn_pub,priority:1" json:"esp_connection_id"`
	PublicationID   string     `gorm:"type:varchar(191);not null;index:idx_sync_histories_conn_pub,priority:2" json:"publication_id"`
	Status          string     `gorm:"type:varchar(16);not null;default:'success';index" json:"status"`
	StartedAt       time.Time  `gorm:"type:timestamp;not null;index" json:"started_at"`
	CompletedAt     *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	SubscriberCount int        `gorm:"not null;default:0" json:"subscriber_count"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (h *SyncHistory) IsRunning() bool {
	return h.CompletedAt == nil
}
