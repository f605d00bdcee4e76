package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Supported ESP types. Adapters for these live in internal/pkg/connectors;
// additional adapters register themselves under their own type tag.
const (
	EspTypeMailerlite = "mailerlite"
	EspTypeAWeber     = "aweber"
)

const (
	AuthMethodAPIKey = "api_key"
	AuthMethodOAuth  = "oauth"
)

const (
	ConnectionStatusActive            = "active"
	ConnectionStatusReconnectRequired = "reconnect_required"
	ConnectionStatusDisabled          = "disabled"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// EspConnection links a user to one remote ESP account. Credentials are stored
// encrypted and only decrypted for the duration of a single call chain.
type EspConnection struct {
	ID                       uint       `gorm:"primaryKey" json:"id"`
	UserID                   uint       `gorm:"not null;index" json:"user_id"`
	EspType                  string     `gorm:"type:varchar(50);not null;index" json:"esp_type"`
	AuthMethod               string     `gorm:"type:varchar(16);not null;default:'api_key'" json:"auth_method"`
	APIKeyEnc                string     `gorm:"type:text" json:"-"`
	AccessTokenEnc           string     `gorm:"type:text" json:"-"`
	RefreshTokenEnc          string     `gorm:"type:text" json:"-"`
	TokenExpiresAt           *time.Time `gorm:"type:timestamp;default:null" json:"token_expires_at,omitempty"`
	PublicationID            string     `gorm:"type:varchar(191);default:''" json:"publication_id"` // legacy single-list selection
	SelectedPublicationsJSON string     `gorm:"column:selected_publications_json;type:text" json:"-"`
	Status                   string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	LastSyncStatus           string     `gorm:"type:varchar(16);default:''" json:"last_sync_status"`
	LastSyncedAt             *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SelectedPublicationIDs returns the multi-value selection list, falling back
// to the legacy single publication id for connections created before
// multi-list support existed.
func (c *EspConnection) SelectedPublicationIDs() []string {
	raw := strings.TrimSpace(c.SelectedPublicationsJSON)
	if raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil {
			out := make([]string, 0, len(ids))
			for _, id := range ids {
				if trimmed := strings.TrimSpace(id); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	if legacy := strings.TrimSpace(c.PublicationID); legacy != "" {
		return []string{legacy}
	}
	return nil
}

// SetSelectedPublicationIDs stores the multi-value selection list.
func (c *EspConnection) SetSelectedPublicationIDs(ids []string) error {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return err
	}
	c.SelectedPublicationsJSON = string(raw)
	return nil
}

func (c *EspConnection) IsOAuth() bool {
	return c.AuthMethod == AuthMethodOAuth
}
