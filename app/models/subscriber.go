package models

import "time"

const (
	SubscriberStatusActive       = "active"
	SubscriberStatusUnsubscribed = "unsubscribed"
	SubscriberStatusBounced      = "bounced"
	SubscriberStatusPending      = "pending"
	SubscriberStatusComplained   = "complained"
)

// Subscriber is one remote list member mirrored locally. The natural key is
// (esp_connection_id, external_id); every sync overwrites the mutable fields.
type Subscriber struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	EspConnectionID uint       `gorm:"not null;index:ux_subscribers_conn_external,unique,priority:1" json:"esp_connection_id"`
	ExternalID      string     `gorm:"type:varchar(191);not null;index:ux_subscribers_conn_external,unique,priority:2" json:"external_id"`
	PublicationID   string     `gorm:"type:varchar(191);not null;index" json:"publication_id"`
	EmailEnc        string     `gorm:"type:text" json:"-"`
	EmailMasked     string     `gorm:"type:varchar(200)" json:"email_masked"`
	Status          string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	FirstName       string     `gorm:"type:varchar(150);default:''" json:"first_name"`
	LastName        string     `gorm:"type:varchar(150);default:''" json:"last_name"`
	SubscribedAt    *time.Time `gorm:"type:timestamp;default:null" json:"subscribed_at,omitempty"`
	UnsubscribedAt  *time.Time `gorm:"type:timestamp;default:null" json:"unsubscribed_at,omitempty"`
	MetadataJSON    string     `gorm:"type:longtext" json:"-"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsKnownSubscriberStatus reports whether a remote status maps onto one of the
// local status values.
func IsKnownSubscriberStatus(status string) bool {
	switch status {
	case SubscriberStatusActive, SubscriberStatusUnsubscribed, SubscriberStatusBounced,
		SubscriberStatusPending, SubscriberStatusComplained:
		return true
	}
	return false
}
