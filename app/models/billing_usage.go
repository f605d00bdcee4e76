package models

import "time"

const (
	UsageStatusPending  = "pending"
	UsageStatusReported = "reported"
)

// BillingUsage tracks the peak subscriber count observed for one user within
// one billing period. MaxSubscriberCount is monotonically non-decreasing
// within a period; concurrent recomputations merge via max.
type BillingUsage struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	UserID                uint      `gorm:"not null;index:ux_billing_usages_user_period,unique,priority:1" json:"user_id"`
	PeriodStart           time.Time `gorm:"type:timestamp;not null;index:ux_billing_usages_user_period,unique,priority:2" json:"period_start"`
	PeriodEnd             time.Time `gorm:"type:timestamp;not null" json:"period_end"`
	MaxSubscriberCount    int       `gorm:"not null;default:0" json:"max_subscriber_count"`
	CalculatedAmountCents int64     `gorm:"not null;default:0" json:"calculated_amount_cents"`
	Status                string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	ReportedInvoiceRef    string    `gorm:"type:varchar(191);default:''" json:"reported_invoice_ref"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
