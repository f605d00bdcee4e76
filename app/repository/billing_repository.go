package repository

import (
	"time"

	"github.com/subsyncio/subsync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// billingRepository implements the BillingRepository interface
type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository instance
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

// GetSubscriptionByUser retrieves the billing subscription mirrored for a user
func (r *billingRepository) GetSubscriptionByUser(userID uint) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates or refreshes the mirrored provider subscription
func (r *billingRepository) UpsertSubscription(sub *models.BillingSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"provider_customer_id",
			"subscription_item_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_subscription_id = ?", sub.Provider, sub.ProviderSubscriptionID).
		First(sub).Error
}

// GetUsage retrieves the usage row for one (user, period start)
func (r *billingRepository) GetUsage(userID uint, periodStart time.Time) (*models.BillingUsage, error) {
	var usage models.BillingUsage
	err := r.db.Where("user_id = ? AND period_start = ?", userID, periodStart).First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// GetLatestUsage retrieves the most recent usage row for a user
func (r *billingRepository) GetLatestUsage(userID uint) (*models.BillingUsage, error) {
	var usage models.BillingUsage
	err := r.db.Where("user_id = ?", userID).Order("period_start DESC").First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// UpsertUsageMax merges a newly observed subscriber total into the usage row
// for (user_id, period_start). The merge is a database-side GREATEST so the
// stored maximum never decreases, even under concurrent recomputations. The
// struct is reloaded with the merged row afterwards.
func (r *billingRepository) UpsertUsageMax(usage *models.BillingUsage) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "period_start"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_subscriber_count": gorm.Expr("GREATEST(max_subscriber_count, VALUES(max_subscriber_count))"),
			"period_end":           usage.PeriodEnd,
			"updated_at":           time.Now(),
		}),
	}).Create(usage).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ? AND period_start = ?", usage.UserID, usage.PeriodStart).
		First(usage).Error
}

// UpdateUsageAmount writes the recomputed price for the stored maximum
func (r *billingRepository) UpdateUsageAmount(id uint, cents int64) error {
	return r.db.Model(&models.BillingUsage{}).Where("id = ?", id).
		Update("calculated_amount_cents", cents).Error
}

// MarkUsageReported records the provider-side reference after metering
func (r *billingRepository) MarkUsageReported(id uint, invoiceRef string) error {
	return r.db.Model(&models.BillingUsage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":               models.UsageStatusReported,
		"reported_invoice_ref": invoiceRef,
	}).Error
}
