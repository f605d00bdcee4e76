package billing

import (
	"context"
	"time"
)

// RemoteSubscription is the provider-agnostic shape of a billing subscription
// as the external provider reports it.
type RemoteSubscription struct {
	ID                 string
	CustomerID         string
	ItemID             string // usage-reporting handle (subscription item)
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// SubscriptionProvider is the external billing collaborator the usage
// calculator consults when the locally cached period is stale or missing.
type SubscriptionProvider interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*RemoteSubscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, customerID string) ([]RemoteSubscription, error)
}

// UsageReporter forwards a pre-computed metered quantity to the billing
// provider. Failures are isolated by the caller and never fail a sync.
type UsageReporter interface {
	ReportUsage(ctx context.Context, subscriptionItemID string, quantity int64) (string, error)
}

// UsageSummary is the result of one usage recomputation.
type UsageSummary struct {
	PeriodStart        time.Time      `json:"period_start"`
	PeriodEnd          time.Time      `json:"period_end"`
	PerPublicationMax  map[string]int `json:"per_publication_max"`
	TotalSubscribers   int            `json:"total_subscribers"`
	MaxSubscriberCount int            `json:"max_subscriber_count"`
	AmountCents        int64          `json:"amount_cents"`
	MeterUnits         int64          `json:"meter_units"`
}
