package billing

import (
	"context"
	"errors"
	"fmt"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
)

// statusPriority orders remote subscriptions when a customer has several;
// the first subscription in the highest non-empty class wins.
var statusPriority = map[string]int{
	models.BillingStatusActive:   3,
	models.BillingStatusTrialing: 2,
	models.BillingStatusPastDue:  1,
}

// Service recomputes billing-period usage from sync history and reports it to
// the external metering provider.
type Service struct {
	billing     repository.BillingRepository
	connections repository.ConnectionRepository
	history     repository.SyncHistoryRepository
	subscribers repository.SubscriberRepository
	provider    SubscriptionProvider
	reporter    UsageReporter
}

// NewService creates a usage service. provider and reporter may be nil when
// the external billing collaborator is not configured; period resolution then
// relies purely on the cached subscription and reporting is skipped.
func NewService(repos *repository.Repositories, provider SubscriptionProvider, reporter UsageReporter) *Service {
	return &Service{
		billing:     repos.Billing,
		connections: repos.Connection,
		history:     repos.SyncHistory,
		subscribers: repos.Subscriber,
		provider:    provider,
		reporter:    reporter,
	}
}

// UpdateUsage resolves the user's active billing period, recomputes the peak
// subscriber count per publication from sync history, merges the total into
// the period's usage row (never decreasing it) and reports meter units to the
// billing provider. Returns nil without error when no billing period can be
// resolved; usage tracking is simply skipped for that run.
func (s *Service) UpdateUsage(ctx context.Context, userID uint) (*UsageSummary, error) {
	sub, err := s.resolveSubscriptionPeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		fiberlog.Infof("[Usage] No resolvable billing period for user %d, skipping usage update", userID)
		return nil, nil
	}

	periodStart := *sub.CurrentPeriodStart
	periodEnd := *sub.CurrentPeriodEnd

	perPublication := make(map[string]int)
	total := 0

	conns, err := s.connections.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := range conns {
		conn := &conns[i]
		for _, pubID := range conn.SelectedPublicationIDs() {
			max, found, err := s.history.MaxSubscriberCount(conn.ID, pubID, periodStart, periodEnd)
			if err != nil {
				return nil, err
			}
			if !found {
				// No successful run this period; fall back to the live count
				// so a previously observed list is never zeroed out.
				live, err := s.subscribers.CountByPublication(conn.ID, pubID)
				if err != nil {
					return nil, err
				}
				max = int(live)
			}
			perPublication[fmt.Sprintf("%d/%s", conn.ID, pubID)] = max
			total += max
		}
	}

	usage := &models.BillingUsage{
		UserID:                userID,
		PeriodStart:           periodStart,
		PeriodEnd:             periodEnd,
		MaxSubscriberCount:    total,
		CalculatedAmountCents: PriceForSubscribers(total),
	}
	if err := s.billing.UpsertUsageMax(usage); err != nil {
		return nil, err
	}

	// The merged maximum may exceed this run's total; keep the price in step
	// with what is actually stored.
	amount := PriceForSubscribers(usage.MaxSubscriberCount)
	if amount != usage.CalculatedAmountCents {
		if err := s.billing.UpdateUsageAmount(usage.ID, amount); err != nil {
			return nil, err
		}
		usage.CalculatedAmountCents = amount
	}

	units := MeterUnits(usage.MaxSubscriberCount)
	s.reportUsage(ctx, sub, usage, units)

	return &UsageSummary{
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		PerPublicationMax:  perPublication,
		TotalSubscribers:   total,
		MaxSubscriberCount: usage.MaxSubscriberCount,
		AmountCents:        usage.CalculatedAmountCents,
		MeterUnits:         units,
	}, nil
}

// reportUsage forwards meter units to the billing provider. Fire-and-forget:
// any failure is logged and swallowed.
func (s *Service) reportUsage(ctx context.Context, sub *models.BillingSubscription, usage *models.BillingUsage, units int64) {
	if s.reporter == nil || units <= 0 || sub.SubscriptionItemID == "" {
		return
	}
	ref, err := s.reporter.ReportUsage(ctx, sub.SubscriptionItemID, units)
	if err != nil {
		fiberlog.Errorf("[Usage] Reporting %d meter units for user %d failed: %v", units, sub.UserID, err)
		return
	}
	if err := s.billing.MarkUsageReported(usage.ID, ref); err != nil {
		fiberlog.Errorf("[Usage] Marking usage %d as reported failed: %v", usage.ID, err)
	}
}

// resolveSubscriptionPeriod finds the user's active billing period. The
// period always derives from the provider subscription; there is no calendar
// fallback, a user without a resolvable subscription is skipped.
func (s *Service) resolveSubscriptionPeriod(ctx context.Context, userID uint) (*models.BillingSubscription, error) {
	sub, err := s.billing.GetSubscriptionByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if sub.HasCachedPeriod() {
		return sub, nil
	}
	if s.provider == nil {
		return nil, nil
	}

	// Cached period is stale; re-sync from the remote subscription and retry
	// the read once.
	if sub.ProviderSubscriptionID != "" {
		remote, err := s.provider.GetSubscription(ctx, sub.ProviderSubscriptionID)
		if err != nil {
			return nil, err
		}
		if reloaded, err := s.syncFromRemote(userID, remote); err != nil {
			return nil, err
		} else if reloaded != nil {
			return reloaded, nil
		}
	}

	if sub.ProviderCustomerID != "" {
		remotes, err := s.provider.ListSubscriptionsByCustomer(ctx, sub.ProviderCustomerID)
		if err != nil {
			return nil, err
		}
		if best := pickSubscription(remotes); best != nil {
			if reloaded, err := s.syncFromRemote(userID, best); err != nil {
				return nil, err
			} else if reloaded != nil {
				return reloaded, nil
			}
		}
	}

	return nil, nil
}

// syncFromRemote mirrors the remote subscription locally and re-reads the
// cached period. Returns nil when the remote state still has no period.
func (s *Service) syncFromRemote(userID uint, remote *RemoteSubscription) (*models.BillingSubscription, error) {
	if remote == nil {
		return nil, nil
	}

	local := &models.BillingSubscription{
		UserID:                 userID,
		Provider:               models.BillingProviderStripe,
		ProviderCustomerID:     remote.CustomerID,
		ProviderSubscriptionID: remote.ID,
		SubscriptionItemID:     remote.ItemID,
		Status:                 remote.Status,
		CancelAtPeriodEnd:      remote.CancelAtPeriodEnd,
	}
	if !remote.CurrentPeriodStart.IsZero() {
		start := remote.CurrentPeriodStart
		local.CurrentPeriodStart = &start
	}
	if !remote.CurrentPeriodEnd.IsZero() {
		end := remote.CurrentPeriodEnd
		local.CurrentPeriodEnd = &end
	}
	if err := s.billing.UpsertSubscription(local); err != nil {
		return nil, err
	}

	reloaded, err := s.billing.GetSubscriptionByUser(userID)
	if err != nil {
		return nil, err
	}
	if reloaded.HasCachedPeriod() {
		return reloaded, nil
	}
	return nil, nil
}

// pickSubscription selects the best remote subscription by status priority,
// keeping provider order within a class.
func pickSubscription(remotes []RemoteSubscription) *RemoteSubscription {
	best := -1
	bestRank := -1
	for i := range remotes {
		rank := statusPriority[remotes[i].Status]
		if rank > bestRank {
			best = i
			bestRank = rank
		}
	}
	if best < 0 {
		return nil
	}
	return &remotes[best]
}
