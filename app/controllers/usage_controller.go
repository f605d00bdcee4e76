package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/billing"
	"github.com/subsyncio/subsync/internal/pkg/statistics"
)

var usageService *billing.Service

// InitializeUsageController wires the billing service used by the usage routes
func InitializeUsageController(svc *billing.Service) {
	usageService = svc
}

// HandleGetUserUsage returns the stored usage record for the user's current
// billing period. With ?recalc=1 the usage is recomputed from sync history
// first and the fresh summary is returned.
func HandleGetUserUsage(c *fiber.Ctx) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid user id"})
	}

	if c.Query("recalc") == "1" {
		if usageService == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage service not initialized"})
		}

		summary, err := usageService.UpdateUsage(c.UserContext(), userID)
		if err != nil {
			fiberlog.Errorf("[UsageController] Usage recalculation for user %d failed: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage recalculation failed"})
		}
		if summary == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No resolvable billing period for user"})
		}
		return c.JSON(summary)
	}

	usage, err := repository.GetGlobalFactory().GetBillingRepository().GetLatestUsage(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No usage recorded for user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load usage"})
	}

	return c.JSON(fiber.Map{
		"user_id":                 usage.UserID,
		"period_start":            usage.PeriodStart,
		"period_end":              usage.PeriodEnd,
		"max_subscriber_count":    usage.MaxSubscriberCount,
		"calculated_amount_cents": usage.CalculatedAmountCents,
		"meter_units":             billing.MeterUnits(usage.MaxSubscriberCount),
		"status":                  usage.Status,
		"reported_invoice_ref":    usage.ReportedInvoiceRef,
	})
}

// HandleGetStats returns aggregate sync statistics
func HandleGetStats(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()

	return c.JSON(fiber.Map{
		"total_subscribers":  stats.TotalSubscribers,
		"active_connections": stats.ActiveConnections,
		"syncs_today":        stats.TodaySyncs,
	})
}
