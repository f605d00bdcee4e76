package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subsyncio/subsync/app/repository"
)

// HandleListSubscribers returns the stored subscribers of a connection.
// Emails are returned masked only.
func HandleListSubscribers(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	repo := repository.GetGlobalFactory().GetSubscriberRepository()
	subs, err := repo.ListByConnection(id, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscribers"})
	}

	total, err := repo.CountByConnection(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count subscribers"})
	}

	items := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		items = append(items, fiber.Map{
			"id":             s.ID,
			"external_id":    s.ExternalID,
			"publication_id": s.PublicationID,
			"email":          s.EmailMasked,
			"status":         s.Status,
			"first_name":     s.FirstName,
			"last_name":      s.LastName,
			"subscribed_at":  s.SubscribedAt,
		})
	}

	return c.JSON(fiber.Map{
		"connection_id": id,
		"total":         total,
		"subscribers":   items,
	})
}
