package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/espsync"
	"github.com/subsyncio/subsync/internal/pkg/jobqueue"
)

var syncService *espsync.Service

// InitializeSyncController wires the sync orchestrator used by the sync routes
func InitializeSyncController(svc *espsync.Service) {
	syncService = svc
}

// HandleSyncConnection triggers a sync run for a connection. By default the
// run happens in the background via the job queue and a 202 is returned;
// ?wait=1 runs it inline and returns per-publication results.
func HandleSyncConnection(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	if c.Query("wait") != "1" {
		job, err := jobqueue.EnqueueSyncConnection(id)
		if err != nil {
			fiberlog.Errorf("[SyncController] Failed to enqueue sync for connection %d: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue sync job"})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"job_id":        job.ID,
			"connection_id": id,
			"status":        string(job.Status),
		})
	}

	if syncService == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Sync service not initialized"})
	}

	results, err := syncService.SyncSubscribers(c.UserContext(), id)
	if err != nil {
		return syncErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"connection_id": id,
		"results":       results,
	})
}

// HandleListPublications lists the lists currently available on the remote
// provider for a connection
func HandleListPublications(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	if syncService == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Sync service not initialized"})
	}

	pubs, err := syncService.Publications(c.UserContext(), id)
	if err != nil {
		return syncErrorResponse(c, err)
	}

	items := make([]fiber.Map, 0, len(pubs))
	for _, p := range pubs {
		items = append(items, fiber.Map{"id": p.ID, "name": p.Name})
	}
	return c.JSON(fiber.Map{"connection_id": id, "publications": items})
}

// HandleGetSyncHistory returns the sync run records of a connection
func HandleGetSyncHistory(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid connection id"})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	history, err := repository.GetGlobalFactory().GetSyncHistoryRepository().ListByConnection(id, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load sync history"})
	}

	return c.JSON(fiber.Map{
		"connection_id": id,
		"history":       history,
	})
}

// HandleGetJob returns the state of a queued background job
func HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Job id missing"})
	}

	job, err := jobqueue.GetManager().GetQueue().GetJob(c.UserContext(), jobID)
	if err != nil {
		if err == redis.Nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Job not found or already completed"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load job"})
	}

	return c.JSON(job)
}

// syncErrorResponse maps a classified sync failure onto an HTTP status
func syncErrorResponse(c *fiber.Ctx, err error) error {
	kind := espsync.KindOf(err)

	status := fiber.StatusInternalServerError
	switch kind {
	case espsync.KindNotFound:
		status = fiber.StatusNotFound
	case espsync.KindBadRequest:
		status = fiber.StatusBadRequest
	case espsync.KindUnauthorized:
		status = fiber.StatusUnauthorized
	case espsync.KindConfiguration:
		status = fiber.StatusUnprocessableEntity
	case espsync.KindRemoteProvider:
		status = fiber.StatusBadGateway
	}

	fiberlog.Warnf("[SyncController] Sync failed (%s): %v", kind, err)
	return c.Status(status).JSON(fiber.Map{
		"error":   string(kind),
		"message": err.Error(),
	})
}
