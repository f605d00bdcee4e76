package jobqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// SyncHandler runs a full subscriber sync for one connection.
// UsageHandler recalculates billing usage for one user.
type (
	SyncHandler  func(ctx context.Context, connectionID uint) error
	UsageHandler func(ctx context.Context, userID uint) error
)

var (
	handlerMu    sync.RWMutex
	syncHandler  SyncHandler
	usageHandler UsageHandler
)

// SetSyncHandler installs the sync handler. Called once during bootstrap.
func SetSyncHandler(h SyncHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	syncHandler = h
}

// SetUsageHandler installs the usage recalculation handler. Called once during bootstrap.
func SetUsageHandler(h UsageHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	usageHandler = h
}

func getSyncHandler() SyncHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return syncHandler
}

func getUsageHandler() UsageHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return usageHandler
}

// processSyncConnectionJob runs the subscriber sync for the connection in the payload
func (q *Queue) processSyncConnectionJob(ctx context.Context, job *Job) error {
	payload, err := SyncConnectionJobPayloadFromMap(job.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("invalid sync payload: %w", err))
	}
	if payload.ConnectionID == 0 {
		return Permanent(fmt.Errorf("sync payload missing connection_id"))
	}

	handler := getSyncHandler()
	if handler == nil {
		return fmt.Errorf("no sync handler installed")
	}

	log.Infof("[JobQueue] Syncing connection %d (job %s)", payload.ConnectionID, job.ID)
	return handler(ctx, payload.ConnectionID)
}

// processUsageRecalcJob recalculates billing usage for the user in the payload
func (q *Queue) processUsageRecalcJob(ctx context.Context, job *Job) error {
	payload, err := UsageRecalcJobPayloadFromMap(job.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("invalid usage payload: %w", err))
	}
	if payload.UserID == 0 {
		return Permanent(fmt.Errorf("usage payload missing user_id"))
	}

	handler := getUsageHandler()
	if handler == nil {
		return fmt.Errorf("no usage handler installed")
	}

	log.Infof("[JobQueue] Recalculating usage for user %d (job %s)", payload.UserID, job.ID)
	return handler(ctx, payload.UserID)
}
