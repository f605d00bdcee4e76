package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/env"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue          *Queue
	scheduleTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "5")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Periodic full sync of all active connections
	syncInterval := 60 * time.Minute // Default fallback
	if v, err := strconv.Atoi(env.GetEnv("SYNC_INTERVAL_MINUTES", "60")); err == nil && v > 0 {
		syncInterval = time.Duration(v) * time.Minute
	}

	m.scheduleTicker = time.NewTicker(syncInterval)
	m.wg.Add(1)
	go m.scheduleWorker(syncInterval, m.stopCh)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.scheduleTicker != nil {
		m.scheduleTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// scheduleWorker periodically enqueues sync jobs for every active connection.
// The stop channel is handed over at start so a later Start cycle replacing
// m.stopCh cannot change what this worker selects on.
func (m *Manager) scheduleWorker(interval time.Duration, stopCh chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started schedule worker (interval: %s)", interval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Schedule worker stopping")
			return
		case <-m.scheduleTicker.C:
			if err := m.enqueueActiveConnectionSyncs(); err != nil {
				log.Errorf("[JobQueue Manager] Error scheduling connection syncs: %v", err)
			}
		}
	}
}

// enqueueActiveConnectionSyncs queues a sync job for each active connection
func (m *Manager) enqueueActiveConnectionSyncs() error {
	conns, err := repository.GetGlobalRepositories().Connection.ListByStatus(models.ConnectionStatusActive)
	if err != nil {
		return err
	}

	for _, conn := range conns {
		if _, err := EnqueueSyncConnection(conn.ID); err != nil {
			log.Errorf("[JobQueue Manager] Failed to enqueue sync for connection %d: %v", conn.ID, err)
		}
	}

	if len(conns) > 0 {
		log.Infof("[JobQueue Manager] Scheduled sync for %d active connections", len(conns))
	}
	return nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// EnqueueSyncConnection queues a subscriber sync job for a connection
func EnqueueSyncConnection(connectionID uint) (*Job, error) {
	payload := SyncConnectionJobPayload{ConnectionID: connectionID}
	return GetManager().GetQueue().EnqueueJob(JobTypeSyncConnection, payload.ToMap())
}

// EnqueueUsageRecalc queues a billing usage recalculation job for a user
func EnqueueUsageRecalc(userID uint) (*Job, error) {
	payload := UsageRecalcJobPayload{UserID: userID}
	return GetManager().GetQueue().EnqueueJob(JobTypeUsageRecalc, payload.ToMap())
}
