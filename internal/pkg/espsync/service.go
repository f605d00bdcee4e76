package espsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/security"
)

// PublicationResult reports the outcome of one publication within a sync run.
type PublicationResult struct {
	PublicationID   string `json:"publication_id"`
	Status          string `json:"status"`
	SubscriberCount int    `json:"subscriber_count"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// UsageUpdater recomputes billing-period usage for a user after a sync run.
type UsageUpdater interface {
	UpdateUsage(ctx context.Context, userID uint) error
}

// UsageUpdaterFunc adapts a function to the UsageUpdater interface.
type UsageUpdaterFunc func(ctx context.Context, userID uint) error

func (f UsageUpdaterFunc) UpdateUsage(ctx context.Context, userID uint) error {
	return f(ctx, userID)
}

// Service orchestrates sync runs: it resolves the connector and target
// publications for a connection, syncs each publication sequentially, records
// outcomes in sync history, and triggers usage recalculation afterwards.
type Service struct {
	connections repository.ConnectionRepository
	subscribers repository.SubscriberRepository
	history     repository.SyncHistoryRepository
	registry    *connectors.Registry
	gate        *OAuthGate
	usage       UsageUpdater
	secret      string
}

// NewService wires the orchestrator. usage may be nil when usage metering is
// disabled (tests, tooling).
func NewService(
	repos *repository.Repositories,
	registry *connectors.Registry,
	gate *OAuthGate,
	usage UsageUpdater,
	secret string,
) *Service {
	return &Service{
		connections: repos.Connection,
		subscribers: repos.Subscriber,
		history:     repos.SyncHistory,
		registry:    registry,
		gate:        gate,
		usage:       usage,
		secret:      secret,
	}
}

// SyncSubscribers runs one sync for the connection, covering all selected
// publications sequentially. The returned slice holds per-publication
// outcomes; a partial failure does not yield an error, only an all-failed run
// or a pre-flight rejection does. Safe to call repeatedly: re-running
// reconciles the stored subscriber set instead of duplicating it.
func (s *Service) SyncSubscribers(ctx context.Context, connectionID uint) ([]PublicationResult, error) {
	conn, err := s.connections.GetByID(connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newSyncError(KindNotFound, fmt.Sprintf("connection %d not found", connectionID), err)
		}
		return nil, newSyncError(KindInternal, "loading connection failed", err)
	}

	connector, ok := s.registry.Resolve(conn.EspType)
	if !ok {
		return nil, newSyncError(KindConfiguration, fmt.Sprintf("unsupported esp type %q", conn.EspType), nil)
	}

	pubIDs := conn.SelectedPublicationIDs()
	if len(pubIDs) == 0 {
		return nil, newSyncError(KindBadRequest, "no lists selected for this connection", nil)
	}

	apiKey, err := s.resolveCredential(conn, connector)
	if err != nil {
		return nil, err
	}

	// Pre-flight: every selected publication must still exist remotely,
	// otherwise the whole run is rejected before any history row is written.
	remote, err := s.listPublications(ctx, conn, connector, apiKey)
	if err != nil {
		return nil, s.classifyRemoteError("listing remote publications failed", err)
	}
	if missing := missingPublications(pubIDs, remote); len(missing) > 0 {
		return nil, newSyncError(KindBadRequest,
			fmt.Sprintf("selected lists no longer exist remotely: %s", strings.Join(missing, ", ")), nil)
	}

	results := make([]PublicationResult, 0, len(pubIDs))
	failed := 0
	for _, pubID := range pubIDs {
		result := s.syncPublication(ctx, conn, connector, apiKey, pubID)
		if result.Status == models.SyncStatusFailed {
			failed++
		}
		results = append(results, result)
	}

	now := time.Now()
	if failed == len(results) && len(results) > 0 {
		if err := s.connections.UpdateLastSyncStatus(conn.ID, models.SyncStatusFailed, now); err != nil {
			fiberlog.Errorf("[EspSync] Updating last sync status for connection %d failed: %v", conn.ID, err)
		}
		return results, newSyncError(KindInternal, "all selected publications failed to sync", nil)
	}

	if err := s.connections.UpdateLastSyncStatus(conn.ID, models.SyncStatusSuccess, now); err != nil {
		fiberlog.Errorf("[EspSync] Updating last sync status for connection %d failed: %v", conn.ID, err)
	}

	// Usage recalculation and metering are best-effort relative to the sync
	// outcome; failures there are logged and swallowed.
	if s.usage != nil {
		if err := s.usage.UpdateUsage(ctx, conn.UserID); err != nil {
			fiberlog.Errorf("[EspSync] Usage recalculation for user %d failed: %v", conn.UserID, err)
		}
	}

	return results, nil
}

// Publications lists the lists currently available on the remote provider for
// a connection, used to pick a selection before syncing.
func (s *Service) Publications(ctx context.Context, connectionID uint) ([]connectors.Publication, error) {
	conn, err := s.connections.GetByID(connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newSyncError(KindNotFound, fmt.Sprintf("connection %d not found", connectionID), err)
		}
		return nil, newSyncError(KindInternal, "loading connection failed", err)
	}

	connector, ok := s.registry.Resolve(conn.EspType)
	if !ok {
		return nil, newSyncError(KindConfiguration, fmt.Sprintf("unsupported esp type %q", conn.EspType), nil)
	}

	apiKey, err := s.resolveCredential(conn, connector)
	if err != nil {
		return nil, err
	}

	pubs, err := s.listPublications(ctx, conn, connector, apiKey)
	if err != nil {
		return nil, s.classifyRemoteError("listing remote publications failed", err)
	}
	return pubs, nil
}

// resolveCredential checks that the connection carries a usable credential for
// its auth method and returns the decrypted api key for non-OAuth connections.
// OAuth tokens stay encrypted; the gate decrypts them per call.
func (s *Service) resolveCredential(conn *models.EspConnection, connector connectors.Connector) (string, error) {
	if conn.IsOAuth() {
		if _, ok := connector.(connectors.OAuthConnector); !ok {
			return "", newSyncError(KindConfiguration, fmt.Sprintf("esp type %q does not support oauth", conn.EspType), nil)
		}
		if strings.TrimSpace(conn.AccessTokenEnc) == "" {
			return "", newSyncError(KindConfiguration, "connection has no stored access token", nil)
		}
		return "", nil
	}

	if strings.TrimSpace(conn.APIKeyEnc) == "" {
		return "", newSyncError(KindConfiguration, "connection has no stored api key", nil)
	}
	apiKey, err := security.DecryptCredential(conn.APIKeyEnc, s.secret)
	if err != nil {
		return "", newSyncError(KindConfiguration, "stored api key cannot be decrypted", err)
	}
	return apiKey, nil
}

// syncPublication runs one publication's sync and records its history row.
// All failures are absorbed into the result; only the run-level policy in
// SyncSubscribers turns them into errors.
func (s *Service) syncPublication(ctx context.Context, conn *models.EspConnection, connector connectors.Connector, apiKey, pubID string) PublicationResult {
	h := &models.SyncHistory{
		EspConnectionID: conn.ID,
		PublicationID:   pubID,
		Status:          models.SyncStatusSuccess, // optimistic
		StartedAt:       time.Now(),
	}
	if err := s.history.Create(h); err != nil {
		fiberlog.Errorf("[EspSync] Creating sync history for connection %d publication %s failed: %v", conn.ID, pubID, err)
		return PublicationResult{PublicationID: pubID, Status: models.SyncStatusFailed, ErrorMessage: err.Error()}
	}

	subs, err := s.fetchSubscribers(ctx, conn, connector, apiKey, pubID)
	if err != nil {
		s.failPublication(h, err)
		return PublicationResult{PublicationID: pubID, Status: models.SyncStatusFailed, ErrorMessage: err.Error()}
	}

	processed := 0
	for _, remote := range subs {
		sub, err := mapRemoteSubscriber(conn, pubID, remote, s.secret)
		if err != nil {
			fiberlog.Warnf("[EspSync] Skipping record %q on publication %s: %v", remote.ID, pubID, err)
			continue
		}
		if err := s.subscribers.Upsert(sub); err != nil {
			fiberlog.Warnf("[EspSync] Persisting subscriber %q on publication %s failed: %v", sub.ExternalID, pubID, err)
			continue
		}
		processed++
	}

	if err := s.history.MarkCompleted(h.ID, processed, time.Now()); err != nil {
		fiberlog.Errorf("[EspSync] Completing sync history %d failed: %v", h.ID, err)
	}

	fiberlog.Infof("[EspSync] Synced %d subscribers for connection %d publication %s", processed, conn.ID, pubID)
	return PublicationResult{PublicationID: pubID, Status: models.SyncStatusSuccess, SubscriberCount: processed}
}

func (s *Service) failPublication(h *models.SyncHistory, cause error) {
	if err := s.history.MarkFailed(h.ID, cause.Error(), time.Now()); err != nil {
		fiberlog.Errorf("[EspSync] Recording failure for sync history %d failed: %v", h.ID, err)
	}
}

func (s *Service) listPublications(ctx context.Context, conn *models.EspConnection, connector connectors.Connector, apiKey string) ([]connectors.Publication, error) {
	if conn.IsOAuth() {
		var pubs []connectors.Publication
		err := s.gate.CallWithRefresh(ctx, conn, func(token string) error {
			var opErr error
			pubs, opErr = connector.ListPublications(ctx, token)
			return opErr
		})
		return pubs, err
	}
	return connector.ListPublications(ctx, apiKey)
}

func (s *Service) fetchSubscribers(ctx context.Context, conn *models.EspConnection, connector connectors.Connector, apiKey, pubID string) ([]connectors.RemoteSubscriber, error) {
	if conn.IsOAuth() {
		var subs []connectors.RemoteSubscriber
		err := s.gate.CallWithRefresh(ctx, conn, func(token string) error {
			var opErr error
			subs, opErr = connector.FetchSubscribers(ctx, token, pubID)
			return opErr
		})
		return subs, err
	}
	return connector.FetchSubscribers(ctx, apiKey, pubID)
}

// classifyRemoteError maps a pre-flight failure onto the fatal taxonomy.
// Gate-classified errors keep their kind; provider failures surface with the
// remote status embedded.
func (s *Service) classifyRemoteError(message string, err error) error {
	var se *SyncError
	if errors.As(err, &se) {
		return err
	}
	var pe *connectors.ProviderError
	if errors.As(err, &pe) {
		if pe.Kind == connectors.KindInvalidCredential {
			return newSyncError(KindUnauthorized, message, err)
		}
		return newSyncError(KindRemoteProvider, message, err)
	}
	return newSyncError(KindInternal, message, err)
}

func missingPublications(selected []string, remote []connectors.Publication) []string {
	available := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		available[p.ID] = struct{}{}
	}
	var missing []string
	for _, id := range selected {
		if _, ok := available[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
