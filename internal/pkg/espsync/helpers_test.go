package espsync

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/app/repository"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
	"github.com/subsyncio/subsync/internal/pkg/security"
)

const testSecret = "unit-test-secret"

// fakeConnectionRepo is an in-memory ConnectionRepository.
type fakeConnectionRepo struct {
	conns             map[uint]*models.EspConnection
	credentialUpdates int
	statusUpdates     []string
}

func newFakeConnectionRepo(conns ...*models.EspConnection) *fakeConnectionRepo {
	r := &fakeConnectionRepo{conns: make(map[uint]*models.EspConnection)}
	for _, c := range conns {
		cp := *c
		r.conns[c.ID] = &cp
	}
	return r
}

func (r *fakeConnectionRepo) Create(conn *models.EspConnection) error {
	if conn.ID == 0 {
		conn.ID = uint(len(r.conns) + 1)
	}
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnectionRepo) GetByID(id uint) (*models.EspConnection, error) {
	c, ok := r.conns[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConnectionRepo) ListByUser(userID uint) ([]models.EspConnection, error) {
	var out []models.EspConnection
	for _, c := range r.conns {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) ListByStatus(status string) ([]models.EspConnection, error) {
	var out []models.EspConnection
	for _, c := range r.conns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) Update(conn *models.EspConnection) error {
	cp := *conn
	r.conns[conn.ID] = &cp
	return nil
}

func (r *fakeConnectionRepo) UpdateCredentials(id uint, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error {
	c, ok := r.conns[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.AccessTokenEnc = accessTokenEnc
	if refreshTokenEnc != "" {
		c.RefreshTokenEnc = refreshTokenEnc
	}
	c.TokenExpiresAt = expiresAt
	r.credentialUpdates++
	return nil
}

func (r *fakeConnectionRepo) UpdateLastSyncStatus(id uint, status string, syncedAt time.Time) error {
	c, ok := r.conns[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.LastSyncStatus = status
	c.LastSyncedAt = &syncedAt
	return nil
}

func (r *fakeConnectionRepo) UpdateStatus(id uint, status string) error {
	c, ok := r.conns[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Status = status
	r.statusUpdates = append(r.statusUpdates, status)
	return nil
}

func (r *fakeConnectionRepo) Delete(id uint) error {
	delete(r.conns, id)
	return nil
}

func (r *fakeConnectionRepo) Count() (int64, error) {
	return int64(len(r.conns)), nil
}

func (r *fakeConnectionRepo) CountByStatus(status string) (int64, error) {
	var n int64
	for _, c := range r.conns {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

// fakeSubscriberRepo stores subscribers keyed by (connection, external id).
type fakeSubscriberRepo struct {
	subs map[string]*models.Subscriber
}

func newFakeSubscriberRepo() *fakeSubscriberRepo {
	return &fakeSubscriberRepo{subs: make(map[string]*models.Subscriber)}
}

func subKey(connID uint, externalID string) string {
	return fmt.Sprintf("%d/%s", connID, externalID)
}

func (r *fakeSubscriberRepo) Upsert(sub *models.Subscriber) error {
	key := subKey(sub.EspConnectionID, sub.ExternalID)
	if existing, ok := r.subs[key]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = uint(len(r.subs) + 1)
	}
	cp := *sub
	r.subs[key] = &cp
	return nil
}

func (r *fakeSubscriberRepo) GetByExternalID(connectionID uint, externalID string) (*models.Subscriber, error) {
	s, ok := r.subs[subKey(connectionID, externalID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSubscriberRepo) ListByConnection(connectionID uint, offset, limit int) ([]models.Subscriber, error) {
	var out []models.Subscriber
	for _, s := range r.subs {
		if s.EspConnectionID == connectionID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSubscriberRepo) CountByConnection(connectionID uint) (int64, error) {
	var n int64
	for _, s := range r.subs {
		if s.EspConnectionID == connectionID {
			n++
		}
	}
	return n, nil
}

func (r *fakeSubscriberRepo) CountByPublication(connectionID uint, publicationID string) (int64, error) {
	var n int64
	for _, s := range r.subs {
		if s.EspConnectionID == connectionID && s.PublicationID == publicationID {
			n++
		}
	}
	return n, nil
}

func (r *fakeSubscriberRepo) Count() (int64, error) {
	return int64(len(r.subs)), nil
}

func (r *fakeSubscriberRepo) DeleteByConnection(connectionID uint) error {
	for k, s := range r.subs {
		if s.EspConnectionID == connectionID {
			delete(r.subs, k)
		}
	}
	return nil
}

// fakeHistoryRepo is an in-memory SyncHistoryRepository.
type fakeHistoryRepo struct {
	rows   []*models.SyncHistory
	nextID uint
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{nextID: 1}
}

func (r *fakeHistoryRepo) Create(h *models.SyncHistory) error {
	h.ID = r.nextID
	r.nextID++
	cp := *h
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeHistoryRepo) GetByID(id uint) (*models.SyncHistory, error) {
	for _, h := range r.rows {
		if h.ID == id {
			cp := *h
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeHistoryRepo) ListByConnection(connectionID uint, offset, limit int) ([]models.SyncHistory, error) {
	var out []models.SyncHistory
	for _, h := range r.rows {
		if h.EspConnectionID == connectionID {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) MarkCompleted(id uint, subscriberCount int, completedAt time.Time) error {
	for _, h := range r.rows {
		if h.ID == id && h.CompletedAt == nil {
			h.Status = models.SyncStatusSuccess
			h.SubscriberCount = subscriberCount
			h.CompletedAt = &completedAt
		}
	}
	return nil
}

func (r *fakeHistoryRepo) MarkFailed(id uint, errorMessage string, completedAt time.Time) error {
	for _, h := range r.rows {
		if h.ID == id && h.CompletedAt == nil {
			h.Status = models.SyncStatusFailed
			h.ErrorMessage = errorMessage
			h.CompletedAt = &completedAt
		}
	}
	return nil
}

func (r *fakeHistoryRepo) MaxSubscriberCount(connectionID uint, publicationID string, from, to time.Time) (int, bool, error) {
	max := 0
	found := false
	for _, h := range r.rows {
		if h.EspConnectionID != connectionID || h.PublicationID != publicationID {
			continue
		}
		if h.Status != models.SyncStatusSuccess || h.CompletedAt == nil {
			continue
		}
		if h.StartedAt.Before(from) || !h.StartedAt.Before(to) {
			continue
		}
		found = true
		if h.SubscriberCount > max {
			max = h.SubscriberCount
		}
	}
	return max, found, nil
}

func (r *fakeHistoryRepo) CountSince(since time.Time) (int64, error) {
	var n int64
	for _, h := range r.rows {
		if !h.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeHistoryRepo) DeleteByConnection(connectionID uint) error {
	var kept []*models.SyncHistory
	for _, h := range r.rows {
		if h.EspConnectionID != connectionID {
			kept = append(kept, h)
		}
	}
	r.rows = kept
	return nil
}

// fakeConnector scripts per-publication behavior for a sync run.
type fakeConnector struct {
	publications []connectors.Publication
	subscribers  map[string][]connectors.RemoteSubscriber
	fetchErrs    map[string]error
	listErr      error
}

func (f *fakeConnector) ValidateCredential(ctx context.Context, secret, publicationID string) (bool, error) {
	return true, nil
}

func (f *fakeConnector) ListPublications(ctx context.Context, secret string) ([]connectors.Publication, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.publications, nil
}

func (f *fakeConnector) FetchSubscribers(ctx context.Context, secret, publicationID string) ([]connectors.RemoteSubscriber, error) {
	if err, ok := f.fetchErrs[publicationID]; ok {
		return nil, err
	}
	return f.subscribers[publicationID], nil
}

func (f *fakeConnector) GetSubscriberCount(ctx context.Context, secret, publicationID string) (int, error) {
	return len(f.subscribers[publicationID]), nil
}

func (f *fakeConnector) OAuthScopes() []string {
	return []string{"list.read", "subscriber.read"}
}

func newTestRegistry(espType string, c connectors.Connector) *connectors.Registry {
	reg := connectors.NewRegistry()
	reg.Register(espType, c)
	return reg
}

func encrypt(t interface{ Fatalf(string, ...interface{}) }, plaintext string) string {
	enc, err := security.EncryptCredential(plaintext, testSecret)
	if err != nil {
		t.Fatalf("encrypting test credential failed: %v", err)
	}
	return enc
}

func testRepos(conns *fakeConnectionRepo, subs *fakeSubscriberRepo, history *fakeHistoryRepo) *repository.Repositories {
	return &repository.Repositories{
		Connection:  conns,
		Subscriber:  subs,
		SyncHistory: history,
	}
}
