package espsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subsyncio/subsync/app/models"
	"github.com/subsyncio/subsync/internal/pkg/connectors"
)

func apiKeyTestConnection(t *testing.T, pubIDs ...string) *models.EspConnection {
	t.Helper()
	conn := &models.EspConnection{
		ID:         1,
		UserID:     10,
		EspType:    models.EspTypeMailerlite,
		AuthMethod: models.AuthMethodAPIKey,
		APIKeyEnc:  encrypt(t, "ml-key"),
		Status:     models.ConnectionStatusActive,
	}
	if len(pubIDs) > 0 {
		require.NoError(t, conn.SetSelectedPublicationIDs(pubIDs))
	}
	return conn
}

func remoteSub(id, email string) connectors.RemoteSubscriber {
	return connectors.RemoteSubscriber{ID: id, Email: email, Status: models.SubscriberStatusActive}
}

type countingUsage struct {
	calls   int
	userIDs []uint
}

func (u *countingUsage) UpdateUsage(ctx context.Context, userID uint) error {
	u.calls++
	u.userIDs = append(u.userIDs, userID)
	return nil
}

func TestSyncSubscribersConnectionNotFound(t *testing.T) {
	svc := NewService(
		testRepos(newFakeConnectionRepo(), newFakeSubscriberRepo(), newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, &fakeConnector{}),
		nil, nil, testSecret,
	)

	_, err := svc.SyncSubscribers(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSyncSubscribersUnknownEspType(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a")
	conn.EspType = "sendpulse"
	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), newFakeSubscriberRepo(), newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, &fakeConnector{}),
		nil, nil, testSecret,
	)

	_, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestSyncSubscribersNoSelection(t *testing.T) {
	conn := apiKeyTestConnection(t)
	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), newFakeSubscriberRepo(), newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, &fakeConnector{}),
		nil, nil, testSecret,
	)

	_, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestSyncSubscribersStaleSelectionRejectedBeforeAnyHistory(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a", "list-gone")
	history := newFakeHistoryRepo()
	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a", Name: "Main"}},
	}
	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), newFakeSubscriberRepo(), history),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, nil, testSecret,
	)

	_, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Contains(t, err.Error(), "list-gone")
	assert.Empty(t, history.rows)
}

func TestSyncSubscribersPartialFailure(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a", "list-b")
	conns := newFakeConnectionRepo(conn)
	subs := newFakeSubscriberRepo()
	history := newFakeHistoryRepo()
	usage := &countingUsage{}

	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a"}, {ID: "list-b"}},
		subscribers: map[string][]connectors.RemoteSubscriber{
			"list-b": {remoteSub("s1", "a@example.com"), remoteSub("s2", "b@example.com")},
		},
		fetchErrs: map[string]error{
			"list-a": connectors.NewProviderError("mailerlite", 500, "boom"),
		},
	}

	svc := NewService(
		testRepos(conns, subs, history),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, usage, testSecret,
	)

	results, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.SyncStatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].ErrorMessage)
	assert.Equal(t, models.SyncStatusSuccess, results[1].Status)
	assert.Equal(t, 2, results[1].SubscriberCount)

	// One history row per publication, terminal states recorded.
	require.Len(t, history.rows, 2)
	assert.Equal(t, models.SyncStatusFailed, history.rows[0].Status)
	assert.NotNil(t, history.rows[0].CompletedAt)
	assert.Equal(t, models.SyncStatusSuccess, history.rows[1].Status)
	assert.Equal(t, 2, history.rows[1].SubscriberCount)

	// A partially failed run still counts as a successful sync.
	stored, getErr := conns.GetByID(conn.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.SyncStatusSuccess, stored.LastSyncStatus)

	assert.Equal(t, 1, usage.calls)
	assert.Equal(t, []uint{conn.UserID}, usage.userIDs)
}

func TestSyncSubscribersAllPublicationsFailed(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a", "list-b")
	conns := newFakeConnectionRepo(conn)
	usage := &countingUsage{}

	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a"}, {ID: "list-b"}},
		fetchErrs: map[string]error{
			"list-a": connectors.NewProviderError("mailerlite", 500, "boom"),
			"list-b": connectors.NewProviderError("mailerlite", 503, "down"),
		},
	}

	svc := NewService(
		testRepos(conns, newFakeSubscriberRepo(), newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, usage, testSecret,
	)

	results, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Len(t, results, 2)

	stored, getErr := conns.GetByID(conn.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.SyncStatusFailed, stored.LastSyncStatus)

	assert.Equal(t, 0, usage.calls)
}

func TestSyncSubscribersRerunDoesNotDuplicate(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a")
	subs := newFakeSubscriberRepo()

	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a"}},
		subscribers: map[string][]connectors.RemoteSubscriber{
			"list-a": {remoteSub("s1", "a@example.com"), remoteSub("s2", "b@example.com")},
		},
	}

	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), subs, newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, nil, testSecret,
	)

	for i := 0; i < 2; i++ {
		_, err := svc.SyncSubscribers(context.Background(), conn.ID)
		require.NoError(t, err)
	}

	count, err := subs.CountByConnection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSyncSubscribersSkipsBadRecords(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a")
	subs := newFakeSubscriberRepo()

	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a"}},
		subscribers: map[string][]connectors.RemoteSubscriber{
			"list-a": {
				remoteSub("s1", "a@example.com"),
				{ID: "", Email: "no-id@example.com"},
				{ID: "s3", Email: ""},
			},
		},
	}

	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), subs, newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, nil, testSecret,
	)

	results, err := svc.SyncSubscribers(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].SubscriberCount)
}

func TestPublicationsListsRemoteLists(t *testing.T) {
	conn := apiKeyTestConnection(t, "list-a")
	connector := &fakeConnector{
		publications: []connectors.Publication{{ID: "list-a", Name: "Main"}, {ID: "list-b", Name: "Beta"}},
	}

	svc := NewService(
		testRepos(newFakeConnectionRepo(conn), newFakeSubscriberRepo(), newFakeHistoryRepo()),
		newTestRegistry(models.EspTypeMailerlite, connector),
		nil, nil, testSecret,
	)

	pubs, err := svc.Publications(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, "Main", pubs[0].Name)
}
